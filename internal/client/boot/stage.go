package boot

import "strings"

// Stage is a named step of the boot sequence.
type Stage string

const (
	StageBoot        Stage = "BOOT"
	StageAuthCheck   Stage = "AUTH_CHECK"
	StageInitCore    Stage = "INIT_CORE"
	StageInitModules Stage = "INIT_MODULES"
	StageInitUI      Stage = "INIT_UI"
	StageIdle        Stage = "IDLE"

	// StageError is the terminal failure state. It is not part of the linear
	// order and compares beyond every normal stage.
	StageError Stage = "BOOT_ERROR"
)

var stageOrder = []Stage{
	StageBoot,
	StageAuthCheck,
	StageInitCore,
	StageInitModules,
	StageInitUI,
	StageIdle,
}

// Stages returns the linear stage order (without StageError).
func Stages() []Stage {
	return append([]Stage(nil), stageOrder...)
}

// ParseStage normalizes s: surrounding space is trimmed, case is folded and
// inner spaces or dashes become underscores. Unrecognized values map to
// StageBoot; StageError passes through.
func ParseStage(s string) Stage {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.NewReplacer(" ", "_", "-", "_").Replace(n)

	if Stage(n) == StageError {
		return StageError
	}
	for _, st := range stageOrder {
		if Stage(n) == st {
			return st
		}
	}
	return StageBoot
}

// Order is the stage's position in the sequence. StageError orders after
// StageIdle; unknown stages order as StageBoot.
func (s Stage) Order() int {
	if s == StageError {
		return len(stageOrder)
	}
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return 0
}

// Terminal reports whether the watchdog stays disarmed in s.
func (s Stage) Terminal() bool {
	return s == StageIdle || s == StageError
}
