package boot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStage(t *testing.T) {
	tests := []struct {
		in   string
		want Stage
	}{
		{"BOOT", StageBoot},
		{"auth_check", StageAuthCheck},
		{"  Init Core ", StageInitCore},
		{"init-modules", StageInitModules},
		{"INIT_UI", StageInitUI},
		{"idle", StageIdle},
		{"boot_error", StageError},
		{"", StageBoot},
		{"warp", StageBoot},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStage(tt.in))
		})
	}
}

func TestStage_Order(t *testing.T) {
	for i, st := range Stages() {
		assert.Equal(t, i, st.Order())
	}
	assert.Greater(t, StageError.Order(), StageIdle.Order())
	assert.Equal(t, 0, Stage("nope").Order())
}

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StageIdle.Terminal())
	assert.True(t, StageError.Terminal())
	assert.False(t, StageInitUI.Terminal())
}
