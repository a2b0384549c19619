package refresh

// UIState reports the ambient presentation state used for request defaults.
type UIState interface {
	ChartOpen() bool
	LifestyleActive() bool
}

// StaticUI is a fixed UIState.
type StaticUI struct {
	Chart     bool
	Lifestyle bool
}

func (s StaticUI) ChartOpen() bool       { return s.Chart }
func (s StaticUI) LifestyleActive() bool { return s.Lifestyle }

// Request asks for a refresh. Surfaces named in neither Include nor Exclude
// take their defaults: doctor on, appointments off, chart when the chart is
// open, lifestyle when the lifestyle tab is active.
type Request struct {
	Reason  string
	Include Set
	Exclude Set
}

// Resolve returns the surfaces r asks for given ui.
func (r Request) Resolve(ui UIState) Set {
	s := Doctor
	if ui != nil && ui.ChartOpen() {
		s |= Chart
	}
	if ui != nil && ui.LifestyleActive() {
		s |= Lifestyle
	}
	s |= r.Include
	s &^= r.Exclude
	return s
}

// Snapshot is a drained pending set.
type Snapshot struct {
	Surfaces Set
	Reasons  []string
}

type pendingSet struct {
	surfaces Set
	reasons  []string
}

func (p *pendingSet) add(s Set, reason string) {
	p.surfaces |= s
	if reason == "" {
		return
	}
	if n := len(p.reasons); n > 0 && p.reasons[n-1] == reason {
		return
	}
	p.reasons = append(p.reasons, reason)
}

func (p *pendingSet) empty() bool { return p.surfaces == 0 }

func (p *pendingSet) drain() Snapshot {
	snap := Snapshot{Surfaces: p.surfaces, Reasons: p.reasons}
	p.surfaces = 0
	p.reasons = nil
	return snap
}
