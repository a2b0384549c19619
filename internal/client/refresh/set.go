package refresh

import "strings"

// Set is a bitmask of refreshable surfaces.
type Set uint8

const (
	Doctor Set = 1 << iota
	Appointments
	Lifestyle
	Chart
)

const All = Doctor | Appointments | Lifestyle | Chart

// order is the refresh order; later surfaces may read state normalized by
// earlier ones.
var order = []Set{Doctor, Appointments, Lifestyle, Chart}

var names = map[Set]string{
	Doctor:       "doctor",
	Appointments: "appointments",
	Lifestyle:    "lifestyle",
	Chart:        "chart",
}

func (s Set) Has(other Set) bool { return s&other == other && other != 0 }

// Members returns the single-surface sets contained in s, in refresh order.
func (s Set) Members() []Set {
	var out []Set
	for _, m := range order {
		if s&m != 0 {
			out = append(out, m)
		}
	}
	return out
}

func (s Set) String() string {
	if s == 0 {
		return "none"
	}
	parts := make([]string, 0, len(order))
	for _, m := range s.Members() {
		parts = append(parts, names[m])
	}
	return strings.Join(parts, ",")
}

// ParseSet parses a surface name. It reports false for unknown names.
func ParseSet(name string) (Set, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range names {
		if n == name {
			return s, true
		}
	}
	if name == "all" {
		return All, true
	}
	return 0, false
}
