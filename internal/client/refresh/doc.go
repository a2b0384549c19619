// Package refresh coalesces UI refresh requests into debounced passes.
//
// Requests from any source are OR-merged into a pending set. At most one
// pass runs at a time; it drains the pending set repeatedly and refreshes
// the enabled surfaces in a fixed order (doctor, appointments, lifestyle,
// chart) until nothing is pending, then releases every waiter.
package refresh
