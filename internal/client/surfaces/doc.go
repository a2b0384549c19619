// Package surfaces implements the headless data surfaces the refresh
// coordinator drives: the doctor summary, upcoming appointments, today's
// lifestyle totals and the blood-pressure chart.
//
// Each surface loads its rows through the Storage port and commits the
// result into a View. Loads are tagged with a generation when they start; a
// load that finishes after a newer one has committed is discarded, so a
// refresh that outlived its step timeout never overwrites fresher data.
package surfaces
