// Package engine is the row-processing core: it turns one record into one
// RowResult and drives a whole record sequence through that step.
//
// # Row lifecycle
//
// Every record goes through the same states, stopping at the first terminal
// one:
//
//	Resolve   -> each FieldSpec yields a Value, a default, Absent, or Missing
//	Validate  -> every rule of every field runs; any reason ends the row as
//	             validation_failed before the page is touched
//	Actuate   -> fields are set in declaration order, then submit is clicked
//	Verify    -> the success check decides success or actuation_failed
//
// Actuation is pluggable. LiveActuation drives an Actuator (a browser page);
// DryRunActuation only records what would have been done and never reaches a
// browser.
//
// # Runs
//
// A Coordinator walks records in input order, one at a time. Rows outside the
// requested range or rejected by the filter are ignored entirely. With resume
// enabled, rows already in the ledger are logged as skipped. Every processed
// row is appended to the result log before the next one starts, and a
// cancelled context stops the run between rows, never inside one.
//
// Only two kinds of failure escape a run: ErrActuatorUnavailable from the
// driver and a failure to write the result log. Everything else becomes a
// row outcome.
package engine
