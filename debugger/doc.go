// Package debugger implements the execution-control state machine on top of
// a runtime.Adapter.
//
// A Session owns the adapter, the source collaborator and the current
// State. Every operation replaces the State wholesale and increments the
// session version, so observers never see a partially updated snapshot:
//
//	idle ──build──▶ idle | asmerr
//	idle, stopped, asmerr ──run──▶ running ──▶ stopped | error
//	idle ──start──▶ debug ──step, next, continue──▶ debug | error | stopped
//	debug ──quit──▶ idle
//
// The test-suite display is parallel to this cycle: RunTestSuite rebuilds
// the source with each fixture case appended, runs it to completion and
// commits a TestSuite state holding the results.
//
// Runs, continues and sweeps are synchronous loops bounded only by the
// adapter's instruction limit. Sessions are not safe for concurrent use.
package debugger
