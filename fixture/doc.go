// Package fixture loads the test suite of an assignment: an assembly
// prefix appended after the student's source, an ordered list of
// input/output cases, and the assignment text.
//
// Each resource is fetched separately, from a directory or an HTTP base
// URL, and every failure is reported together.
package fixture
