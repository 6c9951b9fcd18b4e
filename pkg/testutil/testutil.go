// Package testutil contains common test utilities shared by the runtime's
// packages.
package testutil

// Cleanuper wraps the Cleanup method. It is a subset of [testing.TB], thus
// satisfied by [*testing.T] and [*testing.B].
type Cleanuper interface {
	Cleanup(func())
}

// Helper wraps the Helper and Fatalf methods, also a subset of [testing.TB].
type Helper interface {
	Helper()
	Fatalf(format string, args ...any)
}
