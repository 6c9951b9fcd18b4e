// Package must contains simple functions that panic on errors.
//
// It should only be used in tests and rare places where errors are provably
// impossible.
package must

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// OK panics if the error value is not nil. It is intended for use with
// functions that return just an error.
func OK(err error) {
	if err != nil {
		panic(err)
	}
}

// OK1 panics if the error value is not nil. It is intended for use with
// functions that return one value and an error.
func OK1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// OK2 panics if the error value is not nil. It is intended for use with
// functions that return two values and an error.
func OK2[T1, T2 any](v1 T1, v2 T2, err error) (T1, T2) {
	if err != nil {
		panic(err)
	}
	return v1, v2
}

// JSON marshals v, which is typically a state literal in a test.
func JSON(v any) json.RawMessage {
	return OK1(json.Marshal(v))
}

// TempFile returns the path of a not-yet-existing file inside a fresh
// temporary directory that is removed by cleanup.
func TempFile(c interface{ Cleanup(func()) }, name string) string {
	dir := OK1(os.MkdirTemp("", "aether-test"))
	c.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, name)
}
