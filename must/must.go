// Package must panics on conditions that indicate a programming error rather
// than a runtime failure.
package must

// NilErr panics when err is non-nil. Reserve it for operations that cannot
// fail with valid inputs, such as encoding an in-memory struct.
func NilErr(err error) {
	if nil != err {
		panic("unexpected error: " + err.Error())
	}
}
