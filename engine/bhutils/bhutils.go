package bhutils

import "github.com/brickhost/brickd/engine/bhlog"

// RunPanicless calls a function panic-freely
func RunPanicless(f func()) (paniced bool) {
	defer func() {
		err := recover()
		if err != nil {
			bhlog.TraceError("%s panic: %s", f, err)
			paniced = true
		}
	}()

	f()
	return
}

// RepeatUntilPanicless runs the function repeatedly until there is no panic
func RepeatUntilPanicless(f func()) {
	for !RunPanicless(f) {
	}
}

// CatchPanic calls a function and returns the error if it panics
func CatchPanic(f func()) (err interface{}) {
	defer func() {
		err = recover()
		if err != nil {
			bhlog.TraceError("CatchPanic: %s panic: %s", f, err)
		}
	}()

	f()
	return
}
