package services

import (
	"fmt"
	"runtime/debug"
)

// guardEngine converts a panic inside an engine call into an error
func guardEngine(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panicked during %s: %v\n%s", op, r, debug.Stack())
		}
	}()
	return fn()
}
