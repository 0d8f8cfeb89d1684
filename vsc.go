package vsc

import (
	"errors"
	"fmt"
)

// Standard widths.
const (
	WidthBool = 1
	Width8    = 8
	Width16   = 16
	Width32   = 32
	Width64   = 64
)

// MaxWidth is the widest value a field or literal may have.
const MaxWidth = Width64

var (
	ErrInvalidReference     = errors.New("vsc: invalid field reference")
	ErrUnsatisfiable        = errors.New("vsc: unsatisfiable solve-set")
	ErrUnresolvedExpression = errors.New("vsc: unresolved expression")
	ErrNotSupportedPath     = errors.New("vsc: dynamic vector index not supported")
	ErrRollback             = errors.New("vsc: constraint tree modified by unroll")
	ErrVectorSize           = errors.New("vsc: vector size out of range")
)

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
