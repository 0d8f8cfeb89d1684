// Package z3 implements a vsc backend over the Z3 C API. It requires cgo
// and libz3; without cgo, NewSession returns ErrUnavailable.
package z3

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoModel       = errors.New("z3: no model")
	ErrTimeout       = errors.New("z3: solver timeout")
	ErrCanceled      = errors.New("z3: solver canceled")
	ErrResourceLimit = errors.New("z3: solver resource limit reached")
	ErrUnknown       = errors.New("z3: solver returned unknown")
	ErrUnavailable   = errors.New("z3: built without cgo")
)

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
