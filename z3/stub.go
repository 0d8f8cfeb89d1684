//go:build !cgo
// +build !cgo

package z3

import "github.com/benbjohnson/vsc"

// Ensure type implements interface.
var _ vsc.Backend = (*Backend)(nil)

// Backend is unavailable without cgo.
type Backend struct{}

// NewBackend returns a new instance of Backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Stats returns zero statistics.
func (b *Backend) Stats() Stats {
	return Stats{}
}

// NewSession always returns ErrUnavailable.
func (b *Backend) NewSession() (vsc.Session, error) {
	return nil, ErrUnavailable
}
