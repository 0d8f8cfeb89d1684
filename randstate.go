package vsc

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// RandState represents a random stream used to solve unconstrained fields
// and drive swizzling. A RandState must not be used concurrently.
type RandState interface {
	// Seed returns the seed the stream was created from.
	Seed() string

	// RandInt32 returns a value in the closed range [min, max].
	RandInt32(min, max int32) int32

	RandUint64() uint64
	RandInt64() int64

	// RandBits fills v with random bits, keeping its width.
	RandBits(v *Value)

	// Clone returns an independent copy at the same position.
	Clone() RandState

	// Next returns a new stream derived from this stream's current position
	// and advances this stream.
	Next() RandState

	// SetState copies the position of other into this stream.
	SetState(other RandState)
}

// Ensure type implements interface.
var _ RandState = (*randState)(nil)

type randState struct {
	seed string
	pcg  *rand.PCG
	rand *rand.Rand
}

// NewRandState returns a new RandState seeded from the hash of seed.
func NewRandState(seed string) RandState {
	h := xxhash.Sum64String(seed)
	return newRandState(seed, h, h^0x9e3779b97f4a7c15)
}

func newRandState(seed string, s1, s2 uint64) *randState {
	pcg := rand.NewPCG(s1, s2)
	return &randState{seed: seed, pcg: pcg, rand: rand.New(pcg)}
}

func (rs *randState) Seed() string { return rs.seed }

func (rs *randState) RandInt32(min, max int32) int32 {
	assert(min <= max, "randint32: invalid range [%d:%d]", min, max)
	n := uint64(int64(max) - int64(min) + 1)
	return int32(int64(min) + int64(rs.rand.Uint64N(n)))
}

func (rs *randState) RandUint64() uint64 { return rs.rand.Uint64() }

func (rs *randState) RandInt64() int64 { return int64(rs.rand.Uint64()) }

func (rs *randState) RandBits(v *Value) {
	*v = NewValue(rs.rand.Uint64(), v.Width)
}

func (rs *randState) Clone() RandState {
	other := newRandState(rs.seed, 0, 0)
	other.SetState(rs)
	return other
}

func (rs *randState) Next() RandState {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], rs.rand.Uint64())
	h := xxhash.Sum64(buf[:])
	return newRandState(rs.seed, h, rs.rand.Uint64())
}

func (rs *randState) SetState(other RandState) {
	o, ok := other.(*randState)
	assert(ok, "setstate: unsupported random state: %T", other)

	b, err := o.pcg.MarshalBinary()
	assert(err == nil, "setstate: %v", err)
	err = rs.pcg.UnmarshalBinary(b)
	assert(err == nil, "setstate: %v", err)
	rs.seed = o.seed
}
