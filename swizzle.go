package vsc

import (
	"sort"

	"go.uber.org/zap"
)

// DefaultSwizzleAttempts is the default number of attempts per field.
const DefaultSwizzleAttempts = 4

// Swizzler moves the witness of a session toward a random pick. For each
// field it chooses a random target value and splits the field into random
// contiguous bit ranges. Each range is assumed equal to the target and, if
// satisfiable, asserted. On failure, a random half of the ranges is retried.
// If no full-width range can be pinned, random values are tried for
// progressively narrower low-order ranges so that fields with small domains
// still vary.
type Swizzler struct {
	MaxAttempts int
	Logger      *zap.Logger
}

// NewSwizzler returns a new instance of Swizzler.
func NewSwizzler() *Swizzler {
	return &Swizzler{
		MaxAttempts: DefaultSwizzleAttempts,
		Logger:      zap.NewNop(),
	}
}

// Swizzle randomizes the values of nodes within sess. The session must have
// been found satisfiable. Fields whose ranges cannot be pinned are left to
// the solver.
func (s *Swizzler) Swizzle(sess Session, rs RandState, nodes []Node) error {
	for _, n := range nodes {
		if ok, err := s.pinRanges(sess, rs, n); err != nil {
			return err
		} else if ok {
			continue
		}

		if ok, err := s.pinLow(sess, rs, n); err != nil {
			return err
		} else if !ok {
			s.logger().Debug("[swizzle] left to solver", zap.Uint("width", sess.Width(n)))
		}
	}
	return nil
}

// pinRanges pins n to a random full-width target split into random ranges.
// Returns true only if every range was pinned.
func (s *Swizzler) pinRanges(sess Session, rs RandState, n Node) (bool, error) {
	width := sess.Width(n)
	target := Value{Width: width}
	rs.RandBits(&target)

	parts := int(rs.RandInt32(1, 4))
	if uint(parts) > width {
		parts = int(width)
	}

	// Build an equality per range.
	var eqs []Node
	for _, r := range splitRanges(rs, width, parts) {
		eq, err := s.rangeEq(sess, n, r, target.Extract(r.upper, r.lower))
		if err != nil {
			return false, err
		}
		eqs = append(eqs, eq)
	}

	for attempt := 0; attempt < s.MaxAttempts && len(eqs) > 0; attempt++ {
		if ok, err := s.try(sess, eqs...); err != nil {
			return false, err
		} else if ok {
			s.logger().Debug("[swizzle] pinned",
				zap.Stringer("target", target),
				zap.Int("ranges", len(eqs)),
				zap.Int("attempt", attempt),
			)
			return attempt == 0, nil
		}

		// Keep a random half of the ranges.
		for i := len(eqs) - 1; i > 0; i-- {
			j := int(rs.RandInt32(0, int32(i)))
			eqs[i], eqs[j] = eqs[j], eqs[i]
		}
		eqs = eqs[:len(eqs)/2]
	}
	return false, nil
}

// pinLow pins the low-order bits of n to random values, halving the number
// of bits each time every attempt at the current width fails. Upper bits are
// left to the solver.
func (s *Swizzler) pinLow(sess Session, rs RandState, n Node) (bool, error) {
	for bits := sess.Width(n); bits > 0; bits /= 2 {
		for attempt := 0; attempt < s.MaxAttempts; attempt++ {
			target := Value{Width: bits}
			rs.RandBits(&target)

			eq, err := s.rangeEq(sess, n, bitRange{upper: bits - 1, lower: 0}, target)
			if err != nil {
				return false, err
			} else if ok, err := s.try(sess, eq); err != nil {
				return false, err
			} else if ok {
				s.logger().Debug("[swizzle] pinned low bits",
					zap.Stringer("target", target),
					zap.Int("attempt", attempt),
				)
				return true, nil
			}
		}
	}
	return false, nil
}

// rangeEq returns a node that is true when bits r of n equal v.
func (s *Swizzler) rangeEq(sess Session, n Node, r bitRange, v Value) (Node, error) {
	slice, err := sess.Slice(n, r.upper, r.lower)
	if err != nil {
		return nil, err
	}
	value, err := sess.Const(v)
	if err != nil {
		return nil, err
	}
	return sess.Eq(slice, value)
}

// try assumes eqs and asserts them if the session remains satisfiable.
func (s *Swizzler) try(sess Session, eqs ...Node) (bool, error) {
	for _, eq := range eqs {
		if err := sess.Assume(eq); err != nil {
			return false, err
		}
	}

	if ok, err := sess.Check(); err != nil || !ok {
		return false, err
	}
	for _, eq := range eqs {
		if err := sess.Assert(eq); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *Swizzler) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

type bitRange struct {
	upper, lower uint
}

// splitRanges splits [0, width) into n contiguous non-empty ranges at
// random cut points.
func splitRanges(rs RandState, width uint, n int) []bitRange {
	cuts := make(map[uint]struct{})
	for len(cuts) < n-1 {
		cuts[uint(rs.RandInt32(1, int32(width)-1))] = struct{}{}
	}

	points := []uint{0, width}
	for cut := range cuts {
		points = append(points, cut)
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	ranges := make([]bitRange, 0, n)
	for i := 0; i+1 < len(points); i++ {
		ranges = append(ranges, bitRange{upper: points[i+1] - 1, lower: points[i]})
	}
	return ranges
}
