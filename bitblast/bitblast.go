// Package bitblast implements a vsc backend that translates every
// bit-vector operator into an and-inverter circuit and solves the circuit
// with the gini SAT solver.
package bitblast

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/vsc"
	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// Ensure types implement interfaces.
var (
	_ vsc.Backend = (*Backend)(nil)
	_ vsc.Session = (*Session)(nil)
)

var (
	ErrNoModel       = errors.New("bitblast: no model")
	ErrStaleNode     = errors.New("bitblast: node created after last check")
	ErrUnknown       = errors.New("bitblast: solver returned unknown")
	ErrInvalidNode   = errors.New("bitblast: invalid node")
	ErrWidthMismatch = errors.New("bitblast: operand width mismatch")
)

// Backend creates bit-blasting sessions.
type Backend struct {
	stats Stats
}

// NewBackend returns a new instance of Backend.
func NewBackend() *Backend {
	return &Backend{}
}

// NewSession returns a new session with an empty circuit.
func (b *Backend) NewSession() (vsc.Session, error) {
	return &Session{
		backend: b,
		c:       logic.NewC(),
	}, nil
}

// Stats returns statistics for all sessions of the backend.
func (b *Backend) Stats() Stats {
	return b.stats
}

// Stats holds solver counters.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}

// node is a bit-vector of circuit literals, least significant bit first.
type node struct {
	bits []z.Lit
}

// Session builds a single circuit. Each Check translates the circuit into
// CNF for a fresh gini instance.
type Session struct {
	backend *Backend
	c       *logic.C

	inputs   []z.Lit
	asserted []z.Lit
	assumed  []z.Lit

	// Solver holding the last satisfying model and the highest variable it
	// covers.
	model    *gini.Gini
	modelMax z.Var
	maxVar   z.Var
}

// Var returns a fresh variable of width bits.
func (s *Session) Var(name string, width uint) (vsc.Node, error) {
	bits := make([]z.Lit, width)
	for i := range bits {
		bits[i] = s.c.Lit()
	}
	s.inputs = append(s.inputs, bits...)
	return s.newNode(bits), nil
}

// Const returns a constant node of v.
func (s *Session) Const(v vsc.Value) (vsc.Node, error) {
	bits := make([]z.Lit, v.Width)
	for i := range bits {
		bits[i] = s.constant(v.Bit(uint(i)))
	}
	return s.newNode(bits), nil
}

// Width returns the width of n in bits.
func (s *Session) Width(n vsc.Node) uint {
	return uint(len(n.(*node).bits))
}

func (s *Session) Eq(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode([]z.Lit{s.eq(x, y)}), nil
}

func (s *Session) Ne(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode([]z.Lit{s.eq(x, y).Not()}), nil
}

func (s *Session) Ult(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode([]z.Lit{s.ult(x, y)}), nil
}

func (s *Session) Ule(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode([]z.Lit{s.ult(y, x).Not()}), nil
}

func (s *Session) Ugt(a, b vsc.Node) (vsc.Node, error) { return s.Ult(b, a) }

func (s *Session) Uge(a, b vsc.Node) (vsc.Node, error) { return s.Ule(b, a) }

func (s *Session) Slt(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode([]z.Lit{s.ult(flipSign(x), flipSign(y))}), nil
}

func (s *Session) Sle(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode([]z.Lit{s.ult(flipSign(y), flipSign(x)).Not()}), nil
}

func (s *Session) Sgt(a, b vsc.Node) (vsc.Node, error) { return s.Slt(b, a) }

func (s *Session) Sge(a, b vsc.Node) (vsc.Node, error) { return s.Sle(b, a) }

func (s *Session) Add(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	sum, _ := s.add(x, y, s.c.F)
	return s.newNode(sum), nil
}

func (s *Session) Sub(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode(s.sub(x, y)), nil
}

func (s *Session) Mul(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode(s.mul(x, y)), nil
}

func (s *Session) UDiv(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	q, _ := s.udivrem(x, y)
	return s.newNode(q), nil
}

func (s *Session) URem(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	_, r := s.udivrem(x, y)
	return s.newNode(r), nil
}

// SDiv returns the signed quotient, truncated toward zero.
func (s *Session) SDiv(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	sx, sy := msb(x), msb(y)
	q, _ := s.udivrem(s.abs(x), s.abs(y))
	return s.newNode(s.choose(s.xor(sx, sy), s.neg(q), q)), nil
}

// SRem returns the signed remainder, which takes the sign of the dividend.
func (s *Session) SRem(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	_, r := s.udivrem(s.abs(x), s.abs(y))
	return s.newNode(s.choose(msb(x), s.neg(r), r)), nil
}

func (s *Session) And(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	bits := make([]z.Lit, len(x))
	for i := range bits {
		bits[i] = s.c.And(x[i], y[i])
	}
	return s.newNode(bits), nil
}

func (s *Session) Or(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	bits := make([]z.Lit, len(x))
	for i := range bits {
		bits[i] = s.c.Or(x[i], y[i])
	}
	return s.newNode(bits), nil
}

func (s *Session) Xor(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	bits := make([]z.Lit, len(x))
	for i := range bits {
		bits[i] = s.xor(x[i], y[i])
	}
	return s.newNode(bits), nil
}

func (s *Session) Not(a vsc.Node) (vsc.Node, error) {
	x := a.(*node).bits
	bits := make([]z.Lit, len(x))
	for i := range bits {
		bits[i] = x[i].Not()
	}
	return s.newNode(bits), nil
}

func (s *Session) Shl(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode(s.shift(x, y, true)), nil
}

func (s *Session) Lshr(a, b vsc.Node) (vsc.Node, error) {
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode(s.shift(x, y, false)), nil
}

func (s *Session) Uext(a vsc.Node, width uint) (vsc.Node, error) {
	return s.extend(a, width, false)
}

func (s *Session) Sext(a vsc.Node, width uint) (vsc.Node, error) {
	return s.extend(a, width, true)
}

func (s *Session) extend(a vsc.Node, width uint, signed bool) (vsc.Node, error) {
	x := a.(*node).bits
	if uint(len(x)) > width {
		return nil, fmt.Errorf("%w: extend %d bits to %d", ErrInvalidNode, len(x), width)
	}

	pad := s.c.F
	if signed {
		pad = msb(x)
	}
	bits := make([]z.Lit, width)
	for i := range bits {
		if i < len(x) {
			bits[i] = x[i]
		} else {
			bits[i] = pad
		}
	}
	return s.newNode(bits), nil
}

func (s *Session) Slice(a vsc.Node, upper, lower uint) (vsc.Node, error) {
	x := a.(*node).bits
	if upper < lower || upper >= uint(len(x)) {
		return nil, fmt.Errorf("%w: slice [%d:%d] of %d bits", ErrInvalidNode, upper, lower, len(x))
	}
	bits := make([]z.Lit, upper-lower+1)
	copy(bits, x[lower:upper+1])
	return s.newNode(bits), nil
}

func (s *Session) Cond(c, a, b vsc.Node) (vsc.Node, error) {
	cond, err := boolean(c)
	if err != nil {
		return nil, err
	}
	x, y, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	return s.newNode(s.choose(cond, x, y)), nil
}

func (s *Session) Implies(a, b vsc.Node) (vsc.Node, error) {
	x, err := boolean(a)
	if err != nil {
		return nil, err
	}
	y, err := boolean(b)
	if err != nil {
		return nil, err
	}
	return s.newNode([]z.Lit{s.c.Or(x.Not(), y)}), nil
}

// Assume adds n as an assumption of the next Check.
func (s *Session) Assume(n vsc.Node) error {
	m, err := boolean(n)
	if err != nil {
		return err
	}
	s.assumed = append(s.assumed, m)
	return nil
}

// Assert adds n as a unit clause of every later Check.
func (s *Session) Assert(n vsc.Node) error {
	m, err := boolean(n)
	if err != nil {
		return err
	}
	s.asserted = append(s.asserted, m)
	return nil
}

// Check solves the circuit under the assertions and current assumptions.
func (s *Session) Check() (bool, error) {
	t := time.Now()
	defer func() {
		s.backend.stats.SolveN++
		s.backend.stats.SolveTime += time.Since(t)
		s.assumed = nil
	}()

	g := gini.New()

	// Register inputs that feed no gate so the model covers them.
	for _, m := range s.inputs {
		g.Add(m)
		g.Add(s.c.T)
		g.Add(0)
	}

	s.c.ToCnf(g)
	g.Add(s.c.T)
	g.Add(0)
	for _, m := range s.asserted {
		g.Add(m)
		g.Add(0)
	}
	g.Assume(s.assumed...)

	switch g.Solve() {
	case 1:
		s.model, s.modelMax = g, s.maxVar
		return true, nil
	case -1:
		return false, nil
	default:
		return false, ErrUnknown
	}
}

// Value returns the value of n in the last satisfying model.
func (s *Session) Value(n vsc.Node) (vsc.Value, error) {
	if s.model == nil {
		return vsc.Value{}, ErrNoModel
	}

	x := n.(*node).bits
	var bits uint64
	for i, m := range x {
		if m.Var() > s.modelMax {
			return vsc.Value{}, ErrStaleNode
		}
		if s.model.Value(m) {
			bits |= 1 << uint(i)
		}
	}
	return vsc.NewValue(bits, uint(len(x))), nil
}

// Close releases the circuit and model.
func (s *Session) Close() error {
	s.c, s.model = nil, nil
	s.inputs, s.asserted, s.assumed = nil, nil, nil
	return nil
}

// newNode wraps bits and tracks the highest variable in use.
func (s *Session) newNode(bits []z.Lit) *node {
	for _, m := range bits {
		if v := m.Var(); v > s.maxVar {
			s.maxVar = v
		}
	}
	return &node{bits: bits}
}

func (s *Session) constant(v bool) z.Lit {
	if v {
		return s.c.T
	}
	return s.c.F
}

func (s *Session) xor(a, b z.Lit) z.Lit {
	return s.c.Or(s.c.And(a, b.Not()), s.c.And(a.Not(), b))
}

func (s *Session) eq(x, y []z.Lit) z.Lit {
	lits := make([]z.Lit, len(x))
	for i := range x {
		lits[i] = s.xor(x[i], y[i]).Not()
	}
	return s.c.Ands(lits...)
}

// ult returns true if x < y as unsigned values: the subtraction x - y
// borrows.
func (s *Session) ult(x, y []z.Lit) z.Lit {
	_, carry := s.add(x, not(y), s.c.T)
	return carry.Not()
}

// add returns the sum of x, y and a carry-in and the carry-out.
func (s *Session) add(x, y []z.Lit, carry z.Lit) ([]z.Lit, z.Lit) {
	sum := make([]z.Lit, len(x))
	for i := range x {
		p := s.xor(x[i], y[i])
		sum[i] = s.xor(p, carry)
		carry = s.c.Or(s.c.And(x[i], y[i]), s.c.And(carry, p))
	}
	return sum, carry
}

func (s *Session) sub(x, y []z.Lit) []z.Lit {
	diff, _ := s.add(x, not(y), s.c.T)
	return diff
}

func (s *Session) neg(x []z.Lit) []z.Lit {
	zero := make([]z.Lit, len(x))
	for i := range zero {
		zero[i] = s.c.F
	}
	return s.sub(zero, x)
}

func (s *Session) abs(x []z.Lit) []z.Lit {
	return s.choose(msb(x), s.neg(x), x)
}

// mul returns the product of x and y truncated to their width.
func (s *Session) mul(x, y []z.Lit) []z.Lit {
	acc := make([]z.Lit, len(x))
	for i := range acc {
		acc[i] = s.c.F
	}

	for i := range y {
		partial := make([]z.Lit, len(x))
		for j := range partial {
			if j < i {
				partial[j] = s.c.F
			} else {
				partial[j] = s.c.And(x[j-i], y[i])
			}
		}
		acc, _ = s.add(acc, partial, s.c.F)
	}
	return acc
}

// udivrem returns the unsigned quotient and remainder of x and y using
// restoring division. Division by zero yields a quotient of all ones and a
// remainder of x.
func (s *Session) udivrem(x, y []z.Lit) (q, r []z.Lit) {
	w := len(x)

	// The partial remainder needs one extra bit before each subtraction.
	divisor := append(append([]z.Lit(nil), y...), s.c.F)
	rem := make([]z.Lit, w+1)
	for i := range rem {
		rem[i] = s.c.F
	}

	q = make([]z.Lit, w)
	for i := w - 1; i >= 0; i-- {
		shifted := make([]z.Lit, w+1)
		shifted[0] = x[i]
		copy(shifted[1:], rem[:w])

		ge := s.ult(shifted, divisor).Not()
		q[i] = ge
		rem = s.choose(ge, s.sub(shifted, divisor), shifted)
	}
	return q, rem[:w]
}

// shift returns x shifted by the amount y using a barrel shifter. Shift
// amounts of at least the width of x yield zero.
func (s *Session) shift(x, y []z.Lit, left bool) []z.Lit {
	w := len(x)
	result := x
	overflow := s.c.F
	for k := range y {
		if 1<<uint(k) >= w {
			overflow = s.c.Or(overflow, y[k])
			continue
		}

		n := 1 << uint(k)
		shifted := make([]z.Lit, w)
		for i := range shifted {
			j := i - n
			if !left {
				j = i + n
			}
			if j >= 0 && j < w {
				shifted[i] = result[j]
			} else {
				shifted[i] = s.c.F
			}
		}
		result = s.choose(y[k], shifted, result)
	}

	zero := make([]z.Lit, w)
	for i := range zero {
		zero[i] = s.c.F
	}
	return s.choose(overflow, zero, result)
}

// choose returns x when c holds, otherwise y.
func (s *Session) choose(c z.Lit, x, y []z.Lit) []z.Lit {
	bits := make([]z.Lit, len(x))
	for i := range bits {
		bits[i] = s.c.Or(s.c.And(c, x[i]), s.c.And(c.Not(), y[i]))
	}
	return bits
}

func not(x []z.Lit) []z.Lit {
	bits := make([]z.Lit, len(x))
	for i := range bits {
		bits[i] = x[i].Not()
	}
	return bits
}

func msb(x []z.Lit) z.Lit { return x[len(x)-1] }

// flipSign inverts the sign bit so signed order matches unsigned order.
func flipSign(x []z.Lit) []z.Lit {
	bits := append([]z.Lit(nil), x...)
	bits[len(bits)-1] = bits[len(bits)-1].Not()
	return bits
}

func operands(a, b vsc.Node) ([]z.Lit, []z.Lit, error) {
	x, ok := a.(*node)
	if !ok {
		return nil, nil, ErrInvalidNode
	}
	y, ok := b.(*node)
	if !ok {
		return nil, nil, ErrInvalidNode
	}
	if len(x.bits) != len(y.bits) {
		return nil, nil, fmt.Errorf("%w: %d != %d", ErrWidthMismatch, len(x.bits), len(y.bits))
	}
	return x.bits, y.bits, nil
}

func boolean(n vsc.Node) (z.Lit, error) {
	x, ok := n.(*node)
	if !ok {
		return 0, ErrInvalidNode
	} else if len(x.bits) != 1 {
		return 0, fmt.Errorf("%w: expected 1 bit, got %d", ErrWidthMismatch, len(x.bits))
	}
	return x.bits[0], nil
}
