package vsc

import (
	"errors"
	"fmt"
)

// EvalConstraint returns true if c holds for the current field values.
// Foreach constraints are unrolled over the current vector lengths.
func EvalConstraint(c Constraint) (bool, error) {
	scope := NewScopeConstraint()
	if err := NewUnroller().Unroll(scope, c); err != nil {
		return false, err
	}

	b := NewModelBuilder(&valueSession{})
	b.constants = true
	n, err := b.BuildConstraint(scope)
	if err != nil {
		return false, err
	}
	return n.(Value).IsTrue(), nil
}

// EvalExpr returns the value of expr for the current field values, at the
// declared width of expr.
func EvalExpr(expr Expr) (Value, error) {
	b := NewModelBuilder(&valueSession{})
	b.constants = true
	n, err := b.BuildExpr(expr)
	if err != nil {
		return Value{}, err
	}
	return n.(Value), nil
}

// errVariable is returned when a variable is requested from a valueSession.
var errVariable = errors.New("vsc: cannot evaluate variable")

// Ensure type implements interface.
var _ Session = (*valueSession)(nil)

// valueSession is a Session that computes node values directly.
type valueSession struct {
	asserted []Value
	assumed  []Value
}

func (s *valueSession) Var(name string, width uint) (Node, error) {
	return nil, fmt.Errorf("%w: %s", errVariable, name)
}

func (s *valueSession) Const(v Value) (Node, error) { return v, nil }

func (s *valueSession) Width(n Node) uint { return n.(Value).Width }

func (s *valueSession) Eq(a, b Node) (Node, error) {
	return NewBoolValue(a.(Value) == b.(Value)), nil
}

func (s *valueSession) Ne(a, b Node) (Node, error) {
	return NewBoolValue(a.(Value) != b.(Value)), nil
}

func (s *valueSession) Ult(a, b Node) (Node, error) {
	return NewBoolValue(a.(Value).Ult(b.(Value))), nil
}

func (s *valueSession) Ule(a, b Node) (Node, error) {
	return NewBoolValue(a.(Value).Ule(b.(Value))), nil
}

func (s *valueSession) Ugt(a, b Node) (Node, error) { return s.Ult(b, a) }

func (s *valueSession) Uge(a, b Node) (Node, error) { return s.Ule(b, a) }

func (s *valueSession) Slt(a, b Node) (Node, error) {
	return NewBoolValue(a.(Value).Slt(b.(Value))), nil
}

func (s *valueSession) Sle(a, b Node) (Node, error) {
	return NewBoolValue(a.(Value).Sle(b.(Value))), nil
}

func (s *valueSession) Sgt(a, b Node) (Node, error) { return s.Slt(b, a) }

func (s *valueSession) Sge(a, b Node) (Node, error) { return s.Sle(b, a) }

func (s *valueSession) Add(a, b Node) (Node, error)  { return a.(Value).Add(b.(Value)), nil }
func (s *valueSession) Sub(a, b Node) (Node, error)  { return a.(Value).Sub(b.(Value)), nil }
func (s *valueSession) Mul(a, b Node) (Node, error)  { return a.(Value).Mul(b.(Value)), nil }
func (s *valueSession) UDiv(a, b Node) (Node, error) { return a.(Value).UDiv(b.(Value)), nil }
func (s *valueSession) SDiv(a, b Node) (Node, error) { return a.(Value).SDiv(b.(Value)), nil }
func (s *valueSession) URem(a, b Node) (Node, error) { return a.(Value).URem(b.(Value)), nil }
func (s *valueSession) SRem(a, b Node) (Node, error) { return a.(Value).SRem(b.(Value)), nil }
func (s *valueSession) And(a, b Node) (Node, error)  { return a.(Value).And(b.(Value)), nil }
func (s *valueSession) Or(a, b Node) (Node, error)   { return a.(Value).Or(b.(Value)), nil }
func (s *valueSession) Xor(a, b Node) (Node, error)  { return a.(Value).Xor(b.(Value)), nil }
func (s *valueSession) Not(a Node) (Node, error)     { return a.(Value).Not(), nil }
func (s *valueSession) Shl(a, b Node) (Node, error)  { return a.(Value).Shl(b.(Value)), nil }
func (s *valueSession) Lshr(a, b Node) (Node, error) { return a.(Value).LShr(b.(Value)), nil }

func (s *valueSession) Uext(a Node, width uint) (Node, error) { return a.(Value).ZExt(width), nil }
func (s *valueSession) Sext(a Node, width uint) (Node, error) { return a.(Value).SExt(width), nil }

func (s *valueSession) Slice(a Node, upper, lower uint) (Node, error) {
	return a.(Value).Extract(upper, lower), nil
}

func (s *valueSession) Cond(c, a, b Node) (Node, error) {
	if c.(Value).IsTrue() {
		return a, nil
	}
	return b, nil
}

func (s *valueSession) Implies(a, b Node) (Node, error) {
	return NewBoolValue(!a.(Value).IsTrue() || b.(Value).IsTrue()), nil
}

func (s *valueSession) Assume(n Node) error {
	s.assumed = append(s.assumed, n.(Value))
	return nil
}

func (s *valueSession) Assert(n Node) error {
	s.asserted = append(s.asserted, n.(Value))
	return nil
}

func (s *valueSession) Check() (bool, error) {
	defer func() { s.assumed = nil }()
	for _, v := range append(s.asserted, s.assumed...) {
		if !v.IsTrue() {
			return false, nil
		}
	}
	return true, nil
}

func (s *valueSession) Value(n Node) (Value, error) { return n.(Value), nil }

func (s *valueSession) Close() error { return nil }
