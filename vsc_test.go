package vsc_test

import (
	"context"
	"testing"

	"github.com/benbjohnson/vsc"
	"github.com/benbjohnson/vsc/bitblast"
	"github.com/davecgh/go-spew/spew"
)

// NewSolver returns a compound solver using the bit-blasting backend.
func NewSolver() *vsc.CompoundSolver {
	return vsc.NewCompoundSolver(bitblast.NewBackend())
}

// MustSolve solves constraints over fields or fails the test.
func MustSolve(tb testing.TB, s *vsc.CompoundSolver, seed string, fields []*vsc.Field, constraints []vsc.Constraint, flags vsc.SolveFlags) {
	tb.Helper()
	if err := s.Solve(context.Background(), vsc.NewRandState(seed), fields, constraints, flags); err != nil {
		tb.Fatalf("solve: %s", err)
	}
}

// MustHold fails the test if any constraint is false for the current values.
func MustHold(tb testing.TB, fields []*vsc.Field, constraints ...vsc.Constraint) {
	tb.Helper()
	for _, c := range constraints {
		if ok, err := vsc.EvalConstraint(c); err != nil {
			tb.Fatalf("eval %s: %s", c, err)
		} else if !ok {
			tb.Fatalf("constraint does not hold: %s\n%s", c, spew.Sdump(FieldValues(fields)))
		}
	}
}

// MustEvalExpr evaluates expr or fails the test.
func MustEvalExpr(tb testing.TB, expr vsc.Expr) vsc.Value {
	tb.Helper()
	v, err := vsc.EvalExpr(expr)
	if err != nil {
		tb.Fatalf("eval %s: %s", expr, err)
	}
	return v
}

// FieldValues returns the value of every leaf under fields by full name.
func FieldValues(fields []*vsc.Field) map[string]int64 {
	m := make(map[string]int64)
	for _, f := range fields {
		for _, leaf := range f.Leaves() {
			if leaf.Signed {
				m[leaf.FullName()] = leaf.Value.Int64()
			} else {
				m[leaf.FullName()] = int64(leaf.Value.Bits)
			}
		}
	}
	return m
}

// FieldNames returns the full names of a.
func FieldNames(a []*vsc.Field) []string {
	names := make([]string, 0, len(a))
	for _, f := range a {
		names = append(names, f.FullName())
	}
	return names
}

func Ref(f *vsc.Field) vsc.Expr { return vsc.NewFieldRefExpr(f) }

func Int(v int64) vsc.Expr { return vsc.NewIntExpr(v) }

func Bin(op vsc.BinaryOp, lhs, rhs vsc.Expr) vsc.Expr { return vsc.NewBinaryExpr(op, lhs, rhs) }

func Expr(expr vsc.Expr) vsc.Constraint { return vsc.NewExprConstraint(expr) }

// Elem returns a path to vec[index].
func Elem(vec *vsc.Field, index vsc.Expr) vsc.Expr {
	return vsc.NewIndexedFieldRefExpr(vec, vsc.VecIndex(index))
}

// Size returns a path to the size of vec.
func Size(vec *vsc.Field) vsc.Expr {
	return vsc.NewIndexedFieldRefExpr(vec, vsc.SizeIndex())
}

// NewRandVector returns a random-enabled vector of n unsigned elements.
func NewRandVector(name string, width uint, n int) *vsc.Field {
	vec := vsc.NewVectorField(name, width, false, vsc.FieldRandEnabled, n)
	vec.SetFlags(vsc.FieldRandEnabled)
	return vec
}
