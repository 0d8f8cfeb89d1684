package vsc_test

import (
	"errors"
	"testing"

	"github.com/benbjohnson/vsc"
	"github.com/google/go-cmp/cmp"
)

// ConstraintStrings returns the string form of each constraint in a.
func ConstraintStrings(a []vsc.Constraint) []string {
	s := make([]string, len(a))
	for i, c := range a {
		s[i] = c.String()
	}
	return s
}

func TestUnroller_Unroll(t *testing.T) {
	t.Run("Foreach", func(t *testing.T) {
		vec := NewRandVector("v", 8, 4)
		c := vsc.NewForeachConstraint(Ref(vec), "i")
		c.Body.AddConstraint(Expr(Bin(vsc.LT, Elem(vec, vsc.NewIndexVarExpr(c.Index)), Int(10))))
		before := c.String()

		target := vsc.NewScopeConstraint()
		if err := vsc.NewUnroller().Unroll(target, c); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{
			"(< (path v[0]) (const 10 32s))",
			"(< (path v[1]) (const 10 32s))",
			"(< (path v[2]) (const 10 32s))",
			"(< (path v[3]) (const 10 32s))",
		}, ConstraintStrings(target.Constraints)); diff != "" {
			t.Fatal(diff)
		} else if c.String() != before {
			t.Fatalf("input modified: %s", c)
		}
	})

	t.Run("EmptyVector", func(t *testing.T) {
		vec := NewRandVector("v", 8, 0)
		c := vsc.NewForeachConstraint(Ref(vec), "i")
		c.Body.AddConstraint(Expr(Bin(vsc.LT, Elem(vec, vsc.NewIndexVarExpr(c.Index)), Int(10))))

		target := vsc.NewScopeConstraint()
		if err := vsc.NewUnroller().Unroll(target, c); err != nil {
			t.Fatal(err)
		} else if len(target.Constraints) != 0 {
			t.Fatalf("unexpected constraints: %v", target.Constraints)
		}
	})

	t.Run("IndexArithmetic", func(t *testing.T) {
		vec := NewRandVector("v", 8, 3)
		idx := NewRandVector("w", 8, 2)
		c := vsc.NewForeachConstraint(Ref(idx), "i")
		i := vsc.NewIndexVarExpr(c.Index)
		c.Body.AddConstraint(Expr(Bin(vsc.LT, Elem(vec, i), Elem(vec, Bin(vsc.ADD, i, Int(1))))))

		target := vsc.NewScopeConstraint()
		if err := vsc.NewUnroller().Unroll(target, c); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{
			"(< (path v[0]) (path v[1]))",
			"(< (path v[1]) (path v[2]))",
		}, ConstraintStrings(target.Constraints)); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Nested", func(t *testing.T) {
		vec := NewRandVector("v", 8, 2)
		outer := vsc.NewForeachConstraint(Ref(vec), "i")
		inner := vsc.NewForeachConstraint(Ref(vec), "j")
		inner.Body.AddConstraint(&vsc.ImpliesConstraint{
			Cond: Bin(vsc.NE, vsc.NewIndexVarExpr(outer.Index), vsc.NewIndexVarExpr(inner.Index)),
			Body: Expr(Bin(vsc.NE, Elem(vec, vsc.NewIndexVarExpr(outer.Index)), Elem(vec, vsc.NewIndexVarExpr(inner.Index)))),
		})
		outer.Body.AddConstraint(inner)

		target := vsc.NewScopeConstraint()
		if err := vsc.NewUnroller().Unroll(target, outer); err != nil {
			t.Fatal(err)
		} else if len(target.Constraints) != 2 {
			t.Fatalf("unexpected constraint count: %d", len(target.Constraints))
		}

		scope, ok := target.Constraints[0].(*vsc.ScopeConstraint)
		if !ok || len(scope.Constraints) != 2 {
			t.Fatalf("unexpected constraint: %s", target.Constraints[0])
		} else if got, exp := scope.Constraints[1].String(), "(implies (!= (const 0 32s) (const 1 32s)) (!= (path v[0]) (path v[1])))"; got != exp {
			t.Fatalf("got %s, expected %s", got, exp)
		}
	})

	t.Run("Shared", func(t *testing.T) {
		a := vsc.NewRandField("a", 8, false)
		c := Expr(Bin(vsc.LT, Ref(a), Int(3)))

		target := vsc.NewScopeConstraint()
		if err := vsc.NewUnroller().Unroll(target, c); err != nil {
			t.Fatal(err)
		} else if len(target.Constraints) != 1 || target.Constraints[0] != c {
			t.Fatalf("expected input constraint to be shared: %v", target.Constraints)
		}
	})

	t.Run("ErrInvalidReference", func(t *testing.T) {
		a := vsc.NewRandField("a", 8, false)
		c := vsc.NewForeachConstraint(Ref(a), "i")
		if err := vsc.NewUnroller().Unroll(vsc.NewScopeConstraint(), c); !errors.Is(err, vsc.ErrInvalidReference) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestUnroller_Rollback(t *testing.T) {
	newForeach := func() (*vsc.Field, *vsc.ForeachConstraint) {
		vec := NewRandVector("v", 8, 2)
		c := vsc.NewForeachConstraint(Ref(vec), "i")
		c.Body.AddConstraint(Expr(Bin(vsc.LT, Elem(vec, vsc.NewIndexVarExpr(c.Index)), Int(10))))
		return vec, c
	}

	t.Run("Idempotent", func(t *testing.T) {
		_, c := newForeach()
		before := c.String()

		u := vsc.NewUnroller()
		if err := u.Unroll(vsc.NewScopeConstraint(), c); err != nil {
			t.Fatal(err)
		} else if err := u.Rollback(c); err != nil {
			t.Fatal(err)
		} else if err := u.Rollback(c); err != nil {
			t.Fatal(err)
		} else if c.String() != before {
			t.Fatalf("constraint changed: %s", c)
		}
	})

	t.Run("NotUnrolled", func(t *testing.T) {
		_, c := newForeach()
		if err := vsc.NewUnroller().Rollback(c); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("ErrRollback", func(t *testing.T) {
		vec, c := newForeach()

		u := vsc.NewUnroller()
		if err := u.Unroll(vsc.NewScopeConstraint(), c); err != nil {
			t.Fatal(err)
		}
		c.Body.AddConstraint(Expr(Bin(vsc.NE, Elem(vec, vsc.NewIndexVarExpr(c.Index)), Int(0))))
		if err := u.Rollback(c); !errors.Is(err, vsc.ErrRollback) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
