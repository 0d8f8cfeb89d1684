package vsc_test

import (
	"errors"
	"testing"

	"github.com/benbjohnson/vsc"
)

// newValueField returns a non-random field holding v.
func newValueField(name string, width uint, signed bool, v int64) *vsc.Field {
	f := vsc.NewField(name, width, signed)
	f.Value = vsc.NewIntValue(v, width)
	return f
}

func TestEvalExpr(t *testing.T) {
	t.Run("DeclaredWidth", func(t *testing.T) {
		a := newValueField("a", 8, false, 200)
		b := newValueField("b", 8, false, 100)
		if v := MustEvalExpr(t, Bin(vsc.ADD, Ref(a), Ref(b))); v != vsc.NewValue(44, 8) {
			t.Fatalf("unexpected value: %s", v)
		}
	})

	// Arithmetic below a compare is computed at the compare width.
	t.Run("ContextWidth", func(t *testing.T) {
		a := newValueField("a", 8, false, 200)
		b := newValueField("b", 8, false, 100)
		if v := MustEvalExpr(t, Bin(vsc.EQ, Bin(vsc.ADD, Ref(a), Ref(b)), Int(300))); !v.IsTrue() {
			t.Fatalf("expected true, got %s", v)
		}
	})

	t.Run("NestedCompareWidth", func(t *testing.T) {
		y := newValueField("y", 16, false, 1)
		a := newValueField("a", 8, false, 200)
		b := newValueField("b", 8, false, 100)
		c := newValueField("c", 8, false, 250)
		expr := Bin(vsc.EQ, Ref(y), Bin(vsc.GT, Bin(vsc.ADD, Ref(a), Ref(b)), Ref(c)))
		if v := MustEvalExpr(t, expr); !v.IsTrue() {
			t.Fatalf("expected true, got %s", v)
		}
	})

	t.Run("Signedness", func(t *testing.T) {
		a := newValueField("a", 8, true, -1)
		u := newValueField("u", 8, false, 1)
		s := newValueField("s", 8, true, 1)
		if v := MustEvalExpr(t, Bin(vsc.LT, Ref(a), Ref(u))); v.IsTrue() {
			t.Fatal("expected unsigned compare with mixed signedness")
		} else if v := MustEvalExpr(t, Bin(vsc.LT, Ref(a), Ref(s))); !v.IsTrue() {
			t.Fatal("expected signed compare")
		} else if v := MustEvalExpr(t, Bin(vsc.LT, Ref(a), Int(0))); !v.IsTrue() {
			t.Fatal("expected signed compare against signed literal")
		}
	})

	t.Run("SignedDivision", func(t *testing.T) {
		a := newValueField("a", 8, true, -7)
		b := newValueField("b", 8, true, 2)
		if v := MustEvalExpr(t, Bin(vsc.DIV, Ref(a), Ref(b))); v.Int64() != -3 {
			t.Fatalf("unexpected quotient: %d", v.Int64())
		} else if v := MustEvalExpr(t, Bin(vsc.MOD, Ref(a), Ref(b))); v.Int64() != -1 {
			t.Fatalf("unexpected remainder: %d", v.Int64())
		}
	})

	t.Run("Unary", func(t *testing.T) {
		a := newValueField("a", 8, false, 1)
		z := newValueField("z", 8, false, 0)
		if v := MustEvalExpr(t, vsc.NewUnaryExpr(vsc.NEG, Ref(a))); v != vsc.NewValue(255, 8) {
			t.Fatalf("unexpected negation: %s", v)
		} else if v := MustEvalExpr(t, vsc.NewUnaryExpr(vsc.NOT, Ref(a))); v != vsc.NewValue(254, 8) {
			t.Fatalf("unexpected complement: %s", v)
		} else if v := MustEvalExpr(t, vsc.NewUnaryExpr(vsc.LNOT, Ref(z))); v != vsc.NewBoolValue(true) {
			t.Fatalf("unexpected logical not: %s", v)
		}
	})

	t.Run("Logical", func(t *testing.T) {
		a := newValueField("a", 8, false, 2)
		z := newValueField("z", 8, false, 0)
		if v := MustEvalExpr(t, Bin(vsc.LAND, Ref(a), Ref(z))); v.IsTrue() {
			t.Fatal("expected false")
		} else if v := MustEvalExpr(t, Bin(vsc.LOR, Ref(a), Ref(z))); !v.IsTrue() {
			t.Fatal("expected true")
		}
	})

	t.Run("In", func(t *testing.T) {
		a := newValueField("a", 8, false, 7)
		in := vsc.NewInExpr(Ref(a), vsc.Range{Lower: Int(1)}, vsc.Range{Lower: Int(5), Upper: Int(10)})
		if v := MustEvalExpr(t, in); !v.IsTrue() {
			t.Fatal("expected 7 in range")
		}

		a.Value = vsc.NewValue(4, 8)
		if v := MustEvalExpr(t, in); v.IsTrue() {
			t.Fatal("expected 4 not in range")
		}

		if v := MustEvalExpr(t, vsc.NewInExpr(Ref(a))); v.IsTrue() {
			t.Fatal("expected empty list to be false")
		}
	})

	t.Run("InSigned", func(t *testing.T) {
		a := newValueField("a", 8, true, -3)
		in := vsc.NewInExpr(Ref(a), vsc.Range{Lower: Int(-5), Upper: Int(-1)})
		if v := MustEvalExpr(t, in); !v.IsTrue() {
			t.Fatal("expected -3 in [-5..-1]")
		}
	})

	t.Run("PartSelect", func(t *testing.T) {
		a := newValueField("a", 8, false, 0xa5)
		if v := MustEvalExpr(t, vsc.NewPartSelectExpr(Ref(a), 7, 4)); v != vsc.NewValue(0xa, 4) {
			t.Fatalf("unexpected value: %s", v)
		}
	})

	t.Run("ErrUnresolvedExpression", func(t *testing.T) {
		a := newValueField("a", 8, false, 0)
		if _, err := vsc.EvalExpr(vsc.NewPartSelectExpr(Ref(a), 8, 0)); !errors.Is(err, vsc.ErrUnresolvedExpression) {
			t.Fatalf("unexpected error: %v", err)
		}
		i := vsc.NewIndexVarExpr(&vsc.IndexVar{Name: "i"})
		if _, err := vsc.EvalExpr(i); !errors.Is(err, vsc.ErrUnresolvedExpression) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestEvalConstraint(t *testing.T) {
	a := newValueField("a", 8, false, 3)
	b := newValueField("b", 8, false, 7)

	t.Run("IfElse", func(t *testing.T) {
		c := &vsc.IfElseConstraint{
			Cond:  Bin(vsc.LT, Ref(a), Int(5)),
			True:  Expr(Bin(vsc.EQ, Ref(b), Int(7))),
			False: Expr(Bin(vsc.EQ, Ref(b), Int(0))),
		}
		if ok, err := vsc.EvalConstraint(c); err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("expected true")
		}
	})

	t.Run("Implies", func(t *testing.T) {
		c := &vsc.ImpliesConstraint{
			Cond: Bin(vsc.GT, Ref(a), Int(5)),
			Body: Expr(Bin(vsc.EQ, Ref(b), Int(0))),
		}
		if ok, err := vsc.EvalConstraint(c); err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("expected vacuous truth")
		}
	})

	t.Run("Foreach", func(t *testing.T) {
		vec := vsc.NewVectorField("v", 8, false, 0, 3)
		for i, elem := range vec.Fields {
			elem.Value = vsc.NewValue(uint64(i), 8)
		}
		c := vsc.NewForeachConstraint(Ref(vec), "i")
		c.Body.AddConstraint(Expr(Bin(vsc.EQ, Elem(vec, vsc.NewIndexVarExpr(c.Index)), vsc.NewIndexVarExpr(c.Index))))

		if ok, err := vsc.EvalConstraint(c); err != nil {
			t.Fatal(err)
		} else if !ok {
			t.Fatal("expected v[i] == i")
		}

		vec.Fields[1].Value = vsc.NewValue(9, 8)
		if ok, err := vsc.EvalConstraint(c); err != nil {
			t.Fatal(err)
		} else if ok {
			t.Fatal("expected false")
		}
	})
}
