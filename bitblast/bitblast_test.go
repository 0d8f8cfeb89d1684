package bitblast_test

import (
	"errors"
	"testing"

	"github.com/benbjohnson/vsc"
	"github.com/benbjohnson/vsc/bitblast"
)

// Width used for exhaustive operator checks.
const width = 4

func MustOpenSession(tb testing.TB) vsc.Session {
	tb.Helper()
	sess, err := bitblast.NewBackend().NewSession()
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { sess.Close() })
	return sess
}

func MustConst(tb testing.TB, sess vsc.Session, v vsc.Value) vsc.Node {
	tb.Helper()
	n, err := sess.Const(v)
	if err != nil {
		tb.Fatal(err)
	}
	return n
}

func MustVar(tb testing.TB, sess vsc.Session, name string, width uint) vsc.Node {
	tb.Helper()
	n, err := sess.Var(name, width)
	if err != nil {
		tb.Fatal(err)
	}
	return n
}

// MustAssume assumes x equals the constant v.
func MustAssume(tb testing.TB, sess vsc.Session, x vsc.Node, v vsc.Value) {
	tb.Helper()
	eq, err := sess.Eq(x, MustConst(tb, sess, v))
	if err != nil {
		tb.Fatal(err)
	} else if err := sess.Assume(eq); err != nil {
		tb.Fatal(err)
	}
}

func MustCheck(tb testing.TB, sess vsc.Session) bool {
	tb.Helper()
	ok, err := sess.Check()
	if err != nil {
		tb.Fatal(err)
	}
	return ok
}

func MustValue(tb testing.TB, sess vsc.Session, n vsc.Node) vsc.Value {
	tb.Helper()
	v, err := sess.Value(n)
	if err != nil {
		tb.Fatal(err)
	}
	return v
}

func TestSession_Operators(t *testing.T) {
	type binaryFunc func(a, b vsc.Node) (vsc.Node, error)

	sess := MustOpenSession(t)
	x, y := MustVar(t, sess, "x", width), MustVar(t, sess, "y", width)

	ops := []struct {
		name string
		fn   binaryFunc
		exp  func(a, b vsc.Value) vsc.Value
	}{
		{"Add", sess.Add, vsc.Value.Add},
		{"Sub", sess.Sub, vsc.Value.Sub},
		{"Mul", sess.Mul, vsc.Value.Mul},
		{"UDiv", sess.UDiv, vsc.Value.UDiv},
		{"URem", sess.URem, vsc.Value.URem},
		{"SDiv", sess.SDiv, vsc.Value.SDiv},
		{"SRem", sess.SRem, vsc.Value.SRem},
		{"And", sess.And, vsc.Value.And},
		{"Or", sess.Or, vsc.Value.Or},
		{"Xor", sess.Xor, vsc.Value.Xor},
		{"Shl", sess.Shl, vsc.Value.Shl},
		{"Lshr", sess.Lshr, vsc.Value.LShr},
		{"Eq", sess.Eq, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(a == b) }},
		{"Ne", sess.Ne, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(a != b) }},
		{"Ult", sess.Ult, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(a.Ult(b)) }},
		{"Ule", sess.Ule, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(a.Ule(b)) }},
		{"Ugt", sess.Ugt, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(b.Ult(a)) }},
		{"Uge", sess.Uge, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(b.Ule(a)) }},
		{"Slt", sess.Slt, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(a.Slt(b)) }},
		{"Sle", sess.Sle, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(a.Sle(b)) }},
		{"Sgt", sess.Sgt, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(b.Slt(a)) }},
		{"Sge", sess.Sge, func(a, b vsc.Value) vsc.Value { return vsc.NewBoolValue(b.Sle(a)) }},
	}

	nodes := make([]vsc.Node, len(ops))
	for i, op := range ops {
		n, err := op.fn(x, y)
		if err != nil {
			t.Fatalf("%s: %s", op.name, err)
		}
		nodes[i] = n
	}

	for a := uint64(0); a < 1<<width; a++ {
		for b := uint64(0); b < 1<<width; b++ {
			av, bv := vsc.NewValue(a, width), vsc.NewValue(b, width)
			MustAssume(t, sess, x, av)
			MustAssume(t, sess, y, bv)
			if !MustCheck(t, sess) {
				t.Fatalf("unsat for x=%d y=%d", a, b)
			}

			for i, op := range ops {
				if got, exp := MustValue(t, sess, nodes[i]), op.exp(av, bv); got != exp {
					t.Fatalf("%s(%d, %d): got %s, expected %s", op.name, a, b, got, exp)
				}
			}
		}
	}
}

func TestSession_Unary(t *testing.T) {
	sess := MustOpenSession(t)
	x := MustVar(t, sess, "x", width)

	not, err := sess.Not(x)
	if err != nil {
		t.Fatal(err)
	}
	uext, err := sess.Uext(x, 8)
	if err != nil {
		t.Fatal(err)
	}
	sext, err := sess.Sext(x, 8)
	if err != nil {
		t.Fatal(err)
	}
	slice, err := sess.Slice(x, 2, 1)
	if err != nil {
		t.Fatal(err)
	}

	for a := uint64(0); a < 1<<width; a++ {
		av := vsc.NewValue(a, width)
		MustAssume(t, sess, x, av)
		if !MustCheck(t, sess) {
			t.Fatalf("unsat for x=%d", a)
		}

		if got := MustValue(t, sess, not); got != av.Not() {
			t.Fatalf("not(%d): got %s", a, got)
		} else if got := MustValue(t, sess, uext); got != av.ZExt(8) {
			t.Fatalf("uext(%d): got %s", a, got)
		} else if got := MustValue(t, sess, sext); got != av.SExt(8) {
			t.Fatalf("sext(%d): got %s", a, got)
		} else if got := MustValue(t, sess, slice); got != av.Extract(2, 1) {
			t.Fatalf("slice(%d): got %s", a, got)
		}
	}
}

func TestSession_Cond(t *testing.T) {
	sess := MustOpenSession(t)
	c := MustVar(t, sess, "c", 1)
	a, b := MustConst(t, sess, vsc.NewValue(3, 8)), MustConst(t, sess, vsc.NewValue(9, 8))

	n, err := sess.Cond(c, a, b)
	if err != nil {
		t.Fatal(err)
	}
	implies, err := sess.Implies(c, MustConst(t, sess, vsc.NewBoolValue(false)))
	if err != nil {
		t.Fatal(err)
	}

	MustAssume(t, sess, c, vsc.NewBoolValue(true))
	if !MustCheck(t, sess) {
		t.Fatal("expected sat")
	} else if v := MustValue(t, sess, n); v.Bits != 3 {
		t.Fatalf("unexpected value: %s", v)
	} else if v := MustValue(t, sess, implies); v.IsTrue() {
		t.Fatal("expected false implication")
	}

	MustAssume(t, sess, c, vsc.NewBoolValue(false))
	if !MustCheck(t, sess) {
		t.Fatal("expected sat")
	} else if v := MustValue(t, sess, n); v.Bits != 9 {
		t.Fatalf("unexpected value: %s", v)
	} else if v := MustValue(t, sess, implies); !v.IsTrue() {
		t.Fatal("expected vacuous implication")
	}
}

func TestSession_Check(t *testing.T) {
	t.Run("AssumptionsCleared", func(t *testing.T) {
		sess := MustOpenSession(t)
		x := MustVar(t, sess, "x", 8)
		ne, err := sess.Ne(x, x)
		if err != nil {
			t.Fatal(err)
		} else if err := sess.Assume(ne); err != nil {
			t.Fatal(err)
		}

		if MustCheck(t, sess) {
			t.Fatal("expected unsat")
		} else if !MustCheck(t, sess) {
			t.Fatal("expected sat once assumptions are cleared")
		}
	})

	t.Run("Asserted", func(t *testing.T) {
		sess := MustOpenSession(t)
		x := MustVar(t, sess, "x", 8)
		lt, err := sess.Ult(x, MustConst(t, sess, vsc.NewValue(2, 8)))
		if err != nil {
			t.Fatal(err)
		}
		gt, err := sess.Ugt(x, MustConst(t, sess, vsc.NewValue(0, 8)))
		if err != nil {
			t.Fatal(err)
		}
		if err := sess.Assert(lt); err != nil {
			t.Fatal(err)
		} else if err := sess.Assert(gt); err != nil {
			t.Fatal(err)
		}

		for i := 0; i < 2; i++ {
			if !MustCheck(t, sess) {
				t.Fatal("expected sat")
			} else if v := MustValue(t, sess, x); v.Bits != 1 {
				t.Fatalf("unexpected value: %s", v)
			}
		}

		MustAssume(t, sess, x, vsc.NewValue(5, 8))
		if MustCheck(t, sess) {
			t.Fatal("expected unsat")
		}
	})

	t.Run("FreeInput", func(t *testing.T) {
		sess := MustOpenSession(t)
		x := MustVar(t, sess, "x", 16)
		if !MustCheck(t, sess) {
			t.Fatal("expected sat")
		} else if _, err := sess.Value(x); err != nil {
			t.Fatal(err)
		}
	})
}

func TestSession_Errors(t *testing.T) {
	t.Run("ErrNoModel", func(t *testing.T) {
		sess := MustOpenSession(t)
		x := MustVar(t, sess, "x", 8)
		if _, err := sess.Value(x); !errors.Is(err, bitblast.ErrNoModel) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrStaleNode", func(t *testing.T) {
		sess := MustOpenSession(t)
		MustVar(t, sess, "x", 8)
		if !MustCheck(t, sess) {
			t.Fatal("expected sat")
		}
		y := MustVar(t, sess, "y", 8)
		if _, err := sess.Value(y); !errors.Is(err, bitblast.ErrStaleNode) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ErrWidthMismatch", func(t *testing.T) {
		sess := MustOpenSession(t)
		x, y := MustVar(t, sess, "x", 8), MustVar(t, sess, "y", 4)
		if _, err := sess.Add(x, y); !errors.Is(err, bitblast.ErrWidthMismatch) {
			t.Fatalf("unexpected error: %v", err)
		} else if err := sess.Assert(x); !errors.Is(err, bitblast.ErrWidthMismatch) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestBackend_Stats(t *testing.T) {
	backend := bitblast.NewBackend()
	sess, err := backend.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	for i := 0; i < 3; i++ {
		if _, err := sess.Check(); err != nil {
			t.Fatal(err)
		}
	}
	if n := backend.Stats().SolveN; n != 3 {
		t.Fatalf("unexpected solve count: %d", n)
	}
}
