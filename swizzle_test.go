package vsc_test

import (
	"fmt"
	"testing"

	"github.com/benbjohnson/vsc"
	"github.com/benbjohnson/vsc/bitblast"
)

func TestSwizzler_Swizzle(t *testing.T) {
	t.Run("Constrained", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			sess, err := bitblast.NewBackend().NewSession()
			if err != nil {
				t.Fatal(err)
			}
			defer sess.Close()

			b := vsc.NewModelBuilder(sess)
			a := vsc.NewRandField("a", 16, false)
			if !MustAssertConstraints(t, b, Expr(vsc.NewInExpr(Ref(a), vsc.Range{Lower: Int(1000), Upper: Int(2000)}))) {
				t.Fatal("expected sat")
			}

			n, err := b.BuildField(a)
			if err != nil {
				t.Fatal(err)
			} else if err := vsc.NewSwizzler().Swizzle(sess, vsc.NewRandState(fmt.Sprint(i)), []vsc.Node{n}); err != nil {
				t.Fatal(err)
			}

			if ok, err := sess.Check(); err != nil {
				t.Fatal(err)
			} else if !ok {
				t.Fatal("expected sat after swizzle")
			} else if v := MustFieldValue(t, b, a); v.Bits < 1000 || v.Bits > 2000 {
				t.Fatalf("unexpected value: %s", v)
			}
		}
	})

	// Few full-width targets satisfy a < 10 so picks must come from the
	// low-order bits rather than the solver's default witness.
	t.Run("NarrowDomain", func(t *testing.T) {
		counts := make(map[uint64]int)
		for i := 0; i < 40; i++ {
			b := vsc.NewModelBuilder(MustOpenSession(t))
			a := vsc.NewRandField("a", 8, false)
			if !MustAssertConstraints(t, b, Expr(Bin(vsc.LT, Ref(a), Int(10)))) {
				t.Fatal("expected sat")
			}

			n, err := b.BuildField(a)
			if err != nil {
				t.Fatal(err)
			} else if err := vsc.NewSwizzler().Swizzle(b.Session, vsc.NewRandState(fmt.Sprint(i)), []vsc.Node{n}); err != nil {
				t.Fatal(err)
			} else if ok, err := b.Session.Check(); err != nil || !ok {
				t.Fatalf("check: %v %v", ok, err)
			}

			v := MustFieldValue(t, b, a)
			if v.Bits >= 10 {
				t.Fatalf("unexpected value: %s", v)
			}
			counts[v.Bits]++
		}

		if len(counts) < 6 {
			t.Fatalf("expected varied values: %v", counts)
		}
		for v, n := range counts {
			if n > 20 {
				t.Fatalf("value %d picked %d times: %v", v, n, counts)
			}
		}
	})

	t.Run("Unconstrained", func(t *testing.T) {
		seen := make(map[uint64]bool)
		for i := 0; i < 10; i++ {
			sess, err := bitblast.NewBackend().NewSession()
			if err != nil {
				t.Fatal(err)
			}
			defer sess.Close()

			n, err := sess.Var("x", 32)
			if err != nil {
				t.Fatal(err)
			} else if ok, err := sess.Check(); err != nil || !ok {
				t.Fatalf("check: %v %v", ok, err)
			}

			rs := vsc.NewRandState(fmt.Sprint(i))
			if err := vsc.NewSwizzler().Swizzle(sess, rs, []vsc.Node{n}); err != nil {
				t.Fatal(err)
			} else if ok, err := sess.Check(); err != nil || !ok {
				t.Fatalf("check: %v %v", ok, err)
			}

			v, err := sess.Value(n)
			if err != nil {
				t.Fatal(err)
			}
			seen[v.Bits] = true
		}
		if len(seen) < 8 {
			t.Fatalf("expected distinct values, got %d", len(seen))
		}
	})
}
