package vsc_test

import (
	"testing"

	"github.com/benbjohnson/vsc"
)

func TestRandState(t *testing.T) {
	t.Run("Seed", func(t *testing.T) {
		a, b := vsc.NewRandState("x"), vsc.NewRandState("x")
		for i := 0; i < 10; i++ {
			if x, y := a.RandUint64(), b.RandUint64(); x != y {
				t.Fatalf("streams diverged at %d: %d != %d", i, x, y)
			}
		}
		if a.Seed() != "x" {
			t.Fatalf("unexpected seed: %s", a.Seed())
		}
		if vsc.NewRandState("x").RandUint64() == vsc.NewRandState("y").RandUint64() {
			t.Fatal("expected different streams for different seeds")
		}
	})

	t.Run("RandInt32", func(t *testing.T) {
		rs := vsc.NewRandState("0")
		for i := 0; i < 1000; i++ {
			if v := rs.RandInt32(-3, 3); v < -3 || v > 3 {
				t.Fatalf("out of range: %d", v)
			}
		}
		if v := rs.RandInt32(5, 5); v != 5 {
			t.Fatalf("unexpected value: %d", v)
		}
	})

	t.Run("RandBits", func(t *testing.T) {
		rs := vsc.NewRandState("0")
		v := vsc.Value{Width: 5}
		for i := 0; i < 100; i++ {
			rs.RandBits(&v)
			if v.Width != 5 || v.Bits >= 32 {
				t.Fatalf("unexpected value: %s", v)
			}
		}
	})

	t.Run("Clone", func(t *testing.T) {
		rs := vsc.NewRandState("0")
		rs.RandUint64()
		other := rs.Clone()
		if x, y := rs.RandUint64(), other.RandUint64(); x != y {
			t.Fatalf("clone diverged: %d != %d", x, y)
		}
	})

	t.Run("Next", func(t *testing.T) {
		a, b := vsc.NewRandState("0"), vsc.NewRandState("0")
		an, bn := a.Next(), b.Next()
		if x, y := an.RandUint64(), bn.RandUint64(); x != y {
			t.Fatalf("derived streams diverged: %d != %d", x, y)
		} else if x, y := a.RandUint64(), b.RandUint64(); x != y {
			t.Fatalf("parent streams diverged: %d != %d", x, y)
		}
	})

	t.Run("SetState", func(t *testing.T) {
		a, b := vsc.NewRandState("a"), vsc.NewRandState("b")
		a.RandUint64()
		b.SetState(a)
		if b.Seed() != "a" {
			t.Fatalf("unexpected seed: %s", b.Seed())
		} else if x, y := a.RandUint64(), b.RandUint64(); x != y {
			t.Fatalf("streams diverged: %d != %d", x, y)
		}
	})
}
