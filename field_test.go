package vsc_test

import (
	"testing"

	"github.com/benbjohnson/vsc"
	"github.com/google/go-cmp/cmp"
)

func TestField_FullName(t *testing.T) {
	vec := vsc.NewVectorField("v", 8, false, 0, 3)
	s := vsc.NewStructField("s", vsc.NewField("x", 8, false), vec)

	if got := s.Fields[0].FullName(); got != "s.x" {
		t.Fatalf("unexpected name: %s", got)
	} else if got := vec.Fields[2].FullName(); got != "s.v[2]" {
		t.Fatalf("unexpected name: %s", got)
	} else if got := vec.Size.FullName(); got != "s.v.size" {
		t.Fatalf("unexpected name: %s", got)
	}
}

func TestField_Resize(t *testing.T) {
	vec := vsc.NewVectorField("v", 4, true, vsc.FieldRandEnabled, 2)
	first := vec.Fields[0]

	t.Run("Grow", func(t *testing.T) {
		added := vec.Resize(5)
		if len(added) != 3 {
			t.Fatalf("unexpected added count: %d", len(added))
		} else if vec.Len() != 5 || vec.Size.Value.Uint64() != 5 {
			t.Fatalf("unexpected size: len=%d size=%s", vec.Len(), vec.Size.Value)
		} else if vec.Fields[0] != first {
			t.Fatal("expected existing element to be kept")
		}
		for _, elem := range added {
			if elem.Width != 4 || !elem.Signed || !elem.HasFlags(vsc.FieldRandEnabled) || elem.Parent != vec {
				t.Fatalf("unexpected element: %#v", elem)
			}
		}
	})
	t.Run("Shrink", func(t *testing.T) {
		if added := vec.Resize(1); len(added) != 0 {
			t.Fatalf("unexpected added count: %d", len(added))
		} else if vec.Len() != 1 || vec.Size.Value.Uint64() != 1 {
			t.Fatalf("unexpected size: len=%d size=%s", vec.Len(), vec.Size.Value)
		}
	})
}

func TestField_Leaves(t *testing.T) {
	s := vsc.NewStructField("s",
		vsc.NewField("x", 8, false),
		vsc.NewVectorField("v", 8, false, 0, 2),
		vsc.NewStructField("t", vsc.NewField("y", 1, false)),
	)
	if diff := cmp.Diff([]string{"s.x", "s.v[0]", "s.v[1]", "s.t.y"}, FieldNames(s.Leaves())); diff != "" {
		t.Fatal(diff)
	}
}

func TestField_IsRandom(t *testing.T) {
	t.Run("Scalar", func(t *testing.T) {
		f := vsc.NewRandField("a", 8, false)
		if !f.IsRandom() {
			t.Fatal("expected random")
		}
		f.SetFlags(vsc.FieldResolved)
		if f.IsRandom() {
			t.Fatal("expected resolved field to not be random")
		}
	})
	t.Run("VectorSize", func(t *testing.T) {
		vec := vsc.NewVectorField("v", 8, false, 0, 0)
		if vec.Size.IsRandom() {
			t.Fatal("expected fixed size")
		}
		vec.SetFlags(vsc.FieldRandEnabled)
		if !vec.Size.IsRandom() {
			t.Fatal("expected random size")
		}
	})
}

func TestSetUsedRand(t *testing.T) {
	newModel := func() *vsc.Field {
		x := vsc.NewField("x", 8, false)
		x.SetFlags(vsc.FieldDeclRand)
		y := vsc.NewField("y", 8, false)
		y.SetFlags(vsc.FieldDeclRand)
		vec := vsc.NewVectorField("v", 8, false, 0, 2)
		vec.SetFlags(vsc.FieldDeclRand)
		return vsc.NewStructField("s", x, vsc.NewStructField("t", y), vec)
	}
	enabled := func(top *vsc.Field) []string {
		var a []string
		top.Walk(func(f *vsc.Field) bool {
			if f.HasFlags(vsc.FieldRandEnabled) {
				a = append(a, f.FullName())
			}
			return true
		})
		return a
	}

	t.Run("DeclRand", func(t *testing.T) {
		s := newModel()
		vsc.SetUsedRand(s, false, true)
		if diff := cmp.Diff([]string{"s.x", "s.t.y", "s.v", "s.v[0]", "s.v[1]"}, enabled(s)); diff != "" {
			t.Fatal(diff)
		}
	})
	t.Run("TopOnly", func(t *testing.T) {
		s := newModel()
		vsc.SetUsedRand(s, true, false)
		if diff := cmp.Diff([]string{"s", "s.x", "s.v"}, enabled(s)); diff != "" {
			t.Fatal(diff)
		}
	})
}
