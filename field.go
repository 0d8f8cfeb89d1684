package vsc

import (
	"fmt"
	"strconv"
)

// FieldKind identifies the shape of a field.
type FieldKind int

const (
	FieldScalar FieldKind = iota
	FieldStruct
	FieldVector
)

var fieldKinds = [...]string{
	FieldScalar: "scalar",
	FieldStruct: "struct",
	FieldVector: "vector",
}

// String returns the string representation of the kind.
func (k FieldKind) String() string {
	if k >= 0 && k < FieldKind(len(fieldKinds)) {
		return fieldKinds[k]
	}
	return fmt.Sprintf("FieldKind<%d>", k)
}

// FieldFlags is a set of field state flags.
type FieldFlags uint

const (
	// FieldRandEnabled marks a field as a solver variable.
	FieldRandEnabled FieldFlags = 1 << iota

	// FieldDeclRand marks a field declared random in its type. It is
	// promoted to FieldRandEnabled by the RandomizeDeclRand solve flag.
	FieldDeclRand

	// FieldResolved marks a field whose value is fixed for the remainder
	// of a solve, such as a vector size after resizing.
	FieldResolved
)

// VectorSizeName is the name of the size field of every vector.
const VectorSizeName = "size"

// Field represents a node in the data model: a scalar, a struct of child
// fields, or a vector of element fields.
type Field struct {
	Name   string
	Kind   FieldKind
	Width  uint
	Signed bool
	Value  Value
	Flags  FieldFlags

	// Struct children or vector elements.
	Fields []*Field

	// Enclosing struct or vector. Not owned.
	Parent *Field

	// Vector-only. Size holds the element count as a 32-bit value and the
	// element template is used when the vector is resized.
	Size       *Field
	ElemWidth  uint
	ElemSigned bool
	ElemFlags  FieldFlags
}

// NewField returns a new scalar field with a zero value.
func NewField(name string, width uint, signed bool) *Field {
	return &Field{
		Name:   name,
		Kind:   FieldScalar,
		Width:  width,
		Signed: signed,
		Value:  NewValue(0, width),
	}
}

// NewRandField returns a new random-enabled scalar field.
func NewRandField(name string, width uint, signed bool) *Field {
	f := NewField(name, width, signed)
	f.Flags |= FieldRandEnabled
	return f
}

// NewStructField returns a struct field that owns children.
func NewStructField(name string, children ...*Field) *Field {
	f := &Field{Name: name, Kind: FieldStruct}
	for _, child := range children {
		f.AddField(child)
	}
	return f
}

// NewVectorField returns a vector of n elements of the given element type.
func NewVectorField(name string, elemWidth uint, elemSigned bool, elemFlags FieldFlags, n int) *Field {
	f := &Field{
		Name:       name,
		Kind:       FieldVector,
		ElemWidth:  elemWidth,
		ElemSigned: elemSigned,
		ElemFlags:  elemFlags,
	}
	f.Size = NewField(VectorSizeName, Width32, false)
	f.Size.Parent = f
	f.Resize(n)
	return f
}

// AddField appends a child field and takes ownership of it.
func (f *Field) AddField(child *Field) {
	child.Parent = f
	f.Fields = append(f.Fields, child)
}

// String returns the full name of the field.
func (f *Field) String() string { return f.FullName() }

// FullName returns the hierarchical name of the field, such as "s.v[2]".
func (f *Field) FullName() string {
	p := f.Parent
	switch {
	case p == nil:
		return f.Name
	case p.Kind == FieldVector && f != p.Size:
		return p.FullName() + "[" + f.Name + "]"
	default:
		return p.FullName() + "." + f.Name
	}
}

// HasFlags returns true if all flags in mask are set.
func (f *Field) HasFlags(mask FieldFlags) bool { return f.Flags&mask == mask }

// SetFlags sets the flags in mask.
func (f *Field) SetFlags(mask FieldFlags) { f.Flags |= mask }

// ClearFlags clears the flags in mask.
func (f *Field) ClearFlags(mask FieldFlags) { f.Flags &^= mask }

// IsRandom returns true if the field is a solver variable in the current
// solve: random-enabled and not yet resolved. A vector size field follows
// the random-enabled flag of its vector.
func (f *Field) IsRandom() bool {
	if f.HasFlags(FieldResolved) {
		return false
	} else if f.IsVectorSize() {
		return f.Parent.HasFlags(FieldRandEnabled)
	}
	return f.HasFlags(FieldRandEnabled)
}

// SetValue writes the bits of v to the field, truncated to the field width.
func (f *Field) SetValue(v Value) {
	f.Value = NewValue(v.Bits, f.Width)
}

// Len returns the number of elements in a vector field.
func (f *Field) Len() int { return len(f.Fields) }

// Elem returns the i-th element of a vector or child of a struct.
func (f *Field) Elem(i int) *Field {
	if i < 0 || i >= len(f.Fields) {
		return nil
	}
	return f.Fields[i]
}

// Resize sets the element count of a vector field. Existing elements are
// kept; new elements are created from the element template. Returns the
// newly created elements.
func (f *Field) Resize(n int) []*Field {
	assert(f.Kind == FieldVector, "resize: not a vector: %s", f.Name)

	var added []*Field
	if n < len(f.Fields) {
		f.Fields = f.Fields[:n]
	}
	for i := len(f.Fields); i < n; i++ {
		elem := NewField(strconv.Itoa(i), f.ElemWidth, f.ElemSigned)
		elem.Flags = f.ElemFlags
		elem.Parent = f
		f.Fields = append(f.Fields, elem)
		added = append(added, elem)
	}
	f.Size.Value = NewValue(uint64(n), Width32)
	return added
}

// Walk calls fn for f and every field below it, including vector size
// fields. Traversal stops descending into a field when fn returns false.
func (f *Field) Walk(fn func(*Field) bool) {
	if !fn(f) {
		return
	}
	if f.Kind == FieldVector {
		f.Size.Walk(fn)
	}
	for _, child := range f.Fields {
		child.Walk(fn)
	}
}

// Leaves returns all scalar fields below f in traversal order, excluding
// vector size fields.
func (f *Field) Leaves() []*Field {
	var a []*Field
	f.Walk(func(f *Field) bool {
		if f.Kind == FieldScalar && !f.IsVectorSize() {
			a = append(a, f)
		}
		return true
	})
	return a
}

// IsVectorSize returns true if f is the size field of a vector.
func (f *Field) IsVectorSize() bool {
	return f.Parent != nil && f.Parent.Kind == FieldVector && f.Parent.Size == f
}

// SetUsedRand marks f random-enabled according to the solve flags. The top
// field is marked when top is true. Nested fields are marked when they were
// declared random; descent is unbounded when declRand is true and limited to
// direct children otherwise. Vector elements follow their vector.
func SetUsedRand(f *Field, top, declRand bool) {
	setUsedRand(f, top, declRand, 0)
}

func setUsedRand(f *Field, top, declRand bool, depth int) {
	if (depth == 0 && top) || f.HasFlags(FieldDeclRand) {
		f.SetFlags(FieldRandEnabled)
	}
	if !declRand && depth >= 1 {
		return
	}

	switch f.Kind {
	case FieldStruct:
		for _, child := range f.Fields {
			setUsedRand(child, top, declRand, depth+1)
		}
	case FieldVector:
		if !f.HasFlags(FieldRandEnabled) {
			return
		}
		f.ElemFlags |= FieldRandEnabled
		for _, elem := range f.Fields {
			elem.SetFlags(FieldRandEnabled)
		}
	}
}
