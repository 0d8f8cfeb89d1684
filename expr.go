package vsc

import (
	"bytes"
	"fmt"
	"strconv"
)

// Expr represents an expression over model fields.
type Expr interface {
	String() string
	expr()
}

func (*BinaryExpr) expr()          {}
func (*ConstantExpr) expr()        {}
func (*FieldRefExpr) expr()        {}
func (*InExpr) expr()              {}
func (*IndexedFieldRefExpr) expr() {}
func (*IndexVarExpr) expr()        {}
func (*PartSelectExpr) expr()      {}
func (*UnaryExpr) expr()           {}

// ExprWidth returns the declared bit width of the expression.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Value.Width
	case *FieldRefExpr:
		return expr.Field.Width
	case *IndexedFieldRefExpr:
		return expr.declared().width
	case *IndexVarExpr:
		return Width32
	case *BinaryExpr:
		if expr.Op.IsCompare() || expr.Op.IsLogical() {
			return WidthBool
		}
		return maxWidth(ExprWidth(expr.LHS), ExprWidth(expr.RHS))
	case *UnaryExpr:
		if expr.Op == LNOT {
			return WidthBool
		}
		return ExprWidth(expr.Expr)
	case *InExpr:
		return WidthBool
	case *PartSelectExpr:
		return expr.Upper - expr.Lower + 1
	default:
		panic("unreachable")
	}
}

// ExprSigned returns the declared signedness of the expression.
func ExprSigned(expr Expr) bool {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Signed
	case *FieldRefExpr:
		return expr.Field.Signed
	case *IndexedFieldRefExpr:
		return expr.declared().signed
	case *IndexVarExpr:
		return true
	case *BinaryExpr:
		if expr.Op.IsCompare() || expr.Op.IsLogical() {
			return false
		}
		return ExprSigned(expr.LHS) && ExprSigned(expr.RHS)
	case *UnaryExpr:
		if expr.Op == LNOT {
			return false
		}
		return ExprSigned(expr.Expr)
	case *InExpr, *PartSelectExpr:
		return false
	default:
		panic("unreachable")
	}
}

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	DIV
	MOD
	AND
	OR
	XOR
	SLL
	SRL
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	LT
	LE
	GT
	GE
	compare_op_end

	logical_op_begin
	LAND
	LOR
	logical_op_end
)

var binaryOps = [...]string{
	ADD:  "+",
	SUB:  "-",
	MUL:  "*",
	DIV:  "/",
	MOD:  "%",
	AND:  "&",
	OR:   "|",
	XOR:  "^",
	SLL:  "<<",
	SRL:  ">>",
	EQ:   "==",
	NE:   "!=",
	LT:   "<",
	LE:   "<=",
	GT:   ">",
	GE:   ">=",
	LAND: "&&",
	LOR:  "||",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic or bitwise operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// IsLogical returns true if op is a logical (boolean) operator.
func (op BinaryOp) IsLogical() bool {
	return op > logical_op_begin && op < logical_op_end
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

// NewBinaryExpr returns a new instance of BinaryExpr.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) *BinaryExpr {
	assert(op.IsArithmetic() || op.IsCompare() || op.IsLogical(), "invalid binary op: %s", op)
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// UnaryOp represents a unary expression operation.
type UnaryOp int

const (
	LNOT UnaryOp = iota + 1 // logical not
	NOT                     // bitwise not
	NEG                     // two's complement negation
)

var unaryOps = [...]string{
	LNOT: "!",
	NOT:  "~",
	NEG:  "-",
}

// String returns the string representation of the operation.
func (op UnaryOp) String() string {
	if op > 0 && op < UnaryOp(len(unaryOps)) {
		return unaryOps[op]
	}
	return fmt.Sprintf("UnaryOp<%d>", op)
}

// UnaryExpr represents an operation on a single expression.
type UnaryExpr struct {
	Op   UnaryOp
	Expr Expr
}

// NewUnaryExpr returns a new instance of UnaryExpr.
func NewUnaryExpr(op UnaryOp, expr Expr) *UnaryExpr {
	return &UnaryExpr{Op: op, Expr: expr}
}

// String returns the string representation of the expression.
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("(%s %s)", e.Op, e.Expr)
}

// ConstantExpr represents a literal of an exact width and signedness.
type ConstantExpr struct {
	Value  Value
	Signed bool
}

// NewConstantExpr returns a literal holding value in width bits.
func NewConstantExpr(value int64, width uint, signed bool) *ConstantExpr {
	return &ConstantExpr{Value: NewIntValue(value, width), Signed: signed}
}

// NewIntExpr returns a signed 32-bit literal.
func NewIntExpr(value int64) *ConstantExpr {
	return NewConstantExpr(value, Width32, true)
}

// NewBoolConstantExpr is an ease of use function for creating boolean literals.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	return &ConstantExpr{Value: NewBoolValue(value)}
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	if e.Signed {
		return fmt.Sprintf("(const %d %ds)", e.Value.Int64(), e.Value.Width)
	}
	return fmt.Sprintf("(const %d %d)", e.Value.Bits, e.Value.Width)
}

// FieldRefExpr references a field directly.
type FieldRefExpr struct {
	Field *Field
}

// NewFieldRefExpr returns a new reference to f.
func NewFieldRefExpr(f *Field) *FieldRefExpr {
	return &FieldRefExpr{Field: f}
}

// String returns the string representation of the expression.
func (e *FieldRefExpr) String() string {
	return "(ref " + e.Field.FullName() + ")"
}

// PathKind identifies a step of an indexed field path.
type PathKind int

const (
	// PathField starts a path at a field.
	PathField PathKind = iota

	// PathFieldIndex selects a child or element by constant offset.
	PathFieldIndex

	// PathVecIndex selects a vector element by an index expression.
	PathVecIndex

	// PathSize selects the size field of a vector.
	PathSize
)

// PathElem is a single step of an indexed field path.
type PathElem struct {
	Kind   PathKind
	Field  *Field // PathField
	Offset int    // PathFieldIndex
	Index  Expr   // PathVecIndex
}

// IndexedFieldRefExpr references a field by walking a path from a root.
type IndexedFieldRefExpr struct {
	Path []PathElem
}

// NewIndexedFieldRefExpr returns a path expression rooted at root.
func NewIndexedFieldRefExpr(root *Field, steps ...PathElem) *IndexedFieldRefExpr {
	path := make([]PathElem, 0, len(steps)+1)
	path = append(path, PathElem{Kind: PathField, Field: root})
	path = append(path, steps...)
	return &IndexedFieldRefExpr{Path: path}
}

// FieldIndex returns a path step selecting a child or element by offset.
func FieldIndex(offset int) PathElem {
	return PathElem{Kind: PathFieldIndex, Offset: offset}
}

// VecIndex returns a path step selecting a vector element by index.
func VecIndex(index Expr) PathElem {
	return PathElem{Kind: PathVecIndex, Index: index}
}

// SizeIndex returns a path step selecting the size field of a vector.
func SizeIndex() PathElem {
	return PathElem{Kind: PathSize}
}

// String returns the string representation of the expression.
func (e *IndexedFieldRefExpr) String() string {
	var buf bytes.Buffer
	buf.WriteString("(path ")
	for i, elem := range e.Path {
		switch elem.Kind {
		case PathField:
			if i > 0 {
				buf.WriteString(".")
			}
			buf.WriteString(elem.Field.Name)
		case PathFieldIndex:
			buf.WriteString("[" + strconv.Itoa(elem.Offset) + "]")
		case PathVecIndex:
			buf.WriteString("[" + elem.Index.String() + "]")
		case PathSize:
			buf.WriteString("." + VectorSizeName)
		}
	}
	buf.WriteString(")")
	return buf.String()
}

// Resolve walks the path and returns the referenced field. A vector index
// that is not a constant returns ErrNotSupportedPath. An offset outside the
// current shape of the model returns ErrInvalidReference.
func (e *IndexedFieldRefExpr) Resolve() (*Field, error) {
	var field *Field
	for _, elem := range e.Path {
		switch elem.Kind {
		case PathField:
			field = elem.Field
		case PathFieldIndex:
			if field = field.Elem(elem.Offset); field == nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidReference, e)
			}
		case PathVecIndex:
			index, ok := elem.Index.(*ConstantExpr)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotSupportedPath, e)
			}
			if field = field.Elem(int(index.Value.Int64())); field == nil {
				return nil, fmt.Errorf("%w: %s", ErrInvalidReference, e)
			}
		case PathSize:
			if field.Kind != FieldVector {
				return nil, fmt.Errorf("%w: %s", ErrInvalidReference, e)
			}
			field = field.Size
		}
		if field == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidReference, e)
		}
	}
	return field, nil
}

// Vector returns the vector selected by the first dynamic index of the
// path and true, or nil and false if the path has no dynamic index.
func (e *IndexedFieldRefExpr) Vector() (*Field, bool) {
	var field *Field
	for _, elem := range e.Path {
		if field == nil && elem.Kind != PathField {
			return nil, false
		}
		switch elem.Kind {
		case PathField:
			field = elem.Field
		case PathFieldIndex:
			field = field.Elem(elem.Offset)
		case PathVecIndex:
			index, ok := elem.Index.(*ConstantExpr)
			if !ok {
				return field, field.Kind == FieldVector
			}
			field = field.Elem(int(index.Value.Int64()))
		case PathSize:
			field = field.Size
		}
	}
	return nil, false
}

type declType struct {
	width  uint
	signed bool
}

// declared returns the type of the path target without requiring the
// target element to exist, using the element template of vectors whose
// element cannot be resolved yet.
func (e *IndexedFieldRefExpr) declared() declType {
	var field *Field
	var typ declType
	for _, elem := range e.Path {
		switch elem.Kind {
		case PathField:
			field = elem.Field
		case PathSize:
			typ, field = declType{width: Width32}, nil
			continue
		case PathFieldIndex, PathVecIndex:
			if field == nil {
				continue
			}
			parent := field
			if elem.Kind == PathFieldIndex {
				field = parent.Elem(elem.Offset)
			} else if index, ok := elem.Index.(*ConstantExpr); ok {
				field = parent.Elem(int(index.Value.Int64()))
			} else {
				field = nil
			}
			if field == nil && parent.Kind == FieldVector {
				typ = declType{width: parent.ElemWidth, signed: parent.ElemSigned}
				continue
			}
		}
		if field != nil {
			typ = declType{width: field.Width, signed: field.Signed}
		}
	}
	return typ
}

// IndexVar is the loop variable of a foreach constraint.
type IndexVar struct {
	Name string
}

// IndexVarExpr references a foreach loop variable.
type IndexVarExpr struct {
	Var *IndexVar
}

// NewIndexVarExpr returns a new reference to v.
func NewIndexVarExpr(v *IndexVar) *IndexVarExpr {
	return &IndexVarExpr{Var: v}
}

// String returns the string representation of the expression.
func (e *IndexVarExpr) String() string {
	return "(index " + e.Var.Name + ")"
}

// Range is a single term of a range list. Upper is nil for a single value.
type Range struct {
	Lower Expr
	Upper Expr
}

// InExpr tests membership of LHS in a list of values and ranges.
type InExpr struct {
	LHS    Expr
	Ranges []Range
}

// NewInExpr returns a new instance of InExpr.
func NewInExpr(lhs Expr, ranges ...Range) *InExpr {
	return &InExpr{LHS: lhs, Ranges: ranges}
}

// RangeWidth returns the widest bound in the range list.
func (e *InExpr) RangeWidth() uint {
	var w uint
	for _, r := range e.Ranges {
		w = maxWidth(w, ExprWidth(r.Lower))
		if r.Upper != nil {
			w = maxWidth(w, ExprWidth(r.Upper))
		}
	}
	return w
}

// String returns the string representation of the expression.
func (e *InExpr) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "(in %s", e.LHS)
	for _, r := range e.Ranges {
		if r.Upper != nil {
			fmt.Fprintf(&buf, " [%s %s]", r.Lower, r.Upper)
		} else {
			fmt.Fprintf(&buf, " %s", r.Lower)
		}
	}
	buf.WriteString(")")
	return buf.String()
}

// PartSelectExpr selects bits [Lower, Upper] of an expression.
type PartSelectExpr struct {
	Expr  Expr
	Upper uint
	Lower uint
}

// NewPartSelectExpr returns a new instance of PartSelectExpr.
func NewPartSelectExpr(expr Expr, upper, lower uint) *PartSelectExpr {
	assert(upper >= lower, "part-select: invalid range [%d:%d]", upper, lower)
	return &PartSelectExpr{Expr: expr, Upper: upper, Lower: lower}
}

// String returns the string representation of the expression.
func (e *PartSelectExpr) String() string {
	return fmt.Sprintf("(select %s %d %d)", e.Expr, e.Upper, e.Lower)
}

// WalkExpr calls fn for expr and every sub-expression, including path
// index expressions. Children are skipped when fn returns false.
func WalkExpr(fn func(Expr) bool, expr Expr) {
	if expr == nil || !fn(expr) {
		return
	}

	switch expr := expr.(type) {
	case *BinaryExpr:
		WalkExpr(fn, expr.LHS)
		WalkExpr(fn, expr.RHS)
	case *UnaryExpr:
		WalkExpr(fn, expr.Expr)
	case *InExpr:
		WalkExpr(fn, expr.LHS)
		for _, r := range expr.Ranges {
			WalkExpr(fn, r.Lower)
			WalkExpr(fn, r.Upper)
		}
	case *PartSelectExpr:
		WalkExpr(fn, expr.Expr)
	case *IndexedFieldRefExpr:
		for _, elem := range expr.Path {
			if elem.Kind == PathVecIndex {
				WalkExpr(fn, elem.Index)
			}
		}
	case *ConstantExpr, *FieldRefExpr, *IndexVarExpr:
		// nop
	default:
		panic("unreachable")
	}
}

func maxWidth(a, b uint) uint {
	if a > b {
		return a
	}
	return b
}
