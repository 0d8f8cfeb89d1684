package vsc

import (
	"bytes"
	"fmt"
)

// Constraint represents a node of a constraint tree.
type Constraint interface {
	String() string
	constraint()
}

func (*ExprConstraint) constraint()    {}
func (*ForeachConstraint) constraint() {}
func (*IfElseConstraint) constraint()  {}
func (*ImpliesConstraint) constraint() {}
func (*ScopeConstraint) constraint()   {}
func (*SoftConstraint) constraint()    {}

// ExprConstraint requires an expression to be non-zero.
type ExprConstraint struct {
	Expr Expr
}

// NewExprConstraint returns a new instance of ExprConstraint.
func NewExprConstraint(expr Expr) *ExprConstraint {
	return &ExprConstraint{Expr: expr}
}

// String returns the string representation of the constraint.
func (c *ExprConstraint) String() string {
	return c.Expr.String()
}

// IfElseConstraint applies True when Cond holds and False otherwise.
// False may be nil.
type IfElseConstraint struct {
	Cond  Expr
	True  Constraint
	False Constraint
}

// String returns the string representation of the constraint.
func (c *IfElseConstraint) String() string {
	if c.False == nil {
		return fmt.Sprintf("(if %s %s)", c.Cond, c.True)
	}
	return fmt.Sprintf("(if %s %s %s)", c.Cond, c.True, c.False)
}

// ImpliesConstraint applies Body when Cond holds.
type ImpliesConstraint struct {
	Cond Expr
	Body Constraint
}

// String returns the string representation of the constraint.
func (c *ImpliesConstraint) String() string {
	return fmt.Sprintf("(implies %s %s)", c.Cond, c.Body)
}

// ScopeConstraint is a conjunction of constraints.
type ScopeConstraint struct {
	Constraints []Constraint
}

// NewScopeConstraint returns a new instance of ScopeConstraint.
func NewScopeConstraint(constraints ...Constraint) *ScopeConstraint {
	return &ScopeConstraint{Constraints: constraints}
}

// AddConstraint appends c to the scope.
func (c *ScopeConstraint) AddConstraint(other Constraint) {
	c.Constraints = append(c.Constraints, other)
}

// String returns the string representation of the constraint.
func (c *ScopeConstraint) String() string {
	var buf bytes.Buffer
	buf.WriteString("(scope")
	for _, other := range c.Constraints {
		buf.WriteString(" ")
		buf.WriteString(other.String())
	}
	buf.WriteString(")")
	return buf.String()
}

// SoftConstraint is a constraint that is preferred but not required.
type SoftConstraint struct {
	Constraint Constraint
}

// String returns the string representation of the constraint.
func (c *SoftConstraint) String() string {
	return fmt.Sprintf("(soft %s)", c.Constraint)
}

// ForeachConstraint applies Body once for every element of Vec, with Index
// bound to the element index.
type ForeachConstraint struct {
	Vec   Expr
	Index *IndexVar
	Body  *ScopeConstraint
}

// NewForeachConstraint returns a foreach over vec with an index variable
// named index.
func NewForeachConstraint(vec Expr, index string, body ...Constraint) *ForeachConstraint {
	return &ForeachConstraint{
		Vec:   vec,
		Index: &IndexVar{Name: index},
		Body:  NewScopeConstraint(body...),
	}
}

// Target returns the vector the foreach iterates over.
func (c *ForeachConstraint) Target() (*Field, error) {
	var field *Field
	switch vec := c.Vec.(type) {
	case *FieldRefExpr:
		field = vec.Field
	case *IndexedFieldRefExpr:
		f, err := vec.Resolve()
		if err != nil {
			return nil, err
		}
		field = f
	default:
		return nil, fmt.Errorf("%w: foreach over %s", ErrUnresolvedExpression, c.Vec)
	}
	if field.Kind != FieldVector {
		return nil, fmt.Errorf("%w: foreach over non-vector %s", ErrInvalidReference, field.FullName())
	}
	return field, nil
}

// String returns the string representation of the constraint.
func (c *ForeachConstraint) String() string {
	return fmt.Sprintf("(foreach %s %s %s)", c.Index.Name, c.Vec, c.Body)
}

// WalkConstraint calls fn for c and every nested constraint. Children are
// skipped when fn returns false.
func WalkConstraint(fn func(Constraint) bool, c Constraint) {
	if c == nil || !fn(c) {
		return
	}

	switch c := c.(type) {
	case *ExprConstraint:
		// nop
	case *IfElseConstraint:
		WalkConstraint(fn, c.True)
		WalkConstraint(fn, c.False)
	case *ImpliesConstraint:
		WalkConstraint(fn, c.Body)
	case *ScopeConstraint:
		for _, other := range c.Constraints {
			WalkConstraint(fn, other)
		}
	case *SoftConstraint:
		WalkConstraint(fn, c.Constraint)
	case *ForeachConstraint:
		WalkConstraint(fn, c.Body)
	default:
		panic("unreachable")
	}
}

// ConstraintExprs returns the expressions owned directly by c, excluding
// those of nested constraints.
func ConstraintExprs(c Constraint) []Expr {
	switch c := c.(type) {
	case *ExprConstraint:
		return []Expr{c.Expr}
	case *IfElseConstraint:
		return []Expr{c.Cond}
	case *ImpliesConstraint:
		return []Expr{c.Cond}
	case *ForeachConstraint:
		return []Expr{c.Vec}
	case *ScopeConstraint, *SoftConstraint:
		return nil
	default:
		panic("unreachable")
	}
}

// HasForeach returns true if c contains a foreach constraint.
func HasForeach(c Constraint) bool {
	var found bool
	WalkConstraint(func(c Constraint) bool {
		if _, ok := c.(*ForeachConstraint); ok {
			found = true
		}
		return !found
	}, c)
	return found
}
