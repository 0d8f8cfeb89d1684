package vsc

import (
	"fmt"
	"strings"

	"github.com/benbjohnson/immutable"
	"go.uber.org/zap"
)

// Unroller expands foreach constraints into one copy of their body per
// vector element. The input tree is never modified; unchanged sub-trees are
// shared between the input and the expansion.
type Unroller struct {
	Logger *zap.Logger

	// Fingerprints of unrolled constraints, checked by Rollback.
	unrolled map[Constraint]string
	created  map[Constraint]struct{}
}

// NewUnroller returns a new instance of Unroller.
func NewUnroller() *Unroller {
	return &Unroller{
		Logger:   zap.NewNop(),
		unrolled: make(map[Constraint]string),
		created:  make(map[Constraint]struct{}),
	}
}

// Unroll appends the expansion of c to target. A top-level foreach adds one
// constraint per element and body constraint; any other constraint adds a
// single constraint.
func (u *Unroller) Unroll(target *ScopeConstraint, c Constraint) error {
	bindings := immutable.NewSortedMap(&stringComparer{})

	if foreach, ok := c.(*ForeachConstraint); ok {
		a, err := u.unrollForeach(foreach, bindings)
		if err != nil {
			return err
		}
		for _, other := range a {
			target.AddConstraint(other)
		}
	} else {
		other, err := u.unroll(c, bindings)
		if err != nil {
			return err
		}
		target.AddConstraint(other)
	}

	if u.unrolled != nil {
		u.unrolled[c] = c.String()
	}
	return nil
}

// Rollback ends the expansion of c. Since expansion never modifies c, no
// state is restored; Rollback verifies that c is unchanged since it was
// unrolled and shares no node created by the expansion. Returns ErrRollback
// otherwise.
func (u *Unroller) Rollback(c Constraint) error {
	fingerprint, ok := u.unrolled[c]
	if !ok {
		return nil
	}
	delete(u.unrolled, c)

	if s := c.String(); s != fingerprint {
		return fmt.Errorf("%w: %s", ErrRollback, s)
	}

	var err error
	WalkConstraint(func(other Constraint) bool {
		if _, ok := u.created[other]; ok {
			err = fmt.Errorf("%w: expanded node in %s", ErrRollback, c)
		}
		return err == nil
	}, c)
	return err
}

func (u *Unroller) unroll(c Constraint, bindings *immutable.SortedMap) (Constraint, error) {
	switch c := c.(type) {
	case nil:
		return nil, nil

	case *ExprConstraint:
		expr, err := substExpr(c.Expr, bindings)
		if err != nil {
			return nil, err
		} else if expr == c.Expr {
			return c, nil
		}
		return u.track(&ExprConstraint{Expr: expr}), nil

	case *IfElseConstraint:
		cond, err := substExpr(c.Cond, bindings)
		if err != nil {
			return nil, err
		}
		whenTrue, err := u.unroll(c.True, bindings)
		if err != nil {
			return nil, err
		}
		whenFalse, err := u.unroll(c.False, bindings)
		if err != nil {
			return nil, err
		}
		if cond == c.Cond && whenTrue == c.True && whenFalse == c.False {
			return c, nil
		}
		return u.track(&IfElseConstraint{Cond: cond, True: whenTrue, False: whenFalse}), nil

	case *ImpliesConstraint:
		cond, err := substExpr(c.Cond, bindings)
		if err != nil {
			return nil, err
		}
		body, err := u.unroll(c.Body, bindings)
		if err != nil {
			return nil, err
		}
		if cond == c.Cond && body == c.Body {
			return c, nil
		}
		return u.track(&ImpliesConstraint{Cond: cond, Body: body}), nil

	case *ScopeConstraint:
		return u.unrollScope(c, bindings)

	case *SoftConstraint:
		other, err := u.unroll(c.Constraint, bindings)
		if err != nil {
			return nil, err
		} else if other == c.Constraint {
			return c, nil
		}
		return u.track(&SoftConstraint{Constraint: other}), nil

	case *ForeachConstraint:
		a, err := u.unrollForeach(c, bindings)
		if err != nil {
			return nil, err
		}
		return u.track(NewScopeConstraint(a...)), nil

	default:
		panic("unreachable")
	}
}

func (u *Unroller) unrollScope(c *ScopeConstraint, bindings *immutable.SortedMap) (Constraint, error) {
	var changed bool
	a := make([]Constraint, len(c.Constraints))
	for i, other := range c.Constraints {
		var err error
		if a[i], err = u.unroll(other, bindings); err != nil {
			return nil, err
		}
		changed = changed || a[i] != other
	}
	if !changed {
		return c, nil
	}
	return u.track(NewScopeConstraint(a...)), nil
}

// unrollForeach returns the body constraints of c for every element of the
// target vector.
func (u *Unroller) unrollForeach(c *ForeachConstraint, bindings *immutable.SortedMap) ([]Constraint, error) {
	vecExpr, err := substExpr(c.Vec, bindings)
	if err != nil {
		return nil, err
	}
	vec, err := (&ForeachConstraint{Vec: vecExpr}).Target()
	if err != nil {
		return nil, err
	}

	var a []Constraint
	for i := 0; i < vec.Len(); i++ {
		inner := bindings.Set(c.Index.Name, i)
		for _, other := range c.Body.Constraints {
			other, err := u.unroll(other, inner)
			if err != nil {
				return nil, err
			}
			a = append(a, other)
		}
	}

	u.logger().Debug("[unroll] foreach",
		zap.String("vec", vec.FullName()),
		zap.String("index", c.Index.Name),
		zap.Int("n", vec.Len()),
		zap.Int("constraints", len(a)),
	)
	return a, nil
}

// track records c as created by the expansion.
func (u *Unroller) track(c Constraint) Constraint {
	if u.created != nil {
		u.created[c] = struct{}{}
	}
	return c
}

func (u *Unroller) logger() *zap.Logger {
	if u.Logger == nil {
		return zap.NewNop()
	}
	return u.Logger
}

// substExpr returns expr with bound index variables replaced by 32-bit
// literals. Vector index steps that become constant are rewritten to field
// index steps. Returns expr itself if nothing was replaced.
func substExpr(expr Expr, bindings *immutable.SortedMap) (Expr, error) {
	switch expr := expr.(type) {
	case nil:
		return nil, nil

	case *IndexVarExpr:
		if v, ok := bindings.Get(expr.Var.Name); ok {
			return NewIntExpr(int64(v.(int))), nil
		}
		return expr, nil

	case *BinaryExpr:
		lhs, err := substExpr(expr.LHS, bindings)
		if err != nil {
			return nil, err
		}
		rhs, err := substExpr(expr.RHS, bindings)
		if err != nil {
			return nil, err
		}
		if lhs == expr.LHS && rhs == expr.RHS {
			return expr, nil
		}
		return &BinaryExpr{Op: expr.Op, LHS: lhs, RHS: rhs}, nil

	case *UnaryExpr:
		x, err := substExpr(expr.Expr, bindings)
		if err != nil {
			return nil, err
		} else if x == expr.Expr {
			return expr, nil
		}
		return &UnaryExpr{Op: expr.Op, Expr: x}, nil

	case *InExpr:
		lhs, err := substExpr(expr.LHS, bindings)
		if err != nil {
			return nil, err
		}
		changed := lhs != expr.LHS
		ranges := make([]Range, len(expr.Ranges))
		for i, r := range expr.Ranges {
			if ranges[i].Lower, err = substExpr(r.Lower, bindings); err != nil {
				return nil, err
			} else if ranges[i].Upper, err = substExpr(r.Upper, bindings); err != nil {
				return nil, err
			}
			changed = changed || ranges[i] != r
		}
		if !changed {
			return expr, nil
		}
		return &InExpr{LHS: lhs, Ranges: ranges}, nil

	case *PartSelectExpr:
		x, err := substExpr(expr.Expr, bindings)
		if err != nil {
			return nil, err
		} else if x == expr.Expr {
			return expr, nil
		}
		return &PartSelectExpr{Expr: x, Upper: expr.Upper, Lower: expr.Lower}, nil

	case *IndexedFieldRefExpr:
		return substPath(expr, bindings)

	case *ConstantExpr, *FieldRefExpr:
		return expr, nil

	default:
		panic("unreachable")
	}
}

func substPath(expr *IndexedFieldRefExpr, bindings *immutable.SortedMap) (Expr, error) {
	var path []PathElem
	for i, elem := range expr.Path {
		if elem.Kind != PathVecIndex {
			continue
		}

		index, err := substExpr(elem.Index, bindings)
		if err != nil {
			return nil, err
		} else if index, err = foldConstant(index); err != nil {
			return nil, err
		} else if index == elem.Index {
			continue
		}

		if path == nil {
			path = make([]PathElem, len(expr.Path))
			copy(path, expr.Path)
		}
		if c, ok := index.(*ConstantExpr); ok {
			path[i] = FieldIndex(int(c.Value.Int64()))
		} else {
			path[i] = VecIndex(index)
		}
	}

	if path == nil {
		return expr, nil
	}
	return &IndexedFieldRefExpr{Path: path}, nil
}

// foldConstant evaluates expr if it references no field or index variable.
func foldConstant(expr Expr) (Expr, error) {
	if _, ok := expr.(*ConstantExpr); ok {
		return expr, nil
	}

	constant := true
	WalkExpr(func(expr Expr) bool {
		switch expr.(type) {
		case *FieldRefExpr, *IndexedFieldRefExpr, *IndexVarExpr:
			constant = false
		}
		return constant
	}, expr)
	if !constant {
		return expr, nil
	}

	v, err := EvalExpr(expr)
	if err != nil {
		return nil, err
	}
	return &ConstantExpr{Value: v, Signed: ExprSigned(expr)}, nil
}

// stringComparer compares two strings. Implements immutable.Comparer.
type stringComparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not a string.
func (c *stringComparer) Compare(a, b interface{}) int {
	return strings.Compare(a.(string), b.(string))
}
