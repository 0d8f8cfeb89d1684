package vsc

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// nodeInfo is a lowered expression and its signedness.
type nodeInfo struct {
	signed bool
	node   Node
}

// ModelBuilder lowers fields and constraints into nodes of a single Session.
//
// Operator operands are extended to the widest of their declared widths and
// the width demanded by the enclosing operator. Operands are sign-extended
// only when both are signed.
type ModelBuilder struct {
	Session Session
	Logger  *zap.Logger

	// If true, constraints that cannot be lowered are treated as true and a
	// warning is logged instead of returning an error.
	Permissive bool

	// If true, every field is lowered as a constant of its current value.
	constants bool

	widths []uint
	fields map[*Field]Node
}

// NewModelBuilder returns a new instance of ModelBuilder for sess.
func NewModelBuilder(sess Session) *ModelBuilder {
	return &ModelBuilder{
		Session: sess,
		Logger:  zap.NewNop(),
		fields:  make(map[*Field]Node),
	}
}

// BuildField returns the node for f. A random field is lowered to a variable
// that is created once per builder; other fields are lowered to a constant
// of their current value.
func (b *ModelBuilder) BuildField(f *Field) (Node, error) {
	if f.Kind != FieldScalar {
		return nil, fmt.Errorf("%w: %s field %s", ErrUnresolvedExpression, f.Kind, f.FullName())
	}
	if n, ok := b.fields[f]; ok {
		return n, nil
	}

	if b.constants || !f.IsRandom() {
		return b.Session.Const(NewValue(f.Value.Bits, f.Width))
	}

	n, err := b.Session.Var(fmt.Sprintf("%s#%d", f.FullName(), len(b.fields)), f.Width)
	if err != nil {
		return nil, err
	}
	b.fields[f] = n
	return n, nil
}

// BuildConstraint returns a 1-bit node that holds when c holds. A constraint
// with nothing to lower returns the constant 1.
func (b *ModelBuilder) BuildConstraint(c Constraint) (Node, error) {
	n, err := b.buildConstraint(c)
	if err != nil {
		return nil, err
	} else if n == nil {
		return b.Session.Const(NewBoolValue(true))
	}
	return n, nil
}

// buildConstraint returns nil if c has nothing to lower.
func (b *ModelBuilder) buildConstraint(c Constraint) (Node, error) {
	switch c := c.(type) {
	case nil:
		return nil, nil
	case *ExprConstraint:
		n, err := b.buildCond(c.Expr)
		if err != nil {
			return b.fallback(c, err)
		}
		return n, nil
	case *IfElseConstraint:
		return b.buildIfElseConstraint(c)
	case *ImpliesConstraint:
		return b.buildImpliesConstraint(c)
	case *ScopeConstraint:
		return b.buildScopeConstraint(c)
	case *SoftConstraint:
		return b.buildConstraint(c.Constraint)
	case *ForeachConstraint:
		return b.fallback(c, fmt.Errorf("%w: foreach must be unrolled: %s", ErrUnresolvedExpression, c))
	default:
		panic("unreachable")
	}
}

func (b *ModelBuilder) buildIfElseConstraint(c *IfElseConstraint) (Node, error) {
	cond, err := b.buildCond(c.Cond)
	if err != nil {
		return b.fallback(c, err)
	}
	whenTrue, err := b.BuildConstraint(c.True)
	if err != nil {
		return nil, err
	}
	if c.False == nil {
		return b.Session.Implies(cond, whenTrue)
	}

	whenFalse, err := b.BuildConstraint(c.False)
	if err != nil {
		return nil, err
	}
	return b.Session.Cond(cond, whenTrue, whenFalse)
}

func (b *ModelBuilder) buildImpliesConstraint(c *ImpliesConstraint) (Node, error) {
	cond, err := b.buildCond(c.Cond)
	if err != nil {
		return b.fallback(c, err)
	}
	body, err := b.BuildConstraint(c.Body)
	if err != nil {
		return nil, err
	}
	return b.Session.Implies(cond, body)
}

func (b *ModelBuilder) buildScopeConstraint(c *ScopeConstraint) (Node, error) {
	var result Node
	for _, other := range c.Constraints {
		n, err := b.buildConstraint(other)
		if err != nil {
			return nil, err
		} else if n == nil {
			continue
		}

		if result == nil {
			result = n
		} else if result, err = b.Session.And(result, n); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// fallback returns err unless the builder is permissive and err is a
// lowering limitation, in which case c is treated as true.
func (b *ModelBuilder) fallback(c Constraint, err error) (Node, error) {
	if !b.Permissive || !(errors.Is(err, ErrUnresolvedExpression) || errors.Is(err, ErrNotSupportedPath)) {
		return nil, err
	}
	b.logger().Warn("[lower] constraint assumed true",
		zap.Stringer("constraint", c),
		zap.Error(err),
	)
	return nil, nil
}

// buildCond lowers expr as a 1-bit condition.
func (b *ModelBuilder) buildCond(expr Expr) (Node, error) {
	b.push(WidthBool)
	defer b.pop()

	info, err := b.buildExpr(expr)
	if err != nil {
		return nil, err
	}
	return b.toBool(info.node)
}

// BuildExpr returns the node for expr at its declared width.
func (b *ModelBuilder) BuildExpr(expr Expr) (Node, error) {
	b.push(ExprWidth(expr))
	defer b.pop()

	info, err := b.buildExpr(expr)
	if err != nil {
		return nil, err
	}
	return info.node, nil
}

func (b *ModelBuilder) buildExpr(expr Expr) (nodeInfo, error) {
	switch expr := expr.(type) {
	case *BinaryExpr:
		if expr.Op.IsLogical() {
			return b.buildLogicalExpr(expr)
		}
		return b.buildBinaryExpr(expr)
	case *UnaryExpr:
		return b.buildUnaryExpr(expr)
	case *InExpr:
		return b.buildInExpr(expr)
	case *PartSelectExpr:
		return b.buildPartSelectExpr(expr)
	case *ConstantExpr:
		n, err := b.Session.Const(expr.Value)
		return nodeInfo{signed: expr.Signed, node: n}, err
	case *FieldRefExpr:
		n, err := b.BuildField(expr.Field)
		return nodeInfo{signed: expr.Field.Signed, node: n}, err
	case *IndexedFieldRefExpr:
		f, err := expr.Resolve()
		if err != nil {
			return nodeInfo{}, err
		}
		n, err := b.BuildField(f)
		return nodeInfo{signed: f.Signed, node: n}, err
	case *IndexVarExpr:
		return nodeInfo{}, fmt.Errorf("%w: unbound index variable %q", ErrUnresolvedExpression, expr.Var.Name)
	default:
		return nodeInfo{}, fmt.Errorf("%w: %T", ErrUnresolvedExpression, expr)
	}
}

func (b *ModelBuilder) buildBinaryExpr(expr *BinaryExpr) (nodeInfo, error) {
	// Operands of arithmetic and compare ops widen to the context width.
	width := maxWidth(maxWidth(ExprWidth(expr.LHS), ExprWidth(expr.RHS)), b.width())

	b.push(width)
	lhs, err := b.buildExpr(expr.LHS)
	if err != nil {
		b.pop()
		return nodeInfo{}, err
	}
	rhs, err := b.buildExpr(expr.RHS)
	b.pop()
	if err != nil {
		return nodeInfo{}, err
	}

	signed := lhs.signed && rhs.signed
	if lhs.node, err = b.extend(lhs.node, width, signed); err != nil {
		return nodeInfo{}, err
	} else if rhs.node, err = b.extend(rhs.node, width, signed); err != nil {
		return nodeInfo{}, err
	}

	sess := b.Session
	var n Node
	switch expr.Op {
	case ADD:
		n, err = sess.Add(lhs.node, rhs.node)
	case SUB:
		n, err = sess.Sub(lhs.node, rhs.node)
	case MUL:
		n, err = sess.Mul(lhs.node, rhs.node)
	case DIV:
		if signed {
			n, err = sess.SDiv(lhs.node, rhs.node)
		} else {
			n, err = sess.UDiv(lhs.node, rhs.node)
		}
	case MOD:
		if signed {
			n, err = sess.SRem(lhs.node, rhs.node)
		} else {
			n, err = sess.URem(lhs.node, rhs.node)
		}
	case AND:
		n, err = sess.And(lhs.node, rhs.node)
	case OR:
		n, err = sess.Or(lhs.node, rhs.node)
	case XOR:
		n, err = sess.Xor(lhs.node, rhs.node)
	case SLL:
		n, err = sess.Shl(lhs.node, rhs.node)
	case SRL:
		n, err = sess.Lshr(lhs.node, rhs.node)
	case EQ:
		n, err = sess.Eq(lhs.node, rhs.node)
	case NE:
		n, err = sess.Ne(lhs.node, rhs.node)
	case LT, LE, GT, GE:
		n, err = b.compare(expr.Op, signed, lhs.node, rhs.node)
	default:
		return nodeInfo{}, fmt.Errorf("%w: binary op %s", ErrUnresolvedExpression, expr.Op)
	}
	if err != nil {
		return nodeInfo{}, err
	}

	if expr.Op.IsCompare() {
		return nodeInfo{node: n}, nil
	}
	return nodeInfo{signed: signed, node: n}, nil
}

// compare returns the ordered comparison of x and y.
func (b *ModelBuilder) compare(op BinaryOp, signed bool, x, y Node) (Node, error) {
	sess := b.Session
	switch op {
	case LT:
		if signed {
			return sess.Slt(x, y)
		}
		return sess.Ult(x, y)
	case LE:
		if signed {
			return sess.Sle(x, y)
		}
		return sess.Ule(x, y)
	case GT:
		if signed {
			return sess.Sgt(x, y)
		}
		return sess.Ugt(x, y)
	case GE:
		if signed {
			return sess.Sge(x, y)
		}
		return sess.Uge(x, y)
	default:
		panic("unreachable")
	}
}

func (b *ModelBuilder) buildLogicalExpr(expr *BinaryExpr) (nodeInfo, error) {
	lhs, err := b.buildCond(expr.LHS)
	if err != nil {
		return nodeInfo{}, err
	}
	rhs, err := b.buildCond(expr.RHS)
	if err != nil {
		return nodeInfo{}, err
	}

	var n Node
	switch expr.Op {
	case LAND:
		n, err = b.Session.And(lhs, rhs)
	case LOR:
		n, err = b.Session.Or(lhs, rhs)
	default:
		panic("unreachable")
	}
	if err != nil {
		return nodeInfo{}, err
	}
	return b.boolResult(n)
}

func (b *ModelBuilder) buildUnaryExpr(expr *UnaryExpr) (nodeInfo, error) {
	if expr.Op == LNOT {
		x, err := b.buildCond(expr.Expr)
		if err != nil {
			return nodeInfo{}, err
		}
		n, err := b.Session.Not(x)
		if err != nil {
			return nodeInfo{}, err
		}
		return b.boolResult(n)
	}

	width := maxWidth(ExprWidth(expr.Expr), b.width())
	b.push(width)
	x, err := b.buildExpr(expr.Expr)
	b.pop()
	if err != nil {
		return nodeInfo{}, err
	}
	if x.node, err = b.extend(x.node, width, x.signed); err != nil {
		return nodeInfo{}, err
	}

	var n Node
	switch expr.Op {
	case NOT:
		n, err = b.Session.Not(x.node)
	case NEG:
		var zero Node
		if zero, err = b.Session.Const(NewValue(0, width)); err == nil {
			n, err = b.Session.Sub(zero, x.node)
		}
	default:
		return nodeInfo{}, fmt.Errorf("%w: unary op %s", ErrUnresolvedExpression, expr.Op)
	}
	if err != nil {
		return nodeInfo{}, err
	}
	return nodeInfo{signed: x.signed, node: n}, nil
}

func (b *ModelBuilder) buildInExpr(expr *InExpr) (nodeInfo, error) {
	width := maxWidth(ExprWidth(expr.LHS), expr.RangeWidth())
	b.push(width)
	n, err := b.buildRanges(expr, width)
	b.pop()
	if err != nil {
		return nodeInfo{}, err
	}
	return b.boolResult(n)
}

// buildRanges returns the disjunction of the range terms of expr. Bounds
// are compared using the signedness of the tested value.
func (b *ModelBuilder) buildRanges(expr *InExpr, width uint) (Node, error) {
	if len(expr.Ranges) == 0 {
		return b.Session.Const(NewBoolValue(false))
	}

	lhs, err := b.buildExpr(expr.LHS)
	if err != nil {
		return nil, err
	} else if lhs.node, err = b.extend(lhs.node, width, lhs.signed); err != nil {
		return nil, err
	}

	var result Node
	for _, r := range expr.Ranges {
		lower, err := b.buildBound(r.Lower, width, lhs.signed)
		if err != nil {
			return nil, err
		}

		var term Node
		if r.Upper == nil {
			if term, err = b.Session.Eq(lhs.node, lower); err != nil {
				return nil, err
			}
		} else {
			upper, err := b.buildBound(r.Upper, width, lhs.signed)
			if err != nil {
				return nil, err
			}
			ge, err := b.compare(GE, lhs.signed, lhs.node, lower)
			if err != nil {
				return nil, err
			}
			le, err := b.compare(LE, lhs.signed, lhs.node, upper)
			if err != nil {
				return nil, err
			}
			if term, err = b.Session.And(ge, le); err != nil {
				return nil, err
			}
		}

		if result == nil {
			result = term
		} else if result, err = b.Session.Or(result, term); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// buildBound lowers a range bound at width. The bound is sign-extended only
// when both it and the tested value are signed.
func (b *ModelBuilder) buildBound(expr Expr, width uint, signed bool) (Node, error) {
	info, err := b.buildExpr(expr)
	if err != nil {
		return nil, err
	}
	return b.extend(info.node, width, signed && info.signed)
}

func (b *ModelBuilder) buildPartSelectExpr(expr *PartSelectExpr) (nodeInfo, error) {
	b.push(ExprWidth(expr.Expr))
	x, err := b.buildExpr(expr.Expr)
	b.pop()
	if err != nil {
		return nodeInfo{}, err
	}

	if width := b.Session.Width(x.node); expr.Upper >= width {
		return nodeInfo{}, fmt.Errorf("%w: part-select [%d:%d] of %d-bit expression", ErrUnresolvedExpression, expr.Upper, expr.Lower, width)
	}
	n, err := b.Session.Slice(x.node, expr.Upper, expr.Lower)
	return nodeInfo{node: n}, err
}

// boolResult returns a 1-bit node zero-extended to the context width.
func (b *ModelBuilder) boolResult(n Node) (nodeInfo, error) {
	if width := b.width(); width > WidthBool {
		var err error
		if n, err = b.Session.Uext(n, width); err != nil {
			return nodeInfo{}, err
		}
	}
	return nodeInfo{node: n}, nil
}

// toBool reduces n to a 1-bit non-zero test.
func (b *ModelBuilder) toBool(n Node) (Node, error) {
	width := b.Session.Width(n)
	if width == WidthBool {
		return n, nil
	}
	zero, err := b.Session.Const(NewValue(0, width))
	if err != nil {
		return nil, err
	}
	return b.Session.Ne(n, zero)
}

// extend returns n extended to width.
func (b *ModelBuilder) extend(n Node, width uint, signed bool) (Node, error) {
	switch w := b.Session.Width(n); {
	case w == width:
		return n, nil
	case w > width:
		return b.Session.Slice(n, width-1, 0)
	case signed:
		return b.Session.Sext(n, width)
	default:
		return b.Session.Uext(n, width)
	}
}

// width returns the context width demanded by the enclosing operator.
func (b *ModelBuilder) width() uint {
	if len(b.widths) == 0 {
		return 0
	}
	return b.widths[len(b.widths)-1]
}

func (b *ModelBuilder) push(width uint) { b.widths = append(b.widths, width) }

func (b *ModelBuilder) pop() { b.widths = b.widths[:len(b.widths)-1] }

func (b *ModelBuilder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
