// Package parse reads constraint expressions and model files into the vsc
// data model. Expressions use the expr-lang grammar.
package parse

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/vsc"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

var (
	// ErrUnknownName is returned when an identifier is not in scope.
	ErrUnknownName = errors.New("parse: unknown name")

	// ErrUnsupported is returned for syntax that has no constraint meaning.
	ErrUnsupported = errors.New("parse: unsupported expression")
)

// Scope maps names to fields and foreach index variables.
type Scope struct {
	parent *Scope
	fields map[string]*vsc.Field
	vars   map[string]*vsc.IndexVar
}

// NewScope returns a scope holding the given top-level fields.
func NewScope(fields ...*vsc.Field) *Scope {
	s := &Scope{fields: make(map[string]*vsc.Field), vars: make(map[string]*vsc.IndexVar)}
	for _, f := range fields {
		s.fields[f.Name] = f
	}
	return s
}

// WithIndex returns a child scope with v bound by name.
func (s *Scope) WithIndex(v *vsc.IndexVar) *Scope {
	other := NewScope()
	other.parent = s
	other.vars[v.Name] = v
	return other
}

// lookup returns the index variable or field named name.
func (s *Scope) lookup(name string) (*vsc.IndexVar, *vsc.Field) {
	for ; s != nil; s = s.parent {
		if v := s.vars[name]; v != nil {
			return v, nil
		} else if f := s.fields[name]; f != nil {
			return nil, f
		}
	}
	return nil, nil
}

// ParseExpr parses src into an expression over the fields of scope.
func ParseExpr(src string, scope *Scope) (vsc.Expr, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{scope: scope}
	return p.convert(tree.Node)
}

type exprParser struct {
	scope *Scope
}

var binaryOps = map[string]vsc.BinaryOp{
	"+":   vsc.ADD,
	"-":   vsc.SUB,
	"*":   vsc.MUL,
	"/":   vsc.DIV,
	"%":   vsc.MOD,
	"==":  vsc.EQ,
	"!=":  vsc.NE,
	"<":   vsc.LT,
	"<=":  vsc.LE,
	">":   vsc.GT,
	">=":  vsc.GE,
	"&&":  vsc.LAND,
	"and": vsc.LAND,
	"||":  vsc.LOR,
	"or":  vsc.LOR,
}

// Bitwise operators have no infix form in the grammar.
var callOps = map[string]vsc.BinaryOp{
	"band": vsc.AND,
	"bor":  vsc.OR,
	"bxor": vsc.XOR,
	"shl":  vsc.SLL,
	"shr":  vsc.SRL,
}

func (p *exprParser) convert(node ast.Node) (vsc.Expr, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return vsc.NewIntExpr(int64(n.Value)), nil
	case *ast.BoolNode:
		return vsc.NewBoolConstantExpr(n.Value), nil
	case *ast.IdentifierNode, *ast.MemberNode:
		return p.convertRef(node)
	case *ast.BinaryNode:
		return p.convertBinary(n)
	case *ast.UnaryNode:
		return p.convertUnary(n)
	case *ast.SliceNode:
		return p.convertSlice(n)
	case *ast.CallNode:
		return p.convertCall(n)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, node)
	}
}

func (p *exprParser) convertBinary(n *ast.BinaryNode) (vsc.Expr, error) {
	if n.Operator == "in" {
		return p.convertIn(n)
	}

	op, ok := binaryOps[n.Operator]
	if !ok {
		return nil, fmt.Errorf("%w: operator %q", ErrUnsupported, n.Operator)
	}
	lhs, err := p.convert(n.Left)
	if err != nil {
		return nil, err
	}
	rhs, err := p.convert(n.Right)
	if err != nil {
		return nil, err
	}
	return vsc.NewBinaryExpr(op, lhs, rhs), nil
}

func (p *exprParser) convertUnary(n *ast.UnaryNode) (vsc.Expr, error) {
	// Fold negative literals so they keep their constant form.
	if i, ok := n.Node.(*ast.IntegerNode); ok && n.Operator == "-" {
		return vsc.NewIntExpr(-int64(i.Value)), nil
	}

	x, err := p.convert(n.Node)
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case "!", "not":
		return vsc.NewUnaryExpr(vsc.LNOT, x), nil
	case "-":
		return vsc.NewUnaryExpr(vsc.NEG, x), nil
	case "+":
		return x, nil
	default:
		return nil, fmt.Errorf("%w: operator %q", ErrUnsupported, n.Operator)
	}
}

// convertIn converts "x in [a, b..c]" and "x in a..b".
func (p *exprParser) convertIn(n *ast.BinaryNode) (vsc.Expr, error) {
	lhs, err := p.convert(n.Left)
	if err != nil {
		return nil, err
	}

	var items []ast.Node
	switch right := n.Right.(type) {
	case *ast.ArrayNode:
		items = right.Nodes
	default:
		items = []ast.Node{right}
	}

	ranges := make([]vsc.Range, 0, len(items))
	for _, item := range items {
		if b, ok := item.(*ast.BinaryNode); ok && b.Operator == ".." {
			lower, err := p.convert(b.Left)
			if err != nil {
				return nil, err
			}
			upper, err := p.convert(b.Right)
			if err != nil {
				return nil, err
			}
			ranges = append(ranges, vsc.Range{Lower: lower, Upper: upper})
			continue
		}

		value, err := p.convert(item)
		if err != nil {
			return nil, err
		}
		ranges = append(ranges, vsc.Range{Lower: value})
	}
	return vsc.NewInExpr(lhs, ranges...), nil
}

// convertSlice converts "x[upper:lower]" into a part-select.
func (p *exprParser) convertSlice(n *ast.SliceNode) (vsc.Expr, error) {
	upper, ok := n.From.(*ast.IntegerNode)
	if !ok {
		return nil, fmt.Errorf("%w: part-select bounds must be integers", ErrUnsupported)
	}
	lower, ok := n.To.(*ast.IntegerNode)
	if !ok {
		return nil, fmt.Errorf("%w: part-select bounds must be integers", ErrUnsupported)
	} else if upper.Value < lower.Value || lower.Value < 0 {
		return nil, fmt.Errorf("%w: part-select [%d:%d]", ErrUnsupported, upper.Value, lower.Value)
	}

	x, err := p.convert(n.Node)
	if err != nil {
		return nil, err
	}
	return vsc.NewPartSelectExpr(x, uint(upper.Value), uint(lower.Value)), nil
}

func (p *exprParser) convertCall(n *ast.CallNode) (vsc.Expr, error) {
	ident, ok := n.Callee.(*ast.IdentifierNode)
	if !ok {
		return nil, fmt.Errorf("%w: call", ErrUnsupported)
	}

	if ident.Value == "bnot" {
		if len(n.Arguments) != 1 {
			return nil, fmt.Errorf("%w: bnot takes one argument", ErrUnsupported)
		}
		x, err := p.convert(n.Arguments[0])
		if err != nil {
			return nil, err
		}
		return vsc.NewUnaryExpr(vsc.NOT, x), nil
	}

	op, ok := callOps[ident.Value]
	if !ok {
		return nil, fmt.Errorf("%w: function %q", ErrUnsupported, ident.Value)
	} else if len(n.Arguments) != 2 {
		return nil, fmt.Errorf("%w: %s takes two arguments", ErrUnsupported, ident.Value)
	}
	lhs, err := p.convert(n.Arguments[0])
	if err != nil {
		return nil, err
	}
	rhs, err := p.convert(n.Arguments[1])
	if err != nil {
		return nil, err
	}
	return vsc.NewBinaryExpr(op, lhs, rhs), nil
}

// convertRef converts an identifier or member chain into a field reference.
// Paths that only step through struct children resolve to a direct
// reference; anything else keeps its indexed form.
func (p *exprParser) convertRef(node ast.Node) (vsc.Expr, error) {
	var chain []*ast.MemberNode
	for {
		m, ok := node.(*ast.MemberNode)
		if !ok {
			break
		}
		chain = append(chain, m)
		node = m.Node
	}

	ident, ok := node.(*ast.IdentifierNode)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupported, node)
	}

	v, root := p.scope.lookup(ident.Value)
	if v != nil {
		if len(chain) > 0 {
			return nil, fmt.Errorf("%w: member of index variable %q", ErrUnsupported, v.Name)
		}
		return vsc.NewIndexVarExpr(v), nil
	} else if root == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, ident.Value)
	}

	var steps []vsc.PathElem
	field, static := root, true
	for i := len(chain) - 1; i >= 0; i-- {
		m := chain[i]
		if field == nil {
			return nil, fmt.Errorf("%w: member of vector element", ErrUnsupported)
		}

		switch prop := m.Property.(type) {
		case *ast.StringNode:
			if field.Kind == vsc.FieldVector && prop.Value == vsc.VectorSizeName {
				steps = append(steps, vsc.SizeIndex())
				field, static = field.Size, false
				continue
			}
			offset := childIndex(field, prop.Value)
			if offset < 0 {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownName, field.FullName(), prop.Value)
			}
			steps = append(steps, vsc.FieldIndex(offset))
			field = field.Fields[offset]

		default:
			if field.Kind != vsc.FieldVector {
				return nil, fmt.Errorf("%w: index of non-vector %s", ErrUnsupported, field.FullName())
			}
			index, err := p.convert(prop)
			if err != nil {
				return nil, err
			}
			steps = append(steps, vsc.VecIndex(index))
			field, static = nil, false
		}
	}

	if static {
		return vsc.NewFieldRefExpr(field), nil
	}
	return vsc.NewIndexedFieldRefExpr(root, steps...), nil
}

// childIndex returns the offset of the struct child named name, or -1.
func childIndex(f *vsc.Field, name string) int {
	if f.Kind != vsc.FieldStruct {
		return -1
	}
	for i, child := range f.Fields {
		if child.Name == name {
			return i
		}
	}
	return -1
}
