package parse

import (
	"fmt"
	"io"

	"github.com/benbjohnson/vsc"
	"github.com/goccy/go-yaml"
)

// Model is a set of top-level fields and the constraints over them.
type Model struct {
	Fields      []*vsc.Field
	Constraints []vsc.Constraint
}

// Field returns the top-level field named name, or nil.
func (m *Model) Field(name string) *vsc.Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

type modelDef struct {
	Fields      []*fieldDef      `yaml:"fields"`
	Constraints []*constraintDef `yaml:"constraints"`
}

type fieldDef struct {
	Name   string      `yaml:"name"`
	Width  uint        `yaml:"width"`
	Signed bool        `yaml:"signed"`
	Rand   bool        `yaml:"rand"`
	Value  int64       `yaml:"value"`
	Vector *vectorDef  `yaml:"vector"`
	Fields []*fieldDef `yaml:"fields"`
}

type vectorDef struct {
	Width  uint `yaml:"width"`
	Signed bool `yaml:"signed"`
	Size   int  `yaml:"size"`
}

// constraintDef is either a bare expression or one of the keyed forms.
type constraintDef struct {
	Expr    string           `yaml:"-"`
	Foreach string           `yaml:"foreach"`
	Index   string           `yaml:"index"`
	If      string           `yaml:"if"`
	Then    []*constraintDef `yaml:"then"`
	Else    []*constraintDef `yaml:"else"`
	Implies string           `yaml:"implies"`
	Body    []*constraintDef `yaml:"body"`
	Soft    string           `yaml:"soft"`
}

func (c *constraintDef) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	if s, ok := v.(string); ok {
		c.Expr = s
		return nil
	}

	type raw constraintDef
	return unmarshal((*raw)(c))
}

// LoadModel reads a YAML model from r.
func LoadModel(r io.Reader) (*Model, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var def modelDef
	if err := yaml.Unmarshal(buf, &def); err != nil {
		return nil, err
	}

	m := &Model{}
	for _, fd := range def.Fields {
		f, err := fd.build()
		if err != nil {
			return nil, err
		}
		m.Fields = append(m.Fields, f)
	}

	scope := NewScope(m.Fields...)
	for i, cd := range def.Constraints {
		c, err := cd.build(scope)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		m.Constraints = append(m.Constraints, c)
	}
	return m, nil
}

func (fd *fieldDef) build() (*vsc.Field, error) {
	var flags vsc.FieldFlags
	if fd.Rand {
		flags = vsc.FieldDeclRand
	}

	switch {
	case fd.Name == "":
		return nil, fmt.Errorf("field name required")

	case fd.Vector != nil:
		if err := checkWidth(fd.Name, fd.Vector.Width); err != nil {
			return nil, err
		} else if fd.Vector.Size < 0 {
			return nil, fmt.Errorf("field %s: negative vector size", fd.Name)
		}
		f := vsc.NewVectorField(fd.Name, fd.Vector.Width, fd.Vector.Signed, flags, fd.Vector.Size)
		f.Flags = flags
		return f, nil

	case len(fd.Fields) > 0:
		f := vsc.NewStructField(fd.Name)
		f.Flags = flags
		for _, cd := range fd.Fields {
			child, err := cd.build()
			if err != nil {
				return nil, err
			}
			f.AddField(child)
		}
		return f, nil

	default:
		if err := checkWidth(fd.Name, fd.Width); err != nil {
			return nil, err
		}
		f := vsc.NewField(fd.Name, fd.Width, fd.Signed)
		f.Flags = flags
		f.Value = vsc.NewIntValue(fd.Value, fd.Width)
		return f, nil
	}
}

func checkWidth(name string, width uint) error {
	if width == 0 || width > vsc.MaxWidth {
		return fmt.Errorf("field %s: invalid width %d", name, width)
	}
	return nil
}

func (cd *constraintDef) build(scope *Scope) (vsc.Constraint, error) {
	switch {
	case cd.Expr != "":
		expr, err := ParseExpr(cd.Expr, scope)
		if err != nil {
			return nil, err
		}
		return vsc.NewExprConstraint(expr), nil

	case cd.Foreach != "":
		vec, err := ParseExpr(cd.Foreach, scope)
		if err != nil {
			return nil, err
		}
		index := cd.Index
		if index == "" {
			index = "i"
		}
		c := vsc.NewForeachConstraint(vec, index)
		body, err := buildConstraints(cd.Body, scope.WithIndex(c.Index))
		if err != nil {
			return nil, err
		}
		c.Body.Constraints = body
		return c, nil

	case cd.If != "":
		cond, err := ParseExpr(cd.If, scope)
		if err != nil {
			return nil, err
		}
		then, err := buildConstraints(cd.Then, scope)
		if err != nil {
			return nil, err
		}
		c := &vsc.IfElseConstraint{Cond: cond, True: vsc.NewScopeConstraint(then...)}
		if len(cd.Else) > 0 {
			other, err := buildConstraints(cd.Else, scope)
			if err != nil {
				return nil, err
			}
			c.False = vsc.NewScopeConstraint(other...)
		}
		return c, nil

	case cd.Implies != "":
		cond, err := ParseExpr(cd.Implies, scope)
		if err != nil {
			return nil, err
		}
		body, err := buildConstraints(cd.Body, scope)
		if err != nil {
			return nil, err
		}
		return &vsc.ImpliesConstraint{Cond: cond, Body: vsc.NewScopeConstraint(body...)}, nil

	case cd.Soft != "":
		expr, err := ParseExpr(cd.Soft, scope)
		if err != nil {
			return nil, err
		}
		return &vsc.SoftConstraint{Constraint: vsc.NewExprConstraint(expr)}, nil

	default:
		return nil, fmt.Errorf("empty constraint")
	}
}

func buildConstraints(a []*constraintDef, scope *Scope) ([]vsc.Constraint, error) {
	var other []vsc.Constraint
	for _, cd := range a {
		c, err := cd.build(scope)
		if err != nil {
			return nil, err
		}
		other = append(other, c)
	}
	return other, nil
}
