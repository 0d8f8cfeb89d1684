package vsc

import (
	"fmt"

	"go.uber.org/zap"
)

// SolveSetFlags is a set of solve-set markers.
type SolveSetFlags uint

const (
	// SolveSetHasForeach marks a solve-set with at least one foreach
	// constraint, which must be unrolled before lowering.
	SolveSetHasForeach SolveSetFlags = 1 << iota
)

// SolveSet represents a field-disjoint group of fields and constraints that
// must be solved together.
type SolveSet struct {
	// Rand-enabled member leaf fields, in traversal order.
	Fields []*Field

	// Subset of Fields that are random and unresolved at build time. These
	// are the only fields written on commit.
	RandFields []*Field

	Constraints     []Constraint
	SoftConstraints []Constraint

	// Member vectors and the subset whose size is referenced by a
	// constraint and must be resolved by the resizer.
	Vectors             []*Field
	ConstrainedSizeVecs []*Field

	Flags SolveSetFlags
}

// HasFlags returns true if all flags in mask are set.
func (s *SolveSet) HasFlags(mask SolveSetFlags) bool { return s.Flags&mask == mask }

// AllConstraints returns the hard constraints followed by the soft ones.
func (s *SolveSet) AllConstraints() []Constraint {
	a := make([]Constraint, 0, len(s.Constraints)+len(s.SoftConstraints))
	a = append(a, s.Constraints...)
	return append(a, s.SoftConstraints...)
}

// SolveSpec is the partitioned form of one solve call.
type SolveSpec struct {
	SolveSets             []*SolveSet
	Unconstrained         []*Field
	UnconstrainedSizeVecs []*Field
}

// SolveSpecBuilder partitions fields and constraints into solve-sets.
type SolveSpecBuilder struct {
	Logger *zap.Logger
}

// NewSolveSpecBuilder returns a new instance of SolveSpecBuilder.
func NewSolveSpecBuilder() *SolveSpecBuilder {
	return &SolveSpecBuilder{Logger: zap.NewNop()}
}

// Build partitions constraints over the fields reachable from fields.
// Returns ErrInvalidReference if a constraint references a field that is
// not reachable.
func (b *SolveSpecBuilder) Build(fields []*Field, constraints []Constraint) (*SolveSpec, error) {
	var members []*Field
	for _, f := range fields {
		members = append(members, f.Leaves()...)
	}
	return b.build(fields, members, constraints)
}

// BuildSubset is like Build but only classifies the leaf fields in members.
// References are still checked against every field reachable from scope.
func (b *SolveSpecBuilder) BuildSubset(scope, members []*Field, constraints []Constraint) (*SolveSpec, error) {
	return b.build(scope, members, constraints)
}

func (b *SolveSpecBuilder) build(scope, members []*Field, constraints []Constraint) (*SolveSpec, error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reachable := make(map[*Field]bool)
	var vectors []*Field
	for _, f := range scope {
		f.Walk(func(f *Field) bool {
			if !reachable[f] && f.Kind == FieldVector {
				vectors = append(vectors, f)
			}
			reachable[f] = true
			return true
		})
	}

	// Vectors are linked to their elements when either is random.
	uf := make(unionFind)
	for _, vec := range vectors {
		if !vec.HasFlags(FieldRandEnabled) && !hasRandomElem(vec) {
			continue
		}
		for _, elem := range vec.Fields {
			uf.union(vec, elem)
		}
	}

	// Link the random references of every constraint and remember which
	// vector sizes are referenced.
	roots := make([]*Field, len(constraints))
	sized := make(map[*Field]bool)
	for i, c := range constraints {
		refs, err := collectRefs(c, reachable)
		if err != nil {
			return nil, err
		}
		for _, vec := range refs.sized {
			sized[vec] = true
		}
		for _, f := range refs.rand {
			uf.union(refs.rand[0], f)
		}
		if len(refs.rand) > 0 {
			roots[i] = refs.rand[0]
		}
	}

	// Create sets in order of their first constraint.
	spec := &SolveSpec{}
	setByRoot := make(map[*Field]*SolveSet)
	for i, c := range constraints {
		var set *SolveSet
		if roots[i] == nil {
			set = &SolveSet{}
			spec.SolveSets = append(spec.SolveSets, set)
		} else if root := uf.find(roots[i]); setByRoot[root] != nil {
			set = setByRoot[root]
		} else {
			set = &SolveSet{}
			setByRoot[root] = set
			spec.SolveSets = append(spec.SolveSets, set)
		}

		if soft, ok := c.(*SoftConstraint); ok {
			set.SoftConstraints = append(set.SoftConstraints, soft)
		} else {
			set.Constraints = append(set.Constraints, c)
		}
		if HasForeach(c) {
			set.Flags |= SolveSetHasForeach
		}
	}

	// Assign member leaves to their set or to the unconstrained list.
	for _, f := range members {
		if !f.HasFlags(FieldRandEnabled) {
			continue
		}
		if set := setByRoot[uf.find(f)]; set != nil {
			set.Fields = append(set.Fields, f)
			if f.IsRandom() {
				set.RandFields = append(set.RandFields, f)
			}
		} else if f.IsRandom() {
			spec.Unconstrained = append(spec.Unconstrained, f)
		}
	}

	// Classify vectors by whether their size must be solved for.
	for _, vec := range vectors {
		set := setByRoot[uf.find(vec)]
		if set != nil {
			set.Vectors = append(set.Vectors, vec)
		}
		if set != nil && sized[vec] && vec.Size.IsRandom() {
			set.ConstrainedSizeVecs = append(set.ConstrainedSizeVecs, vec)
		} else if containsVector(members, vec) {
			spec.UnconstrainedSizeVecs = append(spec.UnconstrainedSizeVecs, vec)
		}
	}

	logger.Debug("[sset] built",
		zap.Int("constraints", len(constraints)),
		zap.Int("sets", len(spec.SolveSets)),
		zap.Int("unconstrained", len(spec.Unconstrained)),
		zap.Int("unconstrained_size_vecs", len(spec.UnconstrainedSizeVecs)),
	)
	return spec, nil
}

// containsVector returns true if vec has no elements or any of its elements
// is in members.
func containsVector(members []*Field, vec *Field) bool {
	if len(vec.Fields) == 0 {
		return true
	}
	for _, f := range members {
		if f.Parent == vec {
			return true
		}
	}
	return false
}

// hasRandomElem returns true if any element of vec is random, regardless of
// the flags of vec itself.
func hasRandomElem(vec *Field) bool {
	for _, elem := range vec.Fields {
		if elem.IsRandom() {
			return true
		}
	}
	return false
}

// constraintRefs holds the fields referenced by a single constraint.
type constraintRefs struct {
	rand  []*Field // random fields and vectors to link
	sized []*Field // vectors whose size field is referenced
}

// collectRefs returns the references made by c. Every reference must be in
// reachable.
func collectRefs(c Constraint, reachable map[*Field]bool) (*constraintRefs, error) {
	refs := &constraintRefs{}

	add := func(f *Field) error {
		if !reachable[f] {
			return fmt.Errorf("%w: %s", ErrInvalidReference, f.FullName())
		}
		if f.IsVectorSize() {
			refs.sized = append(refs.sized, f.Parent)
			if f.IsRandom() {
				refs.rand = append(refs.rand, f.Parent)
			}
			return nil
		}
		if f.IsRandom() || (f.Kind == FieldVector && hasRandomElem(f)) {
			refs.rand = append(refs.rand, f)
		}
		return nil
	}

	var err error
	WalkConstraint(func(c Constraint) bool {
		if foreach, ok := c.(*ForeachConstraint); ok {
			vec, e := foreach.Target()
			if e != nil {
				err = e
				return false
			} else if err = add(vec); err != nil {
				return false
			}
		}

		for _, expr := range ConstraintExprs(c) {
			WalkExpr(func(expr Expr) bool {
				if err != nil {
					return false
				}
				switch expr := expr.(type) {
				case *FieldRefExpr:
					err = add(expr.Field)
				case *IndexedFieldRefExpr:
					err = addPathRefs(expr, reachable, add)
				}
				return err == nil
			}, expr)
		}
		return err == nil
	}, c)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// addPathRefs adds the references of a path. A path with a dynamic index
// references the whole vector it indexes.
func addPathRefs(expr *IndexedFieldRefExpr, reachable map[*Field]bool, add func(*Field) error) error {
	if root := expr.Path[0].Field; !reachable[root] {
		return fmt.Errorf("%w: %s", ErrInvalidReference, root.FullName())
	}
	if vec, ok := expr.Vector(); ok {
		return add(vec)
	}

	f, err := expr.Resolve()
	if err != nil {
		return err
	}
	return add(f)
}

// unionFind is a disjoint-set forest over fields. Fields not in the map are
// their own root.
type unionFind map[*Field]*Field

func (u unionFind) find(f *Field) *Field {
	for {
		parent, ok := u[f]
		if !ok || parent == f {
			return f
		}
		if grandparent, ok := u[parent]; ok {
			u[f] = grandparent
		}
		f = parent
	}
}

func (u unionFind) union(a, b *Field) {
	if ra, rb := u.find(a), u.find(b); ra != rb {
		u[rb] = ra
	}
}
