package vsc

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SolveFlags is a set of options for a compound solve.
type SolveFlags uint

const (
	// RandomizeDeclRand enables every nested field declared random.
	RandomizeDeclRand SolveFlags = 1 << iota

	// RandomizeTopFields enables the top-level fields passed to Solve.
	RandomizeTopFields

	// Randomize swizzles each witness toward a random pick.
	Randomize
)

// Stats holds counters for a CompoundSolver.
type Stats struct {
	SolveN         int
	SolveSetN      int
	UnconstrainedN int
	SwizzleUnsat   int
	SolveTime      time.Duration
}

// CompoundSolver assigns values to random fields subject to constraints.
// It partitions the problem into independent solve-sets and solves each in
// its own backend session.
type CompoundSolver struct {
	Backend Backend
	Logger  *zap.Logger

	// Upper bound of a solved vector size. Defaults to DefaultMaxVectorSize.
	MaxVectorSize uint32

	// If true, field values are restored when a solve fails. Otherwise
	// solve-sets committed before the failure keep their values.
	RestoreOnFailure bool

	// If true, constraints that cannot be lowered are treated as true.
	Permissive bool

	Swizzler *Swizzler
	Stats    Stats
}

// NewCompoundSolver returns a new instance of CompoundSolver.
func NewCompoundSolver(backend Backend) *CompoundSolver {
	return &CompoundSolver{
		Backend:       backend,
		Logger:        zap.NewNop(),
		MaxVectorSize: DefaultMaxVectorSize,
		Swizzler:      NewSwizzler(),
	}
}

// Solve randomizes the random fields reachable from fields subject to
// constraints. The first solve-set that fails aborts the call.
func (s *CompoundSolver) Solve(ctx context.Context, rs RandState, fields []*Field, constraints []Constraint, flags SolveFlags) (err error) {
	t := time.Now()
	defer func() {
		s.Stats.SolveN++
		s.Stats.SolveTime += time.Since(t)
	}()

	logger := s.logger()
	logger.Debug("[solve] begin",
		zap.Int("fields", len(fields)),
		zap.Int("constraints", len(constraints)),
		zap.Uint("flags", uint(flags)),
	)

	// Values, flags and elements are restored if the call fails.
	if s.RestoreOnFailure {
		snapshot := newFieldSnapshot(fields)
		defer func() {
			if err != nil {
				snapshot.restore()
				logger.Debug("[solve] restored field values")
			}
		}()
	}

	if flags&(RandomizeDeclRand|RandomizeTopFields) != 0 {
		for _, f := range fields {
			SetUsedRand(f, flags&RandomizeTopFields != 0, flags&RandomizeDeclRand != 0)
		}
	}

	// Vector sizes are resolved again by every call.
	for _, f := range fields {
		f.Walk(func(f *Field) bool {
			if f.IsVectorSize() {
				f.ClearFlags(FieldResolved)
			}
			return true
		})
	}

	builder := &SolveSpecBuilder{Logger: logger}
	spec, err := builder.Build(fields, constraints)
	if err != nil {
		return err
	}
	if err := s.solveSpec(ctx, rs, spec, fields, flags); err != nil {
		logger.Debug("[solve] failed", zap.Error(err))
		return err
	}
	return nil
}

// solveSpec pins and randomizes the unconstrained part of spec and solves
// each of its solve-sets in order.
func (s *CompoundSolver) solveSpec(ctx context.Context, rs RandState, spec *SolveSpec, scope []*Field, flags SolveFlags) error {
	for _, vec := range spec.UnconstrainedSizeVecs {
		vec.Size.Value = NewValue(uint64(vec.Len()), Width32)
		vec.Size.SetFlags(FieldResolved)
	}

	for _, f := range spec.Unconstrained {
		v := Value{Width: f.Width}
		rs.RandBits(&v)
		f.SetValue(v)
		s.Stats.UnconstrainedN++
	}

	for _, set := range spec.SolveSets {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Stats.SolveSetN++

		if len(set.ConstrainedSizeVecs) > 0 {
			r := s.newVectorResizer(rs, flags)
			err := r.Resize(ctx, set)
			s.Stats.SwizzleUnsat += r.SwizzleUnsat
			if err != nil {
				return err
			}
		}

		if set.HasFlags(SolveSetHasForeach) {
			if err := s.solveForeachSet(ctx, rs, set, scope, flags); err != nil {
				return err
			}
			continue
		}

		if err := s.solveSet(ctx, set, rs, flags); err != nil {
			return err
		}
	}
	return nil
}

// solveForeachSet unrolls the constraints of set, partitions the expansion
// and solves it.
func (s *CompoundSolver) solveForeachSet(ctx context.Context, rs RandState, set *SolveSet, scope []*Field, flags SolveFlags) (err error) {
	unroller := NewUnroller()
	unroller.Logger = s.logger()

	constraints := set.AllConstraints()
	defer func() {
		for _, c := range constraints {
			if e := unroller.Rollback(c); e != nil && err == nil {
				err = e
			}
		}
	}()

	target := NewScopeConstraint()
	for _, c := range constraints {
		if err := unroller.Unroll(target, c); err != nil {
			return err
		}
	}

	builder := &SolveSpecBuilder{Logger: s.logger()}
	spec, err := builder.BuildSubset(scope, set.Fields, target.Constraints)
	if err != nil {
		return err
	}
	return s.solveSpec(ctx, rs, spec, scope, flags)
}

func (s *CompoundSolver) newVectorResizer(rs RandState, flags SolveFlags) *VectorResizer {
	r := &VectorResizer{
		Backend:       s.backend(),
		Logger:        s.logger(),
		MaxVectorSize: s.MaxVectorSize,
		Permissive:    s.Permissive,
	}
	if flags&Randomize != 0 {
		r.Swizzler, r.RandState = s.swizzler(), rs
	}
	return r
}

func (s *CompoundSolver) newModelBuilder(sess Session) *ModelBuilder {
	b := NewModelBuilder(sess)
	b.Logger = s.logger()
	b.Permissive = s.Permissive
	return b
}

func (s *CompoundSolver) backend() Backend {
	assert(s.Backend != nil, "compound solver: no backend")
	return s.Backend
}

func (s *CompoundSolver) swizzler() *Swizzler {
	if s.Swizzler == nil {
		s.Swizzler = NewSwizzler()
	}
	return s.Swizzler
}

func (s *CompoundSolver) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// fieldSnapshot holds the state of a field tree so it can be restored.
type fieldSnapshot struct {
	entries []snapshotEntry
}

type snapshotEntry struct {
	field     *Field
	value     Value
	flags     FieldFlags
	elemFlags FieldFlags
	fields    []*Field
}

func newFieldSnapshot(fields []*Field) *fieldSnapshot {
	s := &fieldSnapshot{}
	for _, f := range fields {
		f.Walk(func(f *Field) bool {
			s.entries = append(s.entries, snapshotEntry{
				field:     f,
				value:     f.Value,
				flags:     f.Flags,
				elemFlags: f.ElemFlags,
				fields:    append([]*Field(nil), f.Fields...),
			})
			return true
		})
	}
	return s
}

func (s *fieldSnapshot) restore() {
	for _, e := range s.entries {
		e.field.Value, e.field.Flags, e.field.ElemFlags = e.value, e.flags, e.elemFlags
		e.field.Fields = e.fields
	}
}
