package vsc

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultMaxVectorSize is the default upper bound of a solved vector size.
const DefaultMaxVectorSize = 4096

// VectorResizer resolves the sizes of the constrained-size vectors of a
// solve-set and materializes their elements.
type VectorResizer struct {
	Backend       Backend
	Logger        *zap.Logger
	MaxVectorSize uint32
	Permissive    bool

	// Used to randomize sizes when non-nil.
	Swizzler  *Swizzler
	RandState RandState

	// Number of sessions found unsatisfiable after swizzling.
	SwizzleUnsat int
}

// Resize solves for the sizes of set.ConstrainedSizeVecs using the hard
// constraints of set that contain no foreach. Each size is written to the
// size field of its vector and marked resolved. Elements added by the
// resize join the set; truncated elements leave it.
func (r *VectorResizer) Resize(ctx context.Context, set *SolveSet) (err error) {
	if len(set.ConstrainedSizeVecs) == 0 {
		return nil
	} else if err := ctx.Err(); err != nil {
		return err
	}

	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	max := r.MaxVectorSize
	if max == 0 {
		max = DefaultMaxVectorSize
	}

	sess, err := r.Backend.NewSession()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sess.Close()) }()

	b := NewModelBuilder(sess)
	b.Logger, b.Permissive = logger, r.Permissive

	for _, c := range set.Constraints {
		if HasForeach(c) {
			continue
		}
		n, err := b.BuildConstraint(c)
		if err != nil {
			return err
		} else if err := sess.Assert(n); err != nil {
			return err
		}
	}

	// Bound every size.
	sizes := make([]Node, len(set.ConstrainedSizeVecs))
	for i, vec := range set.ConstrainedSizeVecs {
		if sizes[i], err = b.BuildField(vec.Size); err != nil {
			return err
		}
		bound, err := sess.Const(NewValue(uint64(max), Width32))
		if err != nil {
			return err
		}
		n, err := sess.Ule(sizes[i], bound)
		if err != nil {
			return err
		} else if err := sess.Assert(n); err != nil {
			return err
		}
	}

	if ok, err := sess.Check(); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: no vector size satisfies %s", ErrUnsatisfiable, describeSet(set))
	}

	if r.Swizzler != nil && r.RandState != nil {
		if err := r.Swizzler.Swizzle(sess, r.RandState, sizes); err != nil {
			return err
		}
		if ok, err := sess.Check(); err != nil {
			return err
		} else if !ok {
			r.SwizzleUnsat++
			logger.Error("[resize] unsat post-swizzle", zap.String("set", describeSet(set)))
		}
	}

	for i, vec := range set.ConstrainedSizeVecs {
		v, err := sess.Value(sizes[i])
		if err != nil {
			return err
		} else if v.Uint64() > uint64(max) {
			return fmt.Errorf("%w: %s = %d", ErrVectorSize, vec.Size.FullName(), v.Uint64())
		}

		prev := vec.Len()
		added := vec.Resize(int(v.Uint64()))
		vec.Size.SetFlags(FieldResolved)
		updateSetElements(set, vec, added)

		logger.Debug("[resize] vector",
			zap.String("vec", vec.FullName()),
			zap.Int("prev", prev),
			zap.Int("size", vec.Len()),
		)
	}
	return nil
}

// updateSetElements removes the elements truncated from vec from the set
// and appends the added ones.
func updateSetElements(set *SolveSet, vec *Field, added []*Field) {
	current := make(map[*Field]bool, vec.Len())
	for _, elem := range vec.Fields {
		current[elem] = true
	}
	keep := func(f *Field) bool { return f.Parent != vec || current[f] }

	set.Fields = filterFields(set.Fields, keep)
	set.RandFields = filterFields(set.RandFields, keep)
	for _, elem := range added {
		if !elem.HasFlags(FieldRandEnabled) {
			continue
		}
		set.Fields = append(set.Fields, elem)
		if elem.IsRandom() {
			set.RandFields = append(set.RandFields, elem)
		}
	}
}

func filterFields(a []*Field, fn func(*Field) bool) []*Field {
	other := a[:0]
	for _, f := range a {
		if fn(f) {
			other = append(other, f)
		}
	}
	return other
}
