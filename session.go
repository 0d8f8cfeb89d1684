package vsc

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SessionState is the progress of a solve-set through its solver session.
type SessionState int

const (
	SessionBuilt SessionState = iota
	SessionTriedHard
	SessionAsserted
	SessionSwizzled
	SessionCommitted
	SessionFailed
)

var sessionStates = [...]string{
	SessionBuilt:     "built",
	SessionTriedHard: "tried-hard",
	SessionAsserted:  "asserted",
	SessionSwizzled:  "swizzled",
	SessionCommitted: "committed",
	SessionFailed:    "failed",
}

// String returns the string representation of the state.
func (s SessionState) String() string {
	if s >= 0 && s < SessionState(len(sessionStates)) {
		return sessionStates[s]
	}
	return fmt.Sprintf("SessionState<%d>", s)
}

// setSession drives a single solve-set through one backend session.
type setSession struct {
	solver *CompoundSolver
	set    *SolveSet
	sess   Session
	state  SessionState

	// Variables of set.RandFields, in the same order.
	nodes []Node
	hard  []Node
}

// solveSet solves set and commits the values of its random fields. Returns
// ErrUnsatisfiable if the hard and soft constraints cannot be satisfied
// together. No field is written on failure.
func (s *CompoundSolver) solveSet(ctx context.Context, set *SolveSet, rs RandState, flags SolveFlags) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	sess, err := s.backend().NewSession()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sess.Close()) }()

	ss := &setSession{solver: s, set: set, sess: sess}
	defer func() {
		if err != nil {
			ss.state = SessionFailed
		}
		s.logger().Debug("[solve] set done",
			zap.Stringer("state", ss.state),
			zap.Int("fields", len(set.RandFields)),
			zap.Int("constraints", len(set.Constraints)),
			zap.Int("soft", len(set.SoftConstraints)),
		)
	}()

	if err := ss.build(); err != nil {
		return err
	} else if err := ss.tryHard(); err != nil {
		return err
	}
	if flags&Randomize != 0 {
		if err := ss.swizzle(rs); err != nil {
			return err
		}
	}
	return ss.commit()
}

// build lowers the random fields and adds every constraint as an
// assumption.
func (ss *setSession) build() error {
	b := ss.solver.newModelBuilder(ss.sess)

	for _, f := range ss.set.RandFields {
		n, err := b.BuildField(f)
		if err != nil {
			return err
		}
		ss.nodes = append(ss.nodes, n)
	}

	for _, c := range ss.set.Constraints {
		n, err := b.BuildConstraint(c)
		if err != nil {
			return err
		} else if err := ss.sess.Assume(n); err != nil {
			return err
		}
		ss.hard = append(ss.hard, n)
	}

	for _, c := range ss.set.SoftConstraints {
		n, err := b.BuildConstraint(c)
		if err != nil {
			return err
		} else if err := ss.sess.Assume(n); err != nil {
			return err
		}
	}

	ss.state = SessionBuilt
	return nil
}

// tryHard checks the assumptions and, if satisfiable, makes the hard
// constraints permanent. Soft constraints are dropped.
func (ss *setSession) tryHard() error {
	ok, err := ss.sess.Check()
	if err != nil {
		return err
	}
	ss.state = SessionTriedHard
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsatisfiable, describeSet(ss.set))
	}

	for _, n := range ss.hard {
		if err := ss.sess.Assert(n); err != nil {
			return err
		}
	}
	ss.state = SessionAsserted
	return nil
}

// swizzle randomizes the witness. A session that is no longer satisfiable
// afterwards is reported and committed from the last witness.
func (ss *setSession) swizzle(rs RandState) error {
	if err := ss.solver.swizzler().Swizzle(ss.sess, rs, ss.nodes); err != nil {
		return err
	}

	ok, err := ss.sess.Check()
	if err != nil {
		return err
	} else if !ok {
		ss.solver.Stats.SwizzleUnsat++
		ss.solver.logger().Error("[swizzle] unsat post-swizzle", zap.String("set", describeSet(ss.set)))
	}
	ss.state = SessionSwizzled
	return nil
}

// commit writes the witness value of every random field.
func (ss *setSession) commit() error {
	values := make([]Value, len(ss.nodes))
	for i, n := range ss.nodes {
		v, err := ss.sess.Value(n)
		if err != nil {
			return err
		}
		values[i] = v
	}

	for i, f := range ss.set.RandFields {
		f.SetValue(values[i])
		ss.solver.logger().Debug("[commit]", zap.String("field", f.FullName()), zap.Stringer("value", f.Value))
	}
	ss.state = SessionCommitted
	return nil
}

// describeSet returns a short description of a set for errors and logs.
func describeSet(set *SolveSet) string {
	var names []string
	for i, f := range set.Fields {
		if i == 4 {
			names = append(names, "...")
			break
		}
		names = append(names, f.FullName())
	}
	return fmt.Sprintf("%d constraint(s) over %v", len(set.Constraints)+len(set.SoftConstraints), names)
}
