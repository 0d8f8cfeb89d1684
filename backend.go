package vsc

// Backend represents a bit-vector decision procedure.
type Backend interface {
	// NewSession returns a new solver session. Nodes created by one
	// session must not be used with another.
	NewSession() (Session, error)
}

// Node is an opaque handle to a term created by a Session.
type Node interface{}

// Session represents a single incremental solver context. Boolean terms are
// represented as 1-bit vectors. Operands of binary operators must have equal
// widths; comparisons return 1-bit results.
type Session interface {
	// Var returns a fresh variable of the given width.
	Var(name string, width uint) (Node, error)

	// Const returns a constant node holding v.
	Const(v Value) (Node, error)

	// Width returns the bit width of n.
	Width(n Node) uint

	Eq(a, b Node) (Node, error)
	Ne(a, b Node) (Node, error)
	Ult(a, b Node) (Node, error)
	Ule(a, b Node) (Node, error)
	Ugt(a, b Node) (Node, error)
	Uge(a, b Node) (Node, error)
	Slt(a, b Node) (Node, error)
	Sle(a, b Node) (Node, error)
	Sgt(a, b Node) (Node, error)
	Sge(a, b Node) (Node, error)

	Add(a, b Node) (Node, error)
	Sub(a, b Node) (Node, error)
	Mul(a, b Node) (Node, error)
	UDiv(a, b Node) (Node, error)
	SDiv(a, b Node) (Node, error)
	URem(a, b Node) (Node, error)
	SRem(a, b Node) (Node, error)

	And(a, b Node) (Node, error)
	Or(a, b Node) (Node, error)
	Xor(a, b Node) (Node, error)
	Not(a Node) (Node, error)
	Shl(a, b Node) (Node, error)
	Lshr(a, b Node) (Node, error)

	// Uext and Sext extend a to width bits.
	Uext(a Node, width uint) (Node, error)
	Sext(a Node, width uint) (Node, error)

	// Slice returns bits [lower, upper] of a.
	Slice(a Node, upper, lower uint) (Node, error)

	// Cond returns a when c is non-zero, otherwise b. c is 1 bit wide.
	Cond(c, a, b Node) (Node, error)

	// Implies returns the 1-bit implication a -> b.
	Implies(a, b Node) (Node, error)

	// Assume adds a 1-bit node that must hold for the next Check only.
	Assume(n Node) error

	// Assert adds a 1-bit node that must hold for every later Check.
	Assert(n Node) error

	// Check returns true if the assertions and the current assumptions are
	// satisfiable. Assumptions are cleared afterwards.
	Check() (bool, error)

	// Value returns the value of n in the model found by the last
	// satisfiable Check.
	Value(n Node) (Value, error)

	// Close releases the resources held by the session.
	Close() error
}
