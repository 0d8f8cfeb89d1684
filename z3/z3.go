//go:build cgo
// +build cgo

package z3

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/benbjohnson/vsc"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure types implement interfaces.
var (
	_ vsc.Backend = (*Backend)(nil)
	_ vsc.Session = (*Session)(nil)
)

// Backend represents a backend that uses an embedded Z3 solver. Every
// session owns its own Z3 context.
type Backend struct {
	stats Stats
}

// NewBackend returns a new instance of Backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Stats returns statistics for all sessions of the backend.
func (b *Backend) Stats() Stats {
	return b.stats
}

// NewSession returns a new session with an empty solver.
func (b *Backend) NewSession() (vsc.Session, error) {
	ctx := NewContext()
	solver := C.Z3_mk_solver(ctx.raw)
	if err := ctx.err("Z3_mk_solver"); err != nil {
		ctx.Close()
		return nil, err
	}
	C.Z3_solver_inc_ref(ctx.raw, solver)
	return &Session{backend: b, ctx: ctx, solver: solver}, nil
}

// Session represents a Z3 solver. All nodes are bit-vector terms; boolean
// results are converted to 1-bit vectors.
type Session struct {
	backend *Backend
	ctx     *Context
	solver  C.Z3_solver
	assumed []C.Z3_ast
	model   C.Z3_model
}

// Close releases the model, the solver and the underlying Z3 context.
func (s *Session) Close() error {
	if s.model != nil {
		C.Z3_model_dec_ref(s.ctx.raw, s.model)
		s.model = nil
	}
	C.Z3_solver_dec_ref(s.ctx.raw, s.solver)
	return s.ctx.Close()
}

func (s *Session) Var(name string, width uint) (vsc.Node, error) {
	t, err := s.ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(s.ctx.raw, cname)
	return C.Z3_mk_const(s.ctx.raw, sym, t), s.ctx.err("Z3_mk_const")
}

func (s *Session) Const(v vsc.Value) (vsc.Node, error) {
	if v.Width <= 32 {
		return s.ctx.makeUint(v.Width, uint32(v.Bits))
	}
	return s.ctx.makeUint64(v.Width, v.Bits)
}

func (s *Session) Width(n vsc.Node) uint {
	return s.ctx.bvSize(n.(C.Z3_ast))
}

func (s *Session) Eq(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_eq", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_eq(s.ctx.raw, x, y) })
}

func (s *Session) Ne(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_eq", func(x, y C.Z3_ast) C.Z3_ast {
		return C.Z3_mk_not(s.ctx.raw, C.Z3_mk_eq(s.ctx.raw, x, y))
	})
}

func (s *Session) Ult(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_bvult", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvult(s.ctx.raw, x, y) })
}

func (s *Session) Ule(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_bvule", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvule(s.ctx.raw, x, y) })
}

func (s *Session) Ugt(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_bvugt", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvugt(s.ctx.raw, x, y) })
}

func (s *Session) Uge(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_bvuge", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvuge(s.ctx.raw, x, y) })
}

func (s *Session) Slt(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_bvslt", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvslt(s.ctx.raw, x, y) })
}

func (s *Session) Sle(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_bvsle", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsle(s.ctx.raw, x, y) })
}

func (s *Session) Sgt(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_bvsgt", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsgt(s.ctx.raw, x, y) })
}

func (s *Session) Sge(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_bvsge", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsge(s.ctx.raw, x, y) })
}

func (s *Session) Add(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvadd", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvadd(s.ctx.raw, x, y) })
}

func (s *Session) Sub(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvsub", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsub(s.ctx.raw, x, y) })
}

func (s *Session) Mul(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvmul", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvmul(s.ctx.raw, x, y) })
}

func (s *Session) UDiv(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvudiv", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvudiv(s.ctx.raw, x, y) })
}

func (s *Session) SDiv(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvsdiv", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsdiv(s.ctx.raw, x, y) })
}

func (s *Session) URem(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvurem", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvurem(s.ctx.raw, x, y) })
}

func (s *Session) SRem(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvsrem", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvsrem(s.ctx.raw, x, y) })
}

func (s *Session) And(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvand", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvand(s.ctx.raw, x, y) })
}

func (s *Session) Or(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvor", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvor(s.ctx.raw, x, y) })
}

func (s *Session) Xor(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvxor", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvxor(s.ctx.raw, x, y) })
}

func (s *Session) Shl(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvshl", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvshl(s.ctx.raw, x, y) })
}

func (s *Session) Lshr(a, b vsc.Node) (vsc.Node, error) {
	return s.binary(a, b, "Z3_mk_bvlshr", func(x, y C.Z3_ast) C.Z3_ast { return C.Z3_mk_bvlshr(s.ctx.raw, x, y) })
}

func (s *Session) Not(a vsc.Node) (vsc.Node, error) {
	return C.Z3_mk_bvnot(s.ctx.raw, a.(C.Z3_ast)), s.ctx.err("Z3_mk_bvnot")
}

func (s *Session) Uext(a vsc.Node, width uint) (vsc.Node, error) {
	src := a.(C.Z3_ast)
	if sz := s.ctx.bvSize(src); sz < width {
		return C.Z3_mk_zero_ext(s.ctx.raw, C.uint(width-sz), src), s.ctx.err("Z3_mk_zero_ext")
	}
	return src, nil
}

func (s *Session) Sext(a vsc.Node, width uint) (vsc.Node, error) {
	src := a.(C.Z3_ast)
	if sz := s.ctx.bvSize(src); sz < width {
		return C.Z3_mk_sign_ext(s.ctx.raw, C.uint(width-sz), src), s.ctx.err("Z3_mk_sign_ext")
	}
	return src, nil
}

func (s *Session) Slice(a vsc.Node, upper, lower uint) (vsc.Node, error) {
	return C.Z3_mk_extract(s.ctx.raw, C.uint(upper), C.uint(lower), a.(C.Z3_ast)), s.ctx.err("Z3_mk_extract")
}

func (s *Session) Cond(c, a, b vsc.Node) (vsc.Node, error) {
	cond, err := s.ctx.toBool(c.(C.Z3_ast))
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(s.ctx.raw, cond, a.(C.Z3_ast), b.(C.Z3_ast)), s.ctx.err("Z3_mk_ite")
}

func (s *Session) Implies(a, b vsc.Node) (vsc.Node, error) {
	return s.compare(a, b, "Z3_mk_implies", func(x, y C.Z3_ast) C.Z3_ast {
		one := C.Z3_mk_unsigned_int(s.ctx.raw, 1, C.Z3_mk_bv_sort(s.ctx.raw, 1))
		return C.Z3_mk_implies(s.ctx.raw, C.Z3_mk_eq(s.ctx.raw, x, one), C.Z3_mk_eq(s.ctx.raw, y, one))
	})
}

// Assume adds n to the assumptions of the next Check.
func (s *Session) Assume(n vsc.Node) error {
	cond, err := s.ctx.toBool(n.(C.Z3_ast))
	if err != nil {
		return err
	}
	s.assumed = append(s.assumed, cond)
	return nil
}

// Assert adds n to the solver permanently.
func (s *Session) Assert(n vsc.Node) error {
	cond, err := s.ctx.toBool(n.(C.Z3_ast))
	if err != nil {
		return err
	}
	C.Z3_solver_assert(s.ctx.raw, s.solver, cond)
	return s.ctx.err("Z3_solver_assert")
}

// Check checks the assertions together with the current assumptions. The
// assumptions are asserted in a scope that is popped afterwards.
func (s *Session) Check() (satisfiable bool, err error) {
	t := time.Now()
	defer func() {
		s.backend.stats.SolveN++
		s.backend.stats.SolveTime += time.Since(t)
	}()

	assumed := s.assumed
	s.assumed = nil

	C.Z3_solver_push(s.ctx.raw, s.solver)
	defer C.Z3_solver_pop(s.ctx.raw, s.solver, 1)

	for _, cond := range assumed {
		C.Z3_solver_assert(s.ctx.raw, s.solver, cond)
		if err := s.ctx.err("Z3_solver_assert"); err != nil {
			return false, err
		}
	}

	// Exit immediately if unsatisfiable or the solver encountered an error.
	ret := C.Z3_solver_check(s.ctx.raw, s.solver)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return false, err
	} else if ret == C.Z3_L_FALSE {
		return false, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, s.solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return false, ErrTimeout
		case strings.Contains(reason, "canceled"):
			return false, ErrCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return false, ErrResourceLimit
		case strings.Contains(reason, "unknown"):
			return false, ErrUnknown
		default:
			return false, fmt.Errorf("z3: %s", reason)
		}
	}

	// Keep the model for Value; it outlives the popped scope.
	model := C.Z3_solver_get_model(s.ctx.raw, s.solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return true, err
	}
	C.Z3_model_inc_ref(s.ctx.raw, model)
	if s.model != nil {
		C.Z3_model_dec_ref(s.ctx.raw, s.model)
	}
	s.model = model
	return true, nil
}

// Value evaluates n against the model of the last satisfiable Check.
func (s *Session) Value(n vsc.Node) (vsc.Value, error) {
	if s.model == nil {
		return vsc.Value{}, ErrNoModel
	}

	src := n.(C.Z3_ast)
	var out C.Z3_ast
	C.Z3_model_eval(s.ctx.raw, s.model, src, C.bool(true), &out)
	if err := s.ctx.err("Z3_model_eval"); err != nil {
		return vsc.Value{}, err
	}

	var u C.uint64_t
	C.Z3_get_numeral_uint64(s.ctx.raw, out, &u)
	if err := s.ctx.err("Z3_get_numeral_uint64"); err != nil {
		return vsc.Value{}, err
	}
	return vsc.NewValue(uint64(u), s.ctx.bvSize(src)), nil
}

// binary returns the result of a bit-vector operator on a and b.
func (s *Session) binary(a, b vsc.Node, op string, fn func(x, y C.Z3_ast) C.Z3_ast) (vsc.Node, error) {
	x, y := a.(C.Z3_ast), b.(C.Z3_ast)
	if xsz, ysz := s.ctx.bvSize(x), s.ctx.bvSize(y); xsz != ysz {
		return nil, fmt.Errorf("z3: %s: operand width mismatch: %d != %d", op, xsz, ysz)
	}
	return fn(x, y), s.ctx.err(op)
}

// compare returns the boolean result of fn as a 1-bit vector.
func (s *Session) compare(a, b vsc.Node, op string, fn func(x, y C.Z3_ast) C.Z3_ast) (vsc.Node, error) {
	n, err := s.binary(a, b, op, fn)
	if err != nil {
		return nil, err
	}
	return s.ctx.fromBool(n.(C.Z3_ast))
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

// toBool converts a 1-bit vector to the boolean sort.
func (ctx *Context) toBool(x C.Z3_ast) (C.Z3_ast, error) {
	if sz := ctx.bvSize(x); sz != 1 {
		return nil, fmt.Errorf("z3: expected 1-bit condition, got %d bits", sz)
	}
	one, err := ctx.makeUint(1, 1)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_eq(ctx.raw, x, one), ctx.err("Z3_mk_eq")
}

// fromBool converts a boolean to a 1-bit vector with an if-then-else expression.
func (ctx *Context) fromBool(b C.Z3_ast) (C.Z3_ast, error) {
	whenTrue, err := ctx.makeUint(1, 1)
	if err != nil {
		return nil, err
	}
	whenFalse, err := ctx.makeUint(1, 0)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_ite(ctx.raw, b, whenTrue, whenFalse), ctx.err("Z3_mk_ite")
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint(width uint, value uint32) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int(ctx.raw, C.uint(value), t), ctx.err("Z3_mk_unsigned_int")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

func (ctx *Context) bvSize(expr C.Z3_ast) uint {
	t := C.Z3_get_sort(ctx.raw, expr)
	if err := ctx.err("Z3_get_sort"); err != nil {
		panic(err)
	}
	return ctx.bvSortSize(t)
}

// bvSortSize returns the size of t in bits. Panic if t is not a bit-vector sort.
func (ctx *Context) bvSortSize(t C.Z3_sort) uint {
	sz := uint(C.Z3_get_bv_sort_size(ctx.raw, t))
	if err := ctx.err("Z3_get_bv_sort_size"); err != nil {
		panic(err)
	}
	return sz
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

func (ctx *Context) modelToString(model C.Z3_model) string {
	return C.GoString(C.Z3_model_to_string(ctx.raw, model))
}
