package vsc

import (
	"fmt"
	"strconv"
)

// Value represents a fixed-width bit-vector value.
type Value struct {
	Bits  uint64
	Width uint
}

// NewValue returns a value of the given width. Bits above width are discarded.
func NewValue(bits uint64, width uint) Value {
	assert(width > 0 && width <= MaxWidth, "invalid value width: %d", width)
	return Value{Bits: bits & bitmask(width), Width: width}
}

// NewIntValue returns the two's complement representation of v in width bits.
func NewIntValue(v int64, width uint) Value {
	return NewValue(uint64(v), width)
}

// NewBoolValue is an ease of use function for creating 1-bit values.
func NewBoolValue(v bool) Value {
	if v {
		return Value{Bits: 1, Width: WidthBool}
	}
	return Value{Bits: 0, Width: WidthBool}
}

// String returns the unsigned decimal representation of the value.
func (v Value) String() string {
	return fmt.Sprintf("%d'd%d", v.Width, v.Bits)
}

// BitString returns the value as a string of '0' and '1', MSB first.
func (v Value) BitString() string {
	s := strconv.FormatUint(v.Bits, 2)
	for uint(len(s)) < v.Width {
		s = "0" + s
	}
	return s
}

// Uint64 returns the value interpreted as unsigned.
func (v Value) Uint64() uint64 { return v.Bits }

// Int64 returns the value interpreted as two's complement.
func (v Value) Int64() int64 {
	if v.Width == 0 || v.Width >= Width64 {
		return int64(v.Bits)
	}
	shift := Width64 - v.Width
	return int64(v.Bits<<shift) >> shift
}

// IsZero returns true if no bits are set.
func (v Value) IsZero() bool { return v.Bits == 0 }

// IsTrue returns true if this is a non-zero value.
func (v Value) IsTrue() bool { return v.Bits != 0 }

// Bit returns bit i of the value.
func (v Value) Bit(i uint) bool { return (v.Bits>>i)&1 == 1 }

// ZExt returns the zero-extension of v to a new width.
func (v Value) ZExt(width uint) Value {
	if v.Width == width {
		return v
	}
	return NewValue(v.Bits, width)
}

// SExt returns the sign-extension of v to a new width.
func (v Value) SExt(width uint) Value {
	if v.Width == width {
		return v
	}
	return NewIntValue(v.Int64(), width)
}

// Extend returns v extended to width, sign-extending if signed is true.
// Returns v unchanged if it is already at least width bits wide.
func (v Value) Extend(width uint, signed bool) Value {
	if v.Width >= width {
		return v
	} else if signed {
		return v.SExt(width)
	}
	return v.ZExt(width)
}

// Extract returns bits [lower, upper] of v.
func (v Value) Extract(upper, lower uint) Value {
	assert(upper >= lower && upper < v.Width, "extract: invalid range [%d:%d] of %d", upper, lower, v.Width)
	return NewValue(v.Bits>>lower, upper-lower+1)
}

// Add returns the sum of v and other.
func (v Value) Add(other Value) Value {
	assert(v.Width == other.Width, "add: width mismatch: %d != %d", v.Width, other.Width)
	return NewValue(v.Bits+other.Bits, v.Width)
}

// Sub returns the difference of v and other.
func (v Value) Sub(other Value) Value {
	assert(v.Width == other.Width, "sub: width mismatch: %d != %d", v.Width, other.Width)
	return NewValue(v.Bits-other.Bits, v.Width)
}

// Mul returns the product of v and other.
func (v Value) Mul(other Value) Value {
	assert(v.Width == other.Width, "mul: width mismatch: %d != %d", v.Width, other.Width)
	return NewValue(v.Bits*other.Bits, v.Width)
}

// UDiv returns the unsigned quotient. Division by zero yields all ones.
func (v Value) UDiv(other Value) Value {
	assert(v.Width == other.Width, "udiv: width mismatch: %d != %d", v.Width, other.Width)
	if other.Bits == 0 {
		return NewValue(bitmask(v.Width), v.Width)
	}
	return NewValue(v.Bits/other.Bits, v.Width)
}

// URem returns the unsigned remainder. Remainder by zero yields v.
func (v Value) URem(other Value) Value {
	assert(v.Width == other.Width, "urem: width mismatch: %d != %d", v.Width, other.Width)
	if other.Bits == 0 {
		return v
	}
	return NewValue(v.Bits%other.Bits, v.Width)
}

// SDiv returns the signed quotient, truncating toward zero.
func (v Value) SDiv(other Value) Value {
	assert(v.Width == other.Width, "sdiv: width mismatch: %d != %d", v.Width, other.Width)
	q := v.abs().UDiv(other.abs())
	if v.negative() != other.negative() {
		return q.Neg()
	}
	return q
}

// SRem returns the signed remainder, taking the sign of the dividend.
func (v Value) SRem(other Value) Value {
	assert(v.Width == other.Width, "srem: width mismatch: %d != %d", v.Width, other.Width)
	r := v.abs().URem(other.abs())
	if v.negative() {
		return r.Neg()
	}
	return r
}

// Neg returns the two's complement negation of v.
func (v Value) Neg() Value {
	return NewValue(-v.Bits, v.Width)
}

// And returns the bitwise AND of v and other.
func (v Value) And(other Value) Value {
	assert(v.Width == other.Width, "and: width mismatch: %d != %d", v.Width, other.Width)
	return NewValue(v.Bits&other.Bits, v.Width)
}

// Or returns the bitwise OR of v and other.
func (v Value) Or(other Value) Value {
	assert(v.Width == other.Width, "or: width mismatch: %d != %d", v.Width, other.Width)
	return NewValue(v.Bits|other.Bits, v.Width)
}

// Xor returns the bitwise XOR of v and other.
func (v Value) Xor(other Value) Value {
	assert(v.Width == other.Width, "xor: width mismatch: %d != %d", v.Width, other.Width)
	return NewValue(v.Bits^other.Bits, v.Width)
}

// Not returns the bitwise NOT of v.
func (v Value) Not() Value {
	return NewValue(^v.Bits, v.Width)
}

// Shl returns v shifted left by other bits.
func (v Value) Shl(other Value) Value {
	if other.Bits >= uint64(v.Width) {
		return NewValue(0, v.Width)
	}
	return NewValue(v.Bits<<other.Bits, v.Width)
}

// LShr returns v logically shifted right by other bits.
func (v Value) LShr(other Value) Value {
	if other.Bits >= uint64(v.Width) {
		return NewValue(0, v.Width)
	}
	return NewValue(v.Bits>>other.Bits, v.Width)
}

// Ult returns true if v < other as unsigned values.
func (v Value) Ult(other Value) bool { return v.Bits < other.Bits }

// Ule returns true if v <= other as unsigned values.
func (v Value) Ule(other Value) bool { return v.Bits <= other.Bits }

// Slt returns true if v < other as signed values.
func (v Value) Slt(other Value) bool { return v.Int64() < other.Int64() }

// Sle returns true if v <= other as signed values.
func (v Value) Sle(other Value) bool { return v.Int64() <= other.Int64() }

func (v Value) negative() bool {
	return v.Bit(v.Width - 1)
}

func (v Value) abs() Value {
	if v.negative() {
		return v.Neg()
	}
	return v
}

func bitmask(width uint) uint64 {
	return (1 << width) - 1
}
