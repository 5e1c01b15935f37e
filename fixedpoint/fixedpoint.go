// Package fixedpoint provides the 1e18-scale fixed-point primitives used by
// the lending ledger. All operations run on 256-bit unsigned integers with
// full-width intermediate products, so an overflow is always detected on the
// final result rather than silently truncated mid-computation.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// Wad is the canonical fixed-point scale where 1e18 represents 100%.
var Wad = uint256.NewInt(1_000_000_000_000_000_000)

// ErrArithmetic signals an overflow, a division by zero, or an input the
// operation is undefined for.
var ErrArithmetic = errors.New("fixedpoint: arithmetic error")

// MulDivDown returns floor(a * b / d). The product is computed at 512-bit
// precision before the division.
func MulDivDown(a, b, d *uint256.Int) (*uint256.Int, error) {
	if a == nil || b == nil || d == nil || d.IsZero() {
		return nil, ErrArithmetic
	}
	result, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrArithmetic
	}
	return result, nil
}

// MulDivUp returns ceil(a * b / d).
func MulDivUp(a, b, d *uint256.Int) (*uint256.Int, error) {
	result, err := MulDivDown(a, b, d)
	if err != nil {
		return nil, err
	}
	remainder := new(uint256.Int).MulMod(a, b, d)
	if remainder.IsZero() {
		return result, nil
	}
	rounded, carry := new(uint256.Int).AddOverflow(result, one)
	if carry {
		return nil, ErrArithmetic
	}
	return rounded, nil
}

// MulWadDown returns floor(a * b / 1e18).
func MulWadDown(a, b *uint256.Int) (*uint256.Int, error) {
	return MulDivDown(a, b, Wad)
}

// MulWadUp returns ceil(a * b / 1e18).
func MulWadUp(a, b *uint256.Int) (*uint256.Int, error) {
	return MulDivUp(a, b, Wad)
}

// DivWadDown returns floor(a * 1e18 / b).
func DivWadDown(a, b *uint256.Int) (*uint256.Int, error) {
	return MulDivDown(a, Wad, b)
}

// DivWadUp returns ceil(a * 1e18 / b).
func DivWadUp(a, b *uint256.Int) (*uint256.Int, error) {
	return MulDivUp(a, Wad, b)
}

// RPow raises base to exponent in fixed-point arithmetic where scale
// represents one. A zero base or zero scale is undefined and fails with
// ErrArithmetic, as does any intermediate overflow.
func RPow(base, exponent, scale *uint256.Int) (*uint256.Int, error) {
	if base == nil || exponent == nil || scale == nil {
		return nil, ErrArithmetic
	}
	if base.IsZero() || scale.IsZero() {
		return nil, ErrArithmetic
	}
	if !exponent.IsUint64() {
		return nil, ErrArithmetic
	}

	// Square-and-multiply, rescaling after every product.
	n := exponent.Uint64()
	result := scale.Clone()
	factor := base.Clone()
	for n > 0 {
		if n&1 == 1 {
			next, overflow := new(uint256.Int).MulDivOverflow(result, factor, scale)
			if overflow {
				return nil, ErrArithmetic
			}
			result = next
		}
		n >>= 1
		if n == 0 {
			break
		}
		squared, overflow := new(uint256.Int).MulDivOverflow(factor, factor, scale)
		if overflow {
			return nil, ErrArithmetic
		}
		factor = squared
	}
	return result, nil
}

var one = uint256.NewInt(1)
