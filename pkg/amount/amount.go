// Package amount provides checked unsigned 256-bit arithmetic for token
// quantities. All helpers fail with ErrOverflow instead of wrapping, and
// division truncates toward zero.
package amount

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when an arithmetic step exceeds the
	// representable range, including subtraction below zero.
	ErrOverflow = errors.New("amount out of range")

	// ErrInvalidAmount is returned when parsing a malformed decimal string.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidPercentage is returned for percentages outside [0,100].
	ErrInvalidPercentage = errors.New("percentage must be in [0,100]")
)

// Zero returns a fresh zero amount.
func Zero() *uint256.Int {
	return uint256.NewInt(0)
}

// New returns a fresh amount holding v.
func New(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// Clone returns a copy of a, treating nil as zero.
func Clone(a *uint256.Int) *uint256.Int {
	if a == nil {
		return Zero()
	}
	return new(uint256.Int).Set(a)
}

// Add returns a+b or ErrOverflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("add %s + %s: %w", a.Dec(), b.Dec(), ErrOverflow)
	}
	return sum, nil
}

// Sub returns a-b, or ErrOverflow when b > a.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("sub %s - %s: %w", a.Dec(), b.Dec(), ErrOverflow)
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	prod, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("mul %s * %s: %w", a.Dec(), b.Dec(), ErrOverflow)
	}
	return prod, nil
}

// Div returns a/b truncated toward zero. Division by zero is ErrInvalidAmount.
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, fmt.Errorf("division by zero: %w", ErrInvalidAmount)
	}
	return new(uint256.Int).Div(a, b), nil
}

// ValidatePercentage rejects percentages outside [0,100].
func ValidatePercentage(pct uint64) error {
	if pct > 100 {
		return fmt.Errorf("percentage %d: %w", pct, ErrInvalidPercentage)
	}
	return nil
}

// Split divides a into (a*pct/100, remainder). The complement is computed by
// subtraction so the two parts always sum to a exactly.
func Split(a *uint256.Int, pct uint64) (part, complement *uint256.Int, err error) {
	if err := ValidatePercentage(pct); err != nil {
		return nil, nil, err
	}
	scaled, overflow := new(uint256.Int).MulOverflow(a, uint256.NewInt(pct))
	if overflow {
		return nil, nil, fmt.Errorf("split %s at %d%%: %w", a.Dec(), pct, ErrOverflow)
	}
	part = scaled.Div(scaled, uint256.NewInt(100))
	complement = new(uint256.Int).Sub(a, part)
	return part, complement, nil
}

// Parse converts a non-negative decimal string into an amount.
func Parse(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, ErrInvalidAmount)
	}
	return v, nil
}

// String renders a as a decimal string, treating nil as "0".
func String(a *uint256.Int) string {
	if a == nil {
		return "0"
	}
	return a.Dec()
}
