// Package bancor evaluates the Bancor power formula at a fixed 512-bit
// binary precision. The exponential and natural log are computed directly
// with argument reduction and series expansion; no float64 appears anywhere
// in the result path, so results are deterministic across platforms.
//
// Precision: every series is summed until terms fall 16 bits below the
// working precision, which bounds the relative error of a full
// purchase/sale/fund-cost evaluation by roughly 2^-480. Integer results are
// floored, so any value with at least 2^-400 of slack from an integer
// boundary is exact.
package bancor

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"

	"github.com/curvelabs/bondcurve/pkg/amount"
)

// prec is the big.Float mantissa width used for all intermediate math.
const prec = 512

// maxExpArg guards the exponential input. e^370 needs ~534 bits, already
// past what a 256-bit result can hold after the final multiply, so larger
// arguments are reported as overflow without evaluating the series.
const maxExpArg = 370

var (
	ln2Once sync.Once
	ln2Val  *big.Float
)

func newFloat() *big.Float {
	return new(big.Float).SetPrec(prec)
}

func floatFromUint256(x *uint256.Int) *big.Float {
	return newFloat().SetInt(x.ToBig())
}

// ln2 is computed once as 2*atanh(1/3).
func ln2() *big.Float {
	ln2Once.Do(func() {
		third := newFloat().Quo(newFloat().SetInt64(1), newFloat().SetInt64(3))
		ln2Val = atanh(third)
		ln2Val.Mul(ln2Val, newFloat().SetInt64(2))
	})
	return ln2Val
}

// negligible reports whether term no longer contributes to sum at the
// working precision.
func negligible(term, sum *big.Float) bool {
	if term.Sign() == 0 {
		return true
	}
	return term.MantExp(nil) < sum.MantExp(nil)-prec-16
}

// atanh sums z + z^3/3 + z^5/5 + ... for |z| < 1.
func atanh(z *big.Float) *big.Float {
	z2 := newFloat().Mul(z, z)
	term := newFloat().Set(z)
	sum := newFloat().Set(z)
	for n := int64(3); ; n += 2 {
		term.Mul(term, z2)
		contrib := newFloat().Quo(term, newFloat().SetInt64(n))
		sum.Add(sum, contrib)
		if negligible(contrib, sum) {
			return sum
		}
	}
}

// ln computes the natural log of x > 0 via x = m*2^k with m in [0.5, 1):
// ln(x) = 2*atanh((m-1)/(m+1)) + k*ln2.
func ln(x *big.Float) *big.Float {
	m := newFloat()
	k := x.MantExp(m)

	one := newFloat().SetInt64(1)
	num := newFloat().Sub(m, one)
	den := newFloat().Add(m, one)
	z := num.Quo(num, den)

	res := atanh(z)
	res.Mul(res, newFloat().SetInt64(2))

	kTerm := newFloat().SetInt64(int64(k))
	res.Add(res, kTerm.Mul(kTerm, ln2()))
	return res
}

// exp computes e^y via y = k*ln2 + r with |r| < ln2, then the Taylor series
// for e^r scaled by 2^k. Callers guard |y| against maxExpArg.
func exp(y *big.Float) *big.Float {
	q := newFloat().Quo(y, ln2())
	k, _ := q.Int64()

	r := newFloat().Mul(newFloat().SetInt64(k), ln2())
	r.Sub(y, r)

	one := newFloat().SetInt64(1)
	term := newFloat().Set(one)
	sum := newFloat().Set(one)
	for n := int64(1); ; n++ {
		term.Mul(term, r)
		term.Quo(term, newFloat().SetInt64(n))
		sum.Add(sum, term)
		if negligible(term, sum) {
			break
		}
	}
	return newFloat().SetMantExp(sum, int(k))
}

// pow computes base^(num/den) for base > 0. A positive overflow of the
// exponent argument surfaces ErrOverflow; a negative underflow returns an
// exact zero, which callers must interpret (the true value is a positive
// number below the working precision).
func pow(base *big.Float, num, den uint64) (*big.Float, error) {
	y := ln(base)
	y.Mul(y, newFloat().SetUint64(num))
	y.Quo(y, newFloat().SetUint64(den))

	bound := newFloat().SetInt64(maxExpArg)
	if y.Cmp(bound) > 0 {
		return nil, fmt.Errorf("power exponent %s exceeds guard %d: %w",
			y.Text('g', 8), maxExpArg, amount.ErrOverflow)
	}
	if y.Cmp(newFloat().Neg(bound)) < 0 {
		return newFloat(), nil
	}
	return exp(y), nil
}

// floorUint256 truncates f toward zero and rejects results past 256 bits.
func floorUint256(f *big.Float) (*uint256.Int, error) {
	i, _ := f.Int(nil)
	if i.Sign() < 0 {
		i.SetInt64(0)
	}
	v, overflow := uint256.FromBig(i)
	if overflow {
		return nil, fmt.Errorf("result needs %d bits: %w", i.BitLen(), amount.ErrOverflow)
	}
	return v, nil
}
