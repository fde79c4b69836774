// Package kernel holds the default computation run by dispatch units.
package kernel

import (
	"context"
	"fmt"
	"math/big"
	"math/bits"
)

// Fibonacci computes F(n) by fast doubling:
//
//	F(2k)   = F(k) * (2*F(k+1) - F(k))
//	F(2k+1) = F(k)^2 + F(k+1)^2
//
// It walks the bits of n from the most significant one, so the work is
// O(log n) big multiplications.
type Fibonacci struct{}

func New() Fibonacci { return Fibonacci{} }

// Compute returns F(n) in base 10. ctx is checked between doubling steps.
func (Fibonacci) Compute(ctx context.Context, n int64) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("fibonacci: negative input %d", n)
	}

	a, b := big.NewInt(0), big.NewInt(1) // F(k), F(k+1)
	c, d, t := new(big.Int), new(big.Int), new(big.Int)

	for i := bits.Len64(uint64(n)) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// c = a * (2b - a)
		t.Lsh(b, 1)
		t.Sub(t, a)
		c.Mul(a, t)

		// d = a^2 + b^2
		d.Mul(a, a)
		t.Mul(b, b)
		d.Add(d, t)

		if n>>uint(i)&1 == 1 {
			a.Set(d)
			b.Add(c, d)
		} else {
			a.Set(c)
			b.Set(d)
		}
	}
	return a.String(), nil
}
