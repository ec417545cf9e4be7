// internal/math/premium.go
package math

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

// ErrOutOfRange is returned when a derived value does not fit in int64.
// Callers must reject the operation; results are never wrapped or clamped.
var ErrOutOfRange = errors.New("result out of int64 range")

// PremiumRateDivisor converts a stored premium rate into a payout fraction:
// a rate of 500 pays out 5x the covered amount, a rate of 50 pays half.
const PremiumRateDivisor = 100

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with the given rounding.
// A quotient outside the int64 range fails with ErrOutOfRange.
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) (int64, error) {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	if !quotient.IsInt64() {
		err := fmt.Errorf("%w: quotient %s", ErrOutOfRange, quotient.String())
		putInt128(quotient)
		putInt128(remainder)
		return 0, err
	}

	result := quotient.Int64()
	roundUp := roundingMode == RoundUp && remainder.Sign() != 0

	putInt128(quotient)
	putInt128(remainder)

	if roundUp {
		if result == maxInt64 {
			return 0, fmt.Errorf("%w: rounded quotient exceeds int64", ErrOutOfRange)
		}
		result++
	}

	return result, nil
}

const maxInt64 = 1<<63 - 1

type RoundingMode int

const (
	RoundDown RoundingMode = iota // Truncation toward zero (default)
	RoundUp
)

// ComputePayout calculates the claim payout for a covered amount at the
// given premium rate, truncating the quotient:
//
//	payout = floor(amount * rate / 100)
//
// The rate in effect at claim time is used, not the rate at purchase time.
// A payout that does not fit in int64 fails with ErrOutOfRange.
func ComputePayout(amount, premiumRate int64) (int64, error) {
	if amount <= 0 || premiumRate <= 0 {
		return 0, nil
	}

	raw := MultiplyInt128(amount, premiumRate)
	result, err := DivideInt128(raw, PremiumRateDivisor, RoundDown)

	putInt128(raw)

	return result, err
}
