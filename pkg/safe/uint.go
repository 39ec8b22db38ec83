// Package safe provides checked integer narrowing for values crossing the
// RPC boundary.
package safe

import (
	"fmt"
	"math"
)

// Uint32 converts a signed integer to uint32, rejecting negatives and
// overflow.
func Uint32[T ~int | ~int32 | ~int64](v T) (uint32, error) {
	n := int64(v)
	if n < 0 || n > math.MaxUint32 {
		return 0, fmt.Errorf("value %d out of uint32 range", n)
	}
	return uint32(n), nil
}

// Uint64 converts a signed integer to uint64, rejecting negatives.
func Uint64[T ~int | ~int32 | ~int64](v T) (uint64, error) {
	n := int64(v)
	if n < 0 {
		return 0, fmt.Errorf("value %d out of uint64 range", n)
	}
	return uint64(n), nil
}

// Int64 converts an unsigned integer to int64, rejecting overflow. Graph
// parameters are signed, block heights are not.
func Int64[T ~uint | ~uint32 | ~uint64](v T) (int64, error) {
	n := uint64(v)
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("value %d out of int64 range", n)
	}
	return int64(n), nil
}
