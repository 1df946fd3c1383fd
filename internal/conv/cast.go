package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow is wrapped by every error of this package.
var ErrOverflow = errors.New("integer overflow")

// IntToUint32 converts int to uint32 safely.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit uint32", ErrOverflow, v)
	}
	return uint32(v), nil
}

// Uint64ToInt64 converts uint64 to int64 safely.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d does not fit int64", ErrOverflow, v)
	}
	return int64(v), nil
}

// MulInt64 multiplies two non-negative values.
func MulInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("%w: negative operand %d*%d", ErrOverflow, a, b)
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, fmt.Errorf("%w: %d*%d", ErrOverflow, a, b)
	}
	return a * b, nil
}

// AddInt64 adds two non-negative values.
func AddInt64(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("%w: negative operand %d+%d", ErrOverflow, a, b)
	}
	if a > math.MaxInt64-b {
		return 0, fmt.Errorf("%w: %d+%d", ErrOverflow, a, b)
	}
	return a + b, nil
}
