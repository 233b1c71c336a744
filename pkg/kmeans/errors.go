package kmeans

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a session is set up with a
	// k outside [1, number of observations].
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrDimensionMismatch is returned when observations do not share the
	// dimensionality of the session.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNonFinite is returned for observations holding NaN or Inf.
	ErrNonFinite = errors.New("non-finite observation")
)

// ConfigError describes an InvalidConfiguration failure. It matches
// ErrInvalidConfiguration with errors.Is.
type ConfigError struct {
	K int
	N int
}

func (e *ConfigError) Error() string {
	if e.K < 1 {
		return fmt.Sprintf("%v: k must be at least 1, got %d", ErrInvalidConfiguration, e.K)
	}
	return fmt.Sprintf("%v: k=%d exceeds the number of observations (%d)",
		ErrInvalidConfiguration, e.K, e.N)
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfiguration }

// DimensionError points at the first observation with a bad length. It
// matches ErrDimensionMismatch with errors.Is.
type DimensionError struct {
	Expected int
	Actual   int
	// Index of the offending observation in the slice that was checked.
	Index int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%v: observation %d has %d values, expected %d",
		ErrDimensionMismatch, e.Index, e.Actual, e.Expected)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// ValueError points at the first observation holding NaN or Inf. It matches
// ErrNonFinite with errors.Is.
type ValueError struct {
	Index int
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%v: observation %d holds NaN or Inf", ErrNonFinite, e.Index)
}

func (e *ValueError) Is(target error) bool { return target == ErrNonFinite }
