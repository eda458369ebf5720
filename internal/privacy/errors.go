package privacy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMatcher is returned for matching expressions that are
	// empty, too long, fail to compile or match the empty string.
	ErrInvalidMatcher = errors.New("invalid matcher")
	// ErrInvalidLabel is returned for labels that cannot appear inside a
	// placeholder.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrInvalidKey is returned for empty rule keys.
	ErrInvalidKey = errors.New("invalid rule key")
	// ErrUnknownRule is returned when a rule key is not registered.
	ErrUnknownRule = errors.New("unknown rule")
)

// PatternError reports a rejected pattern registration. The registry is
// left unchanged whenever one is returned.
type PatternError struct {
	Key string
	Err error
}

// Error implements error.
func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %q: %v", e.Key, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}
