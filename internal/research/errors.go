package research

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuestion is returned by Run for a blank question or bad bounds.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrCanceled is returned when the run's context is done.
	ErrCanceled = errors.New("research canceled")
)

// Capability names used in CapabilityError.
const (
	CapQueryGeneration = "query generation"
	CapReflection      = "reflection"
	CapAnswerSynthesis = "answer synthesis"
)

// CapabilityError reports a failed language model call. Err is the model's
// error as returned.
type CapabilityError struct {
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// StructuredDecodeError reports a structured completion that does not match
// its schema.
type StructuredDecodeError struct {
	Raw string
	Err error
}

func (e *StructuredDecodeError) Error() string {
	return fmt.Sprintf("structured decode: %v", e.Err)
}

func (e *StructuredDecodeError) Unwrap() error { return e.Err }

func canceled(cause error) error {
	return errors.Join(ErrCanceled, cause)
}
