package processing

import (
	"errors"
	"fmt"
)

// ValidationError marks a submission that can never succeed, no matter how
// often the bus redelivers it. The consumer drops these and commits the
// offset.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + e.Reason
}

// TransientError marks a failure worth redelivering, typically the store
// being unavailable or throttled. The consumer leaves the offset
// uncommitted so the envelope comes around again.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient processing failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err should be dropped instead of retried.
func IsPermanent(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
