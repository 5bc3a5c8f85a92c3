package protocol

import (
	"errors"

	"stockex/pkg/exception"
)

// ProtocolError reports a message that could not be decoded or validated.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil && e.Err != exception.ErrMalformedMessage {
		return exception.ErrMalformedMessage.Error() + ": " + e.Reason + ", err: " + e.Err.Error()
	}
	return exception.ErrMalformedMessage.Error() + ": " + e.Reason
}

func (e *ProtocolError) Unwrap() []error {
	if e.Err == nil || e.Err == exception.ErrMalformedMessage {
		return []error{exception.ErrMalformedMessage}
	}
	return []error{exception.ErrMalformedMessage, e.Err}
}

// IsProtocolError reports whether err came from decoding or validation.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

func malformed(reason string) error {
	return &ProtocolError{Reason: reason}
}

func malformedErr(reason string, err error) error {
	return &ProtocolError{Reason: reason, Err: err}
}
