package exception

import "errors"

var (
	ErrMalformedMessage   = errors.New("protocol: malformed message")
	ErrUnknownMessageType = errors.New("protocol: unknown message type")
	ErrUnexpectedMessage  = errors.New("protocol: unexpected message")
)
