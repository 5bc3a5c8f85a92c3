package exception

import "errors"

// TCP errors
var (
	// ErrInvalidAddressTCP is returned when a port is outside the valid range.
	ErrInvalidAddressTCP = errors.New("tcp: invalid address")

	// ErrNilClientTCP is returned when a nil client receiver is used.
	ErrNilClientTCP = errors.New("tcp: nil client")
)
