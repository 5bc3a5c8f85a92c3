package protocol

import "strconv"

// Address is the TCP port a naming node or exchange listens on.
// The zero value means "absent".
type Address int

// NoAddress is the wire value of an unresolved exchange address.
const NoAddress Address = -1

const maxAddress = 65535

// Valid reports whether a is a usable port.
func (a Address) Valid() bool {
	return a > 0 && a <= maxAddress
}

// IsZero reports whether a is absent.
func (a Address) IsZero() bool {
	return a == 0
}

func (a Address) String() string {
	return strconv.Itoa(int(a))
}
