package exception

import "github.com/yanun0323/errors"

var (
	ErrNeighborDown      = errors.New("naming: neighbor and its backup unreachable")
	ErrNamingUnavailable = errors.New("naming: primary and backup unreachable")
	ErrPeerUnreachable   = errors.New("exchange: peer unreachable")
)
