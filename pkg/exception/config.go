package exception

import "errors"

var (
	ErrConfigUnknownExchange = errors.New("config: unknown exchange")
	ErrConfigUnknownRegion   = errors.New("config: unknown region")
	ErrConfigUnknownFund     = errors.New("config: unknown fund")
)
