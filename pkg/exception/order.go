package exception

import "errors"

var (
	ErrOrderInsufficientInventory = errors.New("order: insufficient inventory")
	ErrOrderInventoryOverflow     = errors.New("order: inventory would exceed the maximum quantity")
	ErrOrderUnknownSecurity       = errors.New("order: unknown security")
	ErrOrderNoPrice               = errors.New("order: no price for security")
	ErrOrderNotFound              = errors.New("order: security not found in naming chain")
	ErrOrderLogWrite              = errors.New("order: recovery log write failed")
	ErrOrderPeerSourcedFund       = errors.New("order: fund orders are not accepted from peers")
)
