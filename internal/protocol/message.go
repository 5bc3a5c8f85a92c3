package protocol

import (
	"fmt"
	"strings"
)

// Kind tags every message on the wire.
type Kind string

const (
	KindRegistration    Kind = "registration"
	KindRegistrationAck Kind = "registration_ack"
	KindResolve         Kind = "resolve"
	KindResolveResponse Kind = "resolve_response"
	KindNotify          Kind = "notify"
	KindOrder           Kind = "order"
	KindOrderResponse   Kind = "order_response"
	KindError           Kind = "error"
)

// Source identifies who sent a request.
type Source string

const (
	SourceExchange Source = "exchange"
	SourceServer   Source = "server"
	SourceClient   Source = "client"
)

// Action is the side of an order.
type Action string

const (
	ActionBuy  Action = "B"
	ActionSell Action = "S"
)

// Valid reports whether a is Buy or Sell.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// Opposite returns the compensating side.
func (a Action) Opposite() Action {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

func (a Action) Verb() string {
	if a == ActionBuy {
		return "buy"
	}
	return "sell"
}

// Result is the outcome of an order.
type Result string

const (
	ResultSucceeded Result = "Succeeded"
	ResultFailed    Result = "Failed"
)

// Message is implemented by every wire variant.
type Message interface {
	Kind() Kind
	Validate() error
}

// Registration announces an exchange and the securities it hosts.
type Registration struct {
	ExchangeName string   `json:"exchangeName"`
	Address      Address  `json:"address"`
	SecuritySet  []string `json:"securitySet"`
}

// RegistrationAck returns the global start time in unix milliseconds.
type RegistrationAck struct {
	StartTime int64 `json:"startTime"`
}

// ResolveRequest asks for the exchange hosting a security.
// OriginalAddress is set only when a naming node relays the request.
type ResolveRequest struct {
	Src             Source  `json:"src"`
	SecurityName    string  `json:"securityName"`
	OriginalAddress Address `json:"originalAddress,omitempty"`
}

// ResolveResponse carries NoAddress when the security was not found.
type ResolveResponse struct {
	ExchangeAddress Address `json:"exchangeAddress"`
	ExchangeName    string  `json:"exchangeName,omitempty"`
}

// Notify reports an unreachable exchange. Exchanges send the security they
// failed to trade; naming nodes relay the exchange name.
type Notify struct {
	Src             Source  `json:"src"`
	ExchangeName    string  `json:"exchangeName,omitempty"`
	DownAddress     Address `json:"downAddress"`
	SecurityName    string  `json:"securityName,omitempty"`
	OriginalAddress Address `json:"originalAddress,omitempty"`
}

// OrderRequest asks an exchange to buy or sell a security or fund.
type OrderRequest struct {
	Src          Source `json:"src"`
	ClientID     int    `json:"clientId,omitempty"`
	Action       Action `json:"action"`
	SecurityName string `json:"securityName"`
	Qty          int64  `json:"qty"`
}

// OrderResponse answers an OrderRequest.
type OrderResponse struct {
	Action       Action   `json:"action"`
	Qty          int64    `json:"qty"`
	SecurityName string   `json:"securityName"`
	Result       Result   `json:"result"`
	Price        string   `json:"price,omitempty"`
	Filled       []string `json:"filled,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// ErrorResponse is written back when a request cannot be decoded.
type ErrorResponse struct {
	Reason string `json:"reason"`
}

func (Registration) Kind() Kind    { return KindRegistration }
func (RegistrationAck) Kind() Kind { return KindRegistrationAck }
func (ResolveRequest) Kind() Kind  { return KindResolve }
func (ResolveResponse) Kind() Kind { return KindResolveResponse }
func (Notify) Kind() Kind          { return KindNotify }
func (OrderRequest) Kind() Kind    { return KindOrder }
func (OrderResponse) Kind() Kind   { return KindOrderResponse }
func (ErrorResponse) Kind() Kind   { return KindError }

func (m Registration) Validate() error {
	if strings.TrimSpace(m.ExchangeName) == "" {
		return malformed("registration: exchangeName is empty")
	}
	if !m.Address.Valid() {
		return malformed(fmt.Sprintf("registration: invalid address %d", m.Address))
	}
	return nil
}

func (m RegistrationAck) Validate() error {
	if m.StartTime <= 0 {
		return malformed("registration_ack: startTime must be > 0")
	}
	return nil
}

func (m ResolveRequest) Validate() error {
	if m.SecurityName == "" {
		return malformed("resolve: securityName is empty")
	}
	switch m.Src {
	case SourceExchange:
	case SourceServer:
		if !m.OriginalAddress.Valid() {
			return malformed("resolve: relayed request without originalAddress")
		}
	default:
		return malformed(fmt.Sprintf("resolve: unsupported src %q", m.Src))
	}
	return nil
}

func (m ResolveResponse) Validate() error {
	if m.ExchangeAddress == NoAddress {
		return nil
	}
	if !m.ExchangeAddress.Valid() {
		return malformed(fmt.Sprintf("resolve_response: invalid exchangeAddress %d", m.ExchangeAddress))
	}
	if m.ExchangeName == "" {
		return malformed("resolve_response: exchangeName is empty")
	}
	return nil
}

func (m Notify) Validate() error {
	if !m.DownAddress.Valid() {
		return malformed(fmt.Sprintf("notify: invalid downAddress %d", m.DownAddress))
	}
	switch m.Src {
	case SourceExchange:
		if m.SecurityName == "" && m.ExchangeName == "" {
			return malformed("notify: neither securityName nor exchangeName set")
		}
	case SourceServer:
		if !m.OriginalAddress.Valid() {
			return malformed("notify: relayed notification without originalAddress")
		}
	default:
		return malformed(fmt.Sprintf("notify: unsupported src %q", m.Src))
	}
	return nil
}

func (m OrderRequest) Validate() error {
	if m.Src != SourceClient && m.Src != SourceExchange {
		return malformed(fmt.Sprintf("order: unsupported src %q", m.Src))
	}
	if !m.Action.Valid() {
		return malformed(fmt.Sprintf("order: unsupported action %q", m.Action))
	}
	if m.SecurityName == "" {
		return malformed("order: securityName is empty")
	}
	if m.Qty < 0 {
		return malformed("order: qty must be >= 0")
	}
	return nil
}

func (m OrderResponse) Validate() error {
	if m.Result != ResultSucceeded && m.Result != ResultFailed {
		return malformed(fmt.Sprintf("order_response: unsupported result %q", m.Result))
	}
	return nil
}

func (m ErrorResponse) Validate() error {
	return nil
}

// Succeeded reports whether the order was filled.
func (m OrderResponse) Succeeded() bool {
	return m.Result == ResultSucceeded
}

// Found reports whether the response carries an exchange address.
func (m ResolveResponse) Found() bool {
	return m.ExchangeAddress.Valid()
}

// NotFound is the negative resolve answer.
func NotFound() ResolveResponse {
	return ResolveResponse{ExchangeAddress: NoAddress}
}

// Rejected builds a Failed response echoing the request.
func Rejected(req OrderRequest, reason string) OrderResponse {
	return OrderResponse{
		Action:       req.Action,
		Qty:          req.Qty,
		SecurityName: req.SecurityName,
		Result:       ResultFailed,
		Reason:       reason,
	}
}

// Filled builds a Succeeded response echoing the request.
func Filled(req OrderRequest, price string) OrderResponse {
	return OrderResponse{
		Action:       req.Action,
		Qty:          req.Qty,
		SecurityName: req.SecurityName,
		Result:       ResultSucceeded,
		Price:        price,
	}
}
