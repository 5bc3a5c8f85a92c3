package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/yanun0323/errors"

	"stockex/pkg/exception"
)

const lineDelimiter = '\n'

type envelope struct {
	Type Kind `json:"type"`
}

// Encode serializes m as a single JSON object with a leading "type" field.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, exception.ErrNilInstance
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal message")
	}
	kind, err := json.Marshal(m.Kind())
	if err != nil {
		return nil, errors.Wrap(err, "marshal kind")
	}

	out := make([]byte, 0, len(body)+len(kind)+10)
	out = append(out, `{"type":`...)
	out = append(out, kind...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

// Decode parses one line into its message variant and validates it.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, malformed("empty line")
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, malformedErr("invalid json", err)
	}

	switch env.Type {
	case KindRegistration:
		return decodeAs[Registration](line)
	case KindRegistrationAck:
		return decodeAs[RegistrationAck](line)
	case KindResolve:
		return decodeAs[ResolveRequest](line)
	case KindResolveResponse:
		return decodeAs[ResolveResponse](line)
	case KindNotify:
		return decodeAs[Notify](line)
	case KindOrder:
		return decodeAs[OrderRequest](line)
	case KindOrderResponse:
		return decodeAs[OrderResponse](line)
	case KindError:
		return decodeAs[ErrorResponse](line)
	default:
		return nil, malformedErr(fmt.Sprintf("type %q", env.Type), exception.ErrUnknownMessageType)
	}
}

func decodeAs[T Message](line []byte) (Message, error) {
	var m T
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, malformedErr(string(m.Kind()), err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Conn reads and writes messages on a stream connection.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
}

// NewConn wraps c with the line codec.
func NewConn(c net.Conn) *Conn {
	return &Conn{conn: c, r: bufio.NewReader(c)}
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// ReadMessage blocks until a full line arrives. It returns io.EOF when the
// peer closed the connection between messages.
func (c *Conn) ReadMessage() (Message, error) {
	line, err := c.r.ReadBytes(lineDelimiter)
	if err != nil {
		if err == io.EOF && len(bytes.TrimSpace(line)) > 0 {
			return Decode(line)
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return Decode(line)
}

// WriteMessage writes m followed by a newline.
func (c *Conn) WriteMessage(m Message) error {
	buf, err := Encode(m)
	if err != nil {
		return err
	}
	buf = append(buf, lineDelimiter)
	if _, err := c.conn.Write(buf); err != nil {
		return errors.Wrap(err, "write message")
	}
	return nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Expect reads the next message and requires it to be a T. An ErrorResponse
// from the peer is turned into an error carrying its reason.
func Expect[T Message](c *Conn) (T, error) {
	var zero T
	msg, err := c.ReadMessage()
	if err != nil {
		return zero, err
	}
	if e, ok := msg.(ErrorResponse); ok {
		return zero, errors.Errorf("peer rejected request: %s", e.Reason)
	}
	typed, ok := msg.(T)
	if !ok {
		return zero, malformedErr(fmt.Sprintf("expected %s, got %s", zero.Kind(), msg.Kind()), exception.ErrUnexpectedMessage)
	}
	return typed, nil
}

// Call writes req and waits for a T.
func Call[T Message](c *Conn, req Message) (T, error) {
	var zero T
	if err := c.WriteMessage(req); err != nil {
		return zero, err
	}
	return Expect[T](c)
}
