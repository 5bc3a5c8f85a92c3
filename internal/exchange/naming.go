package exchange

import (
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"stockex/internal/protocol"
	"stockex/pkg/exception"
)

// namingClient talks to the region's primary naming node and falls back to
// its backup when the primary refuses connections.
type namingClient struct {
	exchange string
	primary  protocol.Address
	backup   protocol.Address
	dialer   protocol.Dialer
}

// open connects to the primary, else the backup.
func (c *namingClient) open() (*protocol.Conn, protocol.Address, error) {
	conn, err := protocol.Open(c.dialer, c.primary)
	if err == nil {
		return conn, c.primary, nil
	}
	logs.Warnf("%s: naming primary %d unreachable, trying backup %d, err: %+v", c.exchange, c.primary, c.backup, err)
	conn, err = protocol.Open(c.dialer, c.backup)
	if err == nil {
		return conn, c.backup, nil
	}
	logs.Warnf("%s: naming backup %d unreachable, err: %+v", c.exchange, c.backup, err)
	return nil, 0, exception.ErrNamingUnavailable
}

// Register announces the exchange to both the primary and the backup. The
// start time of the primary's ack wins; the backup's is used if the primary
// could not be reached.
func (c *namingClient) Register(reg protocol.Registration) (int64, error) {
	var start int64
	var lastErr error
	for _, addr := range []protocol.Address{c.primary, c.backup} {
		ack, err := c.registerAt(addr, reg)
		if err != nil {
			logs.Warnf("%s: register with naming %d failed, err: %+v", c.exchange, addr, err)
			lastErr = err
			continue
		}
		logs.Infof("%s: registered with naming %d", c.exchange, addr)
		if start == 0 {
			start = ack.StartTime
		}
	}
	if start == 0 {
		return 0, errors.Wrap(lastErr, "register with naming").With("exchange", c.exchange)
	}
	return start, nil
}

func (c *namingClient) registerAt(addr protocol.Address, reg protocol.Registration) (protocol.RegistrationAck, error) {
	conn, err := protocol.Open(c.dialer, addr)
	if err != nil {
		return protocol.RegistrationAck{}, err
	}
	defer conn.Close()
	return protocol.Call[protocol.RegistrationAck](conn, reg)
}

// Resolve asks the naming chain where security is hosted.
func (c *namingClient) Resolve(security string) (protocol.ResolveResponse, error) {
	conn, addr, err := c.open()
	if err != nil {
		return protocol.ResolveResponse{}, err
	}
	defer conn.Close()

	resp, err := protocol.Call[protocol.ResolveResponse](conn, protocol.ResolveRequest{
		Src:          protocol.SourceExchange,
		SecurityName: security,
	})
	if err != nil {
		return protocol.ResolveResponse{}, errors.Wrapf(err, "resolve %s at naming %d", security, addr)
	}
	return resp, nil
}

// Notify reports an unreachable peer. Nothing is read back.
func (c *namingClient) Notify(n protocol.Notify) error {
	conn, addr, err := c.open()
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.WriteMessage(n); err != nil {
		return errors.Wrapf(err, "notify naming %d", addr)
	}
	return nil
}
