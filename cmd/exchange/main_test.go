package main

import (
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/pkg/tcp"
)

func TestListenBindsBeforeOpen(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	static, err := ops.Build(ops.FileConfig{
		Host:  tcp.DefaultHost,
		Chain: []ops.RegionConfig{{Name: "Loop", Port: port + 10, BackupPort: port + 11}},
		Exchanges: []ops.ExchangeConfig{
			{Name: "Solo", Port: port, Currency: "USD", Rate: decimal.NewFromInt(1), Region: "Loop"},
		},
	})
	require.NoError(t, err)

	server, err := listen(static, "Solo")
	require.NoError(t, err)
	defer server.Close()
	assert.Equal(t, port, server.Port())

	// Nothing accepts yet; the dial still succeeds through the backlog.
	conn, err := protocol.NewTCPDialer(static.Host()).Dial(protocol.Address(port))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	_, err = listen(static, "Nowhere")
	assert.Error(t, err)
}
