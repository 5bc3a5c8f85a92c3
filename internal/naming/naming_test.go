package naming

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockex/internal/obs"
	"stockex/internal/ops"
	"stockex/internal/protocol"
	"stockex/internal/protocol/memnet"
)

type cluster struct {
	t     *testing.T
	net   *memnet.Network
	nodes map[string]*Node
}

func newCluster(t *testing.T, instances ...string) *cluster {
	c := &cluster{t: t, net: memnet.New(), nodes: make(map[string]*Node)}
	for _, name := range instances {
		c.start(name)
	}
	return c
}

func (c *cluster) start(instance string) *Node {
	region := strings.TrimSuffix(instance, backupSuffix)
	node, err := New(Config{
		Region:  region,
		Backup:  region != instance,
		DataDir: c.t.TempDir(),
	}, ops.Default(), c.net, obs.NewMetrics("naming", instance))
	require.NoError(c.t, err)
	c.net.Listen(node.Address(), NewServer(node).ServeConn)
	c.nodes[instance] = node
	return node
}

func (c *cluster) register(instance, exchange string, addr protocol.Address, securities ...string) {
	c.nodes[instance].Register(exchange, addr, securities)
}

func entryOf(n *Node, exchange string) (Entry, bool) {
	for _, e := range n.Entries() {
		if e.Exchange == exchange {
			return e, true
		}
	}
	return Entry{}, false
}

func TestResolveLocal(t *testing.T) {
	c := newCluster(t, "Asia")
	c.register("Asia", "Tokyo", 10014, "Sony", "Toyota")

	resp := c.nodes["Asia"].Resolve("Sony", 0)
	assert.Equal(t, protocol.Address(10014), resp.ExchangeAddress)
	assert.Equal(t, "Tokyo", resp.ExchangeName)
	assert.Equal(t, 0, c.net.Dials(2222))
}

func TestResolveAlongChainCaches(t *testing.T) {
	c := newCluster(t, "Asia", "Africa", "Europe", "America")
	c.register("America", "NewYorkStockExchange", 10008, "ExxonMobil")

	resp := c.nodes["Asia"].Resolve("ExxonMobil", 0)
	require.True(t, resp.Found())
	assert.Equal(t, protocol.Address(10008), resp.ExchangeAddress)

	for _, name := range []string{"Asia", "Africa", "Europe"} {
		e, ok := entryOf(c.nodes[name], "NewYorkStockExchange")
		require.True(t, ok, name)
		assert.False(t, e.Authoritative, name)
		assert.Equal(t, []string{"ExxonMobil"}, e.Securities, name)
	}

	again := c.nodes["Asia"].Resolve("ExxonMobil", 0)
	assert.Equal(t, resp, again)
	assert.Equal(t, 1, c.net.Dials(2222))
}

func TestResolveLeftThenRight(t *testing.T) {
	c := newCluster(t, "Asia", "Africa", "Europe", "America")
	c.register("Asia", "Tokyo", 10014, "Sony")
	c.register("America", "Toronto", 10015, "Shopify")

	left := c.nodes["Europe"].Resolve("Sony", 0)
	assert.Equal(t, protocol.Address(10014), left.ExchangeAddress)
	assert.Equal(t, 0, c.net.Dials(4444))

	right := c.nodes["Europe"].Resolve("Shopify", 0)
	assert.Equal(t, protocol.Address(10015), right.ExchangeAddress)
	assert.Equal(t, 2, c.net.Dials(2222))
	assert.Equal(t, 1, c.net.Dials(4444))
}

func TestResolveNotFound(t *testing.T) {
	c := newCluster(t, "Asia", "Africa", "Europe", "America")

	resp := c.nodes["Africa"].Resolve("Nothing", 0)
	assert.False(t, resp.Found())
	assert.Equal(t, protocol.NoAddress, resp.ExchangeAddress)
	assert.Empty(t, c.nodes["Africa"].Entries())
}

func TestRelayStopsAtChainEnd(t *testing.T) {
	c := newCluster(t, "Asia", "Africa")
	c.register("Africa", "Johannesburg", 10005, "Naspers")

	// relayed from the right, Asia has nothing further left
	resp := c.nodes["Asia"].Resolve("Unknown", 2222)
	assert.False(t, resp.Found())
	assert.Equal(t, 0, c.net.Dials(2222))
}

func TestFailoverRepointsToBackup(t *testing.T) {
	c := newCluster(t, "Asia", "AfricaBackup", "Europe")
	c.register("Europe", "London", 10007, "BPPLC", "SkyPLC")

	resp := c.nodes["Asia"].Resolve("BPPLC", 0)
	require.True(t, resp.Found())
	assert.Equal(t, protocol.Address(10007), resp.ExchangeAddress)
	assert.Equal(t, protocol.Address(2223), c.nodes["Asia"].NeighborAddress("right"))

	resp = c.nodes["Asia"].Resolve("SkyPLC", 0)
	require.True(t, resp.Found())
	assert.Equal(t, 1, c.net.Dials(2222))
	assert.Equal(t, 2, c.net.Dials(2223))

	// The repoint is permanent even after the primary comes back.
	c.start("Africa")
	c.register("Europe", "Frankfurt", 10003, "DeutscheBank")
	resp = c.nodes["Asia"].Resolve("DeutscheBank", 0)
	require.True(t, resp.Found())
	assert.Equal(t, 1, c.net.Dials(2222))
}

func TestFailoverBothDown(t *testing.T) {
	c := newCluster(t, "Asia")

	resp := c.nodes["Asia"].Resolve("BPPLC", 0)
	assert.False(t, resp.Found())
	assert.Equal(t, protocol.Address(2223), c.nodes["Asia"].NeighborAddress("right"))

	c.nodes["Asia"].Resolve("BPPLC", 0)
	assert.Equal(t, 1, c.net.Dials(2222))
	assert.Equal(t, 2, c.net.Dials(2223))
}

func TestCacheKeepsAuthoritative(t *testing.T) {
	c := newCluster(t, "Asia")
	node := c.nodes["Asia"]
	node.Register("Tokyo", 10014, []string{"Sony"})

	node.cache("Honda", protocol.ResolveResponse{ExchangeAddress: 10999, ExchangeName: "Tokyo"})

	e, ok := entryOf(node, "Tokyo")
	require.True(t, ok)
	assert.True(t, e.Authoritative)
	assert.Equal(t, protocol.Address(10014), e.Address)
	assert.Equal(t, []string{"Sony"}, e.Securities)

	node.cache("Honda", protocol.ResolveResponse{ExchangeAddress: 10998, ExchangeName: "Osaka"})
	node.cache("Nissan", protocol.ResolveResponse{ExchangeAddress: 10998, ExchangeName: "Osaka"})
	e, ok = entryOf(node, "Osaka")
	require.True(t, ok)
	assert.Equal(t, []string{"Honda", "Nissan"}, e.Securities)

	node.cache("Mazda", protocol.ResolveResponse{ExchangeAddress: 10997, ExchangeName: "Osaka"})
	e, _ = entryOf(node, "Osaka")
	assert.Equal(t, protocol.Address(10997), e.Address)
	assert.Equal(t, []string{"Mazda"}, e.Securities)
}

func TestRegisterOverwrites(t *testing.T) {
	c := newCluster(t, "Asia")
	node := c.nodes["Asia"]
	node.Register("Tokyo", 10014, []string{"Sony"})
	node.Register("Tokyo", 10014, []string{"Sony"})
	node.Register("Tokyo", 10020, []string{"Sony", "Honda"})

	entries := node.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, protocol.Address(10020), entries[0].Address)
	assert.Equal(t, []string{"Honda", "Sony"}, entries[0].Securities)
}

func TestNotifyEvictsOnlyMatchingAddress(t *testing.T) {
	c := newCluster(t, "Asia")
	node := c.nodes["Asia"]
	node.Register("Tokyo", 10014, []string{"Sony"})

	node.Notify(protocol.Notify{Src: protocol.SourceExchange, DownAddress: 10020, SecurityName: "Sony"})
	_, ok := entryOf(node, "Tokyo")
	assert.True(t, ok)

	node.Notify(protocol.Notify{Src: protocol.SourceExchange, DownAddress: 10014, SecurityName: "Sony"})
	_, ok = entryOf(node, "Tokyo")
	assert.False(t, ok)
	assert.False(t, node.Resolve("Sony", 0).Found())
}

func TestNotifyLeavesCachedEntryAtOtherAddress(t *testing.T) {
	c := newCluster(t, "Asia", "Africa", "Europe", "America")
	c.register("America", "Toronto", 10015, "Shopify")
	require.True(t, c.nodes["Asia"].Resolve("Shopify", 0).Found())

	cached, ok := entryOf(c.nodes["Asia"], "Toronto")
	require.True(t, ok)
	require.False(t, cached.Authoritative)

	c.nodes["Asia"].Notify(protocol.Notify{Src: protocol.SourceExchange, DownAddress: 10099, SecurityName: "Shopify"})
	e, ok := entryOf(c.nodes["Asia"], "Toronto")
	require.True(t, ok)
	assert.Equal(t, protocol.Address(10015), e.Address)
	assert.Equal(t, protocol.Address(10015), c.nodes["Asia"].Resolve("Shopify", 0).ExchangeAddress)
	_, ok = entryOf(c.nodes["America"], "Toronto")
	assert.True(t, ok)

	c.nodes["Asia"].Notify(protocol.Notify{Src: protocol.SourceExchange, DownAddress: 10015, SecurityName: "Shopify"})
	_, ok = entryOf(c.nodes["Asia"], "Toronto")
	assert.False(t, ok)
}

func TestNotifyPropagates(t *testing.T) {
	c := newCluster(t, "Asia", "Africa", "Europe", "America")
	c.register("America", "Toronto", 10015, "Shopify")
	require.True(t, c.nodes["Asia"].Resolve("Shopify", 0).Found())

	c.nodes["Europe"].Notify(protocol.Notify{Src: protocol.SourceExchange, DownAddress: 10015, SecurityName: "Shopify"})

	for _, name := range []string{"Asia", "Africa", "Europe", "America"} {
		node := c.nodes[name]
		assert.Eventually(t, func() bool {
			_, ok := entryOf(node, "Toronto")
			return !ok
		}, time.Second, 5*time.Millisecond, name)
	}
}

func TestServerProtocol(t *testing.T) {
	c := newCluster(t, "Asia")

	conn, err := c.net.Dial(1111)
	require.NoError(t, err)
	pc := protocol.NewConn(conn)
	ack, err := protocol.Call[protocol.RegistrationAck](pc, protocol.Registration{ExchangeName: "Tokyo", Address: 10014, SecuritySet: []string{"Sony"}})
	require.NoError(t, err)
	assert.Equal(t, c.nodes["Asia"].StartTime(), ack.StartTime)
	_ = pc.Close()

	conn, err = c.net.Dial(1111)
	require.NoError(t, err)
	pc = protocol.NewConn(conn)
	resp, err := protocol.Call[protocol.ResolveResponse](pc, protocol.ResolveRequest{Src: protocol.SourceExchange, SecurityName: "Sony"})
	require.NoError(t, err)
	assert.Equal(t, protocol.Address(10014), resp.ExchangeAddress)
	_ = pc.Close()

	conn, err = c.net.Dial(1111)
	require.NoError(t, err)
	_, err = conn.Write([]byte("{\"type\":\"resolve\",\"src\":\"moon\",\"securityName\":\"Sony\"}\n"))
	require.NoError(t, err)
	_, err = protocol.Expect[protocol.ResolveResponse](protocol.NewConn(conn))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported src")
	_ = conn.Close()
}

func TestStartTimePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Asia.start")
	now := time.UnixMilli(1_700_000_000_000)

	first, err := LoadStartTime(path, now, 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_020_000), first)

	second, err := LoadStartTime(path, now.Add(time.Hour), 20*time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConfig(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Equal(t, "EuropeBackup", Config{Region: "Europe", Backup: true}.InstanceName())

	_, err := New(Config{Region: "Atlantis", DataDir: t.TempDir()}, ops.Default(), memnet.New(), nil)
	assert.Error(t, err)

	_, err = New(Config{Region: "Asia", DataDir: t.TempDir()}, ops.Default(), nil, nil)
	assert.Error(t, err)
}

var _ protocol.Dialer = (*memnet.Network)(nil)
