package listener

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/logflow/internal/model"
)

func udpSource(id string, port int, ip string) *model.Source {
	return &model.Source{
		ID: id, Name: id, Port: port, Protocol: model.ProtocolUDP, SourceIPs: []string{ip},
		TargetType: model.TargetFolder,
		Folder:     &model.FolderTarget{Path: "/data/" + id, BatchSize: 1},
	}
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestMultiplexer_ReloadSources_BringsUpAndTearsDownEndpoints(t *testing.T) {
	enq := &recordingEnqueuer{}
	mux := NewMultiplexer(enq, testLogger().Logger)
	defer mux.Close()

	port := freeUDPPort(t)
	src := udpSource("src-1", port, "127.0.0.1")

	require.NoError(t, mux.ReloadSources([]*model.Source{src}))
	assert.Len(t, mux.endpoints, 1)

	// Removing the source should close and remove its endpoint.
	require.NoError(t, mux.ReloadSources(nil))
	assert.Len(t, mux.endpoints, 0)
}

func TestMultiplexer_ReloadSources_SharesEndpointAcrossSources(t *testing.T) {
	enq := &recordingEnqueuer{}
	mux := NewMultiplexer(enq, testLogger().Logger)
	defer mux.Close()

	port := freeUDPPort(t)
	srcA := udpSource("src-a", port, "127.0.0.1")
	srcB := udpSource("src-b", port, "10.0.0.9")

	require.NoError(t, mux.ReloadSources([]*model.Source{srcA, srcB}))
	assert.Len(t, mux.endpoints, 1)

	key := model.EndpointKey{Protocol: model.ProtocolUDP, Port: port}
	ep, ok := mux.endpoints[key]
	require.True(t, ok)
	_ = ep
}

func TestMultiplexer_ReloadSources_BindFailureDoesNotStopOtherEndpoints(t *testing.T) {
	enq := &recordingEnqueuer{}
	mux := NewMultiplexer(enq, testLogger().Logger)
	defer mux.Close()

	occupied, err := net.ListenUDP("udp", &net.UDPAddr{})
	require.NoError(t, err)
	defer occupied.Close()
	busyPort := occupied.LocalAddr().(*net.UDPAddr).Port

	freePort := freeUDPPort(t)

	sources := []*model.Source{
		udpSource("busy", busyPort, "127.0.0.1"),
		udpSource("ok", freePort, "127.0.0.1"),
	}

	err = mux.ReloadSources(sources)
	assert.Error(t, err)
	assert.Len(t, mux.endpoints, 1)

	key := model.EndpointKey{Protocol: model.ProtocolUDP, Port: freePort}
	_, ok := mux.endpoints[key]
	assert.True(t, ok)
}
