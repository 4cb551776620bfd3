package listener

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/logflow/internal/logging"
)

// recordingEnqueuer captures every Enqueue call for assertions.
type recordingEnqueuer struct {
	mu      sync.Mutex
	records []string
}

func (r *recordingEnqueuer) Enqueue(sourceID string, raw []byte, receivedAt time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, sourceID+":"+string(raw))
	return true
}

func (r *recordingEnqueuer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func testLogger() *logging.Logger {
	return logging.New(logging.ParseLevel("error"), "json")
}

func TestUDPEndpoint_RoutesByPeerIPAndDropsUnknown(t *testing.T) {
	enq := &recordingEnqueuer{}
	ep := newUDPEndpoint(0, enq, testLogger().Logger)
	require.NoError(t, ep.Start())
	defer ep.Close()

	port := ep.conn.LocalAddr().(*net.UDPAddr).Port
	ep.UpdateRouting(routingTable{"127.0.0.1": "src-1"})

	conn, err := net.Dial("udp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return enq.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "src-1:hello", enq.records[0])
}

func TestUDPEndpoint_UnroutedPeerIsDropped(t *testing.T) {
	enq := &recordingEnqueuer{}
	ep := newUDPEndpoint(0, enq, testLogger().Logger)
	require.NoError(t, ep.Start())
	defer ep.Close()

	port := ep.conn.LocalAddr().(*net.UDPAddr).Port
	// No routing table entries: every peer is dropped.

	conn, err := net.Dial("udp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("ignored"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, enq.count())
	assert.Equal(t, int64(1), ep.dropped.Load())
}
