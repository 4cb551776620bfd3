package listener

import (
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/telhawk-systems/logflow/internal/metrics"
)

// maxUDPRecordSize is the wire limit for one UDP datagram (§6).
const maxUDPRecordSize = 65507

// udpEndpoint demultiplexes UDP datagrams by peer IP to a source queue.
type udpEndpoint struct {
	port   int
	conn   *net.UDPConn
	logger *slog.Logger
	enq    Enqueuer

	routing atomic.Pointer[routingTable]

	dropped atomic.Int64
}

func newUDPEndpoint(port int, enq Enqueuer, logger *slog.Logger) *udpEndpoint {
	e := &udpEndpoint{port: port, enq: enq, logger: logger}
	empty := routingTable{}
	e.routing.Store(&empty)
	return e
}

func (e *udpEndpoint) Start() error {
	addr := &net.UDPAddr{Port: e.port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	e.conn = conn
	go e.serve()
	return nil
}

func (e *udpEndpoint) serve() {
	buf := make([]byte, maxUDPRecordSize)
	for {
		n, peer, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			e.logger.Warn("udp read error", slog.Int("port", e.port), slog.Any("error", err))
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])

		table := *e.routing.Load()
		sourceID, ok := table[peer.IP.String()]
		if !ok {
			e.dropped.Add(1)
			continue
		}
		if !e.enq.Enqueue(sourceID, payload, time.Now()) {
			metrics.EventsDroppedQueueFull.WithLabelValues(sourceID).Inc()
		}
	}
}

func (e *udpEndpoint) UpdateRouting(table routingTable) {
	e.routing.Store(&table)
}

func (e *udpEndpoint) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}
