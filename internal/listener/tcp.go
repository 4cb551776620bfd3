package listener

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telhawk-systems/logflow/internal/metrics"
)

// maxTCPRecordSize is the wire limit for one TCP-delimited line (§6).
const maxTCPRecordSize = 1 << 20

// tcpIdleTimeout is the inactivity window after which a TCP connection may
// be closed (§4.1: "≥60s").
const tcpIdleTimeout = 90 * time.Second

// tcpEndpoint accepts TCP connections, binds each to a source by peer IP
// at accept time, and reads a line-delimited (LF, CRLF-tolerant) stream.
type tcpEndpoint struct {
	port     int
	listener net.Listener
	logger   *slog.Logger
	enq      Enqueuer

	routing atomic.Pointer[routingTable]

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func newTCPEndpoint(port int, enq Enqueuer, logger *slog.Logger) *tcpEndpoint {
	e := &tcpEndpoint{port: port, enq: enq, logger: logger, conns: map[net.Conn]struct{}{}}
	empty := routingTable{}
	e.routing.Store(&empty)
	return e
}

func (e *tcpEndpoint) Start() error {
	ln, err := net.Listen("tcp", netAddr(e.port))
	if err != nil {
		return err
	}
	e.listener = ln
	go e.acceptLoop()
	return nil
}

func netAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func (e *tcpEndpoint) acceptLoop() {
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			e.logger.Warn("tcp accept error", slog.Int("port", e.port), slog.Any("error", err))
			continue
		}

		host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
		if err != nil {
			_ = conn.Close()
			continue
		}
		table := *e.routing.Load()
		sourceID, ok := table[host]
		if !ok {
			_ = conn.Close()
			continue
		}

		e.mu.Lock()
		e.conns[conn] = struct{}{}
		e.mu.Unlock()

		go e.serveConn(conn, sourceID)
	}
}

func (e *tcpEndpoint) serveConn(conn net.Conn, sourceID string) {
	defer func() {
		e.mu.Lock()
		delete(e.conns, conn)
		e.mu.Unlock()
		_ = conn.Close()
	}()

	reader := bufio.NewReaderSize(conn, 64*1024)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(tcpIdleTimeout))
		line, err := readLine(reader, maxTCPRecordSize)
		if err != nil {
			if !errors.Is(err, errLineTooLong) {
				return
			}
			e.logger.Warn("tcp record too large, dropping connection", slog.Int("port", e.port))
			return
		}
		if len(line) == 0 {
			continue
		}
		if !e.enq.Enqueue(sourceID, line, time.Now()) {
			metrics.EventsDroppedQueueFull.WithLabelValues(sourceID).Inc()
		}
	}
}

var errLineTooLong = errors.New("tcp: record exceeds max size")

// readLine reads up to the next LF, trimming a trailing CR (CRLF
// tolerance), and enforces a maximum line length.
func readLine(r *bufio.Reader, maxLen int) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) > maxLen {
		return nil, errLineTooLong
	}
	line = line[:len(line)-1] // drop trailing \n
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	out := make([]byte, len(line))
	copy(out, line)
	return out, nil
}

func (e *tcpEndpoint) UpdateRouting(table routingTable) {
	e.routing.Store(&table)
}

func (e *tcpEndpoint) Close() error {
	if e.listener != nil {
		_ = e.listener.Close()
	}
	e.mu.Lock()
	conns := make([]net.Conn, 0, len(e.conns))
	for c := range e.conns {
		conns = append(conns, c)
	}
	e.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}
