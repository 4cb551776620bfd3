// Package listener implements the Listener Multiplexer (§4.1): one
// listening socket per (protocol, port), demultiplexing datagrams or
// connections to a source by peer IP and handing payloads to the
// Processor Pool via the Enqueuer capability.
package listener

import (
	"time"

	"github.com/telhawk-systems/logflow/internal/model"
)

// Enqueuer is the narrow capability the Processor Pool exposes to
// listeners (spec.md §9): accept one raw record for a source, reporting
// whether it was queued.
type Enqueuer interface {
	Enqueue(sourceID string, raw []byte, receivedAt time.Time) bool
}

// routingTable maps a peer IP literal to the source ID it is bound to on
// one endpoint. It is swapped atomically on reload (copy-on-write), never
// mutated in place, so an in-flight lookup never observes a half-updated
// map.
type routingTable map[string]string

func buildRoutingTable(sources []*model.Source, key model.EndpointKey) routingTable {
	table := routingTable{}
	for _, src := range sources {
		if src.Protocol != key.Protocol || src.Port != key.Port {
			continue
		}
		for _, ip := range src.SourceIPs {
			table[ip] = src.ID
		}
	}
	return table
}

// endpoint is one listening (protocol, port) pair.
type endpoint interface {
	Start() error
	Close() error
	UpdateRouting(table routingTable)
}
