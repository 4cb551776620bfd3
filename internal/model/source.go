// Package model defines the data types shared across the ingest pipeline:
// sources, learned templates, aggregation/filter policy, and the
// canonical log record produced before delivery.
package model

import "fmt"

// Protocol is the transport a Source listens on.
type Protocol string

const (
	ProtocolUDP Protocol = "udp"
	ProtocolTCP Protocol = "tcp"
)

// TargetType selects which Sink Adapter a Source delivers to.
type TargetType string

const (
	TargetFolder TargetType = "folder"
	TargetHEC    TargetType = "hec"
)

// Compression selects the Folder sink's on-disk encoding.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
)

// FolderTarget configures the Folder sink.
type FolderTarget struct {
	Path        string      `json:"path"`
	BatchSize   int         `json:"batch_size"`
	Compression Compression `json:"compression"`
	GzipLevel   int         `json:"gzip_level,omitempty"` // 1-9, only when Compression == gzip
}

// HECTarget configures the HTTP Event Collector sink.
type HECTarget struct {
	URL        string `json:"url"`
	Token      string `json:"token"`
	BatchSize  int    `json:"batch_size"`
	VerifyTLS  bool   `json:"verify_tls"`
}

// Source is the immutable, atomically-replaced configuration unit for one
// ingest endpoint. Edits replace the whole value; nothing is mutated
// in place.
type Source struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	SourceIPs  []string     `json:"source_ips"`
	Port       int          `json:"port"`
	Protocol   Protocol     `json:"protocol"`
	TargetType TargetType   `json:"target_type"`
	Folder     *FolderTarget `json:"folder,omitempty"`
	HEC        *HECTarget    `json:"hec,omitempty"`
	QueueLimit int          `json:"queue_limit"`
	MaxWorkers int          `json:"max_workers"`
}

// Defaults applied when a field is left at its zero value.
const (
	DefaultQueueLimit = 10000
	DefaultMaxWorkers = 8
	QueueCapFactor    = 4
)

// ApplyDefaults fills in zero-valued fields with the documented defaults.
func (s *Source) ApplyDefaults() {
	if s.QueueLimit <= 0 {
		s.QueueLimit = DefaultQueueLimit
	}
	if s.MaxWorkers <= 0 {
		s.MaxWorkers = DefaultMaxWorkers
	}
	if s.Folder != nil && s.Folder.Compression == CompressionGzip && s.Folder.GzipLevel == 0 {
		s.Folder.GzipLevel = 6
	}
}

// QueueCapacity returns the bounded channel capacity for this source's
// ingest queue: 4x queue_limit per spec.
func (s *Source) QueueCapacity() int {
	return s.QueueLimit * QueueCapFactor
}

// Validate checks the per-source invariants from §3 that do not depend on
// other sources (port range, non-empty IP set, batch sizes, etc). Cross-
// source uniqueness is checked by the Configuration Store.
func (s *Source) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("source: id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("source %s: name is required", s.ID)
	}
	if len(s.SourceIPs) == 0 {
		return fmt.Errorf("source %s: source_ips must be non-empty", s.ID)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("source %s: port %d out of range 1-65535", s.ID, s.Port)
	}
	switch s.Protocol {
	case ProtocolUDP, ProtocolTCP:
	default:
		return fmt.Errorf("source %s: protocol must be udp or tcp, got %q", s.ID, s.Protocol)
	}
	switch s.TargetType {
	case TargetFolder:
		if s.Folder == nil {
			return fmt.Errorf("source %s: target_type folder requires folder config", s.ID)
		}
		if s.Folder.BatchSize < 1 {
			return fmt.Errorf("source %s: folder batch_size must be >= 1", s.ID)
		}
		switch s.Folder.Compression {
		case CompressionNone:
		case CompressionGzip:
			if s.Folder.GzipLevel < 1 || s.Folder.GzipLevel > 9 {
				return fmt.Errorf("source %s: gzip level must be 1-9", s.ID)
			}
		default:
			return fmt.Errorf("source %s: unknown compression %q", s.ID, s.Folder.Compression)
		}
	case TargetHEC:
		if s.HEC == nil {
			return fmt.Errorf("source %s: target_type hec requires hec config", s.ID)
		}
		if s.HEC.URL == "" {
			return fmt.Errorf("source %s: hec url is required", s.ID)
		}
		if s.HEC.BatchSize < 1 {
			return fmt.Errorf("source %s: hec batch_size must be >= 1", s.ID)
		}
	default:
		return fmt.Errorf("source %s: unknown target_type %q", s.ID, s.TargetType)
	}
	return nil
}

// EndpointKey identifies a listening endpoint shared by one or more
// sources.
type EndpointKey struct {
	Protocol Protocol
	Port     int
}

// ConflictKey identifies the (port, protocol, source_ip) tuple that must be
// unique across all sources.
type ConflictKey struct {
	Protocol Protocol
	Port     int
	IP       string
}

// ConflictKeys returns every (port, protocol, ip) tuple this source claims,
// for uniqueness checking against the rest of the source set.
func (s *Source) ConflictKeys() []ConflictKey {
	keys := make([]ConflictKey, 0, len(s.SourceIPs))
	for _, ip := range s.SourceIPs {
		keys = append(keys, ConflictKey{Protocol: s.Protocol, Port: s.Port, IP: ip})
	}
	return keys
}
