package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	src := &Source{Folder: &FolderTarget{Compression: CompressionGzip}}
	src.ApplyDefaults()

	assert.Equal(t, DefaultQueueLimit, src.QueueLimit)
	assert.Equal(t, DefaultMaxWorkers, src.MaxWorkers)
	assert.Equal(t, 6, src.Folder.GzipLevel)
}

func TestApplyDefaults_DoesNotOverrideSetValues(t *testing.T) {
	src := &Source{QueueLimit: 500, MaxWorkers: 2}
	src.ApplyDefaults()

	assert.Equal(t, 500, src.QueueLimit)
	assert.Equal(t, 2, src.MaxWorkers)
}

func TestQueueCapacity(t *testing.T) {
	src := &Source{QueueLimit: 100}
	assert.Equal(t, 400, src.QueueCapacity())
}

func validFolderSource() *Source {
	return &Source{
		ID:         "src-1",
		Name:       "app-logs",
		SourceIPs:  []string{"10.0.0.1"},
		Port:       514,
		Protocol:   ProtocolUDP,
		TargetType: TargetFolder,
		Folder:     &FolderTarget{Path: "/data/app-logs", BatchSize: 100, Compression: CompressionNone},
	}
}

func TestValidate_ValidFolderSource(t *testing.T) {
	require.NoError(t, validFolderSource().Validate())
}

func TestValidate_ValidHECSource(t *testing.T) {
	src := validFolderSource()
	src.TargetType = TargetHEC
	src.Folder = nil
	src.HEC = &HECTarget{URL: "https://hec.example.com:8088", Token: "tok", BatchSize: 50}
	require.NoError(t, src.Validate())
}

func TestValidate_RejectsMissingFields(t *testing.T) {
	cases := map[string]func(*Source){
		"empty id":           func(s *Source) { s.ID = "" },
		"empty name":         func(s *Source) { s.Name = "" },
		"empty source_ips":   func(s *Source) { s.SourceIPs = nil },
		"port out of range":  func(s *Source) { s.Port = 70000 },
		"unknown protocol":   func(s *Source) { s.Protocol = "sctp" },
		"missing folder cfg": func(s *Source) { s.Folder = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			src := validFolderSource()
			mutate(src)
			assert.Error(t, src.Validate())
		})
	}
}

func TestValidate_GzipRequiresLevel(t *testing.T) {
	src := validFolderSource()
	src.Folder.Compression = CompressionGzip
	src.Folder.GzipLevel = 0
	assert.Error(t, src.Validate())

	src.Folder.GzipLevel = 9
	assert.NoError(t, src.Validate())
}

func TestConflictKeys(t *testing.T) {
	src := &Source{Protocol: ProtocolTCP, Port: 601, SourceIPs: []string{"10.0.0.1", "10.0.0.2"}}
	keys := src.ConflictKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, ConflictKey{Protocol: ProtocolTCP, Port: 601, IP: "10.0.0.1"}, keys[0])
	assert.Equal(t, ConflictKey{Protocol: ProtocolTCP, Port: 601, IP: "10.0.0.2"}, keys[1])
}
