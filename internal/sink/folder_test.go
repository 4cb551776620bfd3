package sink

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/logflow/internal/model"
)

func TestFolder_Deliver_PlainNDJSONRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := NewFolder(fs, "app-logs", model.FolderTarget{Path: "/data/app-logs", Compression: model.CompressionNone})
	require.NoError(t, err)

	batch := []model.CanonicalLog{
		model.NewCanonicalLog("app-logs", "first", time.Unix(1700000000, 0)),
		model.NewCanonicalLog("app-logs", "second", time.Unix(1700000000, 0)),
	}
	require.NoError(t, f.Deliver(context.Background(), batch))

	files, err := afero.ReadDir(fs, "/data/app-logs")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.False(t, strings.HasSuffix(files[0].Name(), ".tmp"))

	data, err := afero.ReadFile(fs, "/data/app-logs/"+files[0].Name())
	require.NoError(t, err)

	lines := strings.Split(string(data), "\n")
	require.Len(t, lines, 2)

	var log model.CanonicalLog
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &log))
	assert.Equal(t, "first", log.Event)
}

func TestFolder_Deliver_GzipRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := NewFolder(fs, "app-logs", model.FolderTarget{Path: "/data/app-logs", Compression: model.CompressionGzip, GzipLevel: 6})
	require.NoError(t, err)

	batch := []model.CanonicalLog{model.NewCanonicalLog("app-logs", "hello", time.Unix(1700000000, 0))}
	require.NoError(t, f.Deliver(context.Background(), batch))

	files, err := afero.ReadDir(fs, "/data/app-logs")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Name(), ".gz"))

	raw, err := afero.ReadFile(fs, "/data/app-logs/"+files[0].Name())
	require.NoError(t, err)

	r, err := gzip.NewReader(strings.NewReader(string(raw)))
	require.NoError(t, err)
	defer r.Close()

	var decoded model.CanonicalLog
	require.NoError(t, json.NewDecoder(r).Decode(&decoded))
	assert.Equal(t, "hello", decoded.Event)
}

func TestFolder_Deliver_EmptyBatchIsNoOp(t *testing.T) {
	fs := afero.NewMemMapFs()
	f, err := NewFolder(fs, "app-logs", model.FolderTarget{Path: "/data/app-logs"})
	require.NoError(t, err)

	require.NoError(t, f.Deliver(context.Background(), nil))
	files, err := afero.ReadDir(fs, "/data/app-logs")
	require.NoError(t, err)
	assert.Len(t, files, 0)
}
