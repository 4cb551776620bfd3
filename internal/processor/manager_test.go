package processor

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/logflow/internal/logging"
	"github.com/telhawk-systems/logflow/internal/model"
	"github.com/telhawk-systems/logflow/internal/store"
	"github.com/telhawk-systems/logflow/internal/template"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	fs := afero.NewMemMapFs()
	confStore, err := store.New(fs, "/data")
	require.NoError(t, err)
	tmplStore, err := template.NewStore(fs, "/data")
	require.NoError(t, err)
	logger := logging.New(logging.ParseLevel("error"), "json")
	return NewManager(fs, confStore, tmplStore, logger.Logger)
}

func TestManager_ReloadSources_CreatesAndRemovesPools(t *testing.T) {
	m := newTestManager(t)

	src := folderSource()
	require.NoError(t, m.ReloadSources([]*model.Source{src}))
	assert.True(t, m.Enqueue("src-1", []byte("hello"), time.Now()))

	require.NoError(t, m.ReloadSources(nil))
	assert.False(t, m.Enqueue("src-1", []byte("hello"), time.Now()))

	m.Stop()
}

func TestManager_Enqueue_UnknownSourceReturnsFalse(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Enqueue("does-not-exist", []byte("x"), time.Now()))
	m.Stop()
}

func TestManager_ReloadSources_UnchangedSourceKeepsSamePool(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.ReloadSources([]*model.Source{folderSource()}))

	m.mu.RLock()
	pool := m.pools["src-1"]
	m.mu.RUnlock()

	// A second reload with an equivalent source must not replace the pool.
	require.NoError(t, m.ReloadSources([]*model.Source{folderSource()}))
	m.mu.RLock()
	samePool := m.pools["src-1"]
	m.mu.RUnlock()

	assert.Same(t, pool, samePool)
	m.Stop()
}

func TestManager_ReloadSources_ChangedSourceReplacesPool(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.ReloadSources([]*model.Source{folderSource()}))

	m.mu.RLock()
	pool := m.pools["src-1"]
	m.mu.RUnlock()

	changed := folderSource()
	changed.MaxWorkers = 8
	require.NoError(t, m.ReloadSources([]*model.Source{changed}))

	m.mu.RLock()
	replaced := m.pools["src-1"]
	m.mu.RUnlock()

	assert.NotSame(t, pool, replaced)
	m.Stop()
}

func TestManager_ReportMetrics_ReturnsOneSnapshotPerPool(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.ReloadSources([]*model.Source{folderSource()}))
	snaps := m.ReportMetrics()
	require.Len(t, snaps, 1)
	assert.Equal(t, "src-1", snaps[0].SourceID)
	m.Stop()
}

func TestManager_FlushRetryBuffers_DoesNotPanicWithNoPools(t *testing.T) {
	m := newTestManager(t)
	assert.NotPanics(t, m.FlushRetryBuffers)
}

func TestManager_Stop_IsIdempotent(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.ReloadSources([]*model.Source{folderSource()}))
	m.Stop()
	assert.NotPanics(t, m.Stop)
}
