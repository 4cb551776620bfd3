package sink

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"

	"github.com/telhawk-systems/logflow/internal/model"
)

// Folder delivers batches as newline-delimited CanonicalLog JSON files,
// written atomically (tmp file + rename) and optionally gzip-compressed,
// per §4.5.
type Folder struct {
	fs          afero.Fs
	sourceName  string
	path        string
	compression model.Compression
	gzipLevel   int
	sequence    uint64
}

// NewFolder constructs a Folder sink for one source. path is created if
// missing.
func NewFolder(fs afero.Fs, sourceName string, cfg model.FolderTarget) (*Folder, error) {
	if err := fs.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("folder sink: create dir %s: %w", cfg.Path, err)
	}
	level := cfg.GzipLevel
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return &Folder{
		fs:          fs,
		sourceName:  sourceName,
		path:        cfg.Path,
		compression: cfg.Compression,
		gzipLevel:   level,
	}, nil
}

// Deliver writes batch to a new file in the configured directory. On any
// I/O error the batch is not acknowledged (the caller retries per §7); no
// partial file is ever visible under the final name because the write goes
// through a .tmp sibling and an atomic rename.
func (f *Folder) Deliver(ctx context.Context, batch []model.CanonicalLog) error {
	if len(batch) == 0 {
		return nil
	}

	body, err := encodeBatch(batch)
	if err != nil {
		return fmt.Errorf("folder sink: encode batch: %w", err)
	}

	seq := atomic.AddUint64(&f.sequence, 1)
	name := fmt.Sprintf("%s_%d_%d.json", f.sourceName, time.Now().UTC().UnixMilli(), seq)
	if f.compression == model.CompressionGzip {
		name += ".gz"
		body, err = gzipCompress(body, f.gzipLevel)
		if err != nil {
			return Retryable(fmt.Errorf("folder sink: gzip: %w", err))
		}
	}

	final := filepath.Join(f.path, name)
	tmp := final + ".tmp"

	if err := afero.WriteFile(f.fs, tmp, body, 0o644); err != nil {
		return Retryable(fmt.Errorf("folder sink: write %s: %w", tmp, err))
	}
	if wf, err := f.fs.Open(tmp); err == nil {
		if syncer, ok := wf.(interface{ Sync() error }); ok {
			_ = syncer.Sync()
		}
		_ = wf.Close()
	}
	if err := f.fs.Rename(tmp, final); err != nil {
		return Retryable(fmt.Errorf("folder sink: rename %s -> %s: %w", tmp, final, err))
	}
	return nil
}

// Close is a no-op for the Folder sink; there is no persistent connection
// to release.
func (f *Folder) Close() error { return nil }

func gzipCompress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
