package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/syncly/syncly/internal/backend"
)

// ChunkWriter executes single chunk writes against chosen backends. It
// distinguishes quota exhaustion (recoverable by failing over to another
// backend) from transport failures (fatal, wrapped as ErrBackendIO and
// propagated). It creates exactly one remote object per successful call
// and never deletes anything on its own failure; cleanup policy belongs
// to the caller.
type ChunkWriter struct {
	registry *backend.Registry
	timeout  time.Duration
	log      zerolog.Logger
}

// NewChunkWriter creates a chunk writer. timeout bounds each write.
func NewChunkWriter(registry *backend.Registry, timeout time.Duration, log zerolog.Logger) *ChunkWriter {
	return &ChunkWriter{registry: registry, timeout: timeout, log: log}
}

// Write stores size bytes from r on the given backend under name and
// returns the remote object ID. Returns backend.ErrQuotaExceeded
// unwrapped so callers can match it with errors.Is and fail over.
func (w *ChunkWriter) Write(ctx context.Context, backendID, name, mimeType string, r io.Reader, size int64) (string, error) {
	driver, ok := w.registry.Get(backendID)
	if !ok {
		return "", fmt.Errorf("%w: unknown backend %q", ErrBackendIO, backendID)
	}

	writeCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	id, err := driver.CreateObject(writeCtx, name, mimeType, r, size)
	if err != nil {
		if errors.Is(err, backend.ErrQuotaExceeded) {
			return "", backend.ErrQuotaExceeded
		}
		return "", fmt.Errorf("%w: write %q to %q: %v", ErrBackendIO, name, backendID, err)
	}

	w.log.Debug().
		Str("backend", backendID).
		Str("chunk", name).
		Int64("bytes", size).
		Dur("elapsed", time.Since(start)).
		Msg("chunk written")
	return id, nil
}
