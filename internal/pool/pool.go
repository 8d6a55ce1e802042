// Package pool implements the storage-pool engine: capacity accounting
// across quota-limited backends, free-space-aware chunk placement with
// quota failover, the persisted metadata directory, and chunk
// reassembly on download.
package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/syncly/syncly/internal/backend"
)

// DefaultOpTimeout bounds every single backend interaction (capacity
// query, chunk write, chunk fetch) so the pool never hangs indefinitely
// on one unresponsive backend.
const DefaultOpTimeout = 30 * time.Second

// Config contains configuration for a Pool.
type Config struct {
	Registry  *backend.Registry
	Metadata  *MetadataStore
	Logger    zerolog.Logger
	Metrics   *Metrics      // optional
	OpTimeout time.Duration // per backend call, defaults to DefaultOpTimeout
}

// Pool virtualizes all registered backends into a single logical pool.
// It is the only component that mutates the metadata store.
type Pool struct {
	registry    *backend.Registry
	meta        *MetadataStore
	planner     *Planner
	writer      *ChunkWriter
	reassembler *Reassembler
	log         zerolog.Logger
	metrics     *Metrics
	timeout     time.Duration
}

// New creates a pool from the given configuration.
func New(cfg Config) (*Pool, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("pool: registry is required")
	}
	if cfg.Metadata == nil {
		return nil, fmt.Errorf("pool: metadata store is required")
	}
	timeout := cfg.OpTimeout
	if timeout == 0 {
		timeout = DefaultOpTimeout
	}
	return &Pool{
		registry:    cfg.Registry,
		meta:        cfg.Metadata,
		planner:     NewPlanner(cfg.Registry, timeout, cfg.Logger),
		writer:      NewChunkWriter(cfg.Registry, timeout, cfg.Logger),
		reassembler: NewReassembler(cfg.Registry, timeout, cfg.Logger),
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		timeout:     timeout,
	}, nil
}

// Upload places the file at filePath into the pool under fileName and
// appends its FileRecord to the metadata store. Placement: whole-file on
// the largest backend when one fits it, otherwise chunked across
// backends in ascending free-space order with failover on quota
// rejections. The pre-flight capacity check guarantees zero remote side
// effects when the pool cannot hold the file; a mid-upload failure
// triggers best-effort deletion of the chunks already written.
func (p *Pool) Upload(ctx context.Context, filePath, fileName, mimeType string) (*FileRecord, error) {
	record, err := p.upload(ctx, filePath, fileName, mimeType)
	if p.metrics != nil {
		if err != nil {
			p.metrics.UploadsTotal.WithLabelValues("error").Inc()
		} else {
			p.metrics.UploadsTotal.WithLabelValues("ok").Inc()
			p.metrics.BytesUploaded.Add(float64(record.Size))
		}
	}
	return record, err
}

func (p *Pool) upload(ctx context.Context, filePath, fileName, mimeType string) (*FileRecord, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	size := stat.Size()

	if mimeType == "" {
		if mt, err := mimetype.DetectFile(filePath); err == nil {
			mimeType = mt.String()
		} else {
			mimeType = "application/octet-stream"
		}
	}

	plan, err := p.planner.Plan(ctx, size)
	if err != nil {
		return nil, err
	}

	p.log.Info().
		Str("file", fileName).
		Int64("bytes", size).
		Int64("pool_free", plan.TotalFree()).
		Msg("upload planned")

	var written []ChunkRecord
	record, err := p.place(ctx, f, fileName, mimeType, size, plan, &written)
	if err != nil {
		p.cleanupChunks(written)
		return nil, err
	}

	if err := p.meta.Append(*record); err != nil {
		p.cleanupChunks(written)
		return nil, fmt.Errorf("persist record: %w", err)
	}
	return record, nil
}

// place runs the placement loop. Chunks written so far are reported
// through written so the caller can clean them up on failure.
func (p *Pool) place(ctx context.Context, f *os.File, fileName, mimeType string, size int64, plan *Placement, written *[]ChunkRecord) (*FileRecord, error) {
	// Whole-file fast path: the largest backend takes the file as a
	// single chunk stored under the file's own name. A quota rejection
	// here means the snapshot was stale; mark the backend full and
	// re-plan against what is left.
	for {
		id, ok := plan.WholeFile()
		if !ok {
			break
		}
		src := io.NewSectionReader(f, 0, size)
		objID, err := p.writer.Write(ctx, id, fileName, mimeType, src, size)
		if errors.Is(err, backend.ErrQuotaExceeded) {
			p.failover(id, plan)
			continue
		}
		if err != nil {
			return nil, err
		}
		p.countChunk()
		chunk := ChunkRecord{ChunkName: fileName, FileID: objID, Bucket: id, Index: 0, Size: size}
		*written = append(*written, chunk)
		return &FileRecord{FileName: fileName, Size: size, Chunks: []ChunkRecord{chunk}}, nil
	}

	// Chunked path: drain the least-free backend first so small
	// accounts fill up and the largest stays available for the tail.
	var (
		offset int64
		index  int
		chunks []ChunkRecord
	)
	for offset < size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		id, chunkSize, ok := plan.Next(size - offset)
		if !ok {
			return nil, fmt.Errorf("%w: %d of %d bytes placed, no backend has free space",
				ErrInsufficientPoolSpace, offset, size)
		}

		name := ChunkName(fileName, index)
		src := io.NewSectionReader(f, offset, chunkSize)
		objID, err := p.writer.Write(ctx, id, name, mimeType, src, chunkSize)
		if errors.Is(err, backend.ErrQuotaExceeded) {
			// Backend was fuller than its snapshot indicated. Retry the
			// same byte range against the next candidate.
			p.failover(id, plan)
			continue
		}
		if err != nil {
			return nil, err
		}

		p.countChunk()
		chunk := ChunkRecord{ChunkName: name, FileID: objID, Bucket: id, Index: index, Size: chunkSize}
		chunks = append(chunks, chunk)
		*written = append(*written, chunk)
		plan.Consume(id, chunkSize)
		offset += chunkSize
		index++
	}

	return &FileRecord{FileName: fileName, Size: size, Chunks: chunks}, nil
}

func (p *Pool) failover(backendID string, plan *Placement) {
	p.log.Warn().Str("backend", backendID).
		Msg("backend full despite snapshot, failing over")
	plan.MarkFull(backendID)
	if p.metrics != nil {
		p.metrics.QuotaFailovers.Inc()
	}
}

func (p *Pool) countChunk() {
	if p.metrics != nil {
		p.metrics.ChunksWritten.Inc()
	}
}

// cleanupChunks best-effort deletes remote objects written by a failed
// upload so they do not leak on their backends. Delete failures are
// logged and never override the original error.
func (p *Pool) cleanupChunks(chunks []ChunkRecord) {
	if len(chunks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	for _, chunk := range chunks {
		driver, ok := p.registry.Get(chunk.Bucket)
		if !ok {
			continue
		}
		if err := driver.DeleteObject(ctx, chunk.FileID); err != nil {
			p.log.Warn().Err(err).
				Str("backend", chunk.Bucket).
				Str("chunk", chunk.ChunkName).
				Msg("failed to delete orphaned chunk")
		}
	}
}

// Download reconstructs fileName into saveDir and returns the final
// path. The metadata directory is the primary lookup; when no record
// exists the pool-wide scan fallback recovers files whose metadata was
// lost or never written.
func (p *Pool) Download(ctx context.Context, fileName, saveDir string) (string, error) {
	path, err := p.download(ctx, fileName, saveDir)
	if p.metrics != nil {
		if err != nil {
			p.metrics.DownloadsTotal.WithLabelValues("error").Inc()
		} else {
			p.metrics.DownloadsTotal.WithLabelValues("ok").Inc()
			if info, statErr := os.Stat(path); statErr == nil {
				p.metrics.BytesDownloaded.Add(float64(info.Size()))
			}
		}
	}
	return path, err
}

func (p *Pool) download(ctx context.Context, fileName, saveDir string) (string, error) {
	record, found, err := p.meta.Lookup(fileName)
	if err != nil {
		return "", err
	}
	if found {
		return p.reassembler.Download(ctx, record, saveDir)
	}
	p.log.Info().Str("file", fileName).
		Msg("no metadata record, scanning all backends")
	return p.reassembler.ScanAndDownload(ctx, fileName, saveDir)
}

// BackendCapacity pairs a backend ID with its live capacity. Err is set
// when the capacity query failed; Capacity is zero in that case.
type BackendCapacity struct {
	ID       string
	Capacity backend.Capacity
	Err      error
}

// Capacities queries the live capacity of every backend. Failures are
// reported per backend, not hidden as zero capacity.
func (p *Pool) Capacities(ctx context.Context) []BackendCapacity {
	var out []BackendCapacity
	for _, id := range p.registry.List() {
		snapCtx, cancel := context.WithTimeout(ctx, p.timeout)
		snap, err := p.registry.Snapshot(snapCtx, id)
		cancel()
		if err != nil {
			p.log.Warn().Err(err).Str("backend", id).Msg("capacity query failed")
			out = append(out, BackendCapacity{ID: id, Err: err})
			continue
		}
		out = append(out, BackendCapacity{ID: id, Capacity: snap})
	}
	return out
}

// TotalCapacity sums capacity across all backends. A backend whose
// query fails contributes nothing, matching the degraded summary of the
// per-backend view.
func (p *Pool) TotalCapacity(ctx context.Context) backend.Capacity {
	var total backend.Capacity
	for _, bc := range p.Capacities(ctx) {
		if bc.Err != nil {
			continue
		}
		total.TotalBytes += bc.Capacity.TotalBytes
		total.UsedBytes += bc.Capacity.UsedBytes
	}
	if p.metrics != nil {
		p.metrics.PoolTotalBytes.Set(float64(total.TotalBytes))
		p.metrics.PoolUsedBytes.Set(float64(total.UsedBytes))
	}
	return total
}

// Entry is one object in an aggregated pool listing.
type Entry struct {
	Backend string
	Object  backend.ObjectInfo
}

// ListAll aggregates object listings across all backends. query, when
// non-empty, keeps only objects whose name contains it. The combined
// result is sorted by object name; limit (0 = unlimited) applies after
// sorting. A backend that fails to list is logged and skipped.
func (p *Pool) ListAll(ctx context.Context, query string, limit int) ([]Entry, error) {
	var entries []Entry
	for _, id := range p.registry.List() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		driver, ok := p.registry.Get(id)
		if !ok {
			continue
		}
		listCtx, cancel := context.WithTimeout(ctx, p.timeout)
		infos, err := driver.ListObjects(listCtx, backend.Filter{Contains: query})
		cancel()
		if err != nil {
			p.log.Warn().Err(err).Str("backend", id).Msg("listing failed, skipping backend")
			continue
		}
		for _, info := range infos {
			entries = append(entries, Entry{Backend: id, Object: info})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Object.Name < entries[j].Object.Name
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Records returns all persisted file records.
func (p *Pool) Records() ([]FileRecord, error) {
	return p.meta.Load()
}
