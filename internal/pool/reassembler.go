package pool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/syncly/syncly/internal/backend"
)

// Reassembler reconstructs files from their chunks. Chunks are fetched
// one at a time in index order to temporary files under the destination
// directory, then concatenated into the final file. Temporary chunk
// files are removed on every exit path, success or failure.
type Reassembler struct {
	registry *backend.Registry
	timeout  time.Duration
	log      zerolog.Logger
}

// NewReassembler creates a reassembler. timeout bounds each chunk fetch.
func NewReassembler(registry *backend.Registry, timeout time.Duration, log zerolog.Logger) *Reassembler {
	return &Reassembler{registry: registry, timeout: timeout, log: log}
}

// Download reconstructs the file described by record into destDir and
// returns the final path. A single chunk stored under the file's own
// name streams directly to the destination; anything else goes through
// temp files and concatenation. Fails with ErrReassemblyIncomplete when
// any chunk fetch fails.
func (r *Reassembler) Download(ctx context.Context, record *FileRecord, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create destination dir: %w", err)
	}
	finalPath := filepath.Join(destDir, record.FileName)

	// Single-chunk fast path: the object is the whole file.
	if len(record.Chunks) == 1 && record.Chunks[0].ChunkName == record.FileName {
		if err := r.fetchChunk(ctx, record.Chunks[0], finalPath); err != nil {
			return "", fmt.Errorf("%w: %v", ErrReassemblyIncomplete, err)
		}
		return finalPath, nil
	}

	chunks := make([]ChunkRecord, len(record.Chunks))
	copy(chunks, record.Chunks)
	// Stored slice order is creation order, but the explicit index is
	// authoritative.
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	var tempPaths []string
	defer func() {
		for _, p := range tempPaths {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				r.log.Warn().Err(err).Str("path", p).Msg("failed to remove temp chunk")
			}
		}
	}()

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tempPath := filepath.Join(destDir, fmt.Sprintf(".%s.part%d.tmp", record.FileName, chunk.Index))
		if err := r.fetchChunk(ctx, chunk, tempPath); err != nil {
			return "", fmt.Errorf("%w: chunk %d (%s): %v", ErrReassemblyIncomplete, chunk.Index, chunk.ChunkName, err)
		}
		tempPaths = append(tempPaths, tempPath)
	}

	if err := concatFiles(tempPaths, finalPath); err != nil {
		return "", fmt.Errorf("merge chunks: %w", err)
	}
	r.log.Info().Str("file", record.FileName).Int("chunks", len(chunks)).
		Str("path", finalPath).Msg("file reassembled")
	return finalPath, nil
}

// fetchChunk streams one remote object to destPath, writing through a
// temp file so a failed fetch never leaves a partial file under the
// final name.
func (r *Reassembler) fetchChunk(ctx context.Context, chunk ChunkRecord, destPath string) error {
	driver, ok := r.registry.Get(chunk.Bucket)
	if !ok {
		return fmt.Errorf("%w: unknown backend %q", ErrChunkNotFound, chunk.Bucket)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	info, stream, err := driver.OpenObject(fetchCtx, chunk.FileID)
	if err != nil {
		return fmt.Errorf("%w: open %q on %q: %v", ErrChunkNotFound, chunk.ChunkName, chunk.Bucket, err)
	}
	defer stream.Close()

	progress := backend.NewProgressReader(stream, r.log, info.Name, info.Size)
	return writeFileAtomic(destPath, progress)
}

// writeFileAtomic copies r to path via a unique temp file and rename.
func writeFileAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// concatFiles concatenates the given files, in order, into destPath.
func concatFiles(paths []string, destPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".merge-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("open chunk %q: %w", p, err)
		}
		_, err = io.Copy(tmp, f)
		f.Close()
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("append chunk %q: %w", p, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename merged file: %w", err)
	}
	return nil
}

// scanMatch is one candidate chunk found during a pool-wide scan.
type scanMatch struct {
	backendID string
	info      backend.ObjectInfo
	index     int
}

// ScanAndDownload is the recovery path for a lost or never-written
// metadata entry. It queries every backend for an object named exactly
// fileName; failing that, it collects objects named {fileName}_part{N}
// across all backends, orders them by the numeric part index, and
// reassembles them. Duplicate part indexes (an orphan from a failed
// cleanup) resolve to the first match in backend ID order; a gap in the
// index sequence fails with ErrReassemblyIncomplete rather than
// concatenating a corrupt file.
func (r *Reassembler) ScanAndDownload(ctx context.Context, fileName, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create destination dir: %w", err)
	}

	// Exact-name match wins: the file was stored whole.
	for _, id := range r.registry.List() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		whole, err := r.listObjects(ctx, id, backend.Filter{Name: fileName})
		if err != nil {
			r.log.Warn().Err(err).Str("backend", id).Msg("scan failed, skipping backend")
			continue
		}
		if len(whole) > 0 {
			finalPath := filepath.Join(destDir, fileName)
			chunk := ChunkRecord{ChunkName: fileName, FileID: whole[0].ID, Bucket: id}
			if err := r.fetchChunk(ctx, chunk, finalPath); err != nil {
				return "", fmt.Errorf("%w: %v", ErrReassemblyIncomplete, err)
			}
			return finalPath, nil
		}
	}

	// Chunked: collect part objects from every backend.
	var matches []scanMatch
	for _, id := range r.registry.List() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		parts, err := r.listObjects(ctx, id, backend.Filter{Contains: fileName + "_part"})
		if err != nil {
			r.log.Warn().Err(err).Str("backend", id).Msg("scan failed, skipping backend")
			continue
		}
		for _, info := range parts {
			index, ok := partIndex(info.Name)
			if !ok {
				continue
			}
			matches = append(matches, scanMatch{backendID: id, info: info, index: index})
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %q not found on any backend", ErrFileNotFound, fileName)
	}

	// Numeric index order, never lexicographic: part11 sorts after part2.
	// The sort is stable, so duplicates of one index keep the backend ID
	// order they were found in and the first one wins below.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].index < matches[j].index })

	record := &FileRecord{FileName: fileName}
	prev := 0
	for _, m := range matches {
		if m.index == prev {
			r.log.Warn().Str("backend", m.backendID).Str("chunk", m.info.Name).
				Msg("duplicate part index during scan, ignoring")
			continue
		}
		if m.index != prev+1 {
			return "", fmt.Errorf("%w: %q is missing part %d", ErrReassemblyIncomplete, fileName, prev+1)
		}
		prev = m.index
		record.Chunks = append(record.Chunks, ChunkRecord{
			ChunkName: m.info.Name,
			FileID:    m.info.ID,
			Bucket:    m.backendID,
			Index:     m.index - 1,
			Size:      m.info.Size,
		})
		record.Size += m.info.Size
	}
	return r.Download(ctx, record, destDir)
}

// listObjects queries one backend with a per-call timeout.
func (r *Reassembler) listObjects(ctx context.Context, backendID string, filter backend.Filter) ([]backend.ObjectInfo, error) {
	driver, ok := r.registry.Get(backendID)
	if !ok {
		return nil, backend.ErrUnavailable
	}
	listCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return driver.ListObjects(listCtx, filter)
}
