package pool

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/syncly/syncly/internal/backend"
)

// Planner decides where the bytes of one upload go. It snapshots every
// backend's capacity once, up front; the resulting Placement owns a live
// free-space table that is decremented in memory as chunk writes succeed
// and zeroed when a backend turns out to be fuller than its snapshot.
// The table is scoped to the single upload and discarded afterwards.
type Planner struct {
	registry *backend.Registry
	timeout  time.Duration
	log      zerolog.Logger
}

// NewPlanner creates a planner over the given registry. timeout bounds
// each capacity query.
func NewPlanner(registry *backend.Registry, timeout time.Duration, log zerolog.Logger) *Planner {
	return &Planner{registry: registry, timeout: timeout, log: log}
}

// freeEntry tracks the remaining free space of one backend during an
// upload.
type freeEntry struct {
	id   string
	free int64
}

// Placement is the live placement state for one upload.
type Placement struct {
	fileSize int64
	entries  []freeEntry
}

// Plan snapshots all backends and verifies the pool can hold fileSize
// bytes. Fails with ErrInsufficientPoolSpace before any remote write
// happens, guaranteeing zero side effects. A backend whose capacity
// query fails is excluded from placement rather than silently counted
// as empty; the failure is logged with the backend ID.
func (p *Planner) Plan(ctx context.Context, fileSize int64) (*Placement, error) {
	pl := &Placement{fileSize: fileSize}

	for _, id := range p.registry.List() {
		snapCtx, cancel := context.WithTimeout(ctx, p.timeout)
		snap, err := p.registry.Snapshot(snapCtx, id)
		cancel()
		if err != nil {
			p.log.Warn().Err(err).Str("backend", id).
				Msg("capacity query failed, excluding backend from placement")
			continue
		}
		if free := snap.FreeBytes(); free > 0 {
			pl.entries = append(pl.entries, freeEntry{id: id, free: free})
		}
	}

	if pl.TotalFree() < fileSize {
		return nil, fmt.Errorf("%w: need %d bytes, pool has %d free",
			ErrInsufficientPoolSpace, fileSize, pl.TotalFree())
	}
	return pl, nil
}

// TotalFree returns the summed remaining free space.
func (pl *Placement) TotalFree() int64 {
	var total int64
	for _, e := range pl.entries {
		total += e.free
	}
	return total
}

// WholeFile returns the backend with the largest remaining free space if
// the whole file still fits on it. This is the single-chunk fast path.
func (pl *Placement) WholeFile() (string, bool) {
	best := -1
	for i, e := range pl.entries {
		if best < 0 || e.free > pl.entries[best].free {
			best = i
		}
	}
	if best < 0 || pl.entries[best].free < pl.fileSize {
		return "", false
	}
	return pl.entries[best].id, true
}

// Next picks the backend for the next chunk: the least-free backend with
// free space remaining, so small backends drain first and the largest
// stays available for the tail. Returns the backend ID and the chunk
// size, min(backend free, bytes remaining). ok is false when no backend
// has free space left.
func (pl *Placement) Next(remaining int64) (id string, chunkSize int64, ok bool) {
	// Stable ascending sort keeps the tie-break deterministic: equal
	// free space resolves to the earlier (lower-ID) backend.
	sort.SliceStable(pl.entries, func(i, j int) bool {
		return pl.entries[i].free < pl.entries[j].free
	})
	for _, e := range pl.entries {
		if e.free > 0 {
			size := e.free
			if remaining < size {
				size = remaining
			}
			return e.id, size, true
		}
	}
	return "", 0, false
}

// Consume decrements the backend's live free space after a successful
// chunk write.
func (pl *Placement) Consume(id string, n int64) {
	for i := range pl.entries {
		if pl.entries[i].id == id {
			pl.entries[i].free -= n
			if pl.entries[i].free < 0 {
				pl.entries[i].free = 0
			}
			return
		}
	}
}

// MarkFull zeroes the backend's live free space. Called when a write
// fails with a quota error, meaning the backend was fuller than its
// snapshot indicated.
func (pl *Placement) MarkFull(id string) {
	for i := range pl.entries {
		if pl.entries[i].id == id {
			pl.entries[i].free = 0
			return
		}
	}
}
