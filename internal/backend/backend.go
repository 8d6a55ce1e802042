// Package backend defines the capability interface one remote storage
// account must provide to participate in the pool, and the registry that
// tracks all configured accounts.
package backend

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
)

// Driver errors.
var (
	ErrQuotaExceeded  = errors.New("backend quota exceeded")
	ErrObjectNotFound = errors.New("object not found")
	ErrUnavailable    = errors.New("backend unavailable")
)

// Capacity is a point-in-time view of one backend's storage capacity.
type Capacity struct {
	TotalBytes int64 `json:"total_bytes"`
	UsedBytes  int64 `json:"used_bytes"`
}

// FreeBytes returns the remaining capacity. Never negative.
func (c Capacity) FreeBytes() int64 {
	free := c.TotalBytes - c.UsedBytes
	if free < 0 {
		return 0
	}
	return free
}

// ObjectInfo describes one remote object.
type ObjectInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Filter restricts an object listing. Name matches exactly, Contains
// matches a substring of the object name. Both empty lists everything.
// Limit of 0 means no limit.
type Filter struct {
	Name     string
	Contains string
	Limit    int
}

// Matches reports whether the filter accepts the given object name.
func (f Filter) Matches(name string) bool {
	if f.Name != "" {
		return name == f.Name
	}
	if f.Contains != "" {
		return strings.Contains(name, f.Contains)
	}
	return true
}

// Driver is the capability a remote storage account exposes to the pool.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Capacity reports the account's total and used bytes.
	// Returns ErrUnavailable (possibly wrapped) when the account cannot
	// be reached; callers decide the degraded-capacity policy.
	Capacity(ctx context.Context) (Capacity, error)

	// ListObjects returns objects matching the filter.
	ListObjects(ctx context.Context, filter Filter) ([]ObjectInfo, error)

	// CreateObject stores size bytes read from r under the given name and
	// returns the remote object ID. Returns ErrQuotaExceeded when the
	// account rejects the write for space reasons; any other failure is a
	// transport or protocol error.
	CreateObject(ctx context.Context, name, mimeType string, r io.Reader, size int64) (string, error)

	// OpenObject returns the object's info and a stream of its bytes.
	// The caller must close the stream.
	OpenObject(ctx context.Context, id string) (ObjectInfo, io.ReadCloser, error)

	// DeleteObject removes a remote object. Used for best-effort cleanup
	// of orphaned chunks; deleting a missing object is not an error.
	DeleteObject(ctx context.Context, id string) error
}

// Registry tracks the configured backends by ID.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register adds a driver under the given ID, replacing any previous one.
func (r *Registry) Register(id string, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[id] = d
}

// Get returns the driver for the given backend ID.
func (r *Registry) Get(id string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	return d, ok
}

// List returns all registered backend IDs in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.drivers))
	for id := range r.drivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

// Snapshot queries the live capacity of one backend.
func (r *Registry) Snapshot(ctx context.Context, id string) (Capacity, error) {
	d, ok := r.Get(id)
	if !ok {
		return Capacity{}, ErrUnavailable
	}
	return d.Capacity(ctx)
}
