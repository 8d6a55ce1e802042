// Package memory implements an in-memory, quota-limited backend driver.
// It backs unit tests and serves as a scratch backend for local runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/syncly/syncly/internal/backend"
)

type object struct {
	info backend.ObjectInfo
	data []byte
}

// Driver is an in-memory backend with a fixed byte quota.
type Driver struct {
	mu      sync.RWMutex
	total   int64
	used    int64
	objects map[string]*object
}

// New creates a memory driver with the given total capacity in bytes.
func New(totalBytes int64) *Driver {
	return &Driver{
		total:   totalBytes,
		objects: make(map[string]*object),
	}
}

// Capacity reports the configured quota and the bytes currently stored.
func (d *Driver) Capacity(ctx context.Context) (backend.Capacity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return backend.Capacity{TotalBytes: d.total, UsedBytes: d.used}, nil
}

// ListObjects returns stored objects matching the filter.
func (d *Driver) ListObjects(ctx context.Context, filter backend.Filter) ([]backend.ObjectInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var infos []backend.ObjectInfo
	for _, obj := range d.objects {
		if !filter.Matches(obj.info.Name) {
			continue
		}
		infos = append(infos, obj.info)
		if filter.Limit > 0 && len(infos) >= filter.Limit {
			break
		}
	}
	return infos, nil
}

// CreateObject stores the bytes read from r under a fresh object ID.
func (d *Driver) CreateObject(ctx context.Context, name, mimeType string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.used+size > d.total {
		return "", backend.ErrQuotaExceeded
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}
	if d.used+n > d.total {
		return "", backend.ErrQuotaExceeded
	}

	id := uuid.NewString()
	d.objects[id] = &object{
		info: backend.ObjectInfo{ID: id, Name: name, MimeType: mimeType, Size: n},
		data: buf.Bytes(),
	}
	d.used += n
	return id, nil
}

// OpenObject returns the stored object's info and a reader over its bytes.
func (d *Driver) OpenObject(ctx context.Context, id string) (backend.ObjectInfo, io.ReadCloser, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	obj, ok := d.objects[id]
	if !ok {
		return backend.ObjectInfo{}, nil, backend.ErrObjectNotFound
	}
	return obj.info, io.NopCloser(bytes.NewReader(obj.data)), nil
}

// DeleteObject removes the object if it exists.
func (d *Driver) DeleteObject(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if obj, ok := d.objects[id]; ok {
		d.used -= int64(len(obj.data))
		delete(d.objects, id)
	}
	return nil
}

// SetTotal adjusts the quota. Shrinking below the used bytes makes
// subsequent writes fail with ErrQuotaExceeded, which is how tests
// simulate a backend that is fuller than its last snapshot reported.
func (d *Driver) SetTotal(totalBytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.total = totalBytes
}

// ObjectCount returns the number of stored objects.
func (d *Driver) ObjectCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.objects)
}
