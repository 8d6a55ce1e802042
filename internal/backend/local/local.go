// Package local implements a backend driver backed by a local directory
// with a configured byte quota. Object bytes live under objects/ and
// object metadata under meta/, one JSON document per object.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/syncly/syncly/internal/backend"
)

// Driver stores objects in a local directory tree:
//
//	{dir}/
//	  objects/{id}       # raw object bytes
//	  meta/{id}.json     # backend.ObjectInfo
type Driver struct {
	dir   string
	total int64
	mu    sync.Mutex
}

// New creates or reopens a local driver rooted at dir with the given
// byte quota.
func New(dir string, totalBytes int64) (*Driver, error) {
	for _, sub := range []string{"objects", "meta"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return &Driver{dir: dir, total: totalBytes}, nil
}

func (d *Driver) objectPath(id string) string {
	return filepath.Join(d.dir, "objects", id)
}

func (d *Driver) metaPath(id string) string {
	return filepath.Join(d.dir, "meta", id+".json")
}

// usedBytes sums the sizes of all stored objects from their metadata.
func (d *Driver) usedBytes() (int64, error) {
	entries, err := os.ReadDir(filepath.Join(d.dir, "meta"))
	if err != nil {
		return 0, err
	}
	var used int64
	for _, entry := range entries {
		info, err := d.readMeta(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		used += info.Size
	}
	return used, nil
}

func (d *Driver) readMeta(id string) (backend.ObjectInfo, error) {
	data, err := os.ReadFile(d.metaPath(id))
	if err != nil {
		return backend.ObjectInfo{}, err
	}
	var info backend.ObjectInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return backend.ObjectInfo{}, err
	}
	return info, nil
}

// Capacity reports the configured quota and the bytes currently stored.
func (d *Driver) Capacity(ctx context.Context) (backend.Capacity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	used, err := d.usedBytes()
	if err != nil {
		return backend.Capacity{}, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	return backend.Capacity{TotalBytes: d.total, UsedBytes: used}, nil
}

// ListObjects returns stored objects matching the filter.
func (d *Driver) ListObjects(ctx context.Context, filter backend.Filter) ([]backend.ObjectInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(d.dir, "meta"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, err)
	}
	var infos []backend.ObjectInfo
	for _, entry := range entries {
		info, err := d.readMeta(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		if !filter.Matches(info.Name) {
			continue
		}
		infos = append(infos, info)
		if filter.Limit > 0 && len(infos) >= filter.Limit {
			break
		}
	}
	return infos, nil
}

// CreateObject writes the object bytes atomically via a temp file and
// records its metadata. Rejects the write with ErrQuotaExceeded when the
// quota would be exceeded.
func (d *Driver) CreateObject(ctx context.Context, name, mimeType string, r io.Reader, size int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	used, err := d.usedBytes()
	if err != nil {
		return "", fmt.Errorf("compute usage: %w", err)
	}
	if used+size > d.total {
		return "", backend.ErrQuotaExceeded
	}

	id := uuid.NewString()
	objPath := d.objectPath(id)

	tmp, err := os.CreateTemp(filepath.Dir(objPath), ".obj-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write object data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("sync object data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if used+n > d.total {
		os.Remove(tmpPath)
		return "", backend.ErrQuotaExceeded
	}
	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename object: %w", err)
	}

	info := backend.ObjectInfo{ID: id, Name: name, MimeType: mimeType, Size: n}
	data, err := json.Marshal(info)
	if err != nil {
		os.Remove(objPath)
		return "", fmt.Errorf("marshal object meta: %w", err)
	}
	if err := os.WriteFile(d.metaPath(id), data, 0644); err != nil {
		os.Remove(objPath)
		return "", fmt.Errorf("write object meta: %w", err)
	}
	return id, nil
}

// OpenObject returns the object's info and a stream of its bytes.
func (d *Driver) OpenObject(ctx context.Context, id string) (backend.ObjectInfo, io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := d.readMeta(id)
	if err != nil {
		if os.IsNotExist(err) {
			return backend.ObjectInfo{}, nil, backend.ErrObjectNotFound
		}
		return backend.ObjectInfo{}, nil, fmt.Errorf("read object meta: %w", err)
	}
	f, err := os.Open(d.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return backend.ObjectInfo{}, nil, backend.ErrObjectNotFound
		}
		return backend.ObjectInfo{}, nil, fmt.Errorf("open object: %w", err)
	}
	return info, f, nil
}

// DeleteObject removes the object's data and metadata if present.
func (d *Driver) DeleteObject(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.objectPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	if err := os.Remove(d.metaPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object meta: %w", err)
	}
	return nil
}
