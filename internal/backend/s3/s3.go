// Package s3 implements a backend driver for one bucket on an
// S3-compatible endpoint. S3 reports no account quota, so the quota
// comes from configuration and usage is computed by listing the bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/syncly/syncly/internal/backend"
)

// nameMetaKey is the user-metadata key carrying the logical object name.
const nameMetaKey = "Syncly-Name"

// Options configures an S3 driver.
type Options struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	TotalBytes int64 // configured quota
}

// Driver stores each remote object under a UUID key inside one bucket,
// with the logical name kept in user metadata so names may repeat.
type Driver struct {
	client *minio.Client
	bucket string
	total  int64
}

// New creates an S3 driver for the configured bucket.
func New(opts Options) (*Driver, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &Driver{client: client, bucket: opts.Bucket, total: opts.TotalBytes}, nil
}

// Capacity reports the configured quota and the summed size of all
// objects in the bucket.
func (d *Driver) Capacity(ctx context.Context) (backend.Capacity, error) {
	var used int64
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return backend.Capacity{}, fmt.Errorf("%w: %v", backend.ErrUnavailable, obj.Err)
		}
		used += obj.Size
	}
	return backend.Capacity{TotalBytes: d.total, UsedBytes: used}, nil
}

// ListObjects returns objects matching the filter. The logical name is
// read from user metadata; objects written by other tools fall back to
// their key.
func (d *Driver) ListObjects(ctx context.Context, filter backend.Filter) ([]backend.ObjectInfo, error) {
	var infos []backend.ObjectInfo
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Recursive:    true,
		WithMetadata: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("%w: %v", backend.ErrUnavailable, obj.Err)
		}
		name := logicalName(obj)
		if !filter.Matches(name) {
			continue
		}
		infos = append(infos, backend.ObjectInfo{
			ID:       obj.Key,
			Name:     name,
			MimeType: obj.ContentType,
			Size:     obj.Size,
		})
		if filter.Limit > 0 && len(infos) >= filter.Limit {
			break
		}
	}
	return infos, nil
}

// logicalName extracts the stored logical name from listing metadata.
func logicalName(obj minio.ObjectInfo) string {
	for key, value := range obj.UserMetadata {
		if strings.EqualFold(key, nameMetaKey) ||
			strings.EqualFold(key, "X-Amz-Meta-"+nameMetaKey) {
			return value
		}
	}
	return obj.Key
}

// CreateObject uploads the bytes under a fresh UUID key. The configured
// quota is enforced before the transfer starts.
func (d *Driver) CreateObject(ctx context.Context, name, mimeType string, r io.Reader, size int64) (string, error) {
	snap, err := d.Capacity(ctx)
	if err != nil {
		return "", err
	}
	if snap.UsedBytes+size > snap.TotalBytes {
		return "", backend.ErrQuotaExceeded
	}

	id := uuid.NewString()
	_, err = d.client.PutObject(ctx, d.bucket, id, r, size, minio.PutObjectOptions{
		ContentType:  mimeType,
		UserMetadata: map[string]string{nameMetaKey: name},
	})
	if err != nil {
		if isQuotaError(err) {
			return "", backend.ErrQuotaExceeded
		}
		return "", fmt.Errorf("put object: %w", err)
	}
	return id, nil
}

// isQuotaError reports whether the endpoint rejected a write for space
// reasons. MinIO surfaces bucket quotas as QuotaExceeded; some gateways
// use InsufficientStorage.
func isQuotaError(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "QuotaExceeded" || code == "InsufficientStorage" ||
		code == "XMinioAdminBucketQuotaExceeded"
}

// OpenObject returns the object's info and a stream of its bytes.
func (d *Driver) OpenObject(ctx context.Context, id string) (backend.ObjectInfo, io.ReadCloser, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return backend.ObjectInfo{}, nil, fmt.Errorf("get object: %w", err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return backend.ObjectInfo{}, nil, backend.ErrObjectNotFound
		}
		return backend.ObjectInfo{}, nil, fmt.Errorf("stat object: %w", err)
	}
	name := stat.Key
	if v, ok := stat.UserMetadata[nameMetaKey]; ok && v != "" {
		name = v
	}
	return backend.ObjectInfo{
		ID:       stat.Key,
		Name:     name,
		MimeType: stat.ContentType,
		Size:     stat.Size,
	}, obj, nil
}

// DeleteObject removes the object. Missing objects are not an error.
func (d *Driver) DeleteObject(ctx context.Context, id string) error {
	err := d.client.RemoveObject(ctx, d.bucket, id, minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
