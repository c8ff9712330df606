// Package objectstore reads stored request/response payloads from
// S3-compatible object storage.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/relaystack/ingest/internal/core/ports"
)

// Options configures the object-store client. The defaults in the
// config package point at a local MinIO.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Client is a read-only client over one bucket.
type Client struct {
	mc     *minio.Client
	bucket string
}

// New creates the client. Safe for concurrent use by all event
// goroutines of a batch.
func New(opts Options) (*Client, error) {
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object-store client for %s: %w", opts.Endpoint, err)
	}
	return &Client{mc: mc, bucket: opts.Bucket}, nil
}

// Fetch implements ports.ObjectFetcher.
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	blob, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return blob, nil
}

var _ ports.ObjectFetcher = (*Client)(nil)
