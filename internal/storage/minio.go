package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/xid"
)

// compile-time check that *Minio implements Store
var _ Store = (*Minio)(nil)

// MinioConfig carries the connection settings for an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Minio stores uploads as objects in an S3-compatible bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to the endpoint and verifies the bucket exists. The
// bucket is expected to be provisioned out of band; creating it here would
// need broader credentials than the app should hold.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	endpoint, useSSL, err := normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("storage: bucket %s does not exist", cfg.Bucket)
	}

	return &Minio{client: client, bucket: cfg.Bucket}, nil
}

// Save uploads the content under a freshly generated object name.
func (m *Minio) Save(ctx context.Context, originalName, contentType string, size int64, r io.Reader) (string, error) {
	name := xid.New().String() + safeExt(originalName)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: uploading object %s: %w", name, err)
	}

	return URLPrefix + name, nil
}

// Open streams the object back. GetObject is lazy, so a Stat round trip
// confirms the object exists before the handler commits to a 200.
func (m *Minio) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("storage: opening object %s: %w", name, err)
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, "", fmt.Errorf("storage: stat object %s: %w", name, err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return obj, contentType, nil
}

// Remove deletes the object behind a reference.
func (m *Minio) Remove(ctx context.Context, ref string) error {
	name, err := NameFromRef(ref)
	if err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: removing object %s: %w", name, err)
	}
	return nil
}

// normaliseEndpoint accepts either a bare host:port or a full URL and
// returns what the minio client wants: host:port plus a TLS flag. A scheme
// in the endpoint wins over the configured flag.
func normaliseEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("storage: endpoint must not be empty")
	}

	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", false, fmt.Errorf("storage: parsing endpoint %q: %w", endpoint, err)
		}
		switch u.Scheme {
		case "http":
			return u.Host, false, nil
		case "https":
			return u.Host, true, nil
		default:
			return "", false, fmt.Errorf("storage: unsupported endpoint scheme %q", u.Scheme)
		}
	}

	return endpoint, useSSL, nil
}
