package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/chakriappu140/collaborative-study-planner/internal/config"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage is what the upload handlers need from a blob store. Objects
// are served straight from the bucket, so the URL is stable and stored on
// the record.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	ObjectURL(key string) string
}

type MinIOClient struct {
	client    *minio.Client
	bucket    string
	publicURL *url.URL
}

func NewMinIOClient(cfg config.MinIOConfig) (*MinIOClient, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	public, err := PublicBaseURL(cfg)
	if err != nil {
		return nil, err
	}

	return &MinIOClient{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: public,
	}, nil
}

// PublicBaseURL is where browsers fetch objects from; it falls back to the
// API endpoint when no public endpoint is configured.
func PublicBaseURL(cfg config.MinIOConfig) (*url.URL, error) {
	endpoint := cfg.PublicEndpoint
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		endpoint = scheme + "://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid storage endpoint %q: %w", endpoint, err)
	}
	u.Path = path.Join("/", u.Path, cfg.Bucket)
	return u, nil
}

func (m *MinIOClient) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	details := map[string]interface{}{
		"object_name":  key,
		"size":         size,
		"content_type": contentType,
		"bucket":       m.bucket,
	}
	if err != nil {
		logger.Error("minio_upload_failed", err, details)
	} else {
		logger.Info("minio_upload_success", details)
	}
	return err
}

func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	details := map[string]interface{}{
		"object_name": key,
		"bucket":      m.bucket,
	}
	if err != nil {
		logger.Error("minio_delete_failed", err, details)
	} else {
		logger.Info("minio_delete_success", details)
	}
	return err
}

func (m *MinIOClient) ObjectURL(key string) string {
	return ObjectURL(m.publicURL, key)
}

func ObjectURL(base *url.URL, key string) string {
	u := *base
	u.Path = path.Join(base.Path, key)
	return u.String()
}

// EnsureBucket creates the bucket if needed and makes its objects publicly
// readable so stored URLs keep working.
func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
		}
	}
	if err := m.client.SetBucketPolicy(ctx, m.bucket, publicReadPolicy(m.bucket)); err != nil {
		return fmt.Errorf("failed setting policy on bucket %s: %w", m.bucket, err)
	}
	return nil
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

// ObjectKey namespaces an upload under prefix with a random component so
// two uploads of the same name never collide.
func ObjectKey(prefix, fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	return path.Join(prefix, uuid.NewString()+"-"+name)
}
