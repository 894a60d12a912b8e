package workspace

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Prober checks that a location is reachable before a node uses it.
type Prober interface {
	Probe(ctx context.Context, loc Location) error
}

// LocalProber checks that a file location is a directory, creating it first
// when Create is set.
type LocalProber struct {
	Create bool
}

func (p LocalProber) Probe(_ context.Context, loc Location) error {
	if p.Create {
		if err := os.MkdirAll(loc.Path, 0o755); err != nil {
			return err
		}
	}
	info, err := os.Stat(loc.Path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", loc.Path)
	}
	return nil
}

// S3Config holds the connection settings for object-store workspaces.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Prober checks that the bucket of an s3:// location exists.
type S3Prober struct {
	client *minio.Client
}

// NewS3Client builds a MinIO client for the configured endpoint.
func NewS3Client(cfg S3Config) (*minio.Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return client, nil
}

// NewS3Prober builds a prober backed by a MinIO client.
func NewS3Prober(cfg S3Config) (*S3Prober, error) {
	client, err := NewS3Client(cfg)
	if err != nil {
		return nil, err
	}
	return &S3Prober{client: client}, nil
}

func (p *S3Prober) Probe(ctx context.Context, loc Location) error {
	exists, err := p.client.BucketExists(ctx, loc.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", loc.Bucket)
	}
	return nil
}
