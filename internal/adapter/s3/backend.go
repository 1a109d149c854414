// Package s3 serves dashboard source files from S3-compatible object storage.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/couchcryptid/sire-dashboard/internal/config"
)

// Client is the subset of *s3.Client the backend needs, so tests can stub it.
type Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewClient builds an S3 client from the service configuration. A custom
// endpoint (MinIO, Garage, R2) switches to path-style addressing; static
// credentials are used when both keys are set, otherwise the default AWS
// credential chain applies.
func NewClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Backend reads objects from one bucket. Object ETags serve as versions.
type Backend struct {
	client Client
	bucket string
}

// NewBackend creates a backend over bucket.
func NewBackend(client Client, bucket string) *Backend {
	return &Backend{client: client, bucket: bucket}
}

// Version returns the object's ETag.
func (b *Backend) Version(ctx context.Context, key string) (string, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("head s3://%s/%s: %w", b.bucket, key, err)
	}
	return etag(out.ETag), nil
}

// Fetch downloads the object body.
func (b *Backend) Fetch(ctx context.Context, key string) ([]byte, string, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("get s3://%s/%s: %w", b.bucket, key, err)
	}
	if out.Body == nil {
		return nil, "", fmt.Errorf("get s3://%s/%s: empty body", b.bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read s3://%s/%s: %w", b.bucket, key, err)
	}
	return data, etag(out.ETag), nil
}

func etag(v *string) string {
	return strings.Trim(aws.ToString(v), `"`)
}
