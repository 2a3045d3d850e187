// Package storage provides the S3-compatible object store client used for
// original document payloads. MinIO is the default deployment target, so the
// client supports custom endpoints and path-style addressing.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/waqedi/platform/pkg/config"
	"github.com/waqedi/platform/pkg/faults"
)

// unsafeKeyChars matches every character that may not appear in a storage
// key segment.
var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename replaces unsafe characters with underscores so user
// filenames cannot inject path segments into object keys.
func SanitizeFilename(name string) string {
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

// BuildKey returns the object key for a document payload:
// {tenant_id}/{yyyy}/{mm}/{document_id}/{sanitized_filename}.
// The tenant prefix makes per-tenant listing and deletion cheap.
func BuildKey(tenantID uuid.UUID, documentID, filename string, uploadedAt time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s/%s",
		tenantID, uploadedAt.Year(), int(uploadedAt.Month()), documentID, SanitizeFilename(filename))
}

// Client wraps the S3 API for one bucket.
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New builds the S3 client from platform configuration.
func New(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage credentials: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle // required for MinIO
	})

	return &Client{
		s3:      client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Ping reports whether the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return faults.Transientf("STORAGE_UNAVAILABLE", err, "head bucket %s", c.bucket)
	}
	return nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}

	_, err = c.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return faults.Transientf("STORAGE_UNAVAILABLE", err, "create bucket %s", c.bucket)
	}
	return nil
}

// Put uploads an object with its content type and metadata.
func (c *Client) Put(ctx context.Context, key, contentType string, body io.Reader, size int64, metadata map[string]string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		Metadata:      metadata,
	})
	if err != nil {
		return faults.Transientf("STORAGE_UNAVAILABLE", err, "put object %s", key)
	}
	return nil
}

// Get streams an object. The caller must close the returned reader.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, faults.Wrap(faults.KindNotFound, "OBJECT_NOT_FOUND", key, err)
		}
		return nil, faults.Transientf("STORAGE_UNAVAILABLE", err, "get object %s", key)
	}
	return out.Body, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return faults.Transientf("STORAGE_UNAVAILABLE", err, "delete object %s", key)
	}
	return nil
}

// PresignGet returns a time-limited download URL for an object.
func (c *Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", faults.Transientf("STORAGE_UNAVAILABLE", err, "presign object %s", key)
	}
	return req.URL, nil
}
