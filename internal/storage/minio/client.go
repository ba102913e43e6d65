package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/dtroode/hasura-webhook/internal/model"
)

// publicReadACL makes uploaded objects readable through their public link.
var publicReadACL = map[string]string{"x-amz-acl": "public-read"}

// Internal adapter interface to enable mocking without a real S3 endpoint.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

var (
	_ minioAPI            = (*minio.Client)(nil)
	_ model.ObjectStorage = (*Client)(nil)
)

// Options configures a Client.
type Options struct {
	Bucket string
	Region string
	// PublicBaseURL prefixes object keys to form public links.
	PublicBaseURL string
	// EnsureBucket creates the bucket on start when it is missing.
	EnsureBucket bool
}

// Client stores publicly readable objects in an S3-compatible bucket
// such as DigitalOcean Spaces or MinIO.
type Client struct {
	api     minioAPI
	bucket  string
	baseURL string
}

// NewClient creates a storage client using a real *minio.Client instance.
// When opts.PublicBaseURL is empty, links use virtual-host style addressing
// on the client's endpoint.
func NewClient(ctx context.Context, client *minio.Client, opts Options) (*Client, error) {
	if opts.PublicBaseURL == "" {
		endpoint := client.EndpointURL()
		opts.PublicBaseURL = fmt.Sprintf("%s://%s.%s", endpoint.Scheme, opts.Bucket, endpoint.Host)
	}
	return NewClientWithAPI(ctx, client, opts)
}

// NewClientWithAPI allows injecting a mockable API (used in tests).
func NewClientWithAPI(ctx context.Context, api minioAPI, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	c := &Client{
		api:     api,
		bucket:  opts.Bucket,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
	}

	if opts.EnsureBucket {
		if err := c.ensureBucketExists(ctx, opts.Region); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
		}
	}

	return c, nil
}

// ensureBucketExists creates the bucket if it doesn't exist
func (c *Client) ensureBucketExists(ctx context.Context, region string) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Upload stores the object with a public-read ACL.
func (c *Client) Upload(ctx context.Context, object model.UploadObject) error {
	size := object.Size
	if size <= 0 {
		size = -1
	}
	_, err := c.api.PutObject(ctx, c.bucket, object.Key, object.Reader, size, minio.PutObjectOptions{
		ContentType:  object.ContentType,
		UserMetadata: publicReadACL,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Delete removes the object stored under key.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.api.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// PublicURL returns the public link of key. Each path segment is escaped.
func (c *Client) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(segments, "/")
}
