// Package s3blob stores ledger archives in S3 or any S3-compatible object
// store (MinIO, R2, iDrive e2) through AWS SDK v2.
package s3blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds the archive bucket location and credentials.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint, e.g. "http://localhost:9000" for
	// MinIO. Empty means AWS S3.
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// UseSSL picks the scheme for an Endpoint given without one.
	UseSSL         bool
	ForcePathStyle bool
	// Prefix roots every archive object under a key prefix so several
	// deployments can share a bucket, e.g. "prod/".
	Prefix string
}

// Client holds the SDK client and the bucket and key prefix archive paths
// resolve against.
type Client struct {
	s3     *s3.Client
	bucket string
	prefix string
}

// New builds a client from static credentials.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	endpoint := ""
	if cfg.Endpoint != "" {
		endpoint = normaliseEndpoint(cfg.Endpoint, cfg.UseSSL)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return newClient(client, cfg.Bucket, cfg.Prefix), nil
}

func newClient(client *s3.Client, bucket, prefix string) *Client {
	return &Client{s3: client, bucket: bucket, prefix: cleanPrefix(prefix)}
}

// cleanPrefix trims slashes and leaves a single trailing one, or nothing.
func cleanPrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// objectKey maps an archive path such as "archive/trades/2026-01.jsonl" to
// its key in the bucket.
func (c *Client) objectKey(path string) string {
	return c.prefix + strings.TrimPrefix(path, "/")
}

// archivePath is the inverse of objectKey.
func (c *Client) archivePath(key string) string {
	return strings.TrimPrefix(key, c.prefix)
}

// Health checks that the archive bucket is reachable with the configured
// credentials.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("s3blob: archive bucket %s: %w", c.bucket, err)
	}
	return nil
}

func normaliseEndpoint(endpoint string, useSSL bool) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Scheme != "" {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
