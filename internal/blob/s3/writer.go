package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

// S3 rejects multipart parts below 5 MiB, except the last.
const minPartSize int64 = 5 * 1024 * 1024

// Writer uploads archive objects. Paths are relative to the client's key
// prefix.
type Writer struct {
	c *Client
}

// NewWriter creates a Writer over c's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{c: c}
}

// Put creates the object at path. It is a conditional write
// (If-None-Match: *), so an existing archive is never replaced; that case
// returns domain.ErrAlreadyExists. An empty contentType is inferred from
// the extension.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if contentType == "" {
		contentType = contentTypeFor(path)
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.c.bucket),
		Key:         aws.String(w.c.objectKey(path)),
		Body:        data,
		IfNoneMatch: aws.String("*"),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := w.c.s3.PutObject(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("s3blob: put %s: %w", path, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("s3blob: put %s: %w", path, err)
	}
	return nil
}

// PutMultipart streams a large archive through the upload manager with
// parts of at least 5 MiB. The archiver picks a free path first; this
// call does not guard against replacing an object.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	uploader := manager.NewUploader(w.c.s3, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})

	input := &s3.PutObjectInput{
		Bucket: aws.String(w.c.bucket),
		Key:    aws.String(w.c.objectKey(path)),
		Body:   data,
	}
	if ct := contentTypeFor(path); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart put %s: %w", path, err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusPreconditionFailed
}

var _ domain.BlobWriter = (*Writer)(nil)
