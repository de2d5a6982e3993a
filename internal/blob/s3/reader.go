package s3blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// Reader reads archived ledger objects. Paths are relative to the client's
// key prefix.
type Reader struct {
	c *Client
}

// NewReader creates a Reader over c's bucket.
func NewReader(c *Client) *Reader {
	return &Reader{c: c}
}

// Get opens an archived object. It returns domain.ErrNotFound when the
// object does not exist. The caller closes the body.
func (r *Reader) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	out, err := r.c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(r.c.objectKey(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", p, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", p, err)
	}
	return out.Body, nil
}

// List returns every archived object under prefix in key order.
func (r *Reader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	infos := []domain.BlobInfo{}
	pages := s3.NewListObjectsV2Paginator(r.c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.c.bucket),
		Prefix: aws.String(r.c.objectKey(prefix)),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			p := r.c.archivePath(aws.ToString(obj.Key))
			info := domain.BlobInfo{
				Path:        p,
				Size:        aws.ToInt64(obj.Size),
				ContentType: contentTypeFor(p),
			}
			if obj.LastModified != nil {
				info.LastModified = obj.LastModified.UTC()
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

// Exists reports whether an archive object is already at p.
func (r *Reader) Exists(ctx context.Context, p string) (bool, error) {
	_, err := r.c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(r.c.objectKey(p)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3blob: exists %s: %w", p, err)
}

// contentTypeFor infers the type of an archive object from its extension.
// ListObjectsV2 does not return one.
func contentTypeFor(p string) string {
	if path.Ext(p) == ".jsonl" {
		return jsonlContentType
	}
	return ""
}

// isNotFound matches NoSuchKey from GetObject, the bare 404 HeadObject
// returns, and providers that only set the status code.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}

var _ domain.BlobReader = (*Reader)(nil)
