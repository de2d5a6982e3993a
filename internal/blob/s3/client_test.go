package s3blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyprop/internal/domain"
)

const testBucket = "ledger-archive"

// fakeBucket serves the path-style GET, HEAD, PUT and ListObjectsV2 calls
// the archive makes against a single bucket.
type fakeBucket struct {
	mu         sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	listPrefix   string
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/"+testBucket), "/")
	if key == "" && r.URL.Query().Get("list-type") == "2" {
		f.list(w, r.URL.Query().Get("prefix"))
		return
	}
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		if _, taken := f.objects[key]; taken && r.Header.Get("If-None-Match") == "*" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusPreconditionFailed)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`)
			return
		}
		f.objects[key] = b
		f.contentTypes[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		b, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(b)))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		b, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message><Key>%s</Key></Error>`, key)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(b)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeBucket) list(w http.ResponseWriter, prefix string) {
	f.listPrefix = prefix
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&sb, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", testBucket, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&sb, `<Contents><Key>%s</Key><LastModified>2026-03-01T12:00:00.000Z</LastModified><ETag>"etag"</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`, k, len(f.objects[k]))
	}
	sb.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, sb.String())
}

func newFakeClient(t *testing.T, prefix string) (*Client, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string][]byte{}, contentTypes: map[string]string{}}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	sdk := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("access", "secret", ""),
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return newClient(sdk, testBucket, prefix), bucket
}

func TestCleanPrefix(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":         "",
		"/":        "",
		"  ":       "",
		"prod":     "prod/",
		"/prod/":   "prod/",
		"prod/eu/": "prod/eu/",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanPrefix(in), "prefix %q", in)
	}
}

func TestObjectKeyRoundTrip(t *testing.T) {
	t.Parallel()

	c := newClient(nil, testBucket, "/prod/")
	key := c.objectKey("/archive/trades/2026-01.jsonl")
	assert.Equal(t, "prod/archive/trades/2026-01.jsonl", key)
	assert.Equal(t, "archive/trades/2026-01.jsonl", c.archivePath(key))

	bare := newClient(nil, testBucket, "")
	assert.Equal(t, "archive/payouts/2026-02.jsonl", bare.objectKey("archive/payouts/2026-02.jsonl"))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "NotFound"})))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(io.ErrUnexpectedEOF))
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, jsonlContentType, contentTypeFor("archive/trades/2026-01.jsonl"))
	assert.Empty(t, contentTypeFor("archive/trades/2026-01.jsonl.1"))
	assert.Empty(t, contentTypeFor("archive/trades/README"))
}

func TestReaderUnderPrefix(t *testing.T) {
	t.Parallel()

	c, bucket := newFakeClient(t, "prod")
	second := `{"id":"t2"}` + "\n" + `{"id":"t3"}` + "\n"
	bucket.mu.Lock()
	bucket.objects["prod/archive/trades/2026-01.jsonl"] = []byte(`{"id":"t1"}` + "\n")
	bucket.objects["prod/archive/trades/2026-02.jsonl"] = []byte(second)
	bucket.objects["prod/archive/payouts/2026-01.jsonl"] = []byte(`{"id":"p1"}` + "\n")
	bucket.objects["staging/archive/trades/2026-01.jsonl"] = []byte("other deployment\n")
	bucket.mu.Unlock()

	r := NewReader(c)
	ctx := context.Background()

	infos, err := r.List(ctx, "archive/trades/")
	require.NoError(t, err)
	bucket.mu.Lock()
	assert.Equal(t, "prod/archive/trades/", bucket.listPrefix)
	bucket.mu.Unlock()
	require.Len(t, infos, 2)
	assert.Equal(t, "archive/trades/2026-01.jsonl", infos[0].Path)
	assert.Equal(t, "archive/trades/2026-02.jsonl", infos[1].Path)
	assert.Equal(t, int64(len(second)), infos[1].Size)
	assert.Equal(t, jsonlContentType, infos[0].ContentType)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), infos[0].LastModified)

	ok, err := r.Exists(ctx, "archive/payouts/2026-01.jsonl")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Exists(ctx, "archive/payouts/2026-02.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)

	body, err := r.Get(ctx, "archive/trades/2026-01.jsonl")
	require.NoError(t, err)
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, `{"id":"t1"}`+"\n", string(b))

	_, err = r.Get(ctx, "archive/trades/2026-03.jsonl")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReaderListEmpty(t *testing.T) {
	t.Parallel()

	c, _ := newFakeClient(t, "")
	infos, err := NewReader(c).List(context.Background(), "archive/settlements/")
	require.NoError(t, err)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)
}

func TestWriterPutUnderPrefix(t *testing.T) {
	t.Parallel()

	c, bucket := newFakeClient(t, "prod/")
	err := NewWriter(c).Put(context.Background(), "archive/trades/2026-04.jsonl", strings.NewReader(`{"id":"t9"}`+"\n"), "")
	require.NoError(t, err)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	assert.Equal(t, `{"id":"t9"}`+"\n", string(bucket.objects["prod/archive/trades/2026-04.jsonl"]))
	assert.Equal(t, jsonlContentType, bucket.contentTypes["prod/archive/trades/2026-04.jsonl"])
}

func TestWriterPutNeverOverwrites(t *testing.T) {
	t.Parallel()

	c, bucket := newFakeClient(t, "")
	bucket.mu.Lock()
	bucket.objects["archive/audit/2026-04.jsonl"] = []byte("first export\n")
	bucket.mu.Unlock()

	err := NewWriter(c).Put(context.Background(), "archive/audit/2026-04.jsonl", strings.NewReader("second export\n"), jsonlContentType)
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	assert.Equal(t, "first export\n", string(bucket.objects["archive/audit/2026-04.jsonl"]))
}

func TestIsPreconditionFailed(t *testing.T) {
	t.Parallel()

	assert.True(t, isPreconditionFailed(&smithy.GenericAPIError{Code: "PreconditionFailed"}))
	assert.False(t, isPreconditionFailed(&smithy.GenericAPIError{Code: "NoSuchKey"}))
}
