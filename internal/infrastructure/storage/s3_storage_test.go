package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/certhub/backend/internal/infrastructure/config"
)

// fakeS3 serves the path-style subset of the S3 API the store uses
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+key] = body
		f.types[bucket+"/"+key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		body, ok := f.objects[bucket+"/"+key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = w.Write(body)
	case r.Method == http.MethodDelete:
		delete(f.objects, bucket+"/"+key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T) (*S3BlobStore, *fakeS3) {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	fake := newFakeS3()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewS3BlobStore(&config.StorageConfig{
		Endpoint:     server.URL,
		Bucket:       "uploads",
		AccessKey:    "key",
		SecretKey:    "secret",
		UsePathStyle: true,
		KeyPrefix:    "datasets/",
	},
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	return store, fake
}

func TestNewS3BlobStore_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.StorageConfig
		want string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing bucket", &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing credentials", &config.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3BlobStore(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("endpoint without scheme", func(t *testing.T) {
		store, err := NewS3BlobStore(&config.StorageConfig{
			Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "minio:9000", UseSSL: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "b", store.Bucket())
	})
}

func TestS3BlobStore_RoundTrip(t *testing.T) {
	store, fake := newTestS3Store(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx))
	assert.True(t, fake.buckets["uploads"])
	require.NoError(t, store.EnsureBucket(ctx), "existing bucket is accepted")

	key, err := store.Put(ctx, "Março export.csv", []byte("email\na@b.c\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "datasets/2025-03-01T09-00-00-000Z-Marc_o_export.csv", key)
	assert.Equal(t, "text/csv", fake.types["uploads/"+key])

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "email\na@b.c\n", string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	assert.Error(t, store.Delete(ctx, ""))
}
