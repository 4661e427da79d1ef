package fetch

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wavBytes() []byte {
	data := make([]byte, 44+1600)
	copy(data[0:], "RIFF")
	binary.LittleEndian.PutUint32(data[4:], uint32(len(data)-8))
	copy(data[8:], "WAVE")
	copy(data[12:], "fmt ")
	binary.LittleEndian.PutUint32(data[16:], 16)
	binary.LittleEndian.PutUint16(data[20:], 1)
	binary.LittleEndian.PutUint16(data[22:], 1)
	binary.LittleEndian.PutUint32(data[24:], 8000)
	binary.LittleEndian.PutUint32(data[28:], 16000)
	binary.LittleEndian.PutUint16(data[32:], 2)
	binary.LittleEndian.PutUint16(data[34:], 16)
	copy(data[36:], "data")
	binary.LittleEndian.PutUint32(data[40:], 1600)
	return data
}

func newTestFetcher(t *testing.T, mutate func(*Config)) (*HTTPFetcher, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "audio")
	cfg := Config{
		DownloadDir:  dir,
		Timeout:      5 * time.Second,
		MaxRetries:   2,
		MaxBytes:     1 << 20,
		RequireAudio: true,
		RetryDelay:   time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	f, err := NewHTTPFetcher(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return f, dir
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestIsURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{"http://example.com/a.wav", true},
		{"https://example.com", true},
		{"HTTPS://example.com/a.wav", true},
		{"a.wav", false},
		{"/data/a.wav", false},
		{"ftp://example.com/a.wav", false},
		{"http:///a.wav", false},
		{"", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, IsURL(tc.raw), tc.raw)
	}
}

func TestFileName(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	mustParse := func(raw string) *url.URL {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		return u
	}

	assert.Equal(t, id.String()+"_a.wav", FileName(mustParse("http://h/x/a.wav?sig=1"), id))
	assert.Equal(t, id.String()+".audio", FileName(mustParse("http://h"), id))
	assert.Equal(t, id.String()+".audio", FileName(mustParse("http://h/"), id))
}

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	payload := wavBytes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/clips/a.wav", r.URL.Path)
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f, dir := newTestFetcher(t, nil)
	id := uuid.New()

	path, err := f.Fetch(context.Background(), srv.URL+"/clips/a.wav", id)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, id.String()+"_a.wav"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, []string{id.String() + "_a.wav"}, dirEntries(t, dir), "no temp files left behind")
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(wavBytes())
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, nil)
	_, err := f.Fetch(context.Background(), srv.URL+"/a.wav", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetch_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		mutate   func(*Config)
		want     error
		wantHits int32
	}{
		{
			name:     "not found is not retried",
			handler:  func(w http.ResponseWriter, _ *http.Request) { http.NotFound(w, nil) },
			want:     ErrFetchFailed,
			wantHits: 1,
		},
		{
			name:     "server error exhausts retries",
			handler:  func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			want:     ErrFetchFailed,
			wantHits: 3,
		},
		{
			name:     "body over limit",
			handler:  func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write(wavBytes()) },
			mutate:   func(c *Config) { c.MaxBytes = 100 },
			want:     ErrTooLarge,
			wantHits: 1,
		},
		{
			name:     "not audio",
			handler:  func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("<html><body>nope</body></html>")) },
			want:     ErrNotAudio,
			wantHits: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				tc.handler(w, r)
			}))
			defer srv.Close()

			f, dir := newTestFetcher(t, tc.mutate)
			_, err := f.Fetch(context.Background(), srv.URL+"/a.wav", uuid.New())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrFetchFailed)
			assert.Equal(t, tc.wantHits, hits.Load())
			assert.Empty(t, dirEntries(t, dir), "failed downloads leave no files")
		})
	}
}

func TestFetch_RequireAudioDisabled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, func(c *Config) { c.RequireAudio = false })
	_, err := f.Fetch(context.Background(), srv.URL+"/notes.txt", uuid.New())
	assert.NoError(t, err)
}

func TestFetch_InvalidURL(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(t, nil)
	_, err := f.Fetch(context.Background(), "not a url", uuid.New())
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestFetch_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, func(c *Config) { c.MaxRetries = 100 })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, srv.URL+"/a.wav", uuid.New())
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewHTTPFetcher_RequiresDir(t *testing.T) {
	t.Parallel()

	_, err := NewHTTPFetcher(Config{}, nil)
	assert.Error(t, err)
}
