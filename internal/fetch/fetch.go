package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/sethvargo/go-retry"
)

// Error definitions for the fetch package. Every fetch failure wraps
// ErrFetchFailed.
var (
	ErrFetchFailed = errors.New("failed to download file")
	ErrInvalidURL  = fmt.Errorf("%w: invalid URL", ErrFetchFailed)
	ErrTooLarge    = fmt.Errorf("%w: file too large", ErrFetchFailed)
	ErrNotAudio    = fmt.Errorf("%w: content is not audio", ErrFetchFailed)
)

// Fetcher resolves a remote reference to a local file.
type Fetcher interface {
	// Fetch downloads rawURL for the job jobID and returns the local path.
	Fetch(ctx context.Context, rawURL string, jobID uuid.UUID) (string, error)
}

// Config controls HTTPFetcher.
type Config struct {
	DownloadDir  string
	Timeout      time.Duration
	MaxRetries   uint64
	MaxBytes     int64
	RequireAudio bool
	// RetryDelay is the base of the exponential backoff between attempts.
	RetryDelay time.Duration
}

// HTTPFetcher downloads http and https URLs.
type HTTPFetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates an HTTPFetcher and makes sure the download
// directory exists.
func NewHTTPFetcher(cfg Config, logger *slog.Logger) (*HTTPFetcher, error) {
	if cfg.DownloadDir == "" {
		return nil, errors.New("download directory cannot be empty")
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(slog.String("component", "http_fetcher")),
	}, nil
}

// WithHTTPClient replaces the HTTP client (for testing).
func (f *HTTPFetcher) WithHTTPClient(client *http.Client) {
	f.client = client
}

// IsURL reports whether raw is an absolute http or https URL with a host.
// Anything else is treated as a local path by callers.
func IsURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FileName returns the name a download of u is stored under: the URL path's
// base name, or "<job_id>.audio" when there is none, prefixed with the job ID
// so that two jobs fetching the same name never collide.
func FileName(u *url.URL, jobID uuid.UUID) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return jobID.String() + ".audio"
	}
	base = strings.ReplaceAll(base, string(filepath.Separator), "_")
	return jobID.String() + "_" + base
}

// Fetch implements Fetcher. Network errors, 429 and 5xx responses are
// retried with exponential backoff; other failures are returned at once.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, jobID uuid.UUID) (string, error) {
	log := logger.FromContextOrDefault(ctx, f.logger).With(
		slog.String("job_id", jobID.String()),
		slog.String("url", rawURL),
	)

	if !IsURL(rawURL) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	dest := filepath.Join(f.cfg.DownloadDir, FileName(u, jobID))
	backoff := retry.WithMaxRetries(f.cfg.MaxRetries, retry.NewExponential(f.cfg.RetryDelay))
	attempt := 0

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := f.download(ctx, u.String(), dest)
		var retryable *retryableStatus
		if err != nil && (errors.As(err, &retryable) || isNetworkError(ctx, err)) {
			log.Warn("download attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrFetchFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	if f.cfg.RequireAudio {
		if err := checkAudio(dest); err != nil {
			_ = os.Remove(dest)
			return "", err
		}
	}

	log.Info("downloaded audio",
		slog.String("path", dest),
		slog.Int("attempts", attempt))
	return dest, nil
}

// retryableStatus is a response status worth another attempt.
type retryableStatus struct {
	code int
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("server responded %d %s", e.code, http.StatusText(e.code))
}

func (f *HTTPFetcher) download(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &retryableStatus{code: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: server responded %d %s", ErrFetchFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if f.cfg.MaxBytes > 0 && resp.ContentLength > f.cfg.MaxBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, resp.ContentLength, f.cfg.MaxBytes)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	var body io.Reader = resp.Body
	if f.cfg.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxBytes+1)
	}
	n, copyErr := io.Copy(tmp, body)
	closeErr := tmp.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, closeErr)
	}
	if f.cfg.MaxBytes > 0 && n > f.cfg.MaxBytes {
		return fmt.Errorf("%w: exceeds limit of %d bytes", ErrTooLarge, f.cfg.MaxBytes)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return nil
}

// isNetworkError reports whether err came from the transport rather than
// from a response, excluding caller cancellation.
func isNetworkError(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrFetchFailed) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func checkAudio(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	mime := mt.String()
	if strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/") {
		return nil
	}
	return fmt.Errorf("%w: detected %s", ErrNotAudio, mime)
}
