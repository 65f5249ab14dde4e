// Package model resolves the speech-model file the engine loads: it checks a
// local cache, falls back to a bundled copy, and downloads the model over
// HTTP when neither is present. A size heuristic guards against truncated or
// placeholder files before the engine ever sees them.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultMinBytes is the minimum plausible size of a usable model file.
// Quantized base-size speech models come in around 140 MB; anything far
// below that is a failed or partial download.
const DefaultMinBytes int64 = 140_000_000

// DefaultDownloadTimeout bounds a single model download attempt.
const DefaultDownloadTimeout = 15 * time.Minute

var (
	// ErrModelInvalid reports a model file that exists but fails validation.
	ErrModelInvalid = errors.New("model file failed validation")
	// ErrModelUnavailable reports that no model could be resolved from the
	// cache, the bundled copy, or the download URL.
	ErrModelUnavailable = errors.New("model unavailable")
)

// Provider locates or fetches the model file.
type Provider struct {
	dir         string
	filename    string
	downloadURL string
	bundledPath string
	minBytes    int64
	client      *http.Client
	progress    func(percent int)
}

// Option configures a Provider.
type Option func(*Provider)

// WithDownloadURL sets the HTTP source used when no local copy exists.
func WithDownloadURL(url string) Option {
	return func(p *Provider) { p.downloadURL = url }
}

// WithBundledPath sets a read-only model shipped alongside the binary. It is
// copied into the cache directory on first use.
func WithBundledPath(path string) Option {
	return func(p *Provider) { p.bundledPath = path }
}

// WithMinBytes overrides the minimum-size validation threshold.
func WithMinBytes(n int64) Option {
	return func(p *Provider) { p.minBytes = n }
}

// WithHTTPClient overrides the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithProgress registers a callback invoked with download progress in
// percent. Only called when the response carries a Content-Length.
func WithProgress(fn func(percent int)) Option {
	return func(p *Provider) { p.progress = fn }
}

// NewProvider creates a Provider caching models under dir as filename.
func NewProvider(dir, filename string, opts ...Option) (*Provider, error) {
	if dir == "" {
		return nil, fmt.Errorf("model: dir must not be empty")
	}
	if filename == "" {
		return nil, fmt.Errorf("model: filename must not be empty")
	}

	p := &Provider{
		dir:      filepath.Clean(dir),
		filename: filename,
		minBytes: DefaultMinBytes,
		client:   &http.Client{Timeout: DefaultDownloadTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Path returns where the cached model lives (whether or not it exists yet).
func (p *Provider) Path() string {
	return filepath.Join(p.dir, p.filename)
}

// Prepare resolves a valid model file and returns its path. Resolution order:
// cached copy, bundled copy, HTTP download. Each candidate is validated
// before being accepted; an invalid cached file is replaced rather than
// returned.
func (p *Provider) Prepare(ctx context.Context) (string, error) {
	target := p.Path()

	if err := p.Validate(target); err == nil {
		slog.Debug("model cache hit", "path", target)
		return target, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		slog.Warn("cached model invalid, refetching", "path", target, "err", err)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("model: create cache dir: %w", err)
	}

	if p.bundledPath != "" {
		if err := p.Validate(p.bundledPath); err == nil {
			if err := copyFile(p.bundledPath, target); err != nil {
				return "", fmt.Errorf("model: install bundled copy: %w", err)
			}
			slog.Info("model installed from bundled copy", "from", p.bundledPath, "to", target)
			return target, nil
		}
	}

	if p.downloadURL == "" {
		return "", fmt.Errorf("%w: no cached, bundled, or downloadable model for %s", ErrModelUnavailable, p.filename)
	}

	if err := p.download(ctx, target); err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if err := p.Validate(target); err != nil {
		os.Remove(target)
		return "", fmt.Errorf("model: downloaded file: %w", err)
	}

	slog.Info("model downloaded", "url", p.downloadURL, "path", target)
	return target, nil
}

// Validate checks that path names a regular file of plausible model size.
func (p *Provider) Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrModelInvalid, path)
	}
	if info.Size() < p.minBytes {
		return fmt.Errorf("%w: %s is %d bytes, want at least %d", ErrModelInvalid, path, info.Size(), p.minBytes)
	}
	return nil
}

// download fetches the model to a temp file next to target and renames it
// into place so a crashed download never leaves a half-written model behind.
func (p *Provider) download(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.downloadURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d from %s", resp.StatusCode, p.downloadURL)
	}

	tmpPath := target + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	if err := p.copyBody(ctx, f, resp.Body, resp.ContentLength); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (p *Provider) copyBody(ctx context.Context, dst io.Writer, src io.Reader, total int64) error {
	buf := make([]byte, 32*1024)
	var written int64
	lastPct := -1

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write temp file: %w", werr)
			}
			written += int64(n)
			if total > 0 && p.progress != nil {
				if pct := int(written * 100 / total); pct > lastPct {
					lastPct = pct
					p.progress(pct)
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmpPath := dst + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		os.Remove(tmpPath)
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}
