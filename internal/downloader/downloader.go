// Package downloader saves the product images of extracted records to disk.
package downloader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/law-makers/landed/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

// DefaultMaxImageBytes caps a single image download
const DefaultMaxImageBytes = 20 << 20

// Result is the outcome of one image download
type Result struct {
	URL      string
	FilePath string
	Size     int64
	Error    error
	Duration time.Duration
}

// Options configures a Downloader
type Options struct {
	Client    *http.Client
	Limiter   ratelimit.RateLimiter
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
}

// Downloader streams images to disk through the shared client and
// per-domain limiter used for page fetches
type Downloader struct {
	client    *http.Client
	limiter   ratelimit.RateLimiter
	userAgent string
	timeout   time.Duration
	maxBytes  int64
}

// New creates a Downloader, filling unset options with defaults
func New(opts Options) *Downloader {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxImageBytes
	}
	return &Downloader{
		client:    opts.Client,
		limiter:   opts.Limiter,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		maxBytes:  opts.MaxBytes,
	}
}

// Download saves imageURL into dir as name plus an extension taken from
// the URL or the response content type. A partial file is removed on error.
func (d *Downloader) Download(ctx context.Context, imageURL, dir, name string) Result {
	start := time.Now()
	res := Result{URL: imageURL}
	finish := func(err error) Result {
		res.Error = err
		res.Duration = time.Since(start)
		return res
	}

	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return finish(fmt.Errorf("invalid image URL %q", imageURL))
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, imageURL); err != nil {
			return finish(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return finish(fmt.Errorf("failed to create request: %w", err))
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return finish(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return finish(fmt.Errorf("bad status: %s", resp.Status))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return finish(fmt.Errorf("failed to create output directory: %w", err))
	}
	res.FilePath = filepath.Join(dir, sanitizeFilename(name)+extension(u, resp.Header.Get("Content-Type")))

	out, err := os.Create(res.FilePath)
	if err != nil {
		return finish(fmt.Errorf("failed to create file: %w", err))
	}

	n, err := io.Copy(out, io.LimitReader(resp.Body, d.maxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > d.maxBytes {
		err = fmt.Errorf("image larger than %d bytes", d.maxBytes)
	}
	if err != nil {
		os.Remove(res.FilePath)
		res.FilePath = ""
		return finish(fmt.Errorf("failed to write file: %w", err))
	}

	res.Size = n
	res = finish(nil)

	log.Debug().
		Str("url", imageURL).
		Str("file", res.FilePath).
		Int64("bytes", n).
		Dur("duration", res.Duration).
		Msg("Image saved")

	return res
}

// extension prefers the URL's image extension, then the content type
func extension(u *url.URL, contentType string) string {
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".svg":
		return ext
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/webp":
			return ".webp"
		case "image/gif":
			return ".gif"
		case "image/avif":
			return ".avif"
		}
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			return exts[0]
		}
	}
	return ".img"
}

// sanitizeFilename turns name into a single safe path element
func sanitizeFilename(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) > 120 {
		out = strings.TrimRight(out[:120], "-")
	}
	if out == "" {
		sum := sha1.Sum([]byte(name))
		out = "image-" + hex.EncodeToString(sum[:4])
	}
	return out
}
