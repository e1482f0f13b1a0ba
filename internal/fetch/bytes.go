package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/g2commons/g2commons/internal/errors"
)

// publicCDNHost serves lh3 image bytes to anyone; requests there never need
// credentials.
const publicCDNHost = "lh3.googleusercontent.com"

// A sizing suffix is the trailing segment lh3 URLs use to pick a rendition,
// e.g. "=w400-h400-c" or "=s1600".
var sizingSuffix = regexp.MustCompile(`^=[whs]\d`)

// StripSizingSuffix removes a trailing lh3 sizing suffix so the CDN serves
// the full-resolution original. URLs without one pass through unchanged.
func StripSizingSuffix(rawURL string) string {
	idx := strings.LastIndex(rawURL, "=")
	if idx == -1 {
		return rawURL
	}
	if sizingSuffix.MatchString(rawURL[idx:]) {
		return rawURL[:idx]
	}
	return rawURL
}

// IsPublicCDN reports whether rawURL points at the anonymous image CDN.
func IsPublicCDN(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Hostname() == publicCDNHost
}

// ByteFetcher downloads image bytes for the proxy and the upload pipeline.
// Public CDN URLs go out on the anonymous client; everything else uses the
// caller's authorized client.
type ByteFetcher struct {
	anon    *http.Client
	maxSize int64
}

func NewByteFetcher(timeout time.Duration, maxSize int64) *ByteFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 256 << 20
	}
	return &ByteFetcher{
		anon:    &http.Client{Timeout: timeout},
		maxSize: maxSize,
	}
}

// Fetch downloads rawURL and returns the bytes with their content type.
func (b *ByteFetcher) Fetch(ctx context.Context, rawURL string, authed *http.Client) ([]byte, string, error) {
	client := authed
	if client == nil || IsPublicCDN(rawURL) {
		client = b.anon
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &apperrors.ErrMalformed{Provider: "image_source", Detail: "bad image URL"}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", &apperrors.ErrNetwork{Op: "image fetch", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		if !IsPublicCDN(rawURL) {
			return nil, "", &apperrors.ErrAuthExpired{
				Provider: "google",
				Err:      &apperrors.ErrUpstreamAPI{Provider: "image_source", Status: resp.StatusCode},
			}
		}
		fallthrough
	default:
		return nil, "", &apperrors.ErrUpstreamAPI{
			Provider: "image_source",
			Status:   resp.StatusCode,
			Message:  "image fetch failed",
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxSize))
	if err != nil {
		return nil, "", &apperrors.ErrNetwork{Op: "image fetch", Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// FullResolution downloads the original-quality rendition of rawURL.
func (b *ByteFetcher) FullResolution(ctx context.Context, rawURL string, authed *http.Client) ([]byte, string, error) {
	return b.Fetch(ctx, StripSizingSuffix(rawURL), authed)
}
