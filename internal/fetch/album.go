package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"

	apperrors "github.com/g2commons/g2commons/internal/errors"
)

// Hosts a shared-album link may live on. goo.gl covers legacy short links
// that redirect into photos.google.com.
var albumHosts = map[string]bool{
	"photos.app.goo.gl": true,
	"photos.google.com": true,
	"goo.gl":            true,
}

// Shared-album pages inline their images as lh3 CDN URLs with an opaque
// path of at least 30 URL-safe characters.
var lh3Pattern = regexp.MustCompile(`https://lh3\.googleusercontent\.com/([A-Za-z0-9_\-]{30,})`)

// ValidateAlbumURL checks that raw parses as an https URL on a known
// shared-album host.
func ValidateAlbumURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || !albumHosts[u.Hostname()] {
		return &apperrors.ErrMalformed{Provider: "google_photos_album", Detail: "not a shared album link"}
	}
	return nil
}

// AlbumFetcher scrapes image URLs out of a public shared-album page. No
// credentials are involved; the page is served to anyone with the link.
type AlbumFetcher struct {
	client   *RotatingClient
	albumURL string
}

func NewAlbumFetcher(client *RotatingClient, albumURL string) (*AlbumFetcher, error) {
	if err := ValidateAlbumURL(albumURL); err != nil {
		return nil, err
	}
	return &AlbumFetcher{client: client, albumURL: albumURL}, nil
}

// FetchPage returns the album's images in first-appearance order. Albums
// are a single-page source: the page embeds everything, so a non-empty
// cursor yields an empty terminal page.
func (f *AlbumFetcher) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	if cursor != "" {
		return &Page{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.albumURL, nil)
	if err != nil {
		return nil, &apperrors.ErrMalformed{Provider: "google_photos_album", Detail: "bad album URL"}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &apperrors.ErrNetwork{Op: "album fetch", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &apperrors.ErrUpstreamAPI{
			Provider: "google_photos_album",
			Status:   resp.StatusCode,
			Message:  "album page fetch failed",
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, &apperrors.ErrNetwork{Op: "album fetch", Err: err}
	}

	page := &Page{}
	seen := map[string]bool{}
	for _, base := range lh3Pattern.FindAllString(string(body), -1) {
		if seen[base] {
			continue
		}
		seen[base] = true
		page.Items = append(page.Items, Item{
			DisplayURL: base + thumbSuffix,
			RawURL:     base,
		})
	}
	return page, nil
}
