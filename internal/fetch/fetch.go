// Package fetch lists images from the three supported sources: the Google
// Photos library, Google Drive, and public shared albums. Each source
// implements Fetcher; callers page through results with opaque cursors.
package fetch

import "context"

// Item pairs the URL rendered in the gallery with the URL fetched when the
// image is proxied or uploaded. Galleries keep the two aligned by index.
type Item struct {
	DisplayURL string
	RawURL     string
}

// Page is one page of listed images. An empty NextCursor means the source
// is exhausted.
type Page struct {
	Items      []Item
	NextCursor string
}

// Fetcher lists images from one source. Implementations classify upstream
// failures into the shared error taxonomy so handlers never inspect
// provider-specific payloads.
type Fetcher interface {
	FetchPage(ctx context.Context, cursor string) (*Page, error)
}
