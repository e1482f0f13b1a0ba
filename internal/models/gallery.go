package models

// Domain identifies an image source.
type Domain string

const (
	DomainPhotos      Domain = "photos"
	DomainDrive       Domain = "drive"
	DomainSharedAlbum Domain = "shared_album"
)

// ValidDomain reports whether s names a known source.
func ValidDomain(s string) bool {
	switch Domain(s) {
	case DomainPhotos, DomainDrive, DomainSharedAlbum:
		return true
	}
	return false
}

// Gallery is the per-session accumulated image list for one selected source.
// Images[i] is the proxy-able display reference whose full-resolution
// counterpart is RawURLs[i]; the two slices stay index-aligned. It grows
// monotonically across fetches until reset by a new initial fetch.
type Gallery struct {
	Domain   Domain
	AlbumURL string // shared_album only
	Images   []string
	RawURLs  []string
	Cursor   string
}

// Extend appends one fetched page, keeping Images and RawURLs aligned.
// Mismatched slices are truncated to the shorter length rather than breaking
// the alignment invariant.
func (g *Gallery) Extend(images, rawURLs []string, cursor string) {
	n := len(images)
	if len(rawURLs) < n {
		n = len(rawURLs)
	}
	g.Images = append(g.Images, images[:n]...)
	g.RawURLs = append(g.RawURLs, rawURLs[:n]...)
	g.Cursor = cursor
}

// Len returns the number of accumulated images.
func (g *Gallery) Len() int {
	return len(g.Images)
}
