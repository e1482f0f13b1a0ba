package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/g2commons/g2commons/internal/errors"
)

func lh3URL(tag string) string {
	return fmt.Sprintf("https://lh3.googleusercontent.com/%s%030d", tag, 0)
}

func TestValidateAlbumURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"short link", "https://photos.app.goo.gl/AbCdEf123", true},
		{"full link", "https://photos.google.com/share/xyz", true},
		{"legacy short link", "https://goo.gl/photos/abc", true},
		{"wrong host", "https://evil.example.org/share/xyz", false},
		{"http scheme", "http://photos.app.goo.gl/AbCdEf123", false},
		{"garbage", "not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAlbumURL(tt.url)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Equal(t, apperrors.KindMalformed, apperrors.KindOf(err))
			}
		})
	}
}

func TestAlbumFetcher_OrderedDedup(t *testing.T) {
	a, b := lh3URL("Aa"), lh3URL("Bb")
	page := fmt.Sprintf(`<html><body>
		<img src="%s=w600-h400">
		<img src="%s=w600-h400">
		<img src="%s=w600-h400">
	</body></html>`, a, b, a)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	f := &AlbumFetcher{client: NewRotatingClient(false, 5*time.Second), albumURL: srv.URL}
	got, err := f.FetchPage(context.Background(), "")
	require.NoError(t, err)

	// First appearance wins; the repeat of A must not reorder or duplicate.
	require.Len(t, got.Items, 2)
	assert.Equal(t, a, got.Items[0].RawURL)
	assert.Equal(t, b, got.Items[1].RawURL)
	assert.Equal(t, a+thumbSuffix, got.Items[0].DisplayURL)
	assert.Empty(t, got.NextCursor)
}

func TestAlbumFetcher_SecondPageIsEmpty(t *testing.T) {
	f := &AlbumFetcher{client: NewRotatingClient(false, 5*time.Second), albumURL: "https://photos.app.goo.gl/x"}
	got, err := f.FetchPage(context.Background(), "done")
	require.NoError(t, err)
	assert.Empty(t, got.Items)
	assert.Empty(t, got.NextCursor)
}

func TestAlbumFetcher_NoImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>empty album</body></html>"))
	}))
	defer srv.Close()

	f := &AlbumFetcher{client: NewRotatingClient(false, 5*time.Second), albumURL: srv.URL}
	got, err := f.FetchPage(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestAlbumFetcher_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := &AlbumFetcher{client: NewRotatingClient(false, 5*time.Second), albumURL: srv.URL}
	_, err := f.FetchPage(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindUpstreamAPI, apperrors.KindOf(err))
}

func TestNewAlbumFetcher_RejectsForeignHost(t *testing.T) {
	_, err := NewAlbumFetcher(NewRotatingClient(false, 5*time.Second), "https://example.org/album")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindMalformed, apperrors.KindOf(err))
}
