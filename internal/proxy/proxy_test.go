package proxy

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g2commons/g2commons/internal/fetch"
	"github.com/g2commons/g2commons/internal/logging"
	"github.com/g2commons/g2commons/internal/metrics"
)

func newTestProxy() (*Proxy, *metrics.Metrics) {
	m := metrics.NewMetrics("proxytest")
	logger := logging.New(logging.WithOutput(&bytes.Buffer{}))
	return New(fetch.NewByteFetcher(5*time.Second, 1<<20), logger, m), m
}

func TestProxy_ServesImage(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	p, _ := newTestProxy()
	w := httptest.NewRecorder()
	p.Serve(context.Background(), w, fetch.EncodeRef(srv.URL), srv.Client())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())
}

func TestProxy_UpstreamFailureServesPlaceholder(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := newTestProxy()
	w := httptest.NewRecorder()
	p.Serve(context.Background(), w, fetch.EncodeRef(srv.URL), srv.Client())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	assert.Equal(t, Placeholder, w.Body.Bytes())
}

func TestProxy_BadRefServesPlaceholder(t *testing.T) {
	p, _ := newTestProxy()
	w := httptest.NewRecorder()
	p.Serve(context.Background(), w, "!!!not-a-ref!!!", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
	assert.Equal(t, Placeholder, w.Body.Bytes())
}

func TestPlaceholderIsValidGIF(t *testing.T) {
	require.True(t, len(Placeholder) > 6)
	assert.Equal(t, "GIF89a", string(Placeholder[:6]))
}
