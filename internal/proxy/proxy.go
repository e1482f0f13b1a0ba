// Package proxy streams gallery image bytes to the browser so upstream URLs
// and access tokens never appear in rendered pages.
package proxy

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/g2commons/g2commons/internal/fetch"
	"github.com/g2commons/g2commons/internal/logging"
	"github.com/g2commons/g2commons/internal/metrics"
)

const placeholderB64 = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

// Placeholder is a transparent 1x1 GIF served when the upstream image cannot
// be fetched. A broken tile renders blank instead of surfacing an error.
var Placeholder = func() []byte {
	b, err := base64.StdEncoding.DecodeString(placeholderB64)
	if err != nil {
		panic(err)
	}
	return b
}()

type Proxy struct {
	bytes   *fetch.ByteFetcher
	logger  *logging.Logger
	metrics *metrics.Metrics
}

func New(bytes *fetch.ByteFetcher, logger *logging.Logger, m *metrics.Metrics) *Proxy {
	return &Proxy{bytes: bytes, logger: logger, metrics: m}
}

// Serve writes the image behind ref to w. authed carries the caller's Google
// authorization for Drive-hosted images; public CDN images ignore it. Every
// failure path degrades to the placeholder with a 200 status.
func (p *Proxy) Serve(ctx context.Context, w http.ResponseWriter, ref string, authed *http.Client) {
	rawURL, err := fetch.DecodeRef(ref)
	if err != nil {
		p.fallback(ctx, w, ref, err)
		return
	}

	data, contentType, err := p.bytes.Fetch(ctx, rawURL, authed)
	if err != nil {
		p.fallback(ctx, w, ref, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (p *Proxy) fallback(ctx context.Context, w http.ResponseWriter, ref string, err error) {
	p.logger.WarnCtx(ctx, "image proxy fallback", "ref", ref, "error", err.Error())
	if p.metrics != nil {
		p.metrics.RecordProxyFallback()
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(Placeholder)
}
