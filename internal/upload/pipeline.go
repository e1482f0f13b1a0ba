package upload

import (
	"context"
	"time"

	apperrors "github.com/g2commons/g2commons/internal/errors"
	"github.com/g2commons/g2commons/internal/fetch"
	"github.com/g2commons/g2commons/internal/logging"
	"github.com/g2commons/g2commons/internal/metrics"
	"github.com/g2commons/g2commons/internal/models"
)

// Commons is the upload surface the pipeline depends on.
type Commons interface {
	Upload(ctx context.Context, filename string, image []byte, pagetext, comment string) (string, string, error)
}

// ImageFetcher resolves a raw source URL to full-resolution image bytes.
type ImageFetcher func(ctx context.Context, rawURL string) ([]byte, error)

// Pipeline uploads a batch of selected images to Commons, one at a time.
// Commons rate limits make concurrent uploads counterproductive for a
// per-user batch, so the loop is deliberately sequential.
type Pipeline struct {
	fetchImage ImageFetcher
	commons    Commons
	logger     *logging.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewPipeline(fetchImage ImageFetcher, commons Commons, logger *logging.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		fetchImage: fetchImage,
		commons:    commons,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Run processes items in order and returns one result per attempted item.
// Per-item failures are recorded and the batch continues; an expired
// authorization aborts the remainder, returning the partial results
// alongside the error so completed uploads stay reported.
func (p *Pipeline) Run(ctx context.Context, items []models.UploadItem) ([]models.UploadResult, error) {
	results := make([]models.UploadResult, 0, len(items))
	for _, item := range items {
		res := p.uploadOne(ctx, item)
		results = append(results, res)

		if res.ErrorKind == string(apperrors.KindAuthExpired) {
			p.logger.WarnCtx(ctx, "upload batch aborted on expired authorization",
				"completed", len(results), "total", len(items))
			return results, &apperrors.ErrAuthExpired{Provider: "wikimedia"}
		}
	}
	return results, nil
}

func (p *Pipeline) uploadOne(ctx context.Context, item models.UploadItem) models.UploadResult {
	start := p.now()

	rawURL, err := fetch.DecodeRef(item.SourceRef)
	if err != nil {
		return p.failure(ctx, "", err, start)
	}

	image, err := p.fetchImage(ctx, rawURL)
	if err != nil {
		return p.failure(ctx, "", err, start)
	}

	filename := UniqueFilename(item.Title, p.now())
	pagetext := BuildWikitext(item.Description, item.Categories)

	name, pageURL, err := p.commons.Upload(ctx, filename, image, pagetext, UploadComment(item.Description))
	if err != nil {
		return p.failure(ctx, filename, err, start)
	}

	p.logger.InfoCtx(ctx, "uploaded to commons", "filename", name, "url", pageURL)
	if p.metrics != nil {
		p.metrics.RecordUpload("success", p.now().Sub(start).Seconds())
	}
	return models.UploadResult{
		Success:  true,
		Filename: name,
		URL:      pageURL,
	}
}

func (p *Pipeline) failure(ctx context.Context, filename string, err error, start time.Time) models.UploadResult {
	kind := apperrors.KindOf(err)
	p.logger.ErrorCtx(ctx, "upload failed", "filename", filename, "kind", string(kind), "error", err.Error())
	if p.metrics != nil {
		p.metrics.RecordUpload(string(kind), p.now().Sub(start).Seconds())
	}
	return models.UploadResult{
		Filename:  filename,
		Error:     err.Error(),
		ErrorKind: string(kind),
	}
}
