package web

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/g2commons/g2commons/internal/auth"
	apperrors "github.com/g2commons/g2commons/internal/errors"
	"github.com/g2commons/g2commons/internal/fetch"
	"github.com/g2commons/g2commons/internal/models"
	"github.com/g2commons/g2commons/internal/session"
	"github.com/g2commons/g2commons/internal/upload"
)

// Session keys for gallery and upload state.
const (
	keyGallery     = "gallery"
	keyUploadItems = "upload_items"
)

const proxyBasePath = "/gallery/image_proxy/"

// All upload runs share one limiter key: the cap protects the Commons API,
// not individual sessions.
const uploadSlotKey = "commons"

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindAuthMissing, apperrors.KindAuthExpired:
		return http.StatusUnauthorized
	case apperrors.KindScopeMissing:
		return http.StatusForbidden
	case apperrors.KindMalformed:
		return http.StatusBadRequest
	case apperrors.KindNetwork, apperrors.KindUpstreamAPI:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	s.logger.WarnCtx(c.Request.Context(), "request failed",
		"path", c.Request.URL.Path, "kind", string(kind), "error", err.Error())
	c.JSON(statusForKind(kind), gin.H{"error": err.Error(), "kind": string(kind)})
}

func getGallery(sess session.Session) (models.Gallery, bool) {
	g, ok := sess.Get(keyGallery).(models.Gallery)
	return g, ok && g.Domain != ""
}

// handleHome reports session state: which providers are connected, the
// gallery in progress, and any flash messages from completed flows.
func (s *Server) handleHome(c *gin.Context) {
	sess := session.FromContext(c)
	flashes := sess.Flashes()
	_ = sess.Save()

	messages := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if m, ok := f.(string); ok {
			messages = append(messages, m)
		}
	}

	payload := gin.H{
		"google_authenticated": s.creds.HasGoogle(sess),
		"wiki_authenticated":   s.creds.HasWiki(sess),
		"messages":             messages,
	}
	if g, ok := getGallery(sess); ok {
		payload["gallery"] = gin.H{
			"domain":   g.Domain,
			"images":   g.Len(),
			"has_more": g.Cursor != "",
		}
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGoogleLogin(c *gin.Context) {
	sess := session.FromContext(c)
	loginURL, err := s.googleFlow.LoginURL(sess)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, loginURL)
}

func (s *Server) handleGoogleCallback(c *gin.Context) {
	sess := session.FromContext(c)
	err := s.googleFlow.HandleCallback(c.Request.Context(), sess, c.Query("state"), c.Query("code"))
	if err != nil {
		s.metrics.RecordAuthFlow("google", "failure")
		sess.AddFlash("Google sign-in failed: " + err.Error())
		_ = sess.Save()
		c.Redirect(http.StatusFound, "/")
		return
	}

	s.metrics.RecordAuthFlow("google", "success")
	sess.AddFlash("Signed in with Google")
	_ = sess.Save()
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleWikiLogin(c *gin.Context) {
	sess := session.FromContext(c)
	redirect, err := s.wikiFlow.Begin(c.Request.Context(), sess)
	if err != nil {
		s.metrics.RecordAuthFlow("wikimedia", "failure")
		s.respondError(c, err)
		return
	}
	if redirect == "" {
		// Static flow has no provider leg.
		s.metrics.RecordAuthFlow("wikimedia", "success")
		sess.AddFlash("Wikimedia credentials configured")
		_ = sess.Save()
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.Redirect(http.StatusFound, redirect)
}

func (s *Server) handleWikiCallback(c *gin.Context) {
	sess := session.FromContext(c)
	err := s.wikiFlow.Finish(c.Request.Context(), sess, c.Request.URL.Query())
	if err != nil {
		s.metrics.RecordAuthFlow("wikimedia", "failure")
		var restart *apperrors.ErrFlowRestart
		if stderrors.As(err, &restart) {
			sess.AddFlash("Wikimedia authorization was interrupted, please start again")
		} else {
			sess.AddFlash("Wikimedia authorization failed: " + err.Error())
		}
		_ = sess.Save()
		c.Redirect(http.StatusFound, "/")
		return
	}

	s.metrics.RecordAuthFlow("wikimedia", "success")
	sess.AddFlash("Connected to Wikimedia Commons")
	_ = sess.Save()
	c.Redirect(http.StatusFound, "/")
}

func (s *Server) handleLogout(c *gin.Context) {
	sess := session.FromContext(c)
	sess.Clear()
	_ = sess.Save()
	c.Redirect(http.StatusFound, "/")
}

// handleGalleryStart begins a new gallery for the posted source domain and
// fetches its first page, replacing any gallery in progress.
func (s *Server) handleGalleryStart(c *gin.Context) {
	sess := session.FromContext(c)

	domain := c.PostForm("domain")
	if !models.ValidDomain(domain) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source domain", "kind": string(apperrors.KindMalformed)})
		return
	}

	g := models.Gallery{Domain: models.Domain(domain)}
	if g.Domain == models.DomainSharedAlbum {
		g.AlbumURL = c.PostForm("album_url")
		if err := fetch.ValidateAlbumURL(g.AlbumURL); err != nil {
			s.respondError(c, err)
			return
		}
	}

	s.fetchInto(c, sess, &g)
}

// handleGalleryMore appends the next page to the gallery in progress.
func (s *Server) handleGalleryMore(c *gin.Context) {
	sess := session.FromContext(c)

	g, ok := getGallery(sess)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no gallery in progress", "kind": string(apperrors.KindMalformed)})
		return
	}
	if g.Cursor == "" {
		c.JSON(http.StatusOK, gin.H{
			"domain":   g.Domain,
			"added":    0,
			"total":    g.Len(),
			"has_more": false,
		})
		return
	}

	s.fetchInto(c, sess, &g)
}

func (s *Server) fetchInto(c *gin.Context, sess session.Session, g *models.Gallery) {
	ctx := c.Request.Context()
	source := string(g.Domain)

	fetcher, err := s.fetcherFor(c, sess, g)
	if err != nil {
		s.metrics.RecordFetchPage(source, string(apperrors.KindOf(err)), 0)
		s.respondError(c, err)
		return
	}

	page, err := fetcher.FetchPage(ctx, g.Cursor)
	if err != nil {
		s.metrics.RecordFetchPage(source, string(apperrors.KindOf(err)), 0)
		s.dropGoogleOnAuthFailure(sess, g.Domain, err)
		s.respondError(c, err)
		return
	}

	displayRefs := make([]string, 0, len(page.Items))
	rawRefs := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		displayRefs = append(displayRefs, fetch.EncodeRef(item.DisplayURL))
		rawRefs = append(rawRefs, fetch.EncodeRef(item.RawURL))
	}
	g.Extend(displayRefs, rawRefs, page.NextCursor)

	sess.Set(keyGallery, *g)
	if err := sess.Save(); err != nil {
		s.respondError(c, &apperrors.ErrSessionStore{Operation: "save", Err: err})
		return
	}

	s.metrics.RecordFetchPage(source, "success", len(page.Items))
	c.JSON(http.StatusOK, gin.H{
		"domain":   g.Domain,
		"added":    len(page.Items),
		"total":    g.Len(),
		"has_more": g.Cursor != "",
	})
}

// dropGoogleOnAuthFailure forces a fresh Google sign-in when the API reports
// the stored grant is no longer usable. Local expiry is handled inside the
// credential store; this covers revocations and scope downgrades surfacing as
// fetch failures.
func (s *Server) dropGoogleOnAuthFailure(sess session.Session, domain models.Domain, err error) {
	if domain != models.DomainPhotos && domain != models.DomainDrive {
		return
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindAuthExpired, apperrors.KindScopeMissing:
		s.creds.ClearGoogle(sess)
	}
}

func (s *Server) fetcherFor(c *gin.Context, sess session.Session, g *models.Gallery) (fetch.Fetcher, error) {
	ctx := c.Request.Context()

	switch g.Domain {
	case models.DomainSharedAlbum:
		return s.newAlbumFetcher(g.AlbumURL)
	case models.DomainPhotos, models.DomainDrive:
		creds, err := s.creds.LoadGoogle(ctx, sess)
		if err != nil {
			return nil, err
		}
		client := auth.GoogleClient(ctx, creds)
		if g.Domain == models.DomainPhotos {
			return s.newPhotosFetcher(client), nil
		}
		return s.newDriveFetcher(ctx, client)
	}
	return nil, &apperrors.ErrMalformed{Provider: "gallery", Detail: "unknown source domain"}
}

// handleGalleryDisplay returns the gallery as proxy-safe image entries.
func (s *Server) handleGalleryDisplay(c *gin.Context) {
	sess := session.FromContext(c)

	g, ok := getGallery(sess)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"images": []gin.H{}, "has_more": false})
		return
	}

	images := make([]gin.H, 0, g.Len())
	for i := range g.Images {
		images = append(images, gin.H{
			"display": proxyBasePath + g.Images[i],
			"ref":     g.RawURLs[i],
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"domain":   g.Domain,
		"images":   images,
		"has_more": g.Cursor != "",
	})
}

func (s *Server) handleImageProxy(c *gin.Context) {
	ctx := c.Request.Context()
	sess := session.FromContext(c)

	var authed *http.Client
	if creds, err := s.creds.LoadGoogle(ctx, sess); err == nil {
		authed = auth.GoogleClient(ctx, creds)
	}
	s.imageProxy.Serve(ctx, c.Writer, c.Param("ref"), authed)
}

// handleUploadSelect stages the chosen gallery images for metadata entry.
func (s *Server) handleUploadSelect(c *gin.Context) {
	sess := session.FromContext(c)

	refs := c.PostFormArray("refs")
	if len(refs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images selected", "kind": string(apperrors.KindMalformed)})
		return
	}

	g, ok := getGallery(sess)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no gallery in progress", "kind": string(apperrors.KindMalformed)})
		return
	}
	known := make(map[string]bool, g.Len())
	for _, r := range g.RawURLs {
		known[r] = true
	}

	items := make([]models.UploadItem, 0, len(refs))
	for _, ref := range refs {
		if !known[ref] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown image reference", "kind": string(apperrors.KindMalformed)})
			return
		}
		items = append(items, models.UploadItem{SourceRef: ref})
	}

	sess.Set(keyUploadItems, items)
	if err := sess.Save(); err != nil {
		s.respondError(c, &apperrors.ErrSessionStore{Operation: "save", Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": len(items)})
}

// handleSaveMetadata attaches titles, descriptions and categories to the
// staged selection. Form arrays are aligned by index.
func (s *Server) handleSaveMetadata(c *gin.Context) {
	sess := session.FromContext(c)

	refs := c.PostFormArray("refs")
	titles := c.PostFormArray("titles")
	descriptions := c.PostFormArray("descriptions")
	categories := c.PostFormArray("categories")

	if len(refs) == 0 || len(titles) != len(refs) || len(descriptions) != len(refs) || len(categories) != len(refs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metadata fields are misaligned", "kind": string(apperrors.KindMalformed)})
		return
	}

	g, ok := getGallery(sess)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no gallery in progress", "kind": string(apperrors.KindMalformed)})
		return
	}
	known := make(map[string]bool, g.Len())
	for _, r := range g.RawURLs {
		known[r] = true
	}

	items := make([]models.UploadItem, 0, len(refs))
	for i, ref := range refs {
		if !known[ref] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown image reference", "kind": string(apperrors.KindMalformed)})
			return
		}
		items = append(items, models.NewUploadItem(ref, titles[i], descriptions[i], categories[i]))
	}

	sess.Set(keyUploadItems, items)
	if err := sess.Save(); err != nil {
		s.respondError(c, &apperrors.ErrSessionStore{Operation: "save", Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": len(items)})
}

// handleUploadRun uploads the staged items to Commons. The staged batch is
// consumed whether or not every item succeeds.
func (s *Server) handleUploadRun(c *gin.Context) {
	ctx := c.Request.Context()
	sess := session.FromContext(c)

	items, ok := sess.Get(keyUploadItems).([]models.UploadItem)
	if !ok || len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no upload batch staged", "kind": string(apperrors.KindMalformed)})
		return
	}

	wikiCred, err := s.creds.LoadWiki(sess)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if !s.uploads.Acquire(uploadSlotKey) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many uploads in progress, try again shortly"})
		return
	}
	defer s.uploads.Release(uploadSlotKey)

	var googleClient *http.Client
	if creds, err := s.creds.LoadGoogle(ctx, sess); err == nil {
		googleClient = auth.GoogleClient(ctx, creds)
	}
	fetchImage := func(fctx context.Context, rawURL string) ([]byte, error) {
		data, _, err := s.bytes.FullResolution(fctx, rawURL, googleClient)
		return data, err
	}

	pipe := upload.NewPipeline(fetchImage, s.newCommons(wikiCred), s.logger, s.metrics)
	results, runErr := pipe.Run(ctx, items)

	sess.Delete(keyUploadItems)
	if runErr != nil && apperrors.KindOf(runErr) == apperrors.KindAuthExpired {
		s.creds.ClearWiki(sess)
		sess.AddFlash("Wikimedia authorization expired, please sign in again")
	}
	_ = sess.Save()

	s.notifier.UploadSummary(results)

	if runErr != nil {
		c.JSON(statusForKind(apperrors.KindOf(runErr)), gin.H{
			"error":   runErr.Error(),
			"kind":    string(apperrors.KindOf(runErr)),
			"results": results,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
