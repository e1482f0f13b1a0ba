package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/g2commons/g2commons/internal/auth"
	"github.com/g2commons/g2commons/internal/config"
	apperrors "github.com/g2commons/g2commons/internal/errors"
	"github.com/g2commons/g2commons/internal/models"
)

// Error codes MediaWiki returns when the authorization behind a request is
// no longer usable.
var authExpiredCodes = map[string]bool{
	"mwoauth-invalid-authorization": true,
	"badtoken":                      true,
	"mustbeloggedin":                true,
}

// Client talks to the Commons action API with whichever credential the
// session holds: an OAuth2 bearer token or an OAuth1a token pair.
type Client struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client
	cred       *models.WikiCredential
	oauth1     *auth.OAuth1Client
}

func NewClient(cfg config.WikiConfig, cred *models.WikiCredential, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &Client{
		apiURL:     cfg.Endpoints.API,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
		cred:       cred,
	}
	if cred.Kind == models.WikiOAuth1Token {
		c.oauth1 = auth.NewOAuth1Client(cred.ConsumerKey, cred.ConsumerSecret, c.httpClient, cfg.UserAgent)
	}
	return c
}

func (c *Client) authorize(req *http.Request) error {
	switch c.cred.Kind {
	case models.WikiOAuth2Bearer:
		req.Header.Set("Authorization", "Bearer "+c.cred.AccessToken)
		return nil
	case models.WikiOAuth1Token:
		return c.oauth1.SignRequest(req, c.cred.Token, c.cred.TokenSecret)
	}
	return &apperrors.ErrAuthMissing{Provider: "wikimedia"}
}

// CSRFToken fetches an edit token. MediaWiki hands anonymous callers the
// literal token "+\\", which means the authorization was silently dropped.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	q := url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"csrf"},
		"format": {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", &apperrors.ErrMalformed{Provider: "wikimedia_commons", Detail: "bad API URL"}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if err := c.authorize(req); err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &apperrors.ErrNetwork{Op: "csrf token fetch", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &apperrors.ErrNetwork{Op: "csrf token fetch", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &apperrors.ErrUpstreamAPI{Provider: "wikimedia_commons", Status: resp.StatusCode}
	}

	var payload struct {
		Error *apiError `json:"error"`
		Query struct {
			Tokens struct {
				CSRFToken string `json:"csrftoken"`
			} `json:"tokens"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &apperrors.ErrMalformed{Provider: "wikimedia_commons", Detail: "token response is not JSON"}
	}
	if payload.Error != nil {
		return "", payload.Error.classify()
	}

	token := payload.Query.Tokens.CSRFToken
	if token == "" || token == `+\` {
		return "", &apperrors.ErrAuthExpired{
			Provider: "wikimedia",
			Err:      fmt.Errorf("commons issued an anonymous edit token"),
		}
	}
	return token, nil
}

// Upload pushes one image to Commons and returns the final filename and its
// file page URL.
func (c *Client) Upload(ctx context.Context, filename string, image []byte, pagetext, comment string) (string, string, error) {
	csrf, err := c.CSRFToken(ctx)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"action":         "upload",
		"filename":       filename,
		"token":          csrf,
		"text":           pagetext,
		"comment":        comment,
		"format":         "json",
		"ignorewarnings": "1",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", "", fmt.Errorf("build upload form: %w", err)
		}
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)},
		"Content-Type":        {"image/jpeg"},
	})
	if err != nil {
		return "", "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", "", fmt.Errorf("build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &buf)
	if err != nil {
		return "", "", &apperrors.ErrMalformed{Provider: "wikimedia_commons", Detail: "bad API URL"}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if err := c.authorize(req); err != nil {
		return "", "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", &apperrors.ErrNetwork{Op: "commons upload", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", &apperrors.ErrNetwork{Op: "commons upload", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", &apperrors.ErrUpstreamAPI{Provider: "wikimedia_commons", Status: resp.StatusCode}
	}

	var payload struct {
		Error  *apiError `json:"error"`
		Upload *struct {
			Result   string `json:"result"`
			Filename string `json:"filename"`
		} `json:"upload"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", &apperrors.ErrMalformed{Provider: "wikimedia_commons", Detail: "upload response is not JSON"}
	}
	if payload.Error != nil {
		return "", "", payload.Error.classify()
	}
	if payload.Upload == nil || payload.Upload.Result != "Success" {
		return "", "", &apperrors.ErrMalformed{Provider: "wikimedia_commons", Detail: "upload result missing or not Success"}
	}

	name := payload.Upload.Filename
	if name == "" {
		name = filename
	}
	return name, c.filePageURL(name), nil
}

// filePageURL derives the human-facing file page from the API endpoint so
// test wikis link to themselves.
func (c *Client) filePageURL(filename string) string {
	base := strings.TrimSuffix(c.apiURL, "/w/api.php")
	return base + "/wiki/File:" + filename
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *apiError) classify() error {
	if authExpiredCodes[e.Code] {
		return &apperrors.ErrAuthExpired{
			Provider: "wikimedia",
			Err:      &apperrors.ErrUpstreamAPI{Provider: "wikimedia_commons", Code: e.Code, Message: e.Info},
		}
	}
	return &apperrors.ErrUpstreamAPI{Provider: "wikimedia_commons", Code: e.Code, Message: e.Info}
}
