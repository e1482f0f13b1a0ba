package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/g2commons/g2commons/internal/errors"
)

const defaultPhotosBaseURL = "https://photoslibrary.googleapis.com/v1"

// lh3 base URLs accept a sizing suffix; this one renders square gallery
// thumbnails.
const thumbSuffix = "=w400-h400-c"

const photosScope = "https://www.googleapis.com/auth/photoslibrary.readonly"

// PhotosFetcher pages through the user's Google Photos library via the
// Photos Library REST API.
type PhotosFetcher struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

// NewPhotosFetcher wraps an OAuth2-authorized HTTP client. BaseURL is
// overridable through the returned struct for test servers.
func NewPhotosFetcher(client *http.Client, pageSize int) *PhotosFetcher {
	return &PhotosFetcher{
		client:   client,
		baseURL:  defaultPhotosBaseURL,
		pageSize: pageSize,
	}
}

func (f *PhotosFetcher) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	q := url.Values{"pageSize": {strconv.Itoa(f.pageSize)}}
	if cursor != "" {
		q.Set("pageToken", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/mediaItems?"+q.Encode(), nil)
	if err != nil {
		return nil, &apperrors.ErrMalformed{Provider: "google_photos", Detail: "bad request URL"}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &apperrors.ErrNetwork{Op: "photos list", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &apperrors.ErrNetwork{Op: "photos list", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyPhotosError(resp.StatusCode, body)
	}

	var payload struct {
		MediaItems []struct {
			BaseURL  string `json:"baseUrl"`
			MimeType string `json:"mimeType"`
		} `json:"mediaItems"`
		NextPageToken string `json:"nextPageToken"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &apperrors.ErrMalformed{Provider: "google_photos", Detail: "list response is not JSON"}
	}

	page := &Page{NextCursor: payload.NextPageToken}
	for _, mi := range payload.MediaItems {
		if mi.BaseURL == "" || !strings.HasPrefix(mi.MimeType, "image/") {
			continue
		}
		page.Items = append(page.Items, Item{
			DisplayURL: mi.BaseURL + thumbSuffix,
			RawURL:     mi.BaseURL,
		})
	}
	return page, nil
}

// reasonScopeInsufficient is the google.rpc.ErrorInfo reason the API attaches
// to 403 responses for tokens granted without the photoslibrary scope.
const reasonScopeInsufficient = "ACCESS_TOKEN_SCOPE_INSUFFICIENT"

// classifyPhotosError maps Photos API failures into the error taxonomy.
// 401 means the token was rejected outright; a 403 is a missing scope grant
// only when the ErrorInfo detail says so, otherwise an upstream failure
// (API disabled on the cloud project, quota, abuse blocks).
func classifyPhotosError(status int, body []byte) error {
	var payload struct {
		Error struct {
			Code    int    `json:"code"`
			Status  string `json:"status"`
			Message string `json:"message"`
			Details []struct {
				Reason string `json:"reason"`
			} `json:"details"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	code := payload.Error.Status
	for _, d := range payload.Error.Details {
		if d.Reason != "" {
			code = d.Reason
			break
		}
	}

	switch status {
	case http.StatusUnauthorized:
		return &apperrors.ErrAuthExpired{
			Provider: "google",
			Err:      fmt.Errorf("photos API rejected the access token"),
		}
	case http.StatusForbidden:
		if code == reasonScopeInsufficient {
			return &apperrors.ErrScopeMissing{Provider: "google", Scope: photosScope}
		}
	}
	return &apperrors.ErrUpstreamAPI{
		Provider: "google_photos",
		Status:   status,
		Code:     code,
		Message:  payload.Error.Message,
	}
}
