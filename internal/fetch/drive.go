package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	apperrors "github.com/g2commons/g2commons/internal/errors"
)

const driveScope = "https://www.googleapis.com/auth/drive"

// driveQuery lists every non-trashed image the user can see, shared drives
// included.
const (
	driveQuery  = "mimeType contains 'image/' and trashed = false"
	driveFields = "nextPageToken, files(id, name, thumbnailLink, webContentLink)"
)

// DriveFetcher pages through the user's Google Drive images.
type DriveFetcher struct {
	svc      *drive.Service
	pageSize int64
}

// NewDriveFetcher builds a Drive lister on an OAuth2-authorized client.
// Extra options are for tests pointing at a local endpoint.
func NewDriveFetcher(ctx context.Context, client *http.Client, pageSize int, opts ...option.ClientOption) (*DriveFetcher, error) {
	all := append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return &DriveFetcher{svc: svc, pageSize: int64(pageSize)}, nil
}

func (f *DriveFetcher) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	call := f.svc.Files.List().
		Q(driveQuery).
		Fields(driveFields).
		OrderBy("name").
		PageSize(f.pageSize).
		Corpora("user").
		IncludeItemsFromAllDrives(true).
		SupportsAllDrives(true).
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	res, err := call.Do()
	if err != nil {
		return nil, classifyDriveError(err)
	}

	page := &Page{NextCursor: res.NextPageToken}
	for _, file := range res.Files {
		display := file.ThumbnailLink
		if display == "" {
			display = file.WebContentLink
		}
		if display == "" || file.WebContentLink == "" {
			continue
		}
		page.Items = append(page.Items, Item{
			DisplayURL: display,
			RawURL:     file.WebContentLink,
		})
	}
	return page, nil
}

// classifyDriveError maps Drive SDK failures into the error taxonomy using
// the structured googleapi error, never message text from 403 bodies alone.
func classifyDriveError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &apperrors.ErrNetwork{Op: "drive list", Err: err}
	}

	switch gerr.Code {
	case http.StatusUnauthorized:
		return &apperrors.ErrAuthExpired{Provider: "google", Err: gerr}
	case http.StatusForbidden:
		for _, item := range gerr.Errors {
			if item.Reason == "insufficientPermissions" || item.Reason == "insufficientScopes" {
				return &apperrors.ErrScopeMissing{Provider: "google", Scope: driveScope}
			}
		}
	}
	return &apperrors.ErrUpstreamAPI{
		Provider: "google_drive",
		Status:   gerr.Code,
		Message:  gerr.Message,
	}
}
