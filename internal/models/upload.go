package models

import "strings"

// UploadItem is one user-selected image plus its metadata, consumed exactly
// once per pipeline run.
type UploadItem struct {
	SourceRef   string // encoded reference as served by the image proxy
	Title       string
	Description string
	Categories  []string
}

// NewUploadItem builds an item from raw form values, splitting and
// deduplicating the comma-separated category list in first-seen order.
func NewUploadItem(sourceRef, title, description, rawCategories string) UploadItem {
	item := UploadItem{
		SourceRef:   sourceRef,
		Title:       title,
		Description: description,
	}
	seen := make(map[string]struct{})
	for _, c := range strings.Split(rawCategories, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		item.Categories = append(item.Categories, c)
	}
	return item
}

// UploadResult is the outcome for one UploadItem; the pipeline produces one
// per input item, in input order.
type UploadResult struct {
	Success   bool
	Filename  string
	URL       string
	Error     string
	ErrorKind string
}
