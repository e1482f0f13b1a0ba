package upload

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const fallbackFilenameBase = "G2Commons_Upload"

// Characters MediaWiki titles cannot safely carry. Word characters, spaces,
// hyphens and dots survive; everything else is dropped.
var unsafeFilenameChars = regexp.MustCompile(`[^\w\s\-.]`)

// SanitizeFilename returns a Commons-safe filename base without extension.
func SanitizeFilename(title string) string {
	clean := strings.TrimSpace(unsafeFilenameChars.ReplaceAllString(title, ""))
	if clean == "" {
		return fallbackFilenameBase
	}
	return strings.ReplaceAll(clean, " ", "_")
}

// UniqueFilename appends a unix timestamp so repeated uploads of the same
// title never collide on Commons.
func UniqueFilename(title string, now time.Time) string {
	return fmt.Sprintf("%s_%d.jpg", SanitizeFilename(title), now.Unix())
}

// BuildWikitext generates the standard Commons file page: an Information
// box, the CC BY-SA 4.0 self-license, and one category link per category.
// Date and author resolve server-side through subst templates.
func BuildWikitext(description string, categories []string) string {
	var b strings.Builder
	b.WriteString("== {{int:filedesc}} ==\n")
	b.WriteString("{{Information\n")
	fmt.Fprintf(&b, "|description=%s\n", description)
	b.WriteString("|date={{subst:CURRENTYEAR}}-{{subst:CURRENTMONTH}}-{{subst:CURRENTDAY2}}\n")
	b.WriteString("|source={{own}}\n")
	b.WriteString("|author=[[User:{{subst:REVISIONUSER}}|]]\n")
	b.WriteString("}}\n\n")
	b.WriteString("== {{int:license-header}} ==\n")
	b.WriteString("{{self|cc-by-sa-4.0}}\n")

	lines := make([]string, 0, len(categories))
	for _, c := range categories {
		lines = append(lines, fmt.Sprintf("[[Category:%s]]", c))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// UploadComment builds the edit summary, truncated so an essay-length
// description does not blow the comment field.
func UploadComment(description string) string {
	runes := []rune(description)
	if len(runes) > 200 {
		runes = runes[:200]
	}
	return "Uploaded via G2Commons: " + string(runes)
}
