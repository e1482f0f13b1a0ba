package fetch

import (
	"encoding/base64"
	"strings"

	apperrors "github.com/g2commons/g2commons/internal/errors"
)

// EncodeRef wraps a source URL into an opaque, path-safe proxy reference so
// gallery responses never carry raw upstream URLs.
func EncodeRef(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// DecodeRef reverses EncodeRef. Anything that does not decode to an https
// URL is rejected; the proxy must not be steerable at arbitrary schemes.
func DecodeRef(ref string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(ref)
	if err != nil {
		return "", &apperrors.ErrMalformed{Provider: "proxy", Detail: "reference is not valid base64"}
	}
	u := string(b)
	if !strings.HasPrefix(u, "https://") {
		return "", &apperrors.ErrMalformed{Provider: "proxy", Detail: "reference is not an https URL"}
	}
	return u, nil
}
