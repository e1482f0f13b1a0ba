package auth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	apperrors "github.com/g2commons/g2commons/internal/errors"
	"github.com/g2commons/g2commons/internal/models"
	"github.com/g2commons/g2commons/internal/session"
)

// Session keys for credential and flow state.
const (
	keyGoogleCredentials = "google_credentials"
	keyWikiCredential    = "wiki_credential"
	keyGoogleOAuthState  = "google_oauth_state"
	keyWikiOAuthState    = "wiki_oauth_state"
	keyWikiPKCEVerifier  = "wiki_pkce_verifier"
	keyWikiRequestToken  = "wiki_request_token"
	keyWikiRequestSecret = "wiki_request_secret"
)

// CredentialStore reads and writes provider credentials through the session.
// The session is the only datastore; nothing credential-shaped lives outside
// it. Google loads refresh the access token in place when it has expired and
// a refresh token is available.
type CredentialStore struct {
	now func() time.Time
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{now: time.Now}
}

// SaveGoogle persists Google credentials into the session.
func (s *CredentialStore) SaveGoogle(sess session.Session, creds *models.GoogleCredentials) error {
	sess.Set(keyGoogleCredentials, creds.EncodeMap())
	if err := sess.Save(); err != nil {
		return &apperrors.ErrSessionStore{Operation: "save", Err: err}
	}
	return nil
}

// LoadGoogle returns live Google credentials. Expired credentials are
// silently refreshed and re-persisted when a refresh token is present.
// Expired credentials that cannot be refreshed are cleared from the session
// so the caller lands on a clean re-auth path.
func (s *CredentialStore) LoadGoogle(ctx context.Context, sess session.Session) (*models.GoogleCredentials, error) {
	creds := models.DecodeGoogleCredentials(session.GetStringMap(sess, keyGoogleCredentials))
	if creds == nil {
		return nil, &apperrors.ErrAuthMissing{Provider: "google"}
	}
	if !creds.Expired(s.now()) {
		return creds, nil
	}
	if !creds.Refreshable() {
		s.ClearGoogle(sess)
		return nil, &apperrors.ErrAuthExpired{Provider: "google"}
	}
	refreshed, err := refreshGoogle(ctx, creds)
	if err != nil {
		s.ClearGoogle(sess)
		return nil, &apperrors.ErrAuthExpired{Provider: "google", Err: err}
	}
	if err := s.SaveGoogle(sess, refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// HasGoogle reports whether the session holds decodable Google credentials,
// without touching expiry or refresh.
func (s *CredentialStore) HasGoogle(sess session.Session) bool {
	return models.DecodeGoogleCredentials(session.GetStringMap(sess, keyGoogleCredentials)) != nil
}

// HasWiki reports whether the session holds a valid Wikimedia credential.
func (s *CredentialStore) HasWiki(sess session.Session) bool {
	return models.DecodeWikiCredential(session.GetStringMap(sess, keyWikiCredential)) != nil
}

// ClearGoogle drops Google credentials from the session.
func (s *CredentialStore) ClearGoogle(sess session.Session) {
	sess.Delete(keyGoogleCredentials)
	_ = sess.Save()
}

// SaveWiki persists a Wikimedia credential into the session.
func (s *CredentialStore) SaveWiki(sess session.Session, cred *models.WikiCredential) error {
	sess.Set(keyWikiCredential, cred.EncodeMap())
	if err := sess.Save(); err != nil {
		return &apperrors.ErrSessionStore{Operation: "save", Err: err}
	}
	return nil
}

// LoadWiki returns the stored Wikimedia credential. Wikimedia bearer tokens
// are long-lived owner grants; expiry only surfaces when the Commons API
// rejects a call, so there is no refresh leg here.
func (s *CredentialStore) LoadWiki(sess session.Session) (*models.WikiCredential, error) {
	cred := models.DecodeWikiCredential(session.GetStringMap(sess, keyWikiCredential))
	if cred == nil {
		return nil, &apperrors.ErrAuthMissing{Provider: "wikimedia"}
	}
	return cred, nil
}

// ClearWiki drops the Wikimedia credential from the session.
func (s *CredentialStore) ClearWiki(sess session.Session) {
	sess.Delete(keyWikiCredential)
	_ = sess.Save()
}

// refreshGoogle exchanges the refresh token against the credential's own
// token endpoint. The endpoint and client registration ride along in the
// credential, so the exchange needs nothing beyond what the session holds.
func refreshGoogle(ctx context.Context, creds *models.GoogleCredentials) (*models.GoogleCredentials, error) {
	cfg := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: creds.TokenURI},
	}
	stale := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	tok, err := cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, err
	}

	out := *creds
	out.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		out.Expiry = &e
	}
	return &out, nil
}

// GoogleClient returns an HTTP client that sends the credential's access
// token as a bearer. Callers load fresh credentials first; this client does
// not refresh on its own.
func GoogleClient(ctx context.Context, creds *models.GoogleCredentials) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken})
	return oauth2.NewClient(ctx, src)
}
