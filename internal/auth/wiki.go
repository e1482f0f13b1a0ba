package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/g2commons/g2commons/internal/config"
	apperrors "github.com/g2commons/g2commons/internal/errors"
	"github.com/g2commons/g2commons/internal/models"
	"github.com/g2commons/g2commons/internal/session"
)

// WikiFlow runs whichever Wikimedia authorization flow the deployment
// configured: the OAuth2 authorization-code flow, the legacy OAuth1a
// three-legged flow, or pre-provisioned static tokens for single-owner
// installs.
type WikiFlow struct {
	cfg        config.WikiConfig
	store      *CredentialStore
	oauth2cfg  *oauth2.Config
	oauth1     *OAuth1Client
	httpClient *http.Client
}

func NewWikiFlow(cfg config.WikiConfig, store *CredentialStore) *WikiFlow {
	f := &WikiFlow{
		cfg:        cfg,
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	switch cfg.Flow {
	case config.WikiFlowOAuth2:
		f.oauth2cfg = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"basic", "uploadfile", "editpage"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.Endpoints.OAuth2Authorize,
				TokenURL: cfg.Endpoints.OAuth2Token,
			},
		}
	case config.WikiFlowOAuth1:
		f.oauth1 = NewOAuth1Client(cfg.ConsumerKey, cfg.ConsumerSecret, f.httpClient, cfg.UserAgent)
	}
	return f
}

// Begin starts the configured flow. A non-empty return is the provider URL
// to redirect the browser to; an empty return means the flow completed with
// no redirect leg (static tokens).
func (f *WikiFlow) Begin(ctx context.Context, sess session.Session) (string, error) {
	switch f.cfg.Flow {
	case config.WikiFlowStatic:
		return "", f.saveStatic(sess)

	case config.WikiFlowOAuth2:
		state := uuid.NewString()
		verifier := oauth2.GenerateVerifier()
		sess.Set(keyWikiOAuthState, state)
		sess.Set(keyWikiPKCEVerifier, verifier)
		if err := sess.Save(); err != nil {
			return "", &apperrors.ErrSessionStore{Operation: "save", Err: err}
		}
		return f.oauth2cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil

	case config.WikiFlowOAuth1:
		key, secret, err := f.oauth1.RequestToken(ctx, f.cfg.Endpoints.Initiate)
		if err != nil {
			return "", err
		}
		sess.Set(keyWikiRequestToken, key)
		sess.Set(keyWikiRequestSecret, secret)
		if err := sess.Save(); err != nil {
			return "", &apperrors.ErrSessionStore{Operation: "save", Err: err}
		}
		return f.oauth1.AuthorizeURL(f.cfg.Endpoints.Authorize, key)
	}
	return "", &apperrors.ErrOAuthFlow{Provider: "wikimedia", Reason: fmt.Sprintf("unsupported flow %q", f.cfg.Flow)}
}

// Finish completes the provider redirect leg.
func (f *WikiFlow) Finish(ctx context.Context, sess session.Session, query url.Values) error {
	switch f.cfg.Flow {
	case config.WikiFlowOAuth2:
		return f.finishOAuth2(ctx, sess, query.Get("state"), query.Get("code"))
	case config.WikiFlowOAuth1:
		return f.finishOAuth1(ctx, sess, query.Get("oauth_verifier"))
	}
	return &apperrors.ErrOAuthFlow{Provider: "wikimedia", Reason: fmt.Sprintf("flow %q has no callback leg", f.cfg.Flow)}
}

func (f *WikiFlow) saveStatic(sess session.Session) error {
	var cred *models.WikiCredential
	if f.cfg.AccessToken != "" {
		cred = &models.WikiCredential{
			Kind:        models.WikiOAuth2Bearer,
			AccessToken: f.cfg.AccessToken,
		}
	} else {
		cred = &models.WikiCredential{
			Kind:           models.WikiOAuth1Token,
			Token:          f.cfg.OAuth1Token,
			TokenSecret:    f.cfg.OAuth1Secret,
			ConsumerKey:    f.cfg.ConsumerKey,
			ConsumerSecret: f.cfg.ConsumerSecret,
		}
	}
	if !cred.Valid() {
		return &apperrors.ErrOAuthFlow{Provider: "wikimedia", Reason: "static flow configured without usable tokens"}
	}
	return f.store.SaveWiki(sess, cred)
}

func (f *WikiFlow) finishOAuth2(ctx context.Context, sess session.Session, state, code string) error {
	want := session.GetString(sess, keyWikiOAuthState)
	verifier := session.GetString(sess, keyWikiPKCEVerifier)
	sess.Delete(keyWikiOAuthState)
	sess.Delete(keyWikiPKCEVerifier)
	_ = sess.Save()

	if want == "" || state != want {
		return &apperrors.ErrOAuthFlow{Provider: "wikimedia", Reason: "state mismatch"}
	}
	if code == "" {
		return &apperrors.ErrOAuthFlow{Provider: "wikimedia", Reason: "authorization code missing"}
	}
	if verifier == "" {
		return &apperrors.ErrFlowRestart{Provider: "wikimedia"}
	}

	tok, err := f.oauth2cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return &apperrors.ErrOAuthFlow{Provider: "wikimedia", Reason: "code exchange failed", Err: err}
	}

	cred := &models.WikiCredential{
		Kind:        models.WikiOAuth2Bearer,
		AccessToken: tok.AccessToken,
		Username:    f.fetchUsername(ctx, tok.AccessToken),
	}
	return f.store.SaveWiki(sess, cred)
}

// fetchUsername resolves the authorized account name from the OAuth2 profile
// endpoint. Best effort; the credential works without it.
func (f *WikiFlow) fetchUsername(ctx context.Context, accessToken string) string {
	if f.cfg.Endpoints.Profile == "" {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.Endpoints.Profile, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var profile struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return ""
	}
	return profile.Username
}

func (f *WikiFlow) finishOAuth1(ctx context.Context, sess session.Session, verifier string) error {
	key := session.GetString(sess, keyWikiRequestToken)
	secret := session.GetString(sess, keyWikiRequestSecret)
	sess.Delete(keyWikiRequestToken)
	sess.Delete(keyWikiRequestSecret)
	_ = sess.Save()

	if key == "" || secret == "" {
		return &apperrors.ErrFlowRestart{Provider: "wikimedia"}
	}
	if verifier == "" {
		return &apperrors.ErrOAuthFlow{Provider: "wikimedia", Reason: "oauth_verifier missing"}
	}

	token, tokenSecret, err := f.oauth1.AccessToken(ctx, f.cfg.Endpoints.Token, key, secret, verifier)
	if err != nil {
		return err
	}

	cred := &models.WikiCredential{
		Kind:           models.WikiOAuth1Token,
		Token:          token,
		TokenSecret:    tokenSecret,
		ConsumerKey:    f.cfg.ConsumerKey,
		ConsumerSecret: f.cfg.ConsumerSecret,
	}
	return f.store.SaveWiki(sess, cred)
}
