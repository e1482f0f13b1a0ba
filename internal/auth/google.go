package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/g2commons/g2commons/internal/config"
	apperrors "github.com/g2commons/g2commons/internal/errors"
	"github.com/g2commons/g2commons/internal/models"
	"github.com/g2commons/g2commons/internal/session"
)

// GoogleFlow runs the Google OAuth2 authorization-code flow and stores the
// resulting credentials in the session.
type GoogleFlow struct {
	oauth *oauth2.Config
	store *CredentialStore
}

func NewGoogleFlow(cfg config.GoogleConfig, store *CredentialStore) *GoogleFlow {
	return &GoogleFlow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.GoogleScopes(),
			Endpoint:     google.Endpoint,
		},
		store: store,
	}
}

// LoginURL stores a fresh state nonce in the session and returns the Google
// consent URL. Offline access plus the consent prompt makes Google issue a
// refresh token on every authorization, not only the first.
func (f *GoogleFlow) LoginURL(sess session.Session) (string, error) {
	state := uuid.NewString()
	sess.Set(keyGoogleOAuthState, state)
	if err := sess.Save(); err != nil {
		return "", &apperrors.ErrSessionStore{Operation: "save", Err: err}
	}
	return f.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// HandleCallback validates the state nonce, exchanges the code and persists
// the credentials. The nonce is single-use either way.
func (f *GoogleFlow) HandleCallback(ctx context.Context, sess session.Session, state, code string) error {
	want := session.GetString(sess, keyGoogleOAuthState)
	sess.Delete(keyGoogleOAuthState)
	_ = sess.Save()

	if want == "" || state != want {
		return &apperrors.ErrOAuthFlow{Provider: "google", Reason: "state mismatch"}
	}
	if code == "" {
		return &apperrors.ErrOAuthFlow{Provider: "google", Reason: "authorization code missing"}
	}

	tok, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return &apperrors.ErrOAuthFlow{Provider: "google", Reason: "code exchange failed", Err: err}
	}
	return f.store.SaveGoogle(sess, f.credentialsFromToken(tok))
}

// credentialsFromToken flattens an exchanged token into session credentials.
// Scopes come from the token response when Google reports them, since the
// user can deselect scopes on the consent screen.
func (f *GoogleFlow) credentialsFromToken(tok *oauth2.Token) *models.GoogleCredentials {
	creds := &models.GoogleCredentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     f.oauth.Endpoint.TokenURL,
		ClientID:     f.oauth.ClientID,
		ClientSecret: f.oauth.ClientSecret,
		Scopes:       f.oauth.Scopes,
	}
	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		creds.Scopes = strings.Fields(granted)
	}
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		creds.Expiry = &e
	}
	return creds
}
