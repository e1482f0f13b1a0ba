package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/g2commons/g2commons/internal/errors"
	"github.com/g2commons/g2commons/internal/models"
)

func fixedStore(now time.Time) *CredentialStore {
	return &CredentialStore{now: func() time.Time { return now }}
}

func TestCredentialStore_LoadGoogleMissing(t *testing.T) {
	store := NewCredentialStore()
	sess := newFakeSession()

	_, err := store.LoadGoogle(context.Background(), sess)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))
}

func TestCredentialStore_LoadGoogleLive(t *testing.T) {
	now := time.Now().UTC()
	store := fixedStore(now)
	sess := newFakeSession()

	expiry := now.Add(time.Hour)
	require.NoError(t, store.SaveGoogle(sess, &models.GoogleCredentials{
		AccessToken: "live-token",
		Expiry:      &expiry,
	}))

	creds, err := store.LoadGoogle(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "live-token", creds.AccessToken)
}

func TestCredentialStore_LoadGoogleExpiredNoRefresh(t *testing.T) {
	now := time.Now().UTC()
	store := fixedStore(now)
	sess := newFakeSession()

	expiry := now.Add(-time.Hour)
	require.NoError(t, store.SaveGoogle(sess, &models.GoogleCredentials{
		AccessToken: "stale",
		Expiry:      &expiry,
	}))

	_, err := store.LoadGoogle(context.Background(), sess)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthExpired, apperrors.KindOf(err))

	// The stale credential must be gone so the next load reports missing.
	_, err = store.LoadGoogle(context.Background(), sess)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))
}

func TestCredentialStore_LoadGoogleSilentRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))
		assert.Equal(t, "rt-1", r.FormValue("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	now := time.Now().UTC()
	store := fixedStore(now)
	sess := newFakeSession()

	expiry := now.Add(-time.Minute)
	require.NoError(t, store.SaveGoogle(sess, &models.GoogleCredentials{
		AccessToken:  "stale",
		RefreshToken: "rt-1",
		TokenURI:     srv.URL,
		ClientID:     "cid",
		ClientSecret: "cs",
		Expiry:       &expiry,
	}))

	creds, err := store.LoadGoogle(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "fresh", creds.AccessToken)
	assert.Equal(t, "rt-1", creds.RefreshToken)
	require.NotNil(t, creds.Expiry)
	assert.True(t, creds.Expiry.After(now))

	// Refreshed credentials are re-persisted, not just returned.
	again, err := store.LoadGoogle(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, "fresh", again.AccessToken)
}

func TestCredentialStore_LoadGoogleRefreshRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	now := time.Now().UTC()
	store := fixedStore(now)
	sess := newFakeSession()

	expiry := now.Add(-time.Minute)
	require.NoError(t, store.SaveGoogle(sess, &models.GoogleCredentials{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		TokenURI:     srv.URL,
		ClientID:     "cid",
		ClientSecret: "cs",
		Expiry:       &expiry,
	}))

	_, err := store.LoadGoogle(context.Background(), sess)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthExpired, apperrors.KindOf(err))

	_, err = store.LoadGoogle(context.Background(), sess)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))
}

func TestCredentialStore_WikiRoundTrip(t *testing.T) {
	store := NewCredentialStore()
	sess := newFakeSession()

	_, err := store.LoadWiki(sess)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))

	require.NoError(t, store.SaveWiki(sess, &models.WikiCredential{
		Kind:        models.WikiOAuth2Bearer,
		AccessToken: "bearer-token",
		Username:    "Uploader",
	}))

	cred, err := store.LoadWiki(sess)
	require.NoError(t, err)
	assert.Equal(t, models.WikiOAuth2Bearer, cred.Kind)
	assert.Equal(t, "bearer-token", cred.AccessToken)
	assert.Equal(t, "Uploader", cred.Username)

	store.ClearWiki(sess)
	_, err = store.LoadWiki(sess)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))
}
