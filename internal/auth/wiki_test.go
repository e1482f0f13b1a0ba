package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g2commons/g2commons/internal/config"
	apperrors "github.com/g2commons/g2commons/internal/errors"
	"github.com/g2commons/g2commons/internal/models"
	"github.com/g2commons/g2commons/internal/session"
)

func TestWikiFlow_StaticBearer(t *testing.T) {
	store := NewCredentialStore()
	flow := NewWikiFlow(config.WikiConfig{
		Flow:        config.WikiFlowStatic,
		AccessToken: "owner-token",
	}, store)

	sess := newFakeSession()
	redirect, err := flow.Begin(context.Background(), sess)
	require.NoError(t, err)
	assert.Empty(t, redirect)

	cred, err := store.LoadWiki(sess)
	require.NoError(t, err)
	assert.Equal(t, models.WikiOAuth2Bearer, cred.Kind)
	assert.Equal(t, "owner-token", cred.AccessToken)
}

func TestWikiFlow_StaticOAuth1Tokens(t *testing.T) {
	store := NewCredentialStore()
	flow := NewWikiFlow(config.WikiConfig{
		Flow:           config.WikiFlowStatic,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		OAuth1Token:    "at",
		OAuth1Secret:   "as",
	}, store)

	sess := newFakeSession()
	_, err := flow.Begin(context.Background(), sess)
	require.NoError(t, err)

	cred, err := store.LoadWiki(sess)
	require.NoError(t, err)
	assert.Equal(t, models.WikiOAuth1Token, cred.Kind)
	assert.Equal(t, "ck", cred.ConsumerKey)
}

func TestWikiFlow_StaticMissingTokens(t *testing.T) {
	flow := NewWikiFlow(config.WikiConfig{Flow: config.WikiFlowStatic}, NewCredentialStore())

	_, err := flow.Begin(context.Background(), newFakeSession())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))
}

func TestWikiFlow_OAuth2FullLeg(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "wiki-code", r.FormValue("code"))
		assert.NotEmpty(t, r.FormValue("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"wiki-bearer","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer wiki-bearer", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username":"CommonsUser"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewCredentialStore()
	flow := NewWikiFlow(config.WikiConfig{
		Flow:         config.WikiFlowOAuth2,
		ClientID:     "wid",
		ClientSecret: "wsecret",
		RedirectURL:  "http://localhost:8080/wiki/callback",
		Endpoints: config.WikiEndpoints{
			OAuth2Authorize: srv.URL + "/authorize",
			OAuth2Token:     srv.URL + "/token",
			Profile:         srv.URL + "/profile",
		},
	}, store)

	sess := newFakeSession()
	redirect, err := flow.Begin(context.Background(), sess)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "wid", u.Query().Get("client_id"))
	assert.Equal(t, "S256", u.Query().Get("code_challenge_method"))
	assert.NotEmpty(t, u.Query().Get("code_challenge"))

	err = flow.Finish(context.Background(), sess, url.Values{
		"state": {state},
		"code":  {"wiki-code"},
	})
	require.NoError(t, err)

	cred, err := store.LoadWiki(sess)
	require.NoError(t, err)
	assert.Equal(t, models.WikiOAuth2Bearer, cred.Kind)
	assert.Equal(t, "wiki-bearer", cred.AccessToken)
	assert.Equal(t, "CommonsUser", cred.Username)
}

func TestWikiFlow_OAuth2StateMismatch(t *testing.T) {
	flow := NewWikiFlow(config.WikiConfig{
		Flow:         config.WikiFlowOAuth2,
		ClientID:     "wid",
		ClientSecret: "wsecret",
		Endpoints:    config.WikiEndpoints{OAuth2Authorize: "https://example.org/a", OAuth2Token: "https://example.org/t"},
	}, NewCredentialStore())

	sess := newFakeSession()
	_, err := flow.Begin(context.Background(), sess)
	require.NoError(t, err)

	err = flow.Finish(context.Background(), sess, url.Values{
		"state": {"forged"},
		"code":  {"wiki-code"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))
}

func TestWikiFlow_OAuth2VerifierLostRestartsFlow(t *testing.T) {
	flow := NewWikiFlow(config.WikiConfig{
		Flow:         config.WikiFlowOAuth2,
		ClientID:     "wid",
		ClientSecret: "wsecret",
		Endpoints:    config.WikiEndpoints{OAuth2Authorize: "https://example.org/a", OAuth2Token: "https://example.org/t"},
	}, NewCredentialStore())

	sess := newFakeSession()
	redirect, err := flow.Begin(context.Background(), sess)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	// A new session between the legs keeps the state but loses the verifier.
	sess.Delete(keyWikiPKCEVerifier)

	err = flow.Finish(context.Background(), sess, url.Values{
		"state": {state},
		"code":  {"wiki-code"},
	})
	require.Error(t, err)

	var restart *apperrors.ErrFlowRestart
	assert.ErrorAs(t, err, &restart)
}

func TestWikiFlow_OAuth1FullLeg(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/initiate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key":"req-token","secret":"req-secret"}`))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.Contains(t, auth, `oauth_token="req-token"`)
		assert.Contains(t, auth, `oauth_verifier="ver-1"`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key":"access-token","secret":"access-secret"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := NewCredentialStore()
	flow := NewWikiFlow(config.WikiConfig{
		Flow:           config.WikiFlowOAuth1,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Endpoints: config.WikiEndpoints{
			Initiate:  srv.URL + "/initiate",
			Authorize: srv.URL + "/authorize",
			Token:     srv.URL + "/token",
		},
	}, store)

	sess := newFakeSession()
	redirect, err := flow.Begin(context.Background(), sess)
	require.NoError(t, err)
	assert.Contains(t, redirect, "oauth_token=req-token")
	assert.Contains(t, redirect, "oauth_consumer_key=ck")
	assert.Equal(t, "req-token", session.GetString(sess, keyWikiRequestToken))

	err = flow.Finish(context.Background(), sess, url.Values{"oauth_verifier": {"ver-1"}})
	require.NoError(t, err)

	cred, err := store.LoadWiki(sess)
	require.NoError(t, err)
	assert.Equal(t, models.WikiOAuth1Token, cred.Kind)
	assert.Equal(t, "access-token", cred.Token)
	assert.Equal(t, "access-secret", cred.TokenSecret)
	assert.Equal(t, "ck", cred.ConsumerKey)
	assert.Equal(t, "cs", cred.ConsumerSecret)

	// Request token state is single-use.
	assert.Empty(t, session.GetString(sess, keyWikiRequestToken))
}

func TestWikiFlow_OAuth1LostRequestToken(t *testing.T) {
	flow := NewWikiFlow(config.WikiConfig{
		Flow:           config.WikiFlowOAuth1,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Endpoints:      config.WikiEndpoints{Token: "https://example.org/t"},
	}, NewCredentialStore())

	err := flow.Finish(context.Background(), newFakeSession(), url.Values{"oauth_verifier": {"ver-1"}})
	require.Error(t, err)

	var restart *apperrors.ErrFlowRestart
	require.ErrorAs(t, err, &restart)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))
}
