package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/g2commons/g2commons/internal/errors"
)

func fixedOAuth1Client(consumerKey, consumerSecret string, httpClient *http.Client) *OAuth1Client {
	c := NewOAuth1Client(consumerKey, consumerSecret, httpClient, "test-agent")
	c.nonce = func() string { return "fixednonce" }
	c.clock = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestPercentEncode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcABC123", "abcABC123"},
		{"-._~", "-._~"},
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"ключ", "%D0%BA%D0%BB%D1%8E%D1%87"},
		{"a=b&c", "a%3Db%26c"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentEncode(tt.in), tt.in)
	}
}

func TestSignatureBase(t *testing.T) {
	base, err := signatureBase(http.MethodPost,
		"https://commons.wikimedia.org/w/index.php?title=Special%3AOAuth%2Finitiate&format=json",
		map[string]string{
			"oauth_consumer_key": "ck",
			"oauth_nonce":        "n",
		})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(base, "POST&https%3A%2F%2Fcommons.wikimedia.org%2Fw%2Findex.php&"))
	// Query params sort in with the oauth params.
	assert.Contains(t, base, "format%3Djson")
	assert.Contains(t, base, "oauth_consumer_key%3Dck")
	assert.Contains(t, base, "title%3DSpecial%253AOAuth%252Finitiate")
}

func TestOAuth1Client_RequestToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "OAuth "))
		assert.Contains(t, auth, `oauth_consumer_key="ck"`)
		assert.Contains(t, auth, `oauth_callback="oob"`)
		assert.Contains(t, auth, `oauth_signature_method="HMAC-SHA1"`)
		assert.Contains(t, auth, "oauth_signature=")
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key":"req-token","secret":"req-secret"}`))
	}))
	defer srv.Close()

	c := fixedOAuth1Client("ck", "cs", srv.Client())
	key, secret, err := c.RequestToken(context.Background(), srv.URL+"?title=Special:OAuth/initiate&format=json")
	require.NoError(t, err)
	assert.Equal(t, "req-token", key)
	assert.Equal(t, "req-secret", secret)
}

func TestOAuth1Client_AccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		assert.Contains(t, auth, `oauth_token="req-token"`)
		assert.Contains(t, auth, `oauth_verifier="ver-1"`)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key":"access-token","secret":"access-secret"}`))
	}))
	defer srv.Close()

	c := fixedOAuth1Client("ck", "cs", srv.Client())
	key, secret, err := c.AccessToken(context.Background(), srv.URL, "req-token", "req-secret", "ver-1")
	require.NoError(t, err)
	assert.Equal(t, "access-token", key)
	assert.Equal(t, "access-secret", secret)
}

func TestOAuth1Client_TokenErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"mwoauth-oauth-exception","message":"consumer not approved"}`))
	}))
	defer srv.Close()

	c := fixedOAuth1Client("ck", "cs", srv.Client())
	_, _, err := c.RequestToken(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthMissing, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "mwoauth-oauth-exception")
}

func TestOAuth1Client_MalformedTokenBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`oauth_token=legacy&oauth_token_secret=form`))
	}))
	defer srv.Close()

	c := fixedOAuth1Client("ck", "cs", srv.Client())
	_, _, err := c.RequestToken(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindMalformed, apperrors.KindOf(err))
}

func TestOAuth1Client_AuthorizeURL(t *testing.T) {
	c := fixedOAuth1Client("ck", "cs", nil)
	raw, err := c.AuthorizeURL("https://commons.wikimedia.org/w/index.php?title=Special:OAuth/authorize", "req-token")
	require.NoError(t, err)
	assert.Contains(t, raw, "oauth_token=req-token")
	assert.Contains(t, raw, "oauth_consumer_key=ck")
	assert.Contains(t, raw, "title=Special%3AOAuth%2Fauthorize")
}

func TestOAuth1Client_SignRequest(t *testing.T) {
	c := fixedOAuth1Client("ck", "cs", nil)
	req := httptest.NewRequest(http.MethodPost, "https://commons.wikimedia.org/w/api.php?action=query", nil)
	require.NoError(t, c.SignRequest(req, "at", "as"))

	auth := req.Header.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "OAuth "))
	assert.Contains(t, auth, `oauth_token="at"`)
	assert.Contains(t, auth, "oauth_signature=")

	// Same inputs with a fixed nonce and clock must sign identically.
	req2 := httptest.NewRequest(http.MethodPost, "https://commons.wikimedia.org/w/api.php?action=query", nil)
	require.NoError(t, c.SignRequest(req2, "at", "as"))
	assert.Equal(t, auth, req2.Header.Get("Authorization"))
}
