package models

import (
	"strconv"
	"strings"
	"time"
)

// GoogleCredentials holds the Google OAuth2 material for one session.
// Serialized to the session as a flat string map via EncodeMap; the session
// layer never sees the struct directly.
type GoogleCredentials struct {
	AccessToken  string
	RefreshToken string
	TokenURI     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Expiry       *time.Time
}

// Expired reports whether the access token's expiry has passed. Credentials
// without a recorded expiry are treated as live.
func (c *GoogleCredentials) Expired(now time.Time) bool {
	return c.Expiry != nil && !c.Expiry.After(now)
}

// Refreshable reports whether a silent refresh is possible.
func (c *GoogleCredentials) Refreshable() bool {
	return c.RefreshToken != ""
}

// HasScope reports whether the granted scope set contains scope.
func (c *GoogleCredentials) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// EncodeMap serializes the credentials into a flat string map for session
// storage. Field-by-field on purpose: session contents stay inspectable and
// independent of struct layout.
func (c *GoogleCredentials) EncodeMap() map[string]string {
	m := map[string]string{
		"access_token":  c.AccessToken,
		"refresh_token": c.RefreshToken,
		"token_uri":     c.TokenURI,
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"scopes":        strings.Join(c.Scopes, " "),
	}
	if c.Expiry != nil {
		m["expiry"] = strconv.FormatInt(c.Expiry.UTC().Unix(), 10)
	}
	return m
}

// DecodeGoogleCredentials reconstructs credentials from a session map.
// Returns nil for a map without an access token.
func DecodeGoogleCredentials(m map[string]string) *GoogleCredentials {
	if m == nil || m["access_token"] == "" {
		return nil
	}
	c := &GoogleCredentials{
		AccessToken:  m["access_token"],
		RefreshToken: m["refresh_token"],
		TokenURI:     m["token_uri"],
		ClientID:     m["client_id"],
		ClientSecret: m["client_secret"],
	}
	if s := m["scopes"]; s != "" {
		c.Scopes = strings.Fields(s)
	}
	if e := m["expiry"]; e != "" {
		if sec, err := strconv.ParseInt(e, 10, 64); err == nil {
			t := time.Unix(sec, 0).UTC()
			c.Expiry = &t
		}
	}
	return c
}

// WikiCredentialKind tags which Wikimedia credential variant is populated.
type WikiCredentialKind string

const (
	WikiOAuth2Bearer WikiCredentialKind = "oauth2_bearer"
	WikiOAuth1Token  WikiCredentialKind = "oauth1_token"
)

// WikiCredential is polymorphic over the two Wikimedia flows. Exactly one
// variant's fields are populated, matching Kind.
type WikiCredential struct {
	Kind WikiCredentialKind

	// oauth2_bearer
	AccessToken string
	Username    string

	// oauth1_token
	Token          string
	TokenSecret    string
	ConsumerKey    string
	ConsumerSecret string
}

// Valid reports whether the populated variant carries usable material.
func (c *WikiCredential) Valid() bool {
	switch c.Kind {
	case WikiOAuth2Bearer:
		return c.AccessToken != ""
	case WikiOAuth1Token:
		return c.Token != "" && c.TokenSecret != "" && c.ConsumerKey != "" && c.ConsumerSecret != ""
	}
	return false
}

// EncodeMap serializes only the active variant's fields.
func (c *WikiCredential) EncodeMap() map[string]string {
	m := map[string]string{"kind": string(c.Kind)}
	switch c.Kind {
	case WikiOAuth2Bearer:
		m["access_token"] = c.AccessToken
		if c.Username != "" {
			m["username"] = c.Username
		}
	case WikiOAuth1Token:
		m["token"] = c.Token
		m["token_secret"] = c.TokenSecret
		m["consumer_key"] = c.ConsumerKey
		m["consumer_secret"] = c.ConsumerSecret
	}
	return m
}

// DecodeWikiCredential reconstructs a credential from a session map. Returns
// nil when the map does not hold a valid variant.
func DecodeWikiCredential(m map[string]string) *WikiCredential {
	if m == nil {
		return nil
	}
	c := &WikiCredential{Kind: WikiCredentialKind(m["kind"])}
	switch c.Kind {
	case WikiOAuth2Bearer:
		c.AccessToken = m["access_token"]
		c.Username = m["username"]
	case WikiOAuth1Token:
		c.Token = m["token"]
		c.TokenSecret = m["token_secret"]
		c.ConsumerKey = m["consumer_key"]
		c.ConsumerSecret = m["consumer_secret"]
	default:
		return nil
	}
	if !c.Valid() {
		return nil
	}
	return c
}
