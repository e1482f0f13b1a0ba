package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	Google   GoogleConfig   `yaml:"google"`
	Wiki     WikiConfig     `yaml:"wiki"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Upload   UploadConfig   `yaml:"upload"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// SessionConfig contains server-side session configuration. Sessions are the
// only persisted state; Backend selects the store implementation.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name"`
	Secret     string `yaml:"secret"`
	Backend    string `yaml:"backend"` // cookie | sqlite
	Path       string `yaml:"path"`    // sqlite file path
	MaxAge     int    `yaml:"max_age"` // seconds
	Secure     bool   `yaml:"secure"`

	// Sqlite backend only: how often expired rows are purged.
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// GoogleConfig contains the Google OAuth2 client registration.
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// DefaultGoogleScopes are requested when the config does not override them.
var DefaultGoogleScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/drive",
	"https://www.googleapis.com/auth/photoslibrary.readonly",
}

// WikiFlow selects which Wikimedia authorization flow the deployment uses.
const (
	WikiFlowOAuth2 = "oauth2"
	WikiFlowOAuth1 = "oauth1"
	WikiFlowStatic = "static"
)

// WikiConfig contains the Wikimedia OAuth registration. Exactly one flow is
// active per deployment; Validate enforces the fields that flow needs.
type WikiConfig struct {
	Flow string `yaml:"flow"`

	// OAuth2 authorization-code flow.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`

	// Legacy OAuth1a three-legged flow.
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`

	// Pre-provisioned tokens for single-owner deployments (flow: static).
	AccessToken  string `yaml:"access_token"`
	OAuth1Token  string `yaml:"oauth1_token"`
	OAuth1Secret string `yaml:"oauth1_secret"`

	UserAgent string        `yaml:"user_agent"`
	Endpoints WikiEndpoints `yaml:"endpoints"`
}

// WikiEndpoints are the provider URLs; defaults target Wikimedia Commons and
// meta.wikimedia.org and are overridable for test wikis.
type WikiEndpoints struct {
	API             string `yaml:"api"`
	Initiate        string `yaml:"initiate"`
	Authorize       string `yaml:"authorize"`
	Token           string `yaml:"token"`
	OAuth2Authorize string `yaml:"oauth2_authorize"`
	OAuth2Token     string `yaml:"oauth2_token"`
	Profile         string `yaml:"profile"`
}

func defaultWikiEndpoints() WikiEndpoints {
	return WikiEndpoints{
		API:             "https://commons.wikimedia.org/w/api.php",
		Initiate:        "https://commons.wikimedia.org/w/index.php?title=Special:OAuth/initiate&format=json",
		Authorize:       "https://commons.wikimedia.org/w/index.php?title=Special:OAuth/authorize",
		Token:           "https://commons.wikimedia.org/w/index.php?title=Special:OAuth/token&format=json",
		OAuth2Authorize: "https://meta.wikimedia.org/w/rest.php/oauth2/authorize",
		OAuth2Token:     "https://meta.wikimedia.org/w/rest.php/oauth2/access_token",
		Profile:         "https://meta.wikimedia.org/w/rest.php/oauth2/resource/profile",
	}
}

// FetchConfig tunes the source fetchers.
type FetchConfig struct {
	PageSize   int           `yaml:"page_size"`
	Timeout    time.Duration `yaml:"timeout"`
	BrowserTLS bool          `yaml:"browser_tls"` // uTLS fingerprint for the album scraper
}

// UploadConfig tunes the upload pipeline.
type UploadConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"` // concurrent upload runs across all sessions
}

// TelegramConfig enables upload summary notifications.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("session.secret is required")
	}
	switch c.Session.Backend {
	case "cookie", "sqlite":
	default:
		return fmt.Errorf("session.backend must be cookie or sqlite, got %q", c.Session.Backend)
	}
	if c.Session.Backend == "sqlite" && c.Session.Path == "" {
		return fmt.Errorf("session.path is required for the sqlite backend")
	}

	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_id and google.client_secret are required")
	}
	if c.Google.RedirectURL == "" {
		return fmt.Errorf("google.redirect_url is required")
	}

	switch c.Wiki.Flow {
	case WikiFlowOAuth2:
		if c.Wiki.ClientID == "" || c.Wiki.ClientSecret == "" {
			return fmt.Errorf("wiki.client_id and wiki.client_secret are required for the oauth2 flow")
		}
		if c.Wiki.RedirectURL == "" {
			return fmt.Errorf("wiki.redirect_url is required for the oauth2 flow")
		}
	case WikiFlowOAuth1:
		if c.Wiki.ConsumerKey == "" || c.Wiki.ConsumerSecret == "" {
			return fmt.Errorf("wiki.consumer_key and wiki.consumer_secret are required for the oauth1 flow")
		}
	case WikiFlowStatic:
		if c.Wiki.AccessToken == "" && (c.Wiki.OAuth1Token == "" || c.Wiki.ConsumerKey == "") {
			return fmt.Errorf("wiki flow static needs access_token, or oauth1_token with consumer_key")
		}
	default:
		return fmt.Errorf("wiki.flow must be oauth2, oauth1 or static, got %q", c.Wiki.Flow)
	}

	if c.Fetch.PageSize <= 0 || c.Fetch.PageSize > 100 {
		return fmt.Errorf("fetch.page_size must be in (0, 100], got %d", c.Fetch.PageSize)
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}

// GoogleScopes returns the configured scopes or the defaults.
func (c *GoogleConfig) GoogleScopes() []string {
	if len(c.Scopes) > 0 {
		return c.Scopes
	}
	return DefaultGoogleScopes
}
