package session

import (
	"encoding/gob"
	"net/http"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/g2commons/g2commons/internal/config"
	"github.com/g2commons/g2commons/internal/models"
)

func init() {
	// Everything persisted into a session must be gob-registered.
	gob.Register(map[string]string{})
	gob.Register([]string{})
	gob.Register(models.Gallery{})
	gob.Register([]models.UploadItem{})
}

// Session is the narrow view of the per-browser server session that business
// code depends on. The gin-contrib sessions implementation satisfies it, and
// tests substitute a map-backed fake. Swapping the backing store never
// touches callers.
type Session interface {
	Get(key interface{}) interface{}
	Set(key interface{}, val interface{})
	Delete(key interface{})
	AddFlash(value interface{}, vars ...string)
	Flashes(vars ...string) []interface{}
	Clear()
	Save() error
}

// FromContext returns the current request's session.
func FromContext(c *gin.Context) Session {
	return ginsessions.Default(c)
}

// NewStore builds the configured backing store with cookie options applied.
func NewStore(cfg config.SessionConfig) (ginsessions.Store, error) {
	var store ginsessions.Store
	switch cfg.Backend {
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Path, []byte(cfg.Secret))
		if err != nil {
			return nil, err
		}
		store = s
	default:
		store = cookie.NewStore([]byte(cfg.Secret))
	}

	store.Options(ginsessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}

// Handler returns the gin session middleware for a store built by NewStore.
func Handler(cookieName string, store ginsessions.Store) gin.HandlerFunc {
	return ginsessions.Sessions(cookieName, store)
}

// Middleware returns the gin session middleware for the configured backend.
func Middleware(cfg config.SessionConfig) (gin.HandlerFunc, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return Handler(cfg.CookieName, store), nil
}

// GetString returns a string value from the session, or "".
func GetString(s Session, key string) string {
	v, _ := s.Get(key).(string)
	return v
}

// GetStringMap returns a string map value from the session, or nil.
func GetStringMap(s Session, key string) map[string]string {
	v, _ := s.Get(key).(map[string]string)
	return v
}
