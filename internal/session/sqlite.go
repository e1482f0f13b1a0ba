package session

import (
	"database/sql"
	"net/http"
	"os"
	"path/filepath"
	"time"

	ginsessions "github.com/gin-contrib/sessions"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	_ "modernc.org/sqlite"

	apperr "github.com/g2commons/g2commons/internal/errors"
)

// SQLiteStore persists session values in a SQLite database with WAL mode.
// The browser cookie carries only the securecookie-signed session ID; the
// values live server-side.
type SQLiteStore struct {
	db      *sql.DB
	codecs  []securecookie.Codec
	options *gsessions.Options
}

var _ ginsessions.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and migrates) the session database at path.
func NewSQLiteStore(path string, keyPairs ...[]byte) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &apperr.ErrSessionStore{Operation: "init", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &apperr.ErrSessionStore{Operation: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &apperr.ErrSessionStore{Operation: "open", Err: err}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &apperr.ErrSessionStore{Operation: "migrate", Err: err}
	}

	return &SQLiteStore{
		db:     db,
		codecs: securecookie.CodecsFromPairs(keyPairs...),
		options: &gsessions.Options{
			Path:   "/",
			MaxAge: 86400 * 7,
		},
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Options sets the cookie options applied to new sessions.
func (s *SQLiteStore) Options(opts ginsessions.Options) {
	s.options = &gsessions.Options{
		Path:     opts.Path,
		Domain:   opts.Domain,
		MaxAge:   opts.MaxAge,
		Secure:   opts.Secure,
		HttpOnly: opts.HttpOnly,
		SameSite: opts.SameSite,
	}
	s.setMaxAge(opts.MaxAge)
}

// Get returns the named session, cached in the request registry.
func (s *SQLiteStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New loads the named session from the database, or returns a fresh one when
// the cookie is absent, invalid or expired.
func (s *SQLiteStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	sess := gsessions.NewSession(s, name)
	opts := *s.options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.codecs...); err != nil {
		return sess, nil
	}

	data, ok, err := s.load(id)
	if err != nil {
		return sess, err
	}
	if !ok {
		return sess, nil
	}

	if err := (securecookie.GobEncoder{}).Deserialize(data, &sess.Values); err != nil {
		return sess, nil
	}
	sess.ID = id
	sess.IsNew = false
	return sess, nil
}

// Save persists the session values; a MaxAge < 0 deletes the session and
// expires the cookie.
func (s *SQLiteStore) Save(r *http.Request, w http.ResponseWriter, sess *gsessions.Session) error {
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.delete(sess.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, gsessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}

	data, err := (securecookie.GobEncoder{}).Serialize(sess.Values)
	if err != nil {
		return &apperr.ErrSessionStore{Operation: "serialize", Err: err}
	}

	now := time.Now().UTC()
	expires := now.Add(time.Duration(sess.Options.MaxAge) * time.Second)
	_, err = s.db.Exec(`
INSERT INTO sessions (id, data, created_at, updated_at, expires_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at, expires_at = excluded.expires_at`,
		sess.ID, data, now, now, expires)
	if err != nil {
		return &apperr.ErrSessionStore{Operation: "save", Err: err}
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return &apperr.ErrSessionStore{Operation: "encode cookie", Err: err}
	}
	http.SetCookie(w, gsessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

func (s *SQLiteStore) load(id string) ([]byte, bool, error) {
	var data []byte
	var expires time.Time
	err := s.db.QueryRow(`SELECT data, expires_at FROM sessions WHERE id = ?`, id).Scan(&data, &expires)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &apperr.ErrSessionStore{Operation: "load", Err: err}
	}
	if time.Now().UTC().After(expires) {
		_ = s.delete(id)
		return nil, false, nil
	}
	return data, true, nil
}

func (s *SQLiteStore) delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return &apperr.ErrSessionStore{Operation: "delete", Err: err}
	}
	return nil
}

// PurgeExpired removes sessions past their expiry. Called opportunistically
// by the serve loop, not on the request path.
func (s *SQLiteStore) PurgeExpired() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, &apperr.ErrSessionStore{Operation: "purge", Err: err}
	}
	return res.RowsAffected()
}

// Vacuum compacts the database file. Run off the request path.
func (s *SQLiteStore) Vacuum() error {
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return &apperr.ErrSessionStore{Operation: "vacuum", Err: err}
	}
	return nil
}

func (s *SQLiteStore) setMaxAge(age int) {
	for _, codec := range s.codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}
