package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	apperr "github.com/g2commons/g2commons/internal/errors"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from a YAML file and can watch it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	config   *Config
	onChange func(*Config)
	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewLoader creates a loader for the given path.
func NewLoader(path string) *Loader {
	return &Loader{
		path:     path,
		stopChan: make(chan struct{}),
	}
}

// Load reads and validates the configuration file. ${VAR} references in the
// file are substituted from the environment before parsing.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &apperr.ErrConfigNotFound{Path: l.path}
		}
		return nil, err
	}

	config, err := Parse([]byte(os.ExpandEnv(string(content))))
	if err != nil {
		return nil, err
	}

	l.config = config
	return config, nil
}

// Get returns the most recently loaded configuration.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// SetOnChange registers a callback invoked with each successfully reloaded
// configuration.
func (l *Loader) SetOnChange(fn func(*Config)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// Watch starts an fsnotify watcher on the config file's directory and reloads
// on writes to the file. Reload failures leave the current config in place.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return err
	}
	l.watcher = watcher

	go func() {
		// Editors often produce a rename+create burst; debounce briefly.
		var timer *time.Timer
		for {
			select {
			case <-l.stopChan:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(l.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(100*time.Millisecond, l.reload)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

// Stop terminates the watcher.
func (l *Loader) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		if l.watcher != nil {
			l.watcher.Close()
		}
	})
}

func (l *Loader) reload() {
	config, err := l.Load()
	if err != nil {
		return
	}
	l.mu.RLock()
	onChange := l.onChange
	l.mu.RUnlock()
	if onChange != nil {
		onChange(config)
	}
}

// Parse parses and validates configuration from a byte slice, applying
// defaults first.
func Parse(data []byte) (*Config, error) {
	config := Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        "info",
		},
		Session: SessionConfig{
			CookieName: "g2commons_session",
			Backend:    "cookie",
			MaxAge:     86400 * 7,
		},
		Wiki: WikiConfig{
			Flow:      WikiFlowOAuth2,
			UserAgent: "G2Commons/2.0 (https://github.com/g2commons/g2commons)",
			Endpoints: defaultWikiEndpoints(),
		},
		Fetch: FetchConfig{
			PageSize: 25,
			Timeout:  30 * time.Second,
		},
		Upload: UploadConfig{
			Timeout: 120 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, &apperr.ErrConfigParse{Err: err}
	}

	if err := config.Validate(); err != nil {
		return nil, &apperr.ErrConfigValidation{Err: err}
	}

	return &config, nil
}
