package shared

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// ConfigChange describes a reload of the configuration file.
type ConfigChange struct {
	Old                *Config
	New                *Config
	CredentialsChanged bool
	TimeoutChanged     bool
	// EndpointChanged is set when the REST base URL or token differs.
	EndpointChanged    bool
}

// Relevant reports whether the change touches anything the session layer reacts to.
func (c ConfigChange) Relevant() bool {
	return c.CredentialsChanged || c.TimeoutChanged || c.EndpointChanged
}

// ConfigWatcher reloads a config file when it changes on disk.
//
// The parent directory is watched rather than the file so editors that save via rename are still seen.
// Bursts of events are collapsed into one reload after the debounce window.
type ConfigWatcher struct {
	path     string
	debounce time.Duration
	logger   *log.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	current *Config
	timer   *time.Timer
	changes chan ConfigChange
}

// NewConfigWatcher creates a watcher for path, seeded with the currently loaded config.
func NewConfigWatcher(path string, current *Config, debounce time.Duration, logger *log.Logger) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	if logger == nil {
		logger = NewLogger(nil)
	}

	return &ConfigWatcher{
		path:     abs,
		debounce: debounce,
		logger:   WithLogger(logger, "component", "config"),
		watcher:  w,
		current:  current,
		changes:  make(chan ConfigChange, 4),
	}, nil
}

// Changes delivers one [ConfigChange] per reload that touched credentials, the REST endpoint or the idle timeout.
func (cw *ConfigWatcher) Changes() <-chan ConfigChange {
	return cw.changes
}

// Run processes file system events until ctx is done.
func (cw *ConfigWatcher) Run(ctx context.Context) {
	defer cw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			cw.mu.Lock()
			if cw.timer != nil {
				cw.timer.Stop()
			}
			cw.mu.Unlock()
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cw.schedule(ctx)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("watch error", "err", err)
		}
	}
}

func (cw *ConfigWatcher) schedule(ctx context.Context) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() { cw.reload(ctx) })
}

func (cw *ConfigWatcher) reload(ctx context.Context) {
	next, err := LoadConfig(cw.path)
	if err != nil {
		cw.logger.Warn("ignoring unreadable config", "path", cw.path, "err", err)
		return
	}

	cw.mu.Lock()
	prev := cw.current
	cw.current = next
	cw.mu.Unlock()

	change := Diff(prev, next)
	if !change.Relevant() {
		cw.logger.Debug("config reloaded without relevant changes")
		return
	}

	cw.logger.Info("config reloaded",
		"credentials_changed", change.CredentialsChanged,
		"endpoint_changed", change.EndpointChanged,
		"timeout_changed", change.TimeoutChanged)

	select {
	case cw.changes <- change:
	case <-ctx.Done():
	}
}

// Diff compares two configs for the settings the session layer reacts to.
func Diff(prev, next *Config) ConfigChange {
	change := ConfigChange{Old: prev, New: next}
	if prev == nil {
		change.CredentialsChanged = true
		change.TimeoutChanged = true
		change.EndpointChanged = true
		return change
	}
	change.CredentialsChanged = prev.CredentialsFingerprint() != next.CredentialsFingerprint()
	change.TimeoutChanged = prev.Session.TimeoutMinutes != next.Session.TimeoutMinutes
	change.EndpointChanged = prev.Service.BaseURL != next.Service.BaseURL || prev.Service.APIToken != next.Service.APIToken
	return change
}
