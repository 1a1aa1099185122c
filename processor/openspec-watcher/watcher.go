// Package openspecwatcher watches an OpenSpec tree and emits debounced
// add/change/remove events for markdown and HTML files plus addDir/removeDir
// events for directories.
package openspecwatcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/openspec-viewer/openspec"
	"github.com/c360studio/openspec-viewer/source/parser"
)

const (
	// eventChannelBuffer is the size of the watch event channel.
	eventChannelBuffer = 500

	defaultDebounceDelay = 100 * time.Millisecond
)

// WatchConfig configures OpenSpec file watching.
type WatchConfig struct {
	// Enabled controls whether file watching is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// DebounceDelay is how long a path must stay quiet before its change is
	// emitted.
	DebounceDelay string `json:"debounce_delay" yaml:"debounce_delay"`

	// Ignore lists doublestar patterns, relative to the root, for paths that
	// should never produce events.
	Ignore []string `json:"ignore" yaml:"ignore"`
}

// DefaultWatchConfig returns default watch configuration.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Enabled:       true,
		DebounceDelay: "100ms",
		Ignore:        []string{"**/node_modules/**"},
	}
}

// GetDebounceDelay returns the debounce delay as a duration.
func (c *WatchConfig) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return defaultDebounceDelay
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil || d <= 0 {
		return defaultDebounceDelay
	}
	return d
}

// Validate checks the ignore patterns.
func (c *WatchConfig) Validate() error {
	for _, p := range c.Ignore {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid ignore pattern: %q", p)
		}
	}
	return nil
}

// Event is a debounced filesystem change.
type Event struct {
	Type openspec.EventType

	// Path is relative to the watched root, slash separated.
	Path string

	// AbsPath is the absolute path.
	AbsPath string
}

// pendingChange accumulates fsnotify activity for one path until it has been
// quiet for the debounce delay.
type pendingChange struct {
	// dirEvent is set for directory events; file events are resolved from
	// the file's state at flush time.
	dirEvent openspec.EventType
	lastSeen time.Time
}

// Watcher watches an OpenSpec root recursively.
type Watcher struct {
	config  WatchConfig
	root    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	delay   time.Duration

	// Debouncing: collect changes before emitting
	pendingMu sync.Mutex
	pending   map[string]*pendingChange

	// Content hashes suppress change events for rewrites with identical bytes.
	hashMu sync.RWMutex
	hashes map[string]string

	// Directories currently watched, used to report removals as removeDir.
	dirsMu sync.Mutex
	dirs   map[string]bool

	events chan Event

	droppedEvents atomic.Int64
}

// NewWatcher creates a watcher for the given root.
func NewWatcher(config WatchConfig, root string, logger *slog.Logger) (*Watcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		config:  config,
		root:    abs,
		watcher: fsw,
		logger:  logger,
		delay:   config.GetDebounceDelay(),
		pending: make(map[string]*pendingChange),
		hashes:  make(map[string]string),
		dirs:    make(map[string]bool),
		events:  make(chan Event, eventChannelBuffer),
	}, nil
}

// Root returns the absolute watched root.
func (w *Watcher) Root() string {
	return w.root
}

// Events returns the channel of watch events. It is closed when the watcher
// stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start adds watches for the whole tree, records the hashes of existing
// files and begins processing events. Existing files produce no events.
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", w.root)
	}

	if err := w.addTree(w.root, false); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("OpenSpec watcher started",
		"root", w.root,
		"debounce", w.delay,
		"ignore", w.config.Ignore)

	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// DroppedEvents returns the number of events dropped due to channel overflow.
func (w *Watcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

// ignored reports whether a path is excluded from watching: dotfiles and
// dot-directories, node_modules, and any configured pattern.
func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") || seg == "node_modules" {
			return true
		}
	}
	for _, pattern := range w.config.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// watchedFile reports whether a file path has an extension we emit events for.
func watchedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".html":
		return true
	default:
		return false
	}
}

// addTree adds watches to dir and everything below it. Files found are
// hashed; when announce is set they are also queued as add events and
// sub-directories as addDir events.
func (w *Watcher) addTree(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("Failed to walk path", "path", path, "error", err)
			return nil
		}

		if w.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("Failed to watch directory", "path", path, "error", err)
				return nil
			}
			w.dirsMu.Lock()
			w.dirs[path] = true
			w.dirsMu.Unlock()
			w.logger.Debug("Watching directory", "path", path)

			if announce && path != dir {
				w.queueDir(path, openspec.EventAddDir)
			}
			return nil
		}

		if !watchedFile(path) {
			return nil
		}
		if announce {
			w.queueFile(path, fsnotify.Create)
			return nil
		}
		if content, err := os.ReadFile(path); err == nil {
			w.setHash(path, parser.ContentHash(content))
		}
		return nil
	})
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(max(w.delay/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case now := <-ticker.C:
			w.flushPending(ctx, now)
		}
	}
}

// handleFSEvent processes a single fsnotify event.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name
	if w.ignored(path) {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if w.forgetDir(path) {
			w.queueDir(path, openspec.EventRemoveDir)
			return
		}
		if watchedFile(path) {
			w.queueFile(path, event.Op)
		}
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.queueDir(path, openspec.EventAddDir)
			if err := w.addTree(path, true); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
			}
			return
		}
	}

	if watchedFile(path) {
		w.queueFile(path, event.Op)
	}
}

// forgetDir drops a watched directory and everything below it. It reports
// whether path was a watched directory.
func (w *Watcher) forgetDir(path string) bool {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()

	if !w.dirs[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}

	w.hashMu.Lock()
	for file := range w.hashes {
		if strings.HasPrefix(file, prefix) {
			delete(w.hashes, file)
		}
	}
	w.hashMu.Unlock()
	return true
}

func (w *Watcher) queueFile(path string, op fsnotify.Op) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = &pendingChange{lastSeen: time.Now()}

	w.logger.Debug("OpenSpec change detected", "path", path, "op", op.String())
}

func (w *Watcher) queueDir(path string, typ openspec.EventType) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = &pendingChange{dirEvent: typ, lastSeen: time.Now()}
}

// flushPending emits every pending change that has been quiet for the
// debounce delay.
func (w *Watcher) flushPending(ctx context.Context, now time.Time) {
	w.pendingMu.Lock()
	ready := make(map[string]*pendingChange)
	for path, p := range w.pending {
		if now.Sub(p.lastSeen) >= w.delay {
			ready[path] = p
			delete(w.pending, path)
		}
	}
	w.pendingMu.Unlock()

	for path, p := range ready {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.dirEvent != "" {
			w.sendEvent(w.newEvent(p.dirEvent, path))
			continue
		}
		w.flushFile(path)
	}
}

// flushFile resolves the accumulated operations on a file into at most one
// event, skipping rewrites that left the content unchanged.
func (w *Watcher) flushFile(path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("Failed to read file for hash check", "path", path, "error", err)
			return
		}
		// Files never announced (created and removed within one window) stay silent.
		if _, had := w.getHash(path); had {
			w.deleteHash(path)
			w.sendEvent(w.newEvent(openspec.EventRemove, path))
		}
		return
	}

	newHash := parser.ContentHash(content)
	oldHash, hadHash := w.getHash(path)
	if hadHash && oldHash == newHash {
		return
	}
	w.setHash(path, newHash)

	typ := openspec.EventChange
	if !hadHash {
		typ = openspec.EventAdd
	}
	w.sendEvent(w.newEvent(typ, path))
}

func (w *Watcher) newEvent(typ openspec.EventType, path string) Event {
	rel, _ := filepath.Rel(w.root, path)
	return Event{Type: typ, Path: filepath.ToSlash(rel), AbsPath: path}
}

func (w *Watcher) setHash(path, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash
}

func (w *Watcher) getHash(path string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[path]
	return hash, ok
}

func (w *Watcher) deleteHash(path string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	delete(w.hashes, path)
}

// sendEvent sends an event to the output channel.
func (w *Watcher) sendEvent(event Event) {
	select {
	case w.events <- event:
		w.logger.Debug("Sent watch event", "path", event.Path, "type", event.Type)
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}
