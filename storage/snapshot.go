// Package storage holds the in-memory snapshot of an OpenSpec tree.
//
// A Store re-reads the whole tree on every Refresh, builds a fresh
// openspec.Data value and publishes it with a single atomic pointer swap, so
// readers always see a complete tree. Refresh passes are serialized and
// numbered; subscribers receive one Update per published snapshot.
package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/openspec-viewer/openspec"
)

// DefaultSubscriberBuffer is the channel capacity used by Subscribe when a
// non-positive size is requested.
const DefaultSubscriberBuffer = 16

// Snapshot is an immutable, published view of the tree.
type Snapshot struct {
	// Generation increases by one for every published snapshot.
	Generation uint64
	LoadedAt   time.Time
	Data       *openspec.Data
	Errors     []string
	Warnings   []string
}

// Update is delivered to subscribers after a snapshot is published.
type Update struct {
	Snapshot *Snapshot

	// Event is the filesystem change that triggered the pass, nil for a full
	// reload.
	Event *openspec.ChangeEvent
}

// Store owns the current snapshot for one OpenSpec root.
type Store struct {
	root   string
	logger *slog.Logger
	load   func(ctx context.Context, root string) openspec.Result[openspec.Data]

	// refreshMu serializes refresh passes so snapshots publish in order.
	refreshMu  sync.Mutex
	generation uint64

	current atomic.Pointer[Snapshot]

	subsMu  sync.Mutex
	subs    map[int]chan Update
	nextSub int
	dropped atomic.Int64
}

// NewStore creates a Store for the given OpenSpec root. Nothing is loaded
// until the first Refresh.
func NewStore(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		root:   root,
		logger: logger,
		load:   openspec.Load,
		subs:   make(map[int]chan Update),
	}
}

// Root returns the OpenSpec root directory.
func (s *Store) Root() string {
	return s.root
}

// Refresh runs a full load of the tree. When the load produces data it is
// published as the next generation and subscribers are notified; otherwise
// the previous snapshot stays current. The load result is returned as is.
func (s *Store) Refresh(ctx context.Context, event *openspec.ChangeEvent) openspec.Result[openspec.Data] {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	res := s.load(ctx, s.root)
	if !res.OK() {
		s.logger.Error("OpenSpec load failed", "root", s.root, "errors", res.Errors)
		return res
	}

	for _, w := range res.Warnings {
		s.logger.Warn("OpenSpec parse warning", "warning", w)
	}
	for _, e := range res.Errors {
		s.logger.Error("OpenSpec parse error", "error", e)
	}

	s.generation++
	snap := &Snapshot{
		Generation: s.generation,
		LoadedAt:   time.Now(),
		Data:       res.Data,
		Errors:     res.Errors,
		Warnings:   res.Warnings,
	}
	s.current.Store(snap)

	s.logger.Debug("Published snapshot",
		"generation", snap.Generation,
		"specs", len(snap.Data.Specs),
		"active_changes", len(snap.Data.Changes.Active))

	s.broadcast(Update{Snapshot: snap, Event: event})
	return res
}

// Snapshot returns the latest published snapshot, or nil before the first
// successful Refresh.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Current returns the latest published data.
func (s *Store) Current() (*openspec.Data, bool) {
	snap := s.current.Load()
	if snap == nil {
		return nil, false
	}
	return snap.Data, true
}

// Search runs a search against the current snapshot.
func (s *Store) Search(query string) ([]openspec.SearchResult, error) {
	data, ok := s.Current()
	if !ok {
		return nil, ErrNotLoaded
	}
	return openspec.Search(data, query), nil
}

// LoadSpec reads a single capability from disk without a full reload.
func (s *Store) LoadSpec(name string) openspec.Result[openspec.Spec] {
	return openspec.LoadSpec(s.root, name)
}

// LoadChange reads a single change from disk without a full reload,
// resolving active changes before archived ones.
func (s *Store) LoadChange(name string) openspec.Result[openspec.Change] {
	return openspec.LoadChangeByName(s.root, name)
}

// ReadChangeFile returns the raw content of a file inside a change.
func (s *Store) ReadChangeFile(change, relPath string) (*openspec.RawFile, error) {
	return openspec.ReadChangeFile(s.root, change, relPath)
}

// Subscribe registers for snapshot updates. The returned function
// unsubscribes and closes the channel. Updates are dropped for subscribers
// whose buffer is full.
func (s *Store) Subscribe(buffer int) (<-chan Update, func()) {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	ch := make(chan Update, buffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

// Dropped returns the number of updates discarded for slow subscribers.
func (s *Store) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Store) broadcast(u Update) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- u:
		default:
			n := s.dropped.Add(1)
			s.logger.Warn("Subscriber buffer full, dropping update",
				"generation", u.Snapshot.Generation, "total_dropped", n)
		}
	}
}
