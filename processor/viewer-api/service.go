package viewerapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/c360studio/openspec-viewer/notify"
	"github.com/c360studio/openspec-viewer/openspec"
	openspecwatcher "github.com/c360studio/openspec-viewer/processor/openspec-watcher"
	"github.com/c360studio/openspec-viewer/storage"
)

// notifyTimeout bounds a single external notification.
const notifyTimeout = 5 * time.Second

// Service keeps the store current and tells clients about every refresh.
//
// On Start it loads the tree once, then turns each debounced watcher event
// into a refresh pass. Every published snapshot becomes a refresh message for
// the hub and a notification for each configured notifier.
type Service struct {
	store     *storage.Store
	watcher   *openspecwatcher.Watcher
	hub       *Hub
	metrics   *Metrics
	notifiers []notify.Notifier
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	refreshes atomic.Int64
	failures  atomic.Int64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithWatcher enables live reload from the given watcher.
func WithWatcher(w *openspecwatcher.Watcher) ServiceOption {
	return func(s *Service) { s.watcher = w }
}

// WithHub sets the hub that receives refresh messages.
func WithHub(h *Hub) ServiceOption {
	return func(s *Service) { s.hub = h }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithNotifier adds an external notifier.
func WithNotifier(n notify.Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// NewService creates a service for the store.
func NewService(store *storage.Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start performs the initial load and begins processing watcher events. A
// failed initial load is logged but does not stop the service; the API keeps
// answering 503 until a later refresh succeeds.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("service already running")
	}
	s.running = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	updates, unsubscribe := s.store.Subscribe(storage.DefaultSubscriberBuffer)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unsubscribe()
		s.publishUpdates(runCtx, updates)
	}()

	s.refresh(runCtx, nil)

	if s.watcher != nil {
		if err := s.watcher.Start(runCtx); err != nil {
			s.logger.Error("Failed to start watcher", "root", s.watcher.Root(), "error", err)
		} else {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.processWatchEvents(runCtx)
			}()
		}
	}

	s.logger.Info("OpenSpec viewer service started",
		"root", s.store.Root(),
		"watching", s.watcher != nil,
		"notifiers", len(s.notifiers))
	return nil
}

// Stop halts event processing and waits for the background goroutines.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	var errs []error
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
	}
	s.wg.Wait()

	for _, n := range s.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close notifier: %w", err))
		}
	}

	s.logger.Info("OpenSpec viewer service stopped",
		"refreshes", s.refreshes.Load(),
		"failures", s.failures.Load())
	return errors.Join(errs...)
}

// Refresh reloads the tree outside of watcher activity.
func (s *Service) Refresh(ctx context.Context) openspec.Result[openspec.Data] {
	return s.refresh(ctx, nil)
}

func (s *Service) refresh(ctx context.Context, ev *openspec.ChangeEvent) openspec.Result[openspec.Data] {
	start := time.Now()
	res := s.store.Refresh(ctx, ev)
	s.metrics.ObserveRefresh(res, time.Since(start))

	s.refreshes.Add(1)
	if !res.OK() {
		s.failures.Add(1)
	}
	return res
}

// processWatchEvents turns watcher events into refresh passes.
func (s *Service) processWatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events():
			if !ok {
				return
			}
			s.handleWatchEvent(ctx, event)
		}
	}
}

// handleWatchEvent classifies one event and refreshes when it touches the
// model.
func (s *Service) handleWatchEvent(ctx context.Context, event openspecwatcher.Event) {
	ev, ok := openspec.ClassifyEvent(s.watcher.Root(), event.Type, event.AbsPath)
	if !ok {
		s.logger.Debug("Ignoring watch event", "type", event.Type, "path", event.Path)
		return
	}
	s.metrics.ObserveWatchEvent(ev)

	s.logger.Info("OpenSpec file changed",
		"type", ev.Type,
		"path", event.Path,
		"entity", ev.AffectedEntity,
		"entity_id", ev.EntityID)

	s.refresh(ctx, &ev)
}

// publishUpdates forwards every published snapshot to clients.
func (s *Service) publishUpdates(ctx context.Context, updates <-chan storage.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if s.hub != nil {
				s.hub.Broadcast(RefreshMessage(u))
			}
			s.notify(ctx, notify.FromEvent(u.Event, u.Snapshot.Generation))
		}
	}
}

func (s *Service) notify(ctx context.Context, n notify.Notification) {
	for _, notifier := range s.notifiers {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		if err := notifier.Notify(nctx, n); err != nil {
			s.logger.Warn("Failed to send change notification",
				"entity", n.AffectedEntity,
				"generation", n.Generation,
				"error", err)
		}
		cancel()
	}
}

// RefreshMessage builds the client message for a published snapshot. The
// payload carries the slice of the model the event touched: the project,
// the specs or the changes, each with the current stats; anything else
// carries the stats alone.
func RefreshMessage(u storage.Update) Message {
	msg := Message{Type: MessageTypeRefresh, Entity: openspec.EntityAll}
	if u.Event != nil {
		msg.Entity = u.Event.AffectedEntity
		msg.EntityID = u.Event.EntityID
	}
	if u.Snapshot == nil || u.Snapshot.Data == nil {
		return msg
	}

	data := u.Snapshot.Data
	switch msg.Entity {
	case openspec.EntityProject:
		msg.Data = map[string]any{"project": data.Project}
	case openspec.EntitySpecs:
		msg.Data = map[string]any{"specs": data.Specs, "stats": data.Stats}
	case openspec.EntityChanges:
		msg.Data = map[string]any{"changes": data.Changes, "stats": data.Stats}
	default:
		msg.Data = map[string]any{"stats": data.Stats}
	}
	return msg
}

// ErrPortInUse is returned by Listen when the address is taken.
var ErrPortInUse = errors.New("address already in use")

// Listen binds addr, reporting ErrPortInUse when another process holds it.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen %s: %w", addr, ErrPortInUse)
		}
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Serve runs handler on ln until ctx is cancelled, then shuts down
// gracefully. onShutdown functions run when shutdown begins; long-lived
// streams such as the hub must be closed there or shutdown waits for them.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger, onShutdown ...func()) error {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, f := range onShutdown {
		srv.RegisterOnShutdown(f)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
