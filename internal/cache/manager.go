package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/events"
)

// State is a lifecycle phase of the cache manager.
type State string

const (
	StateIdle       State = "idle"
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActive     State = "active"
)

// ErrUnavailable is returned when a request misses the cache and the
// upstream cannot be reached.
var ErrUnavailable = errors.New("asset unavailable")

// InstallError reports a failed installation. No partial generation is left
// behind: the previously active generation stays current.
type InstallError struct {
	Path string
	Err  error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install failed at %s: %v", e.Path, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// ReloadNotice tells a registered client to reload onto the new version.
type ReloadNotice struct {
	Version string
}

type client struct {
	ch       chan ReloadNotice
	version  string
	notified bool
}

// Manager is the offline asset cache lifecycle: install populates a fresh
// generation all-or-nothing, activate prunes every other generation and
// claims registered clients, and Serve answers asset requests cached-first
// with background revalidation.
type Manager struct {
	store       Store
	fetcher     Fetcher
	version     string
	manifest    []string
	bypass      []string
	reloadDelay time.Duration
	dispatcher  events.Dispatcher
	logger      *zap.Logger

	mu      sync.Mutex
	state   State
	current string
	clients map[string]*client
	pending sync.WaitGroup
}

// Options configures a Manager.
type Options struct {
	Store          Store
	Fetcher        Fetcher
	Version        string
	Manifest       []string
	BypassPrefixes []string
	ReloadDelay    time.Duration
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewManager builds a manager in the idle state.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:       opts.Store,
		fetcher:     opts.Fetcher,
		version:     opts.Version,
		manifest:    opts.Manifest,
		bypass:      opts.BypassPrefixes,
		reloadDelay: opts.ReloadDelay,
		dispatcher:  opts.Dispatcher,
		logger:      logger,
		state:       StateIdle,
		clients:     make(map[string]*client),
	}
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Version returns the generation this manager installs and serves.
func (m *Manager) Version() string {
	return m.version
}

// CurrentGeneration returns the active generation name, empty when none.
func (m *Manager) CurrentGeneration() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Install fetches the entire manifest into a brand-new generation. The
// generation is only written once every asset fetched successfully; any
// single failure aborts the install and leaves existing generations alone.
func (m *Manager) Install(ctx context.Context) error {
	m.setState(StateInstalling)

	entries := make(map[string]Entry, len(m.manifest))
	for _, path := range m.manifest {
		entry, err := m.fetcher.Fetch(ctx, path)
		if err != nil {
			m.setState(StateIdle)
			return &InstallError{Path: path, Err: err}
		}
		entries[path] = *entry
	}

	if err := m.store.PutAll(ctx, m.version, entries); err != nil {
		// Drop whatever was written so no partial generation survives.
		if delErr := m.store.Delete(ctx, m.version); delErr != nil {
			m.logger.Error("failed to discard partial generation", zap.Error(delErr), zap.String("generation", m.version))
		}
		m.setState(StateIdle)
		return &InstallError{Path: "", Err: err}
	}

	m.setState(StateWaiting)
	m.logger.Info("cache generation installed", zap.String("generation", m.version), zap.Int("assets", len(entries)))
	return nil
}

// Activate deletes every generation other than this manager's, marks it
// current and claims all registered clients.
func (m *Manager) Activate(ctx context.Context) error {
	generations, err := m.store.Generations(ctx)
	if err != nil {
		return err
	}

	pruned := 0
	for _, generation := range generations {
		if generation == m.version {
			continue
		}
		if err := m.store.Delete(ctx, generation); err != nil {
			return err
		}
		pruned++
	}

	m.mu.Lock()
	m.current = m.version
	m.state = StateActive
	m.claimClientsLocked()
	m.mu.Unlock()

	m.logger.Info("cache generation activated", zap.String("generation", m.version), zap.Int("pruned", pruned))

	if m.dispatcher != nil {
		_ = m.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventCacheActivated,
			Actor:     "system",
			Timestamp: time.Now(),
			Payload:   events.CacheActivatedPayload{Version: m.version, Pruned: pruned},
		})
	}
	return nil
}

// RegisterClient subscribes a page to controller-handover notices, reporting
// the version the page currently runs. The returned channel receives at most
// one notice per registration, and only when the page's version is behind
// the active generation: a page registering on the current version (or with
// an unknown version) is never told to reload until a future activation, so
// a reloaded page polling again cannot loop.
func (m *Manager) RegisterClient(id, version string) <-chan ReloadNotice {
	m.mu.Lock()
	defer m.mu.Unlock()

	cl := &client{ch: make(chan ReloadNotice, 1), version: version}
	m.clients[id] = cl
	if m.state == StateActive && version != "" && version != m.current {
		m.notifyLocked(cl)
	}
	return cl.ch
}

// UnregisterClient drops a client registration.
func (m *Manager) UnregisterClient(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, id)
}

// claimClientsLocked schedules a one-time reload notice for every client
// that has not been told yet and is not already running the generation being
// activated. Repeated activations never re-notify.
func (m *Manager) claimClientsLocked() {
	for _, cl := range m.clients {
		if cl.version == m.version {
			continue
		}
		m.notifyLocked(cl)
	}
}

func (m *Manager) notifyLocked(cl *client) {
	if cl.notified {
		return
	}
	cl.notified = true

	// Delay gives the in-page update notice time to render before the
	// client reloads.
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		if m.reloadDelay > 0 {
			time.Sleep(m.reloadDelay)
		}
		select {
		case cl.ch <- ReloadNotice{Version: m.version}:
		default:
		}
	}()
}

// Bypass reports whether a request must pass through uncached. API paths
// and anything outside plain same-origin GETs are never intercepted.
func (m *Manager) Bypass(method, path string) bool {
	if method != "GET" && method != "HEAD" {
		return true
	}
	if strings.Contains(path, "://") {
		return true
	}
	for _, prefix := range m.bypass {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Serve answers an asset request stale-while-revalidate: a cached entry is
// returned immediately while a background fetch refreshes it; a cache miss
// falls back to the network, and a miss with no network yields
// ErrUnavailable.
func (m *Manager) Serve(ctx context.Context, path string) (*Entry, error) {
	m.mu.Lock()
	generation := m.current
	m.mu.Unlock()

	if generation != "" {
		cached, ok, err := m.store.Get(ctx, generation, path)
		if err != nil {
			m.logger.Error("cache read failed", zap.Error(err), zap.String("path", path))
		} else if ok {
			m.revalidate(generation, path)
			return cached, nil
		}
	}

	entry, err := m.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, ErrUnavailable
	}
	if generation != "" {
		if err := m.store.Put(ctx, generation, path, *entry); err != nil {
			m.logger.Error("cache write failed", zap.Error(err), zap.String("path", path))
		}
	}
	return entry, nil
}

// revalidate refreshes one cached entry in the background. Only a
// successful fetch overwrites; failures leave the cached entry in place.
func (m *Manager) revalidate(generation, path string) {
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		entry, err := m.fetcher.Fetch(ctx, path)
		if err != nil {
			return
		}
		if err := m.store.Put(ctx, generation, path, *entry); err != nil {
			m.logger.Error("cache revalidation write failed", zap.Error(err), zap.String("path", path))
		}
	}()
}

// WaitUntilIdle blocks until all background work (revalidations, pending
// client notices) has completed.
func (m *Manager) WaitUntilIdle() {
	m.pending.Wait()
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}
