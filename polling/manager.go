package polling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/notebookgrader/grader-client/logger"
	"github.com/notebookgrader/grader-client/nav"
)

// Handle refers to one running poll
type Handle struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

// ID returns the id of the polled target
func (h *Handle) ID() string { return h.id }

// Done is closed once the poll has stopped and its callback has returned
func (h *Handle) Done() <-chan struct{} { return h.done }

// Result blocks until the poll stops and returns how it ended
func (h *Handle) Result() Result {
	<-h.done
	return h.result
}

// Wait waits for the poll to stop or ctx to be done
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Manager orchestrates poll lifecycles for one owner (a page, a CLI run).
// Shutdown stops every poll it started.
type Manager struct {
	store  *Store
	poller *Poller
	config Config
	log    logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// NewManager creates a poll manager and starts its cleanup routine
func NewManager(fetcher Fetcher, navigator nav.Navigator, log logger.Logger, config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	store := NewStore(config.Retention)
	m := &Manager{
		store:   store,
		poller:  NewPoller(fetcher, store, navigator, log, config),
		config:  config,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		handles: make(map[string]*Handle),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// StartPolling begins polling target in the background.
// A zero schedule means the configured one. onDone, if set, is called
// exactly once with the final result, before the handle's Done channel
// closes. onDone must not call Shutdown.
func (m *Manager) StartPolling(target Target, schedule Schedule, onDone func(Result)) (*Handle, error) {
	if target.StatusURL == "" {
		return nil, ErrNoStatusURL
	}
	if target.State.Terminal() {
		return nil, ErrTerminalTarget
	}
	if schedule == (Schedule{}) {
		schedule = m.config.Schedule
	}
	if err := schedule.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid schedule")
	}
	if target.ID == "" {
		target.ID = uuid.New().String()
	}
	target.Finished = false
	target.Checks = 0

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShutdown
	}
	if err := m.store.Add(&target); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(m.ctx)
	h := &Handle{id: target.ID, cancel: cancel, done: make(chan struct{})}
	m.handles[h.id] = h

	m.log.Debug("polling started", h.id, target.StatusURL)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		res := m.poller.Run(ctx, h.id, &schedule)
		h.result = res

		m.mu.Lock()
		// a restarted poll on the same target owns the entry now
		if m.handles[h.id] == h {
			delete(m.handles, h.id)
		}
		m.mu.Unlock()

		m.log.Debug("polling stopped", h.id, res.Outcome)
		if onDone != nil {
			onDone(res)
		}
		close(h.done)
	}()

	return h, nil
}

// CancelPolling stops the poll behind h. A pending check never fires and a
// response in flight is discarded. Cancelling twice is a no-op.
func (m *Manager) CancelPolling(h *Handle) {
	if h == nil {
		return
	}
	h.cancel()
}

// Running returns the handle of the poll still running on target id
func (m *Manager) Running(id string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[id]
	return h, ok
}

// Get returns the current view of a target
func (m *Manager) Get(id string) (Target, error) {
	return m.store.Get(id)
}

// Active returns the targets still being polled
func (m *Manager) Active() []Target {
	return m.store.Active()
}

// List returns all retained targets, newest first
func (m *Manager) List() []Target {
	return m.store.List()
}

// Shutdown cancels every running poll and waits for them to stop
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	for _, h := range m.handles {
		h.cancel()
	}
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
}

// cleanupLoop periodically removes expired targets
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	interval := m.config.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.store.CleanExpired()
		}
	}
}
