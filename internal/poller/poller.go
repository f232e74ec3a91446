package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vipguy/Bing4/internal/model"
)

const (
	// DefaultInterval is the delay between status fetches
	DefaultInterval = 10 * time.Second

	// DefaultMaxRetries bounds re-fetches after the initial one, so a session
	// that never leaves processing is fetched DefaultMaxRetries+1 times
	DefaultMaxRetries = 60
)

// Fetcher fetches the current record of one session
type Fetcher interface {
	Session(ctx context.Context, id string) (*model.Session, error)
}

// Sink receives whole-record replacements
type Sink interface {
	Replace(s model.Session) bool
}

// Reason describes why an event was emitted
type Reason string

const (
	ReasonUpdated     Reason = "updated"      // still processing, another fetch is scheduled
	ReasonTerminal    Reason = "terminal"     // server reported a non-processing status
	ReasonExhausted   Reason = "exhausted"    // retry budget spent while still processing
	ReasonFetchFailed Reason = "fetch_failed" // transport or server error, polling stopped
	ReasonCancelled   Reason = "cancelled"    // stopped by Stop/StopAll
)

// Event is emitted after every fetch and when a poller is cancelled
type Event struct {
	SessionID string
	Session   *model.Session // nil unless the fetch succeeded
	Err       error
	Reason    Reason
	Fetches   int
}

// Stopped reports whether the poller emitting this event has finished
func (e Event) Stopped() bool {
	return e.Reason != ReasonUpdated
}

// Listener is called from the poller goroutine
type Listener func(Event)

// Options configures a Manager
type Options struct {
	Interval   time.Duration
	MaxRetries int
	Logger     *slog.Logger
	Listener   Listener
}

// Manager runs one poller per session id
type Manager struct {
	fetcher  Fetcher
	sink     Sink
	interval time.Duration
	maxRetry int
	logger   *slog.Logger
	listener Listener

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	wg      sync.WaitGroup
	baseCtx context.Context
	stopAll context.CancelFunc
}

// NewManager creates a poller manager writing into sink
func NewManager(fetcher Fetcher, sink Sink, opts Options) *Manager {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		fetcher:  fetcher,
		sink:     sink,
		interval: opts.Interval,
		maxRetry: opts.MaxRetries,
		logger:   opts.Logger.With("component", "poller"),
		listener: opts.Listener,
		active:   make(map[string]context.CancelFunc),
		baseCtx:  ctx,
		stopAll:  cancel,
	}
}

// SetListener replaces the event listener. Only affects events emitted afterwards.
func (m *Manager) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// Start begins polling id. Returns false if a poller for id is already running.
func (m *Manager) Start(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[id]; ok {
		return false
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.active[id] = cancel
	m.wg.Add(1)
	go m.run(ctx, id)
	return true
}

// Stop cancels the poller for id at its next suspension point
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	cancel, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// StopAll cancels every poller and waits for them to exit
func (m *Manager) StopAll() {
	m.stopAll()
	m.wg.Wait()
}

// Wait blocks until every running poller has stopped
func (m *Manager) Wait() {
	m.wg.Wait()
}

// IsActive reports whether id has a running poller
func (m *Manager) IsActive(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// Active returns the number of running pollers
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) run(ctx context.Context, id string) {
	defer m.wg.Done()
	defer m.release(id)

	log := m.logger.With("session_id", id)
	retries := 0
	fetches := 0

	for {
		sess, err := m.fetcher.Session(ctx, id)
		fetches++
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				log.Debug("poll cancelled during fetch")
				m.emit(Event{SessionID: id, Err: ctx.Err(), Reason: ReasonCancelled, Fetches: fetches})
				return
			}
			log.Error("failed to poll session status", "error", err, "fetches", fetches)
			m.emit(Event{SessionID: id, Err: err, Reason: ReasonFetchFailed, Fetches: fetches})
			return
		}

		// the record is keyed by the id we polled, whatever the body says
		sess.ID = id
		m.sink.Replace(*sess)

		if sess.Status != model.StatusProcessing {
			log.Info("session finished", "status", sess.Status, "fetches", fetches)
			m.emit(Event{SessionID: id, Session: sess, Reason: ReasonTerminal, Fetches: fetches})
			return
		}
		if retries >= m.maxRetry {
			log.Warn("poll retry budget exhausted", "fetches", fetches)
			m.emit(Event{SessionID: id, Session: sess, Reason: ReasonExhausted, Fetches: fetches})
			return
		}
		retries++
		m.emit(Event{SessionID: id, Session: sess, Reason: ReasonUpdated, Fetches: fetches})

		timer := time.NewTimer(m.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debug("poll cancelled")
			m.emit(Event{SessionID: id, Err: ctx.Err(), Reason: ReasonCancelled, Fetches: fetches})
			return
		case <-timer.C:
		}
	}
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.active[id]; ok {
		cancel()
		delete(m.active, id)
	}
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	l := m.listener
	m.mu.Unlock()
	if l != nil {
		l(ev)
	}
}
