package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipguy/Bing4/internal/model"
	"github.com/vipguy/Bing4/internal/session"
)

// scriptedFetcher returns statuses in order, repeating the last one
type scriptedFetcher struct {
	mu       sync.Mutex
	statuses []model.Status
	err      error
	calls    int
	block    bool
}

func (f *scriptedFetcher) Session(ctx context.Context, id string) (*model.Session, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	i := n - 1
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return &model.Session{
		ID:              id,
		Status:          f.statuses[i],
		TotalImages:     4,
		CompletedImages: n,
		Images:          []model.Image{},
	}, nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func newTestManager(f Fetcher, store *session.Store, maxRetries int, interval time.Duration) (*Manager, *eventLog) {
	events := &eventLog{}
	m := NewManager(f, store, Options{
		Interval:   interval,
		MaxRetries: maxRetries,
		Listener:   events.add,
	})
	return m, events
}

func seeded(ids ...string) *session.Store {
	s := session.NewStore()
	for _, id := range ids {
		s.InsertFront(model.NewPending(id, "p", nil, 1, 4, time.Now()))
	}
	return s
}

func TestPollStopsOnTerminalStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []model.Status
		want     int
	}{
		{"completed on first fetch", []model.Status{model.StatusCompleted}, 1},
		{"completed after two", []model.Status{model.StatusProcessing, model.StatusProcessing, model.StatusCompleted}, 3},
		{"failed", []model.Status{model.StatusProcessing, model.StatusFailed}, 2},
		{"partially failed", []model.Status{model.StatusPartiallyFailed}, 1},
		{"pending is not processing", []model.Status{model.StatusPending}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{statuses: tt.statuses}
			store := seeded("s1")
			m, events := newTestManager(f, store, DefaultMaxRetries, time.Millisecond)

			require.True(t, m.Start("s1"))
			m.Wait()

			assert.Equal(t, tt.want, f.Calls())
			got, ok := store.Get("s1")
			require.True(t, ok)
			assert.Equal(t, tt.statuses[len(tt.statuses)-1], got.Status)
			assert.Equal(t, ReasonTerminal, events.last().Reason)
			assert.False(t, m.IsActive("s1"))
		})
	}
}

func TestPollRetryBudget(t *testing.T) {
	f := &scriptedFetcher{statuses: []model.Status{model.StatusProcessing}}
	store := seeded("s1")
	m, events := newTestManager(f, store, DefaultMaxRetries, time.Millisecond)

	m.Start("s1")
	m.Wait()

	// initial fetch plus one per retry
	assert.Equal(t, DefaultMaxRetries+1, f.Calls())
	last := events.last()
	assert.Equal(t, ReasonExhausted, last.Reason)
	assert.Equal(t, DefaultMaxRetries+1, last.Fetches)

	got, _ := store.Get("s1")
	assert.Equal(t, model.StatusProcessing, got.Status)
}

func TestPollZeroRetries(t *testing.T) {
	f := &scriptedFetcher{statuses: []model.Status{model.StatusProcessing}}
	m, events := newTestManager(f, seeded("s1"), 0, time.Millisecond)

	m.Start("s1")
	m.Wait()

	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, ReasonExhausted, events.last().Reason)
}

func TestPollStopsOnFetchError(t *testing.T) {
	f := &scriptedFetcher{err: errors.New("connection refused")}
	store := seeded("s1")
	m, events := newTestManager(f, store, DefaultMaxRetries, time.Millisecond)

	m.Start("s1")
	m.Wait()

	assert.Equal(t, 1, f.Calls())
	last := events.last()
	assert.Equal(t, ReasonFetchFailed, last.Reason)
	assert.EqualError(t, last.Err, "connection refused")
	assert.True(t, last.Stopped())

	// record untouched
	got, _ := store.Get("s1")
	assert.Equal(t, model.StatusProcessing, got.Status)
}

func TestPollUpdatesRecordEachFetch(t *testing.T) {
	f := &scriptedFetcher{statuses: []model.Status{model.StatusProcessing, model.StatusProcessing, model.StatusCompleted}}
	store := seeded("s1")
	m, events := newTestManager(f, store, DefaultMaxRetries, time.Millisecond)

	m.Start("s1")
	m.Wait()

	events.mu.Lock()
	defer events.mu.Unlock()
	require.Len(t, events.events, 3)
	for i, ev := range events.events[:2] {
		assert.Equal(t, ReasonUpdated, ev.Reason)
		assert.False(t, ev.Stopped())
		assert.Equal(t, i+1, ev.Session.CompletedImages)
	}
	got, _ := store.Get("s1")
	assert.Equal(t, 3, got.CompletedImages)
}

func TestStartIsIdempotentWhileActive(t *testing.T) {
	f := &scriptedFetcher{statuses: []model.Status{model.StatusProcessing}}
	m, _ := newTestManager(f, seeded("s1"), DefaultMaxRetries, time.Hour)

	assert.True(t, m.Start("s1"))
	assert.False(t, m.Start("s1"))
	assert.Equal(t, 1, m.Active())

	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)
	m.StopAll()
	assert.Equal(t, 0, m.Active())
}

func TestStopCancelsWaitingPoller(t *testing.T) {
	f := &scriptedFetcher{statuses: []model.Status{model.StatusProcessing}}
	m, events := newTestManager(f, seeded("s1", "s2"), DefaultMaxRetries, time.Hour)

	m.Start("s1")
	m.Start("s2")
	require.Eventually(t, func() bool { return f.Calls() == 2 }, time.Second, time.Millisecond)

	assert.True(t, m.Stop("s1"))
	require.Eventually(t, func() bool { return !m.IsActive("s1") }, time.Second, time.Millisecond)
	assert.True(t, m.IsActive("s2"))
	assert.False(t, m.Stop("unknown"))

	m.StopAll()
	assert.Equal(t, 2, f.Calls())

	events.mu.Lock()
	defer events.mu.Unlock()
	cancelled := 0
	for _, ev := range events.events {
		if ev.Reason == ReasonCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 2, cancelled)
}

func TestStopDuringFetch(t *testing.T) {
	f := &scriptedFetcher{block: true}
	m, events := newTestManager(f, seeded("s1"), DefaultMaxRetries, time.Millisecond)

	m.Start("s1")
	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)
	m.StopAll()

	assert.Equal(t, ReasonCancelled, events.last().Reason)
}

func TestPollUnknownSessionIsNoop(t *testing.T) {
	f := &scriptedFetcher{statuses: []model.Status{model.StatusCompleted}}
	store := session.NewStore()
	m, events := newTestManager(f, store, DefaultMaxRetries, time.Millisecond)

	m.Start("gone")
	m.Wait()

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, ReasonTerminal, events.last().Reason)
}

func TestRestartAfterStop(t *testing.T) {
	f := &scriptedFetcher{statuses: []model.Status{model.StatusCompleted}}
	m, _ := newTestManager(f, seeded("s1"), DefaultMaxRetries, time.Millisecond)

	m.Start("s1")
	m.Wait()
	assert.True(t, m.Start("s1"))
	m.Wait()
	assert.Equal(t, 2, f.Calls())
}
