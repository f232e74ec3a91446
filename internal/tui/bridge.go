package tui

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vipguy/Bing4/internal/poller"
)

// EventBridge hands poller events to the UI loop. Sends never block the
// poller; when the buffer is full the event is dropped, and the next event
// re-renders from the store anyway.
type EventBridge struct {
	ch      chan poller.Event
	dropped atomic.Int64
}

// NewEventBridge creates a bridge with the given buffer size
func NewEventBridge(size int) *EventBridge {
	if size < 1 {
		size = 1
	}
	return &EventBridge{ch: make(chan poller.Event, size)}
}

// Listener is registered with the poll manager
func (b *EventBridge) Listener() poller.Listener {
	return func(ev poller.Event) {
		select {
		case b.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *EventBridge) Events() <-chan poller.Event {
	return b.ch
}

func (b *EventBridge) Dropped() int64 {
	return b.dropped.Load()
}

// Close must only be called after every poller has exited.
func (b *EventBridge) Close() {
	close(b.ch)
}

// waitForPollEvent blocks until an event is available, then drains whatever
// else is already queued. A closed channel yields pollingStoppedMsg.
func waitForPollEvent(events <-chan poller.Event) tea.Cmd {
	return func() tea.Msg {
		if events == nil {
			return nil
		}

		ev, ok := <-events
		if !ok {
			return pollingStoppedMsg{}
		}
		batch := []poller.Event{ev}

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return pollEventsMsg{events: batch}
				}
				batch = append(batch, ev)
			default:
				return pollEventsMsg{events: batch}
			}
		}
	}
}
