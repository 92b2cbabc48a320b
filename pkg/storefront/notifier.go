package storefront

import (
	"context"
	"sync"
	"time"
)

// EventKind distinguishes notifier events
type EventKind string

const (
	// EventNotification carries a notification not seen before.
	EventNotification EventKind = "notification"
	// EventUnreadCount fires when the unread count changes.
	EventUnreadCount EventKind = "unread_count"
	// EventError reports a failed poll.
	EventError EventKind = "error"
)

// NotificationEvent is delivered to Notifier subscribers
type NotificationEvent struct {
	Kind         EventKind
	Notification *Notification
	Unread       int64
	Err          error
}

// Notifier polls the inbox and emits typed events to subscribers.
type Notifier struct {
	client   *Client
	interval time.Duration
	limit    int

	mu     sync.Mutex
	subs   map[int]func(NotificationEvent)
	nextID int
	seen   map[string]struct{}
	unread int64
	polled bool
}

// NewNotifier creates a notifier polling every interval (30s when zero).
func NewNotifier(client *Client, interval time.Duration) *Notifier {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Notifier{
		client:   client,
		interval: interval,
		limit:    50,
		subs:     make(map[int]func(NotificationEvent)),
		seen:     make(map[string]struct{}),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn func(NotificationEvent)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Run polls until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	n.Poll(ctx)
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Poll(ctx)
		}
	}
}

// Poll fetches the inbox once. New notifications are emitted oldest
// first, followed by an unread-count event when the count moved.
func (n *Notifier) Poll(ctx context.Context) {
	items, err := n.client.ListNotifications(ctx, n.limit)
	if err != nil {
		n.emit(NotificationEvent{Kind: EventError, Err: err})
		return
	}
	unread, err := n.client.UnreadCount(ctx)
	if err != nil {
		n.emit(NotificationEvent{Kind: EventError, Err: err})
		return
	}

	var events []NotificationEvent
	n.mu.Lock()
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if _, ok := n.seen[item.ID]; ok {
			continue
		}
		n.seen[item.ID] = struct{}{}
		events = append(events, NotificationEvent{Kind: EventNotification, Notification: &item, Unread: unread})
	}
	if !n.polled || unread != n.unread {
		events = append(events, NotificationEvent{Kind: EventUnreadCount, Unread: unread})
	}
	n.unread = unread
	n.polled = true
	n.mu.Unlock()

	for _, ev := range events {
		n.emit(ev)
	}
}

func (n *Notifier) emit(ev NotificationEvent) {
	n.mu.Lock()
	subs := make([]func(NotificationEvent), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
