package backend

import (
	"sync"

	"github.com/promovista/app/internal/model"
)

const subscriptionBuffer = 16

// Subscription delivers auth state changes until Unsubscribe is called
type Subscription struct {
	events chan model.AuthEvent
	done   chan struct{}
	once   sync.Once
	remove func(*Subscription)
}

// Events returns the channel notifications are delivered on. It is never
// closed; select on Done as well to observe unsubscription.
func (s *Subscription) Events() <-chan model.AuthEvent {
	return s.events
}

// Done is closed once the subscription has been cancelled
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Unsubscribe stops delivery. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		if s.remove != nil {
			s.remove(s)
		}
	})
}

// Notifier fans auth events out to subscribers in emission order
type Notifier struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	// emitMu serializes emits so every subscriber sees the same order
	emitMu sync.Mutex
}

// NewNotifier creates a notifier with no subscribers
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber
func (n *Notifier) Subscribe() *Subscription {
	sub := &Subscription{
		events: make(chan model.AuthEvent, subscriptionBuffer),
		done:   make(chan struct{}),
	}
	sub.remove = func(s *Subscription) {
		n.mu.Lock()
		delete(n.subs, s)
		n.mu.Unlock()
	}
	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

// Emit delivers ev to every current subscriber, waiting for each to accept
// it or unsubscribe.
func (n *Notifier) Emit(ev model.AuthEvent) {
	n.emitMu.Lock()
	defer n.emitMu.Unlock()

	n.mu.Lock()
	targets := make([]*Subscription, 0, len(n.subs))
	for s := range n.subs {
		targets = append(targets, s)
	}
	n.mu.Unlock()

	for _, s := range targets {
		select {
		case s.events <- ev:
		case <-s.done:
		}
	}
}
