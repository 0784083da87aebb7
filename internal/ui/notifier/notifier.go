// Package notifier fans console change notifications out to the
// long-lived /updates streams.
package notifier

import (
	"sync"

	"github.com/leapstack-labs/dbbrowser/internal/console"
)

// Notifier broadcasts console changes to subscribed listeners. Each listener
// buffers one pending change; when it falls behind, later changes are
// dropped for it and it re-renders from current state on the next one it
// receives.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan console.Change]struct{}
}

// New creates a Notifier with no listeners.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan console.Change]struct{}),
	}
}

// Subscribe registers a listener. The caller must Unsubscribe it.
func (n *Notifier) Subscribe() chan console.Change {
	ch := make(chan console.Change, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (n *Notifier) Unsubscribe(ch chan console.Change) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Publish delivers change to every listener without blocking. It matches
// the console.Config OnChange signature.
func (n *Notifier) Publish(change console.Change) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- change:
		default:
		}
	}
}

// Broadcast publishes a databases change that no session made, such as a
// file appearing in the preload directory.
func (n *Notifier) Broadcast() {
	n.Publish(console.Change{Kind: console.ChangeDatabases})
}

// Len returns the number of listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
