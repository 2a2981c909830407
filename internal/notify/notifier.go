// Package notify carries the in-memory coordination state of the recipient
// core: the change-notification hub that tells downstream consumers (UI,
// job scheduler, search index) that a recipient's visible attributes changed,
// and the remap cache that redirects superseded RecipientIds after a merge.
//
// Both types are constructed per instance and injected — no package-level
// singletons — so tests can isolate state per test case.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/tbourn/go-contact-backend/internal/domain"
)

// Listener receives a coalesced batch of changed recipient ids. It is invoked
// on the notifier's flush goroutine and must not block for long.
type Listener func(ids []domain.RecipientID)

// Notifier fans out recipient-change signals to subscribers. Signals are
// fire-and-forget: Changed never blocks on listeners, and ids reported more
// than once within a flush window are delivered once.
type Notifier struct {
	mu        sync.Mutex
	pending   map[domain.RecipientID]struct{}
	listeners []Listener
	window    time.Duration
	timer     *time.Timer
	closed    bool
}

// NewNotifier constructs a Notifier that coalesces signals for the given
// window before fanning them out. A window <= 0 delivers on a 20ms default.
func NewNotifier(window time.Duration) *Notifier {
	if window <= 0 {
		window = 20 * time.Millisecond
	}
	return &Notifier{
		pending: make(map[domain.RecipientID]struct{}),
		window:  window,
	}
}

// Subscribe registers a listener for future change batches.
func (n *Notifier) Subscribe(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Changed records that the given recipients changed. Delivery happens after
// the coalescing window elapses.
func (n *Notifier) Changed(ids ...domain.RecipientID) {
	if len(ids) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for _, id := range ids {
		n.pending[id] = struct{}{}
	}
	if n.timer == nil {
		n.timer = time.AfterFunc(n.window, n.flush)
	}
}

// Flush delivers any pending batch immediately. Useful in tests and during
// shutdown.
func (n *Notifier) Flush() { n.flush() }

// Close stops accepting signals and delivers whatever is pending.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.flush()
}

func (n *Notifier) flush() {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if len(n.pending) == 0 {
		n.mu.Unlock()
		return
	}
	batch := make([]domain.RecipientID, 0, len(n.pending))
	for id := range n.pending {
		batch = append(batch, id)
	}
	n.pending = make(map[domain.RecipientID]struct{})
	listeners := make([]Listener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.Unlock()

	// Deterministic order keeps consumers (and tests) simple.
	sort.Slice(batch, func(i, j int) bool { return batch[i] < batch[j] })
	for _, l := range listeners {
		l(batch)
	}
}
