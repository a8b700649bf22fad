// Package feed provides live location feeds for the tracker.
package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/runtrace/runtrace/internal/geo"
)

// ErrUnavailable is returned by Subscribe when the feed cannot deliver
// fixes at all (missing device or file, feed closed). Starting a run on an
// unavailable feed fails.
var ErrUnavailable = errors.New("location feed unavailable")

// FixFunc receives fixes. ErrorFunc receives transient error reasons
// ("signal lost"); the feed keeps running after reporting one.
type (
	FixFunc   func(geo.Fix)
	ErrorFunc func(reason string)
)

// Handle identifies one subscription. The zero Handle is never issued.
type Handle uint64

// Feed is a push-style source of fixes.
//
// Callbacks run on a goroutine owned by the feed and may arrive at
// irregular intervals. After Unsubscribe returns no new delivery starts
// for that handle; a delivery already in progress may still complete, so
// consumers that need a hard cutoff track their own subscription state.
type Feed interface {
	// Name returns a short lowercase identifier, e.g. "simulator".
	Name() string

	// Subscribe starts delivery. Errors wrap ErrUnavailable.
	Subscribe(onFix FixFunc, onError ErrorFunc) (Handle, error)

	// Unsubscribe stops delivery. It is safe to call more than once and
	// with handles the feed never issued.
	Unsubscribe(h Handle)
}

// subscription is one live consumer of a feed.
type subscription struct {
	onFix   FixFunc
	onError ErrorFunc
	cancel  context.CancelFunc
	closed  atomic.Bool
}

func (s *subscription) fix(f geo.Fix) {
	if s.closed.Load() || s.onFix == nil {
		return
	}
	s.onFix(f)
}

func (s *subscription) fail(reason string) {
	if s.closed.Load() || s.onError == nil {
		return
	}
	s.onError(reason)
}

// hub tracks the live subscriptions of a feed. Feeds that generate fixes
// per subscriber run one goroutine per entry under its context; feeds that
// fan out a shared stream iterate with each.
type hub struct {
	mu   sync.Mutex
	next Handle
	subs map[Handle]*subscription
}

func (h *hub) add(onFix FixFunc, onError ErrorFunc) (Handle, *subscription, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{onFix: onFix, onError: onError, cancel: cancel}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[Handle]*subscription)
	}
	h.next++
	h.subs[h.next] = sub
	return h.next, sub, ctx
}

func (h *hub) remove(handle Handle) {
	h.mu.Lock()
	sub, ok := h.subs[handle]
	delete(h.subs, handle)
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.closed.Store(true)
	sub.cancel()
}

func (h *hub) removeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()

	for _, sub := range subs {
		sub.closed.Store(true)
		sub.cancel()
	}
}

// each calls fn for every live subscription outside the lock.
func (h *hub) each(fn func(*subscription)) {
	h.mu.Lock()
	subs := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		fn(s)
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
