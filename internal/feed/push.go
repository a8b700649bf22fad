package feed

import (
	"errors"
	"fmt"
	"sync"

	"github.com/runtrace/runtrace/internal/geo"
)

// ErrNoSubscribers is returned by Push.Ingest when nobody is listening,
// i.e. no run is being tracked.
var ErrNoSubscribers = errors.New("no active subscription")

// Push is a Feed whose fixes arrive from outside the process, typically a
// phone posting to the server. Ingest and Report fan out to every
// subscriber on the caller's goroutine.
type Push struct {
	mu     sync.Mutex
	closed bool
	hub    hub
}

func NewPush() *Push {
	return &Push{}
}

func (p *Push) Name() string { return "push" }

func (p *Push) Subscribe(onFix FixFunc, onError ErrorFunc) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, fmt.Errorf("%w: push feed closed", ErrUnavailable)
	}
	h, _, _ := p.hub.add(onFix, onError)
	return h, nil
}

func (p *Push) Unsubscribe(h Handle) {
	p.hub.remove(h)
}

// Ingest validates a fix and delivers it to every subscriber.
func (p *Push) Ingest(fix geo.Fix) error {
	if err := fix.Validate(); err != nil {
		return err
	}
	if p.hub.len() == 0 {
		return ErrNoSubscribers
	}
	p.hub.each(func(s *subscription) { s.fix(fix) })
	return nil
}

// Report delivers an error notification to every subscriber.
func (p *Push) Report(reason string) error {
	if p.hub.len() == 0 {
		return ErrNoSubscribers
	}
	p.hub.each(func(s *subscription) { s.fail(reason) })
	return nil
}

// Close drops all subscribers and makes further Subscribe calls fail.
func (p *Push) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.hub.removeAll()
}
