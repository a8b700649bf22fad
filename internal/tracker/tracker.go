// Package tracker wires a location feed through the point filter into the
// run session and publishes the result.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/runtrace/runtrace/internal/feed"
	"github.com/runtrace/runtrace/internal/filter"
	"github.com/runtrace/runtrace/internal/geo"
	"github.com/runtrace/runtrace/internal/session"
)

// Status lines shown to the runner.
const (
	StatusWaiting  = "Waiting for GPS signal"
	StatusTracking = "Tracking"
	StatusPaused   = "Paused"
	StatusStopped  = "Run complete"
)

// Publisher receives run updates. The ws broadcaster implements it.
// Implementations must not call back into the Tracker.
type Publisher interface {
	// QueueSnapshot replaces the run wholesale (start, stop, clear).
	QueueSnapshot(session.Snapshot)
	// QueueDelta carries incremental changes.
	QueueDelta(session.Delta)
}

// Archiver stores finished runs.
type Archiver interface {
	Save(session.Snapshot) error
}

// Config controls the tracker.
type Config struct {
	Filter          filter.Config
	TickInterval    time.Duration // elapsed-time refresh while running; 0 disables
	HealthThreshold int
}

// Tracker owns the single run session. Fixes, feed errors, ticks and
// control operations all take mu, so they never interleave.
type Tracker struct {
	mu    sync.Mutex
	cfg   Config
	clock session.Clock

	feed   feed.Feed
	filter *filter.Filter
	sess   *session.Session

	lastFix *geo.Fix
	status  string
	health  feedHealth

	// gen identifies the current subscription; callbacks carrying an older
	// generation were delivered after Unsubscribe and are dropped.
	gen        uint64
	handle     feed.Handle
	subscribed bool

	tickCancel context.CancelFunc

	publisher Publisher
	archiver  Archiver
}

// New returns an Idle tracker reading from f. A nil clock means time.Now.
func New(cfg Config, f feed.Feed, clock session.Clock) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	if cfg.HealthThreshold <= 0 {
		cfg.HealthThreshold = DefaultHealthThreshold
	}
	return &Tracker{
		cfg:    cfg,
		clock:  clock,
		feed:   f,
		filter: filter.New(cfg.Filter),
		sess:   session.New(clock),
		health: newFeedHealth(),
	}
}

// SetPublisher sets where updates go. Pass nil to disable.
func (t *Tracker) SetPublisher(p Publisher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publisher = p
}

// SetArchiver sets where stopped runs are saved. Pass nil to disable.
func (t *Tracker) SetArchiver(a Archiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.archiver = a
}

// FeedName returns the name of the feed in use.
func (t *Tracker) FeedName() string {
	return t.feed.Name()
}

// Start subscribes to the feed and begins a new run. It is a no-op while a
// run is active. When the feed cannot be subscribed the error wraps
// feed.ErrUnavailable and the phase is unchanged.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess.Phase().Active() {
		return nil
	}

	if err := t.subscribeLocked(); err != nil {
		t.status = "GPS unavailable: " + err.Error()
		t.publishDeltaLocked(t.sess.Len(), nil)
		return fmt.Errorf("start run: %w", err)
	}

	t.sess.Start()
	t.lastFix = nil
	t.health = newFeedHealth()
	t.status = StatusWaiting
	t.startTicksLocked()

	log.Printf("Run %s started on %s feed", t.sess.ID(), t.feed.Name())
	t.publishSnapshotLocked()
	return nil
}

// Pause freezes the run clock. Fixes keep arriving for live display but
// are not appended.
func (t *Tracker) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.sess.Pause() {
		return false
	}
	t.stopTicksLocked()
	t.status = StatusPaused
	t.publishDeltaLocked(t.sess.Len(), nil)
	return true
}

// Resume restarts the run clock.
func (t *Tracker) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.sess.Resume() {
		return false
	}
	t.startTicksLocked()
	t.status = StatusTracking
	t.publishDeltaLocked(t.sess.Len(), nil)
	return true
}

// Stop ends the run, releases the feed and archives the run. Calling it
// again, or with no active run, only makes sure the feed is released.
func (t *Tracker) Stop() bool {
	t.mu.Lock()
	t.unsubscribeLocked()
	t.stopTicksLocked()

	if !t.sess.Stop() {
		t.mu.Unlock()
		return false
	}
	t.status = StatusStopped
	snap := t.snapshotLocked()
	archiver := t.archiver
	t.publishSnapshotLocked()
	t.mu.Unlock()

	log.Printf("Run %s stopped: %.0f m in %s", snap.ID, snap.DistanceM, geo.FormatElapsed(snap.Elapsed()))

	if archiver != nil {
		if err := archiver.Save(snap); err != nil {
			log.Printf("Failed to archive run %s: %v", snap.ID, err)
		}
	}
	return true
}

// Clear discards the run and returns to Idle. Always permitted.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.unsubscribeLocked()
	t.stopTicksLocked()
	t.sess = session.New(t.clock)
	t.lastFix = nil
	t.status = ""
	t.health = newFeedHealth()
	t.publishSnapshotLocked()
}

// Close stops any active run. Used on shutdown.
func (t *Tracker) Close() {
	t.Stop()
}

// Snapshot returns a consistent copy of the run for renderers and
// exporters.
func (t *Tracker) Snapshot() session.Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Summary returns the derived figures for the current run.
func (t *Tracker) Summary() session.Summary {
	return session.Summarize(t.Snapshot())
}

// FeedStatus returns the feed health.
func (t *Tracker) FeedStatus() session.FeedStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.feedStatusLocked()
}

// Tick publishes an elapsed-time update. It does nothing unless Running
// and never touches the track.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess.Phase() != session.Running {
		return
	}
	t.publishDeltaLocked(t.sess.Len(), nil)
}

// Ticking reports whether the tick loop is running.
func (t *Tracker) Ticking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tickCancel != nil
}

func (t *Tracker) subscribeLocked() error {
	if t.subscribed {
		return nil
	}
	t.gen++
	gen := t.gen
	h, err := t.feed.Subscribe(
		func(f geo.Fix) { t.handleFix(gen, f) },
		func(reason string) { t.handleError(gen, reason) },
	)
	if err != nil {
		if !errors.Is(err, feed.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", feed.ErrUnavailable, err)
		}
		return err
	}
	t.handle = h
	t.subscribed = true
	return nil
}

func (t *Tracker) unsubscribeLocked() {
	if !t.subscribed {
		return
	}
	t.feed.Unsubscribe(t.handle)
	t.subscribed = false
	t.handle = 0
	// Anything still in flight now carries a stale generation.
	t.gen++
}

func (t *Tracker) current(gen uint64) bool {
	return t.subscribed && gen == t.gen
}

func (t *Tracker) handleFix(gen uint64, fix geo.Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.current(gen) || !t.sess.Phase().Active() {
		return
	}

	raw := fix.Clone()
	t.lastFix = &raw
	t.health.recordSuccess()
	t.noteHealthLocked()

	d := t.filter.Evaluate(fix, t.sess)
	switch d.Verdict {
	case filter.Accept, filter.AcceptSeed:
		if _, err := t.sess.Append(fix); err != nil {
			log.Printf("Dropped fix: %v", err)
			return
		}
		t.status = StatusTracking
		n := t.sess.Len()
		t.publishDeltaLocked(n-1, []geo.Fix{fix.Clone()})
		return
	case filter.RejectLowAccuracy:
		t.status = fmt.Sprintf("GPS accuracy %.0f m: %s", fix.Accuracy, d.Reason)
	case filter.RejectJitter:
		if t.sess.Phase() == session.Running {
			t.status = StatusTracking
		}
	}
	t.publishDeltaLocked(t.sess.Len(), nil)
}

func (t *Tracker) handleError(gen uint64, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.current(gen) {
		return
	}
	t.status = "GPS error: " + reason
	t.health.recordFailure(reason, t.clock())
	t.noteHealthLocked()
	t.publishDeltaLocked(t.sess.Len(), nil)
}

// noteHealthLocked logs feed health transitions.
func (t *Tracker) noteHealthLocked() {
	if status, changed := t.health.changed(t.cfg.HealthThreshold); changed {
		log.Printf("[%s] feed health: %s (failures=%d)", t.feed.Name(), status, t.health.failures)
	}
}

func (t *Tracker) startTicksLocked() {
	if t.tickCancel != nil || t.cfg.TickInterval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.tickCancel = cancel
	go t.tickLoop(ctx, t.cfg.TickInterval)
}

func (t *Tracker) stopTicksLocked() {
	if t.tickCancel == nil {
		return
	}
	t.tickCancel()
	t.tickCancel = nil
}

func (t *Tracker) tickLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

func (t *Tracker) feedStatusLocked() session.FeedStatus {
	return session.FeedStatus{
		Name:      t.feed.Name(),
		Health:    string(t.health.status(t.cfg.HealthThreshold)),
		Failures:  t.health.failures,
		LastError: t.health.lastErr,
	}
}

func (t *Tracker) snapshotLocked() session.Snapshot {
	snap := t.sess.Snapshot()
	if t.lastFix != nil {
		f := t.lastFix.Clone()
		snap.LastFix = &f
	}
	snap.Status = t.status
	snap.Feed = t.feedStatusLocked()
	return snap
}

func (t *Tracker) publishSnapshotLocked() {
	if t.publisher == nil {
		return
	}
	t.publisher.QueueSnapshot(t.snapshotLocked())
}

func (t *Tracker) publishDeltaLocked(fromIndex int, points []geo.Fix) {
	if t.publisher == nil {
		return
	}
	d := session.Delta{
		ID:        t.sess.ID(),
		Phase:     t.sess.Phase(),
		ElapsedMs: t.sess.Elapsed().Milliseconds(),
		DistanceM: t.sess.Distance(),
		FromIndex: fromIndex,
		Points:    points,
		Status:    t.status,
		Feed:      t.feedStatusLocked(),
	}
	if t.lastFix != nil {
		f := t.lastFix.Clone()
		d.LastFix = &f
	}
	t.publisher.QueueDelta(d)
}
