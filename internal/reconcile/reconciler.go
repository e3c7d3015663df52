// Package reconcile waits for the positions read model to catch up with a
// trade the exchange has already accepted.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 30 * time.Second
)

// ErrClosed is returned by Track after Close.
var ErrClosed = errors.New("reconcile: closed")

// Outcome says how a reconciliation task ended.
type Outcome string

const (
	OutcomeSettled  Outcome = "settled"
	OutcomeTimedOut Outcome = "timed_out"
)

// Event is reported to the observer after every position read and when a
// task ends.
type Event struct {
	Asset     string
	Outcome   Outcome // empty for an intermediate read
	Positions []domain.Position
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithTimeout sets how long a task polls before giving up.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithObserver registers fn to receive task events. It runs on the task
// goroutine and must not block.
func WithObserver(fn func(Event)) Option {
	return func(r *Reconciler) { r.observer = fn }
}

type task struct {
	account    string
	sizeBefore float64
	started    time.Time
	cancel     context.CancelFunc
	done       chan struct{}
}

// Reconciler runs at most one polling task per asset.
type Reconciler struct {
	reader   domain.PositionReader
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
	observer func(Event)

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
	wg     sync.WaitGroup
}

// New creates a Reconciler that reads positions through reader.
func New(reader domain.PositionReader, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		reader:   reader,
		logger:   logger.With(slog.String("component", "reconcile")),
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		tasks:    make(map[string]*task),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Track starts polling account's positions until asset disappears or its
// size drops below sizeBefore. An existing task for asset is replaced.
func (r *Reconciler) Track(account, asset string, sizeBefore float64) error {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		account:    account,
		sizeBefore: sizeBefore,
		started:    time.Now(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return ErrClosed
	}
	if prev, ok := r.tasks[asset]; ok {
		prev.cancel()
	}
	r.tasks[asset] = t
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.Info("reconcile: tracking",
		slog.String("asset", asset),
		slog.Float64("size_before", sizeBefore),
	)

	go r.run(ctx, asset, t)
	return nil
}

// IsPending reports whether asset has a running task.
func (r *Reconciler) IsPending(asset string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[asset]
	return ok
}

// Pending returns the assets with a running task, sorted.
func (r *Reconciler) Pending() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.tasks))
	for a := range r.tasks {
		out = append(out, a)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// Cancel stops the task for asset, if any, and waits for it to exit. No
// read is issued for asset once Cancel returns. It must not be called from
// the observer.
func (r *Reconciler) Cancel(asset string) {
	r.mu.Lock()
	t, ok := r.tasks[asset]
	if ok {
		delete(r.tasks, asset)
	}
	r.mu.Unlock()
	if ok {
		t.cancel()
		<-t.done
	}
}

// Close stops every task and waits for them to exit. It is safe to call
// more than once.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.closed = true
	tasks := r.tasks
	r.tasks = make(map[string]*task)
	r.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	r.wg.Wait()
}

func (r *Reconciler) run(ctx context.Context, asset string, t *task) {
	defer r.wg.Done()
	defer close(t.done)
	defer t.cancel()

	deadline := time.NewTimer(r.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			r.logger.Debug("reconcile: timed out",
				slog.String("asset", asset),
				slog.Duration("elapsed", time.Since(t.started)),
			)
			r.finish(asset, t, Event{Asset: asset, Outcome: OutcomeTimedOut})
			return
		case <-ticker.C:
		}
		// A tick and a cancellation can be ready together.
		if ctx.Err() != nil {
			return
		}

		positions, err := r.reader.ListPositions(ctx, t.account)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Warn("reconcile: read positions failed",
				slog.String("asset", asset),
				slog.String("error", err.Error()),
			)
			continue
		}

		if Settled(positions, asset, t.sizeBefore) {
			r.logger.Info("reconcile: settled",
				slog.String("asset", asset),
				slog.Duration("elapsed", time.Since(t.started)),
			)
			r.finish(asset, t, Event{Asset: asset, Outcome: OutcomeSettled, Positions: positions})
			return
		}
		r.emit(Event{Asset: asset, Positions: positions})
	}
}

// finish removes t if it is still the task registered for asset and
// reports the outcome. A task that was replaced or cancelled meanwhile ends
// silently.
func (r *Reconciler) finish(asset string, t *task, ev Event) {
	r.mu.Lock()
	current := r.tasks[asset] == t
	if current {
		delete(r.tasks, asset)
	}
	r.mu.Unlock()

	if current {
		r.emit(ev)
	}
}

func (r *Reconciler) emit(ev Event) {
	if r.observer != nil {
		r.observer(ev)
	}
}

// Settled reports whether positions reflect a reduction of asset below
// sizeBefore. A size drop caused by an unrelated trade is indistinguishable.
func Settled(positions []domain.Position, asset string, sizeBefore float64) bool {
	for _, p := range positions {
		if p.Asset == asset {
			return p.Size < sizeBefore
		}
	}
	return true
}
