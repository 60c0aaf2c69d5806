// Package loader runs earthquake load cycles off the control loop and hands
// each result back to it exactly once.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrLoadInProgress = errors.New("load already in progress")
	ErrClosed         = errors.New("loader closed")
)

// Fetcher performs one fetch-and-parse against a request URL.
type Fetcher interface {
	FetchEarthquakes(ctx context.Context, rawURL string) ([]domain.Earthquake, error)
}

// URLBuilder turns query parameters into a request URL.
type URLBuilder func(q domain.Query) (string, error)

// DeliverFunc receives a finished cycle on the control loop.
type DeliverFunc func(Result)

// State of the orchestrator.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateDelivered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is one finished load cycle.
type Result struct {
	CycleID     uuid.UUID
	Outcome     domain.Outcome
	Earthquakes []domain.Earthquake
	// Err is a *domain.FetchError when Outcome is failed.
	Err         error
	Query       domain.Query
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration of the cycle.
func (r Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Options configure a Loader. BuildURL and Deliver are required.
type Options struct {
	BuildURL URLBuilder
	Deliver  DeliverFunc
	// Clock stamps cycle start and completion. Defaults to the real clock.
	Clock clockwork.Clock
}

// Loader allows at most one cycle in flight. Fetches run on their own
// goroutine; state changes and delivery happen on the Loop.
type Loader struct {
	fetcher  Fetcher
	loop     *Loop
	buildURL URLBuilder
	deliver  DeliverFunc
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	state   atomic.Int32
	closed  atomic.Bool
	ready   atomic.Bool
	last    atomic.Pointer[Result]
	workers sync.WaitGroup
}

// New creates a Loader that delivers through loop.
func New(f Fetcher, loop *Loop, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loader{
		fetcher:  f,
		loop:     loop,
		buildURL: opts.BuildURL,
		deliver:  opts.Deliver,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// StartLoad begins a cycle for q and returns without waiting for it.
//
// A URL that cannot be built is returned as a *domain.FetchError and is also
// delivered as a failed cycle.
func (l *Loader) StartLoad(q domain.Query) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if !l.acquire() {
		l.metrics.LoadsRejected.Inc()
		return ErrLoadInProgress
	}

	l.metrics.LoadsStarted.Inc()
	l.metrics.LoadInFlight.Set(1)

	res := Result{
		CycleID:   uuid.New(),
		Query:     q,
		StartedAt: l.clock.Now(),
	}
	l.logger.Debug("load cycle started", "cycle_id", res.CycleID, "min_magnitude", q.MinMagnitude,
		"order_by", q.OrderBy, "limit", q.Limit)

	rawURL, err := l.buildURL(q)
	if err != nil {
		var fe *domain.FetchError
		if !errors.As(err, &fe) {
			err = domain.NewFetchError(domain.KindInvalidURL, err)
		}
		l.complete(res, nil, err)
		return err
	}

	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		quakes, err := l.fetcher.FetchEarthquakes(context.Background(), rawURL)
		l.complete(res, quakes, err)
	}()
	return nil
}

// acquire moves the state to Loading unless a cycle is already in flight.
func (l *Loader) acquire() bool {
	for {
		cur := l.state.Load()
		if State(cur) == StateLoading {
			return false
		}
		if l.state.CompareAndSwap(cur, int32(StateLoading)) {
			return true
		}
	}
}

// complete stamps the result and hands it to the control loop.
func (l *Loader) complete(res Result, quakes []domain.Earthquake, err error) {
	res.CompletedAt = l.clock.Now()
	res.Outcome = domain.OutcomeOf(quakes, err)
	res.Err = err
	if err == nil {
		res.Earthquakes = quakes
	}

	l.metrics.LoadInFlight.Set(0)
	l.metrics.LoadDuration.Observe(res.Duration().Seconds())

	settled := make(chan struct{})
	if postErr := l.loop.Post(func() {
		close(settled)
		l.settle(res)
	}); postErr != nil {
		l.record(res)
		l.discard(res, postErr.Error())
		return
	}
	go l.abandonIfStopped(res, settled)
}

// abandonIfStopped records res if the loop stops before settling it, so the
// state does not stay Loading after shutdown.
func (l *Loader) abandonIfStopped(res Result, settled <-chan struct{}) {
	select {
	case <-settled:
	case <-l.loop.Done():
		select {
		case <-settled:
		default:
			l.record(res)
			l.discard(res, ErrLoopStopped.Error())
		}
	}
}

// settle runs on the control loop.
func (l *Loader) settle(res Result) {
	l.record(res)
	if l.closed.Load() {
		l.discard(res, "consumer closed")
		return
	}

	l.metrics.LoadOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	l.ready.Store(true)
	if res.Err != nil {
		l.logger.Warn("load cycle failed", "cycle_id", res.CycleID, "error", res.Err,
			"duration", res.Duration())
	} else {
		l.logger.Info("load cycle complete", "cycle_id", res.CycleID, "outcome", res.Outcome,
			"count", len(res.Earthquakes), "duration", res.Duration())
	}
	if l.deliver != nil {
		l.deliver(res)
	}
}

func (l *Loader) record(res Result) {
	next := StateDelivered
	if res.Outcome == domain.OutcomeFailed {
		next = StateFailed
	}
	l.last.Store(&res)
	l.state.Store(int32(next))
}

func (l *Loader) discard(res Result, reason string) {
	l.metrics.DiscardedDeliveries.Inc()
	l.logger.Debug("load result discarded", "cycle_id", res.CycleID, "reason", reason)
}

// Close turns any pending or future delivery into a no-op. An in-flight
// fetch still runs to completion. Close is idempotent.
func (l *Loader) Close() error {
	l.closed.Store(true)
	return nil
}

// Wait blocks until in-flight fetches have returned or ctx is done.
func (l *Loader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loader) State() State {
	return State(l.state.Load())
}

// LastResult returns the most recently finished cycle, if any.
func (l *Loader) LastResult() (Result, bool) {
	res := l.last.Load()
	if res == nil {
		return Result{}, false
	}
	return *res, true
}

// CheckReadiness returns nil once a cycle has been delivered.
func (l *Loader) CheckReadiness(_ context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if !l.ready.Load() {
		return errors.New("no load cycle has been delivered yet")
	}
	return nil
}
