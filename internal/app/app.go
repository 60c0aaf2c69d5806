// Package app wires the load orchestrator to the list adapter and keeps the
// view state that HTTP handlers and the terminal renderer read.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/couchcryptid/quake-report/internal/presenter"
	"github.com/couchcryptid/quake-report/internal/settings"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// QuerySource supplies the query for the next cycle.
type QuerySource interface {
	Current() settings.Settings
}

// Publisher receives every delivered non-empty sequence.
type Publisher interface {
	Submit(cycleID uuid.UUID, quakes []domain.Earthquake) bool
}

// Snapshot is the view state at one instant.
type Snapshot struct {
	CycleID      string                `json:"cycle_id,omitempty"`
	State        string                `json:"state"`
	Outcome      domain.Outcome        `json:"outcome,omitempty"`
	EmptyMessage string                `json:"empty_message,omitempty"`
	Rows         []presenter.RowHandle `json:"rows"`
}

// Options configure an App.
type Options struct {
	BuildURL  loader.URLBuilder
	Query     QuerySource
	Publisher Publisher
	Display   presenter.Options
	Clock     clockwork.Clock
}

// App owns a control loop. The adapter and the fields below it are only
// touched from funcs running on that loop.
type App struct {
	loop      *loader.Loop
	loader    *loader.Loader
	query     QuerySource
	publisher Publisher
	logger    *slog.Logger

	adapter *presenter.Adapter
	cycleID uuid.UUID
	outcome domain.Outcome
	// pending holds settings that arrived while a cycle was in flight.
	pending *settings.Settings
}

// New creates an App. Call Run to start its control loop.
func New(f loader.Fetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *App {
	a := &App{
		loop:      loader.NewLoop(),
		query:     opts.Query,
		publisher: opts.Publisher,
		logger:    logger,
		adapter:   presenter.NewAdapter(opts.Display),
	}
	a.loader = loader.New(f, a.loop, loader.Options{
		BuildURL: opts.BuildURL,
		Deliver:  a.deliver,
		Clock:    opts.Clock,
	}, logger, metrics)
	return a
}

// Run drives the control loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	a.loop.Run(ctx)
}

// Refresh starts a load cycle with the current settings.
func (a *App) Refresh() error {
	return a.loader.StartLoad(a.query.Current().Query())
}

// SettingsChanged starts a cycle for new settings, or queues one if a cycle
// is already in flight. The decision runs on the control loop so it is
// ordered against the in-flight cycle's delivery.
func (a *App) SettingsChanged(s settings.Settings) {
	if err := a.loop.Post(func() { a.applySettings(s) }); err != nil {
		a.logger.Warn("settings change dropped", "error", err)
	}
}

// applySettings runs on the control loop.
func (a *App) applySettings(s settings.Settings) {
	err := a.loader.StartLoad(s.Query())
	switch {
	case errors.Is(err, loader.ErrLoadInProgress):
		a.pending = &s
	case err != nil:
		a.logger.Warn("reload after settings change failed", "error", err)
	}
}

// deliver runs on the control loop.
func (a *App) deliver(res loader.Result) {
	a.adapter.Clear()
	if len(res.Earthquakes) > 0 {
		a.adapter.SetItems(res.Earthquakes)
	}
	a.cycleID = res.CycleID
	a.outcome = res.Outcome

	if res.Outcome == domain.OutcomeData && a.publisher != nil {
		a.publisher.Submit(res.CycleID, res.Earthquakes)
	}

	if next := a.pending; next != nil {
		a.pending = nil
		a.applySettings(*next)
	}
}

// Snapshot reads the current view state through the control loop.
func (a *App) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := a.loop.Do(ctx, func() {
		snap = Snapshot{
			State:   a.loader.State().String(),
			Outcome: a.outcome,
			Rows:    a.adapter.Rows(),
		}
		if a.cycleID != uuid.Nil {
			snap.CycleID = a.cycleID.String()
		}
		if a.adapter.Len() == 0 && a.outcome != domain.OutcomeNone {
			snap.EmptyMessage = presenter.EmptyState(a.outcome)
		}
	})
	return snap, err
}

// DetailURL returns the detail page for row i of the current list.
func (a *App) DetailURL(ctx context.Context, i int) (string, error) {
	var (
		u      string
		urlErr error
	)
	if err := a.loop.Do(ctx, func() { u, urlErr = a.adapter.DetailURL(i) }); err != nil {
		return "", err
	}
	return u, urlErr
}

// CheckReadiness reports ready once a cycle has been delivered.
func (a *App) CheckReadiness(ctx context.Context) error {
	return a.loader.CheckReadiness(ctx)
}

// Close stops delivery and waits for an in-flight fetch to return.
func (a *App) Close(ctx context.Context) error {
	_ = a.loader.Close()
	return a.loader.Wait(ctx)
}
