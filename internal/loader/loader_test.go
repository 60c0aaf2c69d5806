package loader_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/quake-report/internal/adapter/usgs"
	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type stubFetcher struct {
	calls   atomic.Int64
	release chan struct{}
	quakes  []domain.Earthquake
	err     error
	onFetch func()
}

func (s *stubFetcher) FetchEarthquakes(_ context.Context, _ string) ([]domain.Earthquake, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.onFetch != nil {
		s.onFetch()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.quakes, nil
}

func buildURL(q domain.Query) (string, error) {
	return usgs.BuildRequestURL("http://feed.test/query", q)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	loader    *loader.Loader
	loop      *loader.Loop
	stopLoop  context.CancelFunc
	metrics   *observability.Metrics
	delivered chan loader.Result
}

func newHarness(t *testing.T, f loader.Fetcher, clock clockwork.Clock) *harness {
	t.Helper()
	loop, stop := startLoop(t)
	h := &harness{
		loop:      loop,
		stopLoop:  stop,
		metrics:   observability.NewMetricsForTesting(),
		delivered: make(chan loader.Result, 4),
	}
	h.loader = loader.New(f, loop, loader.Options{
		BuildURL: buildURL,
		Deliver:  func(r loader.Result) { h.delivered <- r },
		Clock:    clock,
	}, discardLogger(), h.metrics)
	return h
}

func (h *harness) awaitDelivery(t *testing.T) loader.Result {
	t.Helper()
	select {
	case r := <-h.delivered:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
		return loader.Result{}
	}
}

func (h *harness) assertNoDelivery(t *testing.T) {
	t.Helper()
	select {
	case r := <-h.delivered:
		t.Fatalf("unexpected delivery: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

var sampleQuakes = []domain.Earthquake{
	domain.NewEarthquake(1454124312220, "88km N of Yelizovo, Russia", 7.2, "http://x/1"),
	domain.NewEarthquake(1453777820750, "94 km SSE of Taron, Papua New Guinea", 6.1, ""),
}

// --- tests ---

func TestLoader_StartLoad_DeliversData(t *testing.T) {
	start := time.Date(2016, time.January, 30, 3, 25, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	f := &stubFetcher{quakes: sampleQuakes, onFetch: func() { clock.Advance(1500 * time.Millisecond) }}
	h := newHarness(t, f, clock)

	require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))
	res := h.awaitDelivery(t)

	assert.Equal(t, domain.OutcomeData, res.Outcome)
	assert.Equal(t, sampleQuakes, res.Earthquakes)
	require.NoError(t, res.Err)
	assert.NotEqual(t, uuid.Nil, res.CycleID)
	assert.Equal(t, start, res.StartedAt)
	assert.Equal(t, start.Add(1500*time.Millisecond), res.CompletedAt)
	assert.Equal(t, 1500*time.Millisecond, res.Duration())
	assert.Equal(t, domain.DefaultQuery(), res.Query)

	require.NoError(t, h.loop.Do(context.Background(), func() {}))
	assert.Equal(t, loader.StateDelivered, h.loader.State())
	last, ok := h.loader.LastResult()
	require.True(t, ok)
	assert.Equal(t, res.CycleID, last.CycleID)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.LoadOutcomes.WithLabelValues("data")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(h.metrics.LoadInFlight), 0)
}

func TestLoader_StartLoad_RejectsWhileLoading(t *testing.T) {
	f := &stubFetcher{release: make(chan struct{}), quakes: sampleQuakes}
	h := newHarness(t, f, nil)

	require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))
	assert.Equal(t, loader.StateLoading, h.loader.State())

	err := h.loader.StartLoad(domain.DefaultQuery())
	assert.ErrorIs(t, err, loader.ErrLoadInProgress)

	close(f.release)
	h.awaitDelivery(t)
	h.assertNoDelivery(t)

	assert.Equal(t, int64(1), f.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.LoadsStarted), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.LoadsRejected), 0)
}

func TestLoader_StartLoad_SingleOutboundRequest(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	t.Cleanup(srv.Close)

	metrics := observability.NewMetricsForTesting()
	client := usgs.NewClient(time.Second, 5*time.Second, metrics, discardLogger())

	loop, _ := startLoop(t)
	delivered := make(chan loader.Result, 2)
	l := loader.New(client, loop, loader.Options{
		BuildURL: func(q domain.Query) (string, error) { return usgs.BuildRequestURL(srv.URL, q) },
		Deliver:  func(r loader.Result) { delivered <- r },
	}, discardLogger(), metrics)

	require.NoError(t, l.StartLoad(domain.DefaultQuery()))
	assert.ErrorIs(t, l.StartLoad(domain.DefaultQuery()), loader.ErrLoadInProgress)
	close(release)

	select {
	case res := <-delivered:
		assert.Equal(t, domain.OutcomeEmpty, res.Outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery")
	}
	assert.Equal(t, int64(1), hits.Load())
}

func TestLoader_StartLoad_EmptyVersusFailed(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		h := newHarness(t, &stubFetcher{quakes: []domain.Earthquake{}}, nil)
		require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))

		res := h.awaitDelivery(t)
		assert.Equal(t, domain.OutcomeEmpty, res.Outcome)
		assert.NoError(t, res.Err)
		assert.Empty(t, res.Earthquakes)
	})

	t.Run("failed", func(t *testing.T) {
		fetchErr := domain.NewFetchError(domain.KindNetwork, errors.New("connection refused"))
		h := newHarness(t, &stubFetcher{err: fetchErr}, nil)
		require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))

		res := h.awaitDelivery(t)
		assert.Equal(t, domain.OutcomeFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, domain.ErrNetwork)
		assert.Empty(t, res.Earthquakes)

		require.NoError(t, h.loop.Do(context.Background(), func() {}))
		assert.Equal(t, loader.StateFailed, h.loader.State())
	})
}

func TestLoader_StartLoad_InvalidQuery(t *testing.T) {
	f := &stubFetcher{}
	h := newHarness(t, f, nil)

	err := h.loader.StartLoad(domain.Query{MinMagnitude: "six", OrderBy: domain.OrderByTime, Limit: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidURL)

	res := h.awaitDelivery(t)
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, domain.ErrInvalidURL)
	assert.Zero(t, f.calls.Load())

	// The loader is usable again afterwards.
	require.NoError(t, h.loop.Do(context.Background(), func() {}))
	require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))
	h.awaitDelivery(t)
}

func TestLoader_StartLoad_PlainBuilderErrorIsInvalidURL(t *testing.T) {
	loop, _ := startLoop(t)
	delivered := make(chan loader.Result, 1)
	l := loader.New(&stubFetcher{}, loop, loader.Options{
		BuildURL: func(domain.Query) (string, error) { return "", errors.New("no endpoint") },
		Deliver:  func(r loader.Result) { delivered <- r },
	}, discardLogger(), observability.NewMetricsForTesting())

	err := l.StartLoad(domain.DefaultQuery())
	assert.ErrorIs(t, err, domain.ErrInvalidURL)
	assert.Equal(t, domain.KindInvalidURL, domain.FetchErrorKind(err))
	res := <-delivered
	assert.Equal(t, domain.OutcomeFailed, res.Outcome)
}

func TestLoader_Close_DiscardsInFlightDelivery(t *testing.T) {
	f := &stubFetcher{release: make(chan struct{}), quakes: sampleQuakes}
	h := newHarness(t, f, nil)

	require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))
	require.NoError(t, h.loader.Close())
	require.NoError(t, h.loader.Close())

	close(f.release)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.loader.Wait(ctx))
	require.NoError(t, h.loop.Do(context.Background(), func() {}))

	h.assertNoDelivery(t)
	assert.Equal(t, int64(1), f.calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.DiscardedDeliveries), 0)
	assert.ErrorIs(t, h.loader.StartLoad(domain.DefaultQuery()), loader.ErrClosed)
	assert.ErrorIs(t, h.loader.CheckReadiness(context.Background()), loader.ErrClosed)
}

func TestLoader_LoopStopped_DoesNotStickInLoading(t *testing.T) {
	f := &stubFetcher{release: make(chan struct{}), quakes: sampleQuakes}
	h := newHarness(t, f, nil)

	require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))
	h.stopLoop()
	<-h.loop.Done()
	close(f.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.loader.Wait(ctx))

	assert.Equal(t, loader.StateDelivered, h.loader.State())
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.DiscardedDeliveries), 0)
	h.assertNoDelivery(t)
}

func TestLoader_LoopStopsWithDeliveryQueued(t *testing.T) {
	f := &stubFetcher{release: make(chan struct{}), quakes: sampleQuakes}
	h := newHarness(t, f, nil)

	gate := make(chan struct{})
	var gateOnce sync.Once
	openGate := func() { gateOnce.Do(func() { close(gate) }) }
	t.Cleanup(openGate)
	require.NoError(t, h.loop.Post(func() { <-gate }))

	require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))
	close(f.release)

	// The worker has posted its result behind the gate.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.loader.Wait(ctx))
	assert.Equal(t, loader.StateLoading, h.loader.State())

	h.stopLoop()
	openGate()
	<-h.loop.Done()

	require.Eventually(t, func() bool { return h.loader.State() == loader.StateDelivered },
		2*time.Second, 5*time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.DiscardedDeliveries), 0)
	res, ok := h.loader.LastResult()
	require.True(t, ok)
	assert.Equal(t, domain.OutcomeData, res.Outcome)
	h.assertNoDelivery(t)
}

func TestLoader_CheckReadiness(t *testing.T) {
	h := newHarness(t, &stubFetcher{quakes: sampleQuakes}, nil)
	ctx := context.Background()

	require.Error(t, h.loader.CheckReadiness(ctx))
	assert.Equal(t, loader.StateIdle, h.loader.State())
	_, ok := h.loader.LastResult()
	assert.False(t, ok)

	require.NoError(t, h.loader.StartLoad(domain.DefaultQuery()))
	h.awaitDelivery(t)
	assert.NoError(t, h.loader.CheckReadiness(ctx))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", loader.StateIdle.String())
	assert.Equal(t, "loading", loader.StateLoading.String())
	assert.Equal(t, "delivered", loader.StateDelivered.String())
	assert.Equal(t, "failed", loader.StateFailed.String())
	assert.Equal(t, "unknown", loader.State(99).String())
}
