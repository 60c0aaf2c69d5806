// Command quakelist runs one load cycle against the USGS feed and prints the
// list to the terminal.
//
// Usage:
//
//	go run ./cmd/quakelist -minmag 5 -orderby magnitude -limit 20
//	go run ./cmd/quakelist -settings settings.yaml -url 0
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/quake-report/internal/adapter/terminal"
	"github.com/couchcryptid/quake-report/internal/adapter/usgs"
	"github.com/couchcryptid/quake-report/internal/app"
	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/loader"
	"github.com/couchcryptid/quake-report/internal/observability"
	"github.com/couchcryptid/quake-report/internal/presenter"
	"github.com/couchcryptid/quake-report/internal/settings"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("quakelist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	settingsPath := fs.String("settings", "", "YAML settings file supplying defaults for the query flags")
	minMag := fs.String("minmag", "", "minimum magnitude (default 6)")
	orderBy := fs.String("orderby", "", "sort key: time or magnitude (default time)")
	limit := fs.Int("limit", 0, "number of earthquakes, 5-100 (default 10)")
	endpoint := fs.String("endpoint", usgs.DefaultEndpoint, "USGS event query endpoint")
	urlIndex := fs.Int("url", -1, "print the detail URL of the given row instead of the list")
	timeout := fs.Duration("timeout", usgs.DefaultConnectTimeout+usgs.DefaultReadTimeout, "overall deadline")
	verbose := fs.Bool("v", false, "log fetch details to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	query, err := resolveQuery(*settingsPath, *minMag, *orderBy, *limit, logger)
	if err != nil {
		fmt.Fprintln(stderr, "quakelist:", err)
		return 2
	}

	res, err := loadOnce(ctx, *endpoint, query, *timeout, logger)
	if err != nil {
		fmt.Fprintln(stderr, "quakelist:", err)
		return 1
	}

	adapter := presenter.NewAdapter(presenter.Options{Zone: time.Local})
	adapter.SetItems(res.Earthquakes)

	if *urlIndex >= 0 {
		u, err := adapter.DetailURL(*urlIndex)
		if errors.Is(err, presenter.ErrNoDetailURL) {
			fmt.Fprintln(stderr, "No earthquake URL available")
			return 1
		}
		if err != nil {
			fmt.Fprintln(stderr, "quakelist:", err)
			return 1
		}
		fmt.Fprintln(stdout, u)
		return 0
	}

	snap := app.Snapshot{Outcome: res.Outcome, Rows: adapter.Rows()}
	if adapter.Len() == 0 {
		snap.EmptyMessage = presenter.EmptyState(res.Outcome)
	}
	if err := terminal.NewRenderer(stdout).Render(snap); err != nil {
		fmt.Fprintln(stderr, "quakelist:", err)
		return 1
	}
	if res.Outcome == domain.OutcomeFailed {
		logger.Warn("load failed", "error", res.Err)
		return 1
	}
	return 0
}

// resolveQuery starts from the settings file, if any, and overrides each
// field given on the command line.
func resolveQuery(path, minMag, orderBy string, limit int, logger *slog.Logger) (domain.Query, error) {
	s := settings.Defaults()
	if path != "" {
		store, err := settings.NewStore(path, logger)
		if err != nil {
			return domain.Query{}, err
		}
		s = store.Current()
	}
	if minMag != "" {
		s.MinMagnitude = minMag
	}
	if orderBy != "" {
		s.OrderBy = orderBy
	}
	if limit != 0 {
		s.Limit = limit
	}
	s, err := s.Normalize()
	if err != nil {
		return domain.Query{}, err
	}
	return s.Query(), nil
}

// loadOnce runs a single cycle through the loader and waits for delivery.
func loadOnce(ctx context.Context, endpoint string, q domain.Query, timeout time.Duration, logger *slog.Logger) (loader.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	client := usgs.NewClient(usgs.DefaultConnectTimeout, usgs.DefaultReadTimeout, metrics, logger)

	loop := loader.NewLoop()
	delivered := make(chan loader.Result, 1)
	l := loader.New(client, loop, loader.Options{
		BuildURL: func(q domain.Query) (string, error) { return usgs.BuildRequestURL(endpoint, q) },
		Deliver:  func(r loader.Result) { delivered <- r },
	}, logger, metrics)
	defer func() { _ = l.Close() }()

	go loop.Run(ctx)

	// A URL that cannot be built is still delivered as a failed cycle.
	_ = l.StartLoad(q)

	select {
	case res := <-delivered:
		return res, nil
	case <-ctx.Done():
		return loader.Result{}, fmt.Errorf("waiting for earthquakes: %w", ctx.Err())
	}
}
