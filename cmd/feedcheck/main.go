// Command feedcheck runs integrity checks over a captured USGS GeoJSON feed:
// that it parses, that every place text splits the way the list displays it,
// that detail URLs are usable and that the records honour the requested
// order and limit.
//
// Usage:
//
//	curl -s 'https://earthquake.usgs.gov/fdsnws/event/1/query?format=geojson&limit=50&minmag=5&orderby=magnitude' > feed.json
//	go run ./cmd/feedcheck -feed feed.json -orderby magnitude -limit 50
package main

import (
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"slices"

	"github.com/couchcryptid/quake-report/internal/adapter/usgs"
	"github.com/couchcryptid/quake-report/internal/domain"
)

// looseOffset finds place texts that look like they carry a distance clause
// even when the display split does not recognise it.
var looseOffset = regexp.MustCompile(`(?i)\b\d+\s*km\b.*\bof\b`)

// phase tracks pass/fail for a check.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("feedcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	feedPath := fs.String("feed", "", "path to a GeoJSON feed response")
	orderBy := fs.String("orderby", "", "expected order: time or magnitude (unchecked if empty)")
	limit := fs.Int("limit", 0, "expected maximum record count (unchecked if 0)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *feedPath == "" {
		fs.Usage()
		return 2
	}

	var order domain.OrderBy
	if *orderBy != "" {
		o, err := domain.ParseOrderBy(*orderBy)
		if err != nil {
			fmt.Fprintf(stderr, "FATAL: %v\n", err)
			return 2
		}
		order = o
	}

	body, err := os.ReadFile(*feedPath)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: read feed: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "=== Earthquake Feed Validation ===")
	fmt.Fprintln(stdout)

	quakes, err := usgs.ParseFeed(body)
	parse := &phase{name: "Feed parses"}
	if err != nil {
		parse.errorf("%v", err)
	}

	phases := []*phase{
		parse,
		validateLocations(quakes),
		validateDetailURLs(quakes),
		validateOrder(quakes, order, *limit),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(stdout, "  %-30s %s\n", p.name, status)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Records: %d\n", len(quakes))
	printCategories(stdout, quakes)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(stdout, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(stdout, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(stdout, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(stdout, "\nValidation FAILED.")
	return 1
}

// validateLocations flags places that mention a distance but fall back to
// the "Near the" display.
func validateLocations(quakes []domain.Earthquake) *phase {
	p := &phase{name: "Location split"}
	for i, eq := range quakes {
		offset, _ := domain.SplitLocation(eq.Place())
		if offset == domain.NearThe && looseOffset.MatchString(eq.Place()) {
			p.errorf("record %d: distance clause not recognised in %q", i, eq.Place())
		}
	}
	return p
}

func validateDetailURLs(quakes []domain.Earthquake) *phase {
	p := &phase{name: "Detail URLs"}
	for i, eq := range quakes {
		if eq.URL() == "" {
			continue
		}
		u, err := url.Parse(eq.URL())
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			p.errorf("record %d: unusable detail URL %q", i, eq.URL())
		}
	}
	return p
}

func validateOrder(quakes []domain.Earthquake, order domain.OrderBy, limit int) *phase {
	p := &phase{name: "Order and limit"}
	if limit > 0 && len(quakes) > limit {
		p.errorf("%d records exceed limit %d", len(quakes), limit)
	}
	for i := 1; i < len(quakes); i++ {
		prev, cur := quakes[i-1], quakes[i]
		switch order {
		case domain.OrderByTime:
			if cur.TimeMillis() > prev.TimeMillis() {
				p.errorf("record %d (%d) is newer than record %d (%d)", i, cur.TimeMillis(), i-1, prev.TimeMillis())
			}
		case domain.OrderByMagnitude:
			if cur.Magnitude() > prev.Magnitude() {
				p.errorf("record %d (M%.1f) is larger than record %d (M%.1f)", i, cur.Magnitude(), i-1, prev.Magnitude())
			}
		}
	}
	return p
}

func printCategories(w io.Writer, quakes []domain.Earthquake) {
	counts := make(map[domain.MagnitudeCategory]int)
	for _, eq := range quakes {
		counts[domain.MagnitudeCategoryOf(eq.Magnitude())]++
	}
	for _, c := range slices.Backward(domain.Categories) {
		if n := counts[c]; n > 0 {
			fmt.Fprintf(w, "  %-9s %d\n", c, n)
		}
	}
}
