// Package presenter turns the current earthquake sequence into display rows.
//
// An Adapter is owned by a single control goroutine: SetItems, Clear and
// Bind are not synchronized.
package presenter

import (
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/quake-report/internal/domain"
	"golang.org/x/text/language"
)

var (
	ErrIndexOutOfRange = errors.New("row index out of range")
	ErrNoDetailURL     = errors.New("no earthquake URL available")
)

// Empty-view messages.
const (
	MessageNoData     = "No earthquakes found."
	MessageNoInternet = "No internet connection."
)

// RowHandle is the set of values a list row displays. The rendering side
// allocates handles and may keep them across binds; Widgets holds whatever
// widget references it caches there and is never touched by Bind.
type RowHandle struct {
	Magnitude string                   `json:"magnitude"`
	Offset    string                   `json:"offset"`
	Location  string                   `json:"location"`
	Date      string                   `json:"date"`
	Time      string                   `json:"time"`
	Category  domain.MagnitudeCategory `json:"category"`

	Widgets any `json:"-"`
}

// Options control how values are rendered.
type Options struct {
	// Zone for date and time text. Nil means UTC.
	Zone *time.Location
	// Locale for number formatting. The zero Tag means English.
	Locale language.Tag
}

// Adapter holds the displayed sequence and binds rows from it.
type Adapter struct {
	items []domain.Earthquake
	opts  Options
}

// NewAdapter creates an empty adapter.
func NewAdapter(opts Options) *Adapter {
	if opts.Zone == nil {
		opts.Zone = time.UTC
	}
	if opts.Locale == language.Und {
		opts.Locale = language.English
	}
	return &Adapter{opts: opts}
}

// SetItems replaces the displayed sequence. The slice is copied.
func (a *Adapter) SetItems(items []domain.Earthquake) {
	a.items = append([]domain.Earthquake(nil), items...)
}

// Clear drops the displayed sequence.
func (a *Adapter) Clear() {
	a.items = nil
}

func (a *Adapter) Len() int { return len(a.items) }

// Item returns the earthquake at row i.
func (a *Adapter) Item(i int) (domain.Earthquake, error) {
	if i < 0 || i >= len(a.items) {
		return domain.Earthquake{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(a.items))
	}
	return a.items[i], nil
}

// Bind writes the display values of row i into h, leaving h.Widgets alone.
func (a *Adapter) Bind(i int, h *RowHandle) error {
	eq, err := a.Item(i)
	if err != nil {
		return err
	}
	fill(h, eq, a.opts)
	return nil
}

// Rows binds every row into a fresh handle.
func (a *Adapter) Rows() []RowHandle {
	rows := make([]RowHandle, len(a.items))
	for i, eq := range a.items {
		fill(&rows[i], eq, a.opts)
	}
	return rows
}

// DetailURL returns the detail page for row i, or ErrNoDetailURL when the
// feed did not provide one.
func (a *Adapter) DetailURL(i int) (string, error) {
	eq, err := a.Item(i)
	if err != nil {
		return "", err
	}
	if eq.URL() == "" {
		return "", ErrNoDetailURL
	}
	return eq.URL(), nil
}

// EmptyState is the message shown when the list is empty after a cycle.
func EmptyState(outcome domain.Outcome) string {
	if outcome == domain.OutcomeFailed {
		return MessageNoInternet
	}
	return MessageNoData
}

func fill(h *RowHandle, eq domain.Earthquake, opts Options) {
	offset, location := domain.SplitLocation(eq.Place())

	h.Magnitude = domain.FormatMagnitudeFor(opts.Locale, eq.Magnitude())
	h.Offset = offset
	h.Location = location
	h.Date = domain.FormatDateIn(eq.TimeMillis(), opts.Zone)
	h.Time = domain.FormatTimeIn(eq.TimeMillis(), opts.Zone)
	h.Category = domain.MagnitudeCategoryOf(eq.Magnitude())
}
