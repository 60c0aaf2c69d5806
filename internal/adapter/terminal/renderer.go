// Package terminal prints the earthquake list to a terminal, with each
// magnitude badge colored by its category.
package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/couchcryptid/quake-report/internal/app"
	"github.com/couchcryptid/quake-report/internal/domain"
	"github.com/couchcryptid/quake-report/internal/presenter"
)

var categoryColors = map[domain.MagnitudeCategory]lipgloss.Color{
	domain.CategoryUndefined: lipgloss.Color("#8b949e"),
	domain.Category0to2:      lipgloss.Color("#4A7BA7"),
	domain.Category2to3:      lipgloss.Color("#04B4B3"),
	domain.Category3to4:      lipgloss.Color("#10CAC9"),
	domain.Category4to5:      lipgloss.Color("#F5A623"),
	domain.Category5to6:      lipgloss.Color("#FF7D50"),
	domain.Category6to7:      lipgloss.Color("#FC6644"),
	domain.Category7to8:      lipgloss.Color("#E75F40"),
	domain.Category8to9:      lipgloss.Color("#E13A20"),
	domain.Category9to10:     lipgloss.Color("#D93218"),
	domain.Category10Plus:    lipgloss.Color("#C03823"),
}

// CategoryColor returns the badge color for c. Unknown keys get the
// undefined color.
func CategoryColor(c domain.MagnitudeCategory) lipgloss.Color {
	if col, ok := categoryColors[c]; ok {
		return col
	}
	return categoryColors[domain.CategoryUndefined]
}

const locationWidth = 40

// Renderer writes list snapshots to w.
type Renderer struct {
	w        io.Writer
	lg       *lipgloss.Renderer
	offset   lipgloss.Style
	location lipgloss.Style
	when     lipgloss.Style
	empty    lipgloss.Style
}

// NewRenderer detects the color support of w.
func NewRenderer(w io.Writer) *Renderer {
	lg := lipgloss.NewRenderer(w)
	return &Renderer{
		w:        w,
		lg:       lg,
		offset:   lg.NewStyle().Foreground(lipgloss.Color("#8b949e")),
		location: lg.NewStyle().Width(locationWidth),
		when:     lg.NewStyle().Foreground(lipgloss.Color("#484f58")),
		empty:    lg.NewStyle().Foreground(lipgloss.Color("#8b949e")).Italic(true),
	}
}

// Render prints every row, or the empty-state message when there are none.
func (r *Renderer) Render(snap app.Snapshot) error {
	if len(snap.Rows) == 0 {
		msg := snap.EmptyMessage
		if msg == "" {
			msg = presenter.EmptyState(snap.Outcome)
		}
		_, err := fmt.Fprintln(r.w, r.empty.Render(msg))
		return err
	}

	var b strings.Builder
	for _, row := range snap.Rows {
		b.WriteString(r.Row(row))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

// Row formats one bound row on a single line.
func (r *Renderer) Row(row presenter.RowHandle) string {
	badge := r.lg.NewStyle().
		Foreground(lipgloss.Color("#0d1117")).
		Background(CategoryColor(row.Category)).
		Bold(true).
		Padding(0, 1).
		Render(row.Magnitude)

	return fmt.Sprintf("%s  %s %s  %s",
		badge,
		r.offset.Render(strings.ToUpper(row.Offset)),
		r.location.Render(row.Location),
		r.when.Render(row.Date+"  "+row.Time),
	)
}
