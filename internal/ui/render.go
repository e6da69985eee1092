package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/desertthunder/ytrelay/internal/tasks"
)

// Card renders a resolved stream as a bordered block. baseURL, when set, is prefixed to the
// relative proxy URL.
func (p *Palette) Card(resp *models.StreamResponse, baseURL string) string {
	var b strings.Builder

	b.WriteString(p.Title(resp.Title))
	b.WriteString("\n")
	if resp.Uploader != "" {
		fmt.Fprintf(&b, "%s %s\n", p.Help("by"), resp.Uploader)
	}
	fmt.Fprintf(&b, "%s %s\n", p.Help("duration"), shared.FormatDuration(resp.Duration))
	fmt.Fprintf(&b, "%s %s\n", p.Help("resolver"), resp.Resolver)
	fmt.Fprintf(&b, "%s %s\n", p.Help("cache id"), resp.CacheID)
	fmt.Fprintf(&b, "%s %s\n", p.Help("proxy"), strings.TrimRight(baseURL, "/")+resp.ProxyURL)
	fmt.Fprintf(&b, "%s %s", p.Help("direct"), shared.Truncate(resp.DirectURL, 72))

	return p.card.Render(b.String())
}

// SearchList renders numbered search hits.
func (p *Palette) SearchList(results []models.SearchResult) string {
	if len(results) == 0 {
		return p.Warn("No results")
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%s %s %s\n", p.OK(fmt.Sprintf("%2d.", i+1)), r.Title, p.Help("["+shared.FormatDuration(r.Duration)+"]"))
		fmt.Fprintf(&b, "    %s  %s\n", r.Channel, p.Help(r.URL))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ProgressPrinter writes one styled line per batch progress update.
type ProgressPrinter struct {
	w       io.Writer
	palette *Palette
}

// NewProgressPrinter creates a [ProgressPrinter] using [Styles].
func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{w: w, palette: Styles}
}

// Print renders a single update.
func (pp *ProgressPrinter) Print(u tasks.ProgressUpdate) {
	var line string
	switch u.Phase {
	case tasks.Queue:
		line = pp.palette.Help(u.Message)
	case tasks.Resolve:
		line = "  " + u.Message
	case tasks.Resolved:
		line = "  " + pp.palette.OK(u.Message)
	case tasks.Failed:
		line = "  " + pp.palette.Err(u.Message)
	default:
		line = u.Message
	}
	fmt.Fprintln(pp.w, line)
}

// Drain prints updates until the channel is closed.
func (pp *ProgressPrinter) Drain(updates <-chan tasks.ProgressUpdate) {
	for u := range updates {
		pp.Print(u)
	}
}
