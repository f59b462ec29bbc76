// Package console renders simulation lines to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/alem-hub/lineage/internal/domain/ladder"
	"github.com/alem-hub/lineage/internal/domain/shared"
)

// Console is a shared.Sink writing one line per Emit. In plain mode the
// text is written exactly as emitted.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	plain    bool
	renderer *lipgloss.Renderer
	styles   map[shared.LineKind]lipgloss.Style
}

// Option configures a Console.
type Option func(*Console)

// WithPlain disables styling.
func WithPlain(plain bool) Option {
	return func(c *Console) {
		c.plain = plain
	}
}

// New creates a console writing to w.
func New(w io.Writer, opts ...Option) *Console {
	c := &Console{w: w}
	for _, opt := range opts {
		opt(c)
	}
	c.renderer = lipgloss.NewRenderer(w)
	c.styles = defaultStyles(c.renderer)
	return c
}

func defaultStyles(r *lipgloss.Renderer) map[shared.LineKind]lipgloss.Style {
	return map[shared.LineKind]lipgloss.Style{
		shared.LineHeading: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF")),
		shared.LineSpeech: r.NewStyle().
			Foreground(lipgloss.Color("#E0E0E0")),
		shared.LineInfo: r.NewStyle().
			Foreground(lipgloss.Color("#7BD88F")),
		shared.LineNotice: r.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#AAAAAA")),
		shared.LineSummary: r.NewStyle().
			Foreground(lipgloss.Color("#FFD866")),
		shared.LineListing: r.NewStyle().
			PaddingLeft(2).
			Foreground(lipgloss.Color("#888888")),
	}
}

// Emit implements shared.Sink.
func (c *Console) Emit(_ context.Context, line shared.Line) error {
	text := line.Text
	if !c.plain {
		if style, ok := c.styles[line.Kind]; ok {
			text = style.Render(text)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, text)
	return err
}

// Plain reports whether styling is disabled.
func (c *Console) Plain() bool {
	return c.plain
}

// ══════════════════════════════════════════════════════════════════════════════
// LADDER TABLE
// ══════════════════════════════════════════════════════════════════════════════

// RenderLadder writes every rank of l with its advancement rule.
func (c *Console) RenderLadder(l *ladder.Ladder) error {
	var b strings.Builder
	for _, r := range ladder.Ranks() {
		fmt.Fprintf(&b, "%d. %-12s %s\n", r.Index()+1, r.String(), l.Describe(r))
	}
	body := strings.TrimRight(b.String(), "\n")

	if !c.plain {
		body = c.renderer.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Render(body)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.w, body)
	return err
}
