package shared

import "context"

// ═══════════════════════════════════════════════════════════════════════════
// Output port
// ═══════════════════════════════════════════════════════════════════════════

// LineKind classifies a reported line so sinks can style or index it.
type LineKind string

const (
	// LineSpeech is a quote spoken by a named speaker.
	LineSpeech LineKind = "speech"
	// LineInfo reports a completed action.
	LineInfo LineKind = "info"
	// LineNotice reports a declined rule (soft failure).
	LineNotice LineKind = "notice"
	// LineSummary is one row of an entity summary.
	LineSummary LineKind = "summary"
	// LineListing is one row of an attribute listing.
	LineListing LineKind = "listing"
	// LineHeading separates sections of a driver run.
	LineHeading LineKind = "heading"
)

// Line is a single formatted line handed to an output sink.
type Line struct {
	Kind LineKind
	// Subject is the identity the line is about (may be empty for headings).
	Subject string
	Text    string
}

// Sink accepts formatted lines. The domain never reads from it.
// Lines emitted within one operation arrive in the documented order.
type Sink interface {
	Emit(ctx context.Context, line Line) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, line Line) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, line Line) error {
	return f(ctx, line)
}

// DiscardSink drops every line.
var DiscardSink Sink = SinkFunc(func(context.Context, Line) error { return nil })

// Speaker is the "named speaker" capability shared by practitioners and
// representatives.
type Speaker interface {
	// Name returns the speaker's display identity.
	Name() string
	// Utter formats text as spoken by this speaker.
	Utter(text string) string
}

// Say emits text spoken by s.
func Say(ctx context.Context, out Sink, s Speaker, text string) error {
	return out.Emit(ctx, Line{Kind: LineSpeech, Subject: s.Name(), Text: s.Utter(text)})
}
