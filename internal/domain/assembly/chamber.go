package assembly

import (
	"context"
	"fmt"

	"github.com/alem-hub/lineage/internal/domain/shared"
	"github.com/alem-hub/lineage/pkg/logger"
)

// Chamber выполняет операции представителей и пишет результат в Sink.
type Chamber struct {
	out       shared.Sink
	publisher shared.EventPublisher
	log       *logger.Logger
	name      string
}

// ChamberOption настраивает Chamber.
type ChamberOption func(*Chamber)

// WithChamberPublisher задаёт издателя событий.
func WithChamberPublisher(p shared.EventPublisher) ChamberOption {
	return func(c *Chamber) { c.publisher = p }
}

// WithChamberLogger задаёт логгер.
func WithChamberLogger(l *logger.Logger) ChamberOption {
	return func(c *Chamber) {
		if l != nil {
			c.log = l.With(logger.Component("assembly"))
		}
	}
}

// WithChamberName задаёт название собрания в строке о тайной сделке.
func WithChamberName(name string) ChamberOption {
	return func(c *Chamber) {
		if name != "" {
			c.name = name
		}
	}
}

// NewChamber создаёт Chamber.
func NewChamber(out shared.Sink, opts ...ChamberOption) *Chamber {
	if out == nil {
		out = shared.DiscardSink
	}
	c := &Chamber{out: out, log: logger.Nop(), name: "chamber"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Say выводит реплику представителя в его стиле.
func (c *Chamber) Say(ctx context.Context, r *Representative, text string) {
	if err := shared.Say(ctx, c.out, r, text); err != nil {
		c.log.Warn("output sink rejected line", logger.Representative(r.name), logger.Err(err))
	}
}

// ListAttributes выводит атрибуты target по строке "<caller> - <атрибут>".
func (c *Chamber) ListAttributes(ctx context.Context, caller, target *Representative) {
	for attr := range target.AttributeSeq() {
		c.emit(ctx, shared.LineListing, caller.name, "%s - %s", caller.name, attr)
	}
}

// Exchange выполняет тайный обмен и сообщает о нём.
func (c *Chamber) Exchange(ctx context.Context, initiator, counterpart *Representative, detail string) {
	c.emit(ctx, shared.LineInfo, initiator.name, "%s has made a secret deal with %s.", initiator.name, counterpart.name)
	c.emit(ctx, shared.LineInfo, initiator.name, "Deal Details: %s", detail)

	initiator.ExchangeWith(counterpart)

	c.emit(ctx, shared.LineInfo, initiator.name, "The %s remains unaware of this transaction...", c.name)

	c.log.Debug("attributes exchanged",
		logger.Representative(initiator.name), logger.String("counterpart", counterpart.name))

	if c.publisher != nil {
		event := shared.NewAttributesExchangedEvent(initiator.id, initiator.name, counterpart.name, detail)
		if err := c.publisher.Publish(event); err != nil {
			c.log.Warn("failed to publish event", logger.Err(err))
		}
	}
}

func (c *Chamber) emit(ctx context.Context, kind shared.LineKind, subject, format string, args ...any) {
	line := shared.Line{Kind: kind, Subject: subject, Text: fmt.Sprintf(format, args...)}
	if err := c.out.Emit(ctx, line); err != nil {
		c.log.Warn("output sink rejected line", logger.Representative(subject), logger.Err(err))
	}
}
