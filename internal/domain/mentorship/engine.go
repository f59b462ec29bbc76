package mentorship

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/alem-hub/lineage/internal/domain/ladder"
	"github.com/alem-hub/lineage/internal/domain/shared"
	"github.com/alem-hub/lineage/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// QualificationDieSides - число граней кубика квалификации.
	QualificationDieSides = 10

	// QualificationPassFace - единственная выигрышная грань.
	QualificationPassFace = 1
)

// Dice - источник случайности. Roll возвращает значение в диапазоне [1, sides].
type Dice interface {
	Roll(sides int) int
}

// DiceFunc адаптирует функцию к интерфейсу Dice.
type DiceFunc func(sides int) int

// Roll реализует Dice.
func (f DiceFunc) Roll(sides int) int { return f(sides) }

// unseededDice используется, если кубик не передан.
var unseededDice = DiceFunc(func(sides int) int { return rand.IntN(sides) + 1 })

// Registry разрешает имя наставника в сущность.
type Registry interface {
	// Register добавляет практикующего. Имя должно быть уникальным.
	Register(p *Practitioner) error

	// Lookup находит практикующего по имени.
	Lookup(name string) (*Practitioner, bool)

	// All возвращает всех зарегистрированных в порядке регистрации.
	All() []*Practitioner
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine применяет правила наставничества и сообщает о результатах в Sink.
type Engine struct {
	ladder      *ladder.Ladder
	out         shared.Sink
	dice        Dice
	registry    Registry
	publisher   shared.EventPublisher
	log         *logger.Logger
	mentorRanks map[ladder.Rank]bool

	// mentors - все, кто хоть раз брал ученика; по ним проверяется
	// правило "не более одного наставника".
	mentors []*Practitioner
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLadder задаёт лестницу рангов. По умолчанию ladder.Default().
func WithLadder(l *ladder.Ladder) Option {
	return func(e *Engine) {
		if l != nil {
			e.ladder = l
		}
	}
}

// WithRegistry задаёт реестр для разрешения имён наставников.
func WithRegistry(r Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithPublisher задаёт издателя доменных событий.
func WithPublisher(p shared.EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger задаёт логгер.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l.With(logger.Component("mentorship"))
		}
	}
}

// WithMentorRanks ограничивает ранги, с которых можно брать учеников.
// Без этой опции наставником может быть любой ранг выше низшего.
func WithMentorRanks(ranks ...ladder.Rank) Option {
	return func(e *Engine) {
		if len(ranks) == 0 {
			return
		}
		e.mentorRanks = make(map[ladder.Rank]bool, len(ranks))
		for _, r := range ranks {
			if !r.IsLowest() {
				e.mentorRanks[r] = true
			}
		}
	}
}

// NewEngine создаёт движок. Пустой out отбрасывает вывод, пустой dice
// заменяется несидированным генератором.
func NewEngine(out shared.Sink, dice Dice, opts ...Option) *Engine {
	if out == nil {
		out = shared.DiscardSink
	}
	if dice == nil {
		dice = unseededDice
	}
	e := &Engine{
		ladder: ladder.Default(),
		out:    out,
		dice:   dice,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ladder возвращает используемую лестницу.
func (e *Engine) Ladder() *ladder.Ladder { return e.ladder }

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// CanAdvance проверяет, выполнены ли требования для выхода с текущего ранга.
func (e *Engine) CanAdvance(p *Practitioner) bool {
	return e.ladder.CanAdvance(p.rank, p.Standing())
}

// CanMentor проверяет, может ли ранг брать учеников.
func (e *Engine) CanMentor(r ladder.Rank) bool {
	if !r.IsValid() || r.IsLowest() {
		return false
	}
	if len(e.mentorRanks) > 0 {
		return e.mentorRanks[r]
	}
	return true
}

// MentorOf разрешает слабую ссылку на наставника через реестр.
func (e *Engine) MentorOf(p *Practitioner) (*Practitioner, bool) {
	name, ok := p.Mentor()
	if !ok || e.registry == nil {
		return nil, false
	}
	return e.registry.Lookup(name)
}

// CurrentMentor возвращает наставника, у которого p сейчас числится учеником.
func (e *Engine) CurrentMentor(p *Practitioner) (*Practitioner, bool) {
	for _, m := range e.mentors {
		if m.HasApprentice(p.name) {
			return m, true
		}
	}
	return nil, false
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// AttemptQualification бросает кубик квалификации.
// Возвращает true, если испытание пройдено именно этой попыткой.
// Повторная попытка после успеха - мягкий отказ ErrAlreadySatisfied.
// На ранге выше низшего попытка не выполняется и ничего не выводит.
func (e *Engine) AttemptQualification(ctx context.Context, p *Practitioner) (bool, error) {
	const op = "AttemptQualification"

	if !p.rank.IsLowest() {
		e.log.Debug("qualification skipped above lowest rank",
			logger.Practitioner(p.name), logger.Rank(p.rank.String()))
		e.publish(shared.NewRuleDeclinedEvent(p.id, p.name, op, ErrNotQualificationRank.Message))
		return false, ErrNotQualificationRank
	}

	if p.hasQualified {
		return false, e.decline(ctx, p, op, ErrAlreadySatisfied,
			"%s has already passed the trials.", p.name)
	}

	roll := e.dice.Roll(QualificationDieSides)
	passed := roll == QualificationPassFace

	if passed {
		p.hasQualified = true
		e.report(ctx, shared.LineInfo, p.name, "%s passed their trials!", p.name)
	} else {
		e.report(ctx, shared.LineInfo, p.name, "%s failed their trials.", p.name)
	}

	e.log.Debug("qualification attempted",
		logger.Practitioner(p.name), logger.Int("roll", roll), logger.Bool("passed", passed))
	e.publish(shared.NewQualificationAttemptedEvent(p.id, p.name, roll, passed))

	return passed, nil
}

// Promote повышает практикующего на один ранг, если требования выполнены.
// Сначала проверяются требования, затем наличие следующего ранга.
func (e *Engine) Promote(ctx context.Context, p *Practitioner) (ladder.Rank, error) {
	const op = "Promote"

	next, err := e.nextRank(p)
	switch {
	case err == nil:
	case err == ErrNotEligible:
		return p.rank, e.decline(ctx, p, op, err, "%s is not eligible to rank up.", p.name)
	default:
		return p.rank, e.decline(ctx, p, op, err, "%s has reached the highest rank.", p.name)
	}

	e.advance(p, next)
	e.report(ctx, shared.LineInfo, p.name, "%s has advanced to the rank of %s.", p.name, next)

	return next, nil
}

// Assign делает candidate текущим учеником mentor.
// Проверки по порядку: ранг кандидата, ранг наставника, существующий наставник.
func (e *Engine) Assign(ctx context.Context, mentor, candidate *Practitioner) error {
	const op = "Assign"

	if !candidate.rank.IsLowest() {
		return e.decline(ctx, mentor, op, ErrInvalidCandidateRank,
			"%s is not an apprentice, and thus cannot be taken as one.", candidate.name)
	}

	if !e.CanMentor(mentor.rank) {
		return e.decline(ctx, mentor, op, ErrInsufficientMentorRank,
			"%s is not high enough in rank to take an apprentice.", mentor.name)
	}

	if holder, ok := e.CurrentMentor(candidate); ok {
		return e.decline(ctx, mentor, op, ErrAlreadyApprenticed,
			"%s is already an apprentice of %s.", candidate.name, holder.name)
	}

	mentor.current = append(mentor.current, candidate)
	e.trackMentor(mentor)

	e.report(ctx, shared.LineInfo, mentor.name, "%s has taken %s as an apprentice.", mentor.name, candidate.name)
	e.log.Debug("apprentice assigned",
		logger.Practitioner(mentor.name), logger.String("apprentice", candidate.name))
	e.publish(shared.NewApprenticeAssignedEvent(mentor.id, mentor.name, candidate.name))

	return nil
}

// Graduate повышает текущего ученика и переводит его в бывшие.
// Операция атомарна: при любом отказе ни ранг, ни списки не меняются.
func (e *Engine) Graduate(ctx context.Context, mentor, candidate *Practitioner) (ladder.Rank, error) {
	const op = "Graduate"

	idx := mentor.apprenticeIndex(candidate.name)
	if idx < 0 {
		return candidate.rank, e.decline(ctx, mentor, op, ErrUnknownApprentice,
			"%s is not a current apprentice of %s.", candidate.name, mentor.name)
	}

	// Ученик из списка - это тот же объект, что и кандидат по имени.
	apprentice := mentor.current[idx]

	next, err := e.nextRank(apprentice)
	switch {
	case err == nil:
	case err == ErrNotEligible && apprentice.rank.IsLowest():
		return apprentice.rank, e.decline(ctx, mentor, op, err,
			"%s has not completed their trials and thus cannot rank up.", apprentice.name)
	case err == ErrNotEligible:
		return apprentice.rank, e.decline(ctx, mentor, op, err,
			"%s is not eligible to rank up.", apprentice.name)
	default:
		return apprentice.rank, e.decline(ctx, mentor, op, err,
			"%s has reached the highest rank.", apprentice.name)
	}

	e.advance(apprentice, next)
	mentor.current = slices.Delete(mentor.current, idx, idx+1)
	mentor.former = append(mentor.former, apprentice)

	e.report(ctx, shared.LineInfo, mentor.name, "%s has graduated to the rank of %s.", apprentice.name, next)
	e.publish(shared.NewApprenticeGraduatedEvent(mentor.id, mentor.name, apprentice.name, next.String()))

	return next, nil
}

// DisplayInfo выводит сводку по практикующему, по строке на поле.
// Списки учеников выводятся, только если они не пусты.
func (e *Engine) DisplayInfo(ctx context.Context, p *Practitioner) {
	mentor, ok := p.Mentor()
	if !ok {
		mentor = "N/A"
	}

	e.report(ctx, shared.LineSummary, p.name, "Practitioner: %s", p.name)
	e.report(ctx, shared.LineSummary, p.name, "Category: %s", p.category)
	e.report(ctx, shared.LineSummary, p.name, "Mentor: %s", mentor)
	e.report(ctx, shared.LineSummary, p.name, "Rank: %s", p.rank)
	e.report(ctx, shared.LineSummary, p.name, "Qualifiers: %s (%d total)",
		strings.Join(p.qualifiers, ", "), p.QualifierCount())

	if len(p.current) > 0 {
		e.report(ctx, shared.LineSummary, p.name, "Current apprentices: %s", strings.Join(names(p.current), ", "))
	}
	if len(p.former) > 0 {
		e.report(ctx, shared.LineSummary, p.name, "Former apprentices: %s", strings.Join(names(p.former), ", "))
	}
}

// Say выводит реплику практикующего.
func (e *Engine) Say(ctx context.Context, p *Practitioner, text string) {
	if err := shared.Say(ctx, e.out, p, text); err != nil {
		e.log.Warn("output sink rejected line", logger.Practitioner(p.name), logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERNAL
// ══════════════════════════════════════════════════════════════════════════════

// nextRank возвращает ранг, на который p может перейти прямо сейчас.
func (e *Engine) nextRank(p *Practitioner) (ladder.Rank, *shared.DomainError) {
	if !e.ladder.CanAdvance(p.rank, p.Standing()) {
		return p.rank, ErrNotEligible
	}
	next, ok := e.ladder.Next(p.rank)
	if !ok {
		return p.rank, ErrAtTerminalRank
	}
	return next, nil
}

func (e *Engine) advance(p *Practitioner, next ladder.Rank) {
	from := p.rank
	p.rank = next

	e.log.Info("rank advanced",
		logger.Practitioner(p.name), logger.String("from", from.String()), logger.Rank(next.String()))
	e.publish(shared.NewPractitionerPromotedEvent(p.id, p.name, from.String(), next.String()))
}

func (e *Engine) trackMentor(m *Practitioner) {
	for _, known := range e.mentors {
		if known == m {
			return
		}
	}
	e.mentors = append(e.mentors, m)
}

func (e *Engine) report(ctx context.Context, kind shared.LineKind, subject, format string, args ...any) {
	line := shared.Line{Kind: kind, Subject: subject, Text: fmt.Sprintf(format, args...)}
	if err := e.out.Emit(ctx, line); err != nil {
		e.log.Warn("output sink rejected line", logger.Practitioner(subject), logger.Err(err))
	}
}

// decline сообщает об отказе и возвращает cause без изменений.
func (e *Engine) decline(ctx context.Context, p *Practitioner, op string, cause *shared.DomainError, format string, args ...any) error {
	e.report(ctx, shared.LineNotice, p.name, format, args...)
	e.log.Debug("rule declined", logger.Practitioner(p.name), logger.Operation(op), logger.Err(cause))
	e.publish(shared.NewRuleDeclinedEvent(p.id, p.name, op, cause.Message))
	return cause
}

func (e *Engine) publish(event shared.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(event); err != nil {
		e.log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())), logger.Err(err))
	}
}
