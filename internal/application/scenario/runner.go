package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/lineage/internal/domain/assembly"
	"github.com/alem-hub/lineage/internal/domain/ladder"
	"github.com/alem-hub/lineage/internal/domain/mentorship"
	"github.com/alem-hub/lineage/internal/domain/shared"
	"github.com/alem-hub/lineage/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/lineage/internal/infrastructure/random"
	"github.com/alem-hub/lineage/pkg/logger"
)

// ErrAttemptsExhausted is returned when a looping step hits its attempt limit.
var ErrAttemptsExhausted = errors.New("scenario: attempt limit reached")

// StrictMentorRanks is the allow-list applied when strict mentor ranks are
// enabled and the file declares none.
var StrictMentorRanks = []ladder.Rank{ladder.RankSenior, ladder.RankCounselor, ladder.RankGrandmaster}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Deps carries the collaborators of a run.
type Deps struct {
	// Out receives every line. Nil discards output.
	Out shared.Sink

	// Dice overrides the dice derived from the file.
	Dice mentorship.Dice

	// Publisher receives domain events. Optional.
	Publisher shared.EventPublisher

	// Logger is optional.
	Logger *logger.Logger

	// StrictMentorRanks applies StrictMentorRanks when the file has no mentor_ranks.
	StrictMentorRanks bool
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT
// ══════════════════════════════════════════════════════════════════════════════

// Decline is one rule that declined an operation during a run.
type Decline struct {
	Step int
	Op   Op
	Err  error
}

// Report summarizes a run.
type Report struct {
	Scenario string
	Seed     int64
	Steps    int
	Rolls    int
	Declines []Decline
	Duration time.Duration
}

// Declined returns the number of declined operations.
func (r *Report) Declined() int {
	return len(r.Declines)
}

func (r *Report) decline(step int, op Op, err error) {
	r.Declines = append(r.Declines, Decline{Step: step, Op: op, Err: err})
}

// ══════════════════════════════════════════════════════════════════════════════
// SIMULATION
// ══════════════════════════════════════════════════════════════════════════════

// Simulation is a scenario bound to its entities and collaborators.
type Simulation struct {
	file *File
	seed int64

	out     shared.Sink
	engine  *mentorship.Engine
	chamber *assembly.Chamber
	log     *logger.Logger

	practitioners   *memory.Registry[*mentorship.Practitioner]
	representatives *memory.Registry[*assembly.Representative]
}

// Build creates the entities of f and wires them to deps.
func Build(f *File, deps Deps) (*Simulation, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	out := deps.Out
	if out == nil {
		out = shared.DiscardSink
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	s := &Simulation{
		file:            f,
		out:             out,
		practitioners:   memory.NewRegistry[*mentorship.Practitioner]("practitioner"),
		representatives: memory.NewRegistry[*assembly.Representative]("representative"),
	}

	dice := deps.Dice
	if dice == nil {
		if len(f.Dice) > 0 {
			dice = random.NewScripted(f.Dice...)
		} else {
			seed, err := f.ResolveSeed()
			if err != nil {
				return nil, fmt.Errorf("scenario: seed: %w", err)
			}
			s.seed = seed
			dice = random.NewDice(seed)
		}
	}
	s.log = log.With(logger.String("scenario", f.Name), logger.Seed(s.seed))

	l, err := f.RankLadder()
	if err != nil {
		return nil, err
	}

	opts := []mentorship.Option{
		mentorship.WithLadder(l),
		mentorship.WithRegistry(s.practitioners),
		mentorship.WithLogger(s.log),
		mentorship.WithMentorRanks(f.mentorRanks(deps.StrictMentorRanks)...),
	}
	if deps.Publisher != nil {
		opts = append(opts, mentorship.WithPublisher(deps.Publisher))
	}
	s.engine = mentorship.NewEngine(out, dice, opts...)

	chamberOpts := []assembly.ChamberOption{
		assembly.WithChamberLogger(s.log),
		assembly.WithChamberName(f.Chamber),
	}
	if deps.Publisher != nil {
		chamberOpts = append(chamberOpts, assembly.WithChamberPublisher(deps.Publisher))
	}
	s.chamber = assembly.NewChamber(out, chamberOpts...)

	for _, ps := range f.Practitioners {
		rank, _ := parseRank(ps.Rank)
		p, err := mentorship.NewPractitioner(mentorship.NewPractitionerParams{
			Name:       ps.Name,
			Category:   ps.Category,
			Mentor:     ps.Mentor,
			Rank:       rank,
			Qualifiers: ps.Qualifiers,
			Qualified:  ps.Qualified,
		})
		if err != nil {
			return nil, err
		}
		if err := s.practitioners.Register(p); err != nil {
			return nil, err
		}
	}

	for _, rs := range f.Representatives {
		var style assembly.SpeechStyle
		if rs.Presiding {
			style = assembly.PresidingStyle{Title: rs.Title}
		}
		r, err := assembly.NewRepresentative(assembly.NewRepresentativeParams{
			Name:       rs.Name,
			Category:   rs.Category,
			Home:       rs.Home,
			Attributes: rs.Attributes,
			Style:      style,
		})
		if err != nil {
			return nil, err
		}
		if err := s.representatives.Register(r); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// RankLadder returns the default ladder with the file's overrides applied.
func (f *File) RankLadder() (*ladder.Ladder, error) {
	if len(f.Ladder) == 0 {
		return ladder.Default(), nil
	}
	overrides := make(map[ladder.Rank]ladder.Requirement, len(f.Ladder))
	for name, q := range f.Ladder {
		r, err := ladder.ParseRank(name)
		if err != nil {
			return nil, err
		}
		overrides[r] = q
	}
	return ladder.New(overrides)
}

func (f *File) mentorRanks(strict bool) []ladder.Rank {
	if len(f.MentorRanks) == 0 {
		if strict {
			return StrictMentorRanks
		}
		return nil
	}
	ranks := make([]ladder.Rank, 0, len(f.MentorRanks))
	for _, name := range f.MentorRanks {
		if r, err := ladder.ParseRank(name); err == nil {
			ranks = append(ranks, r)
		}
	}
	return ranks
}

// Seed returns the seed of the dice, or 0 when dice were scripted or injected.
func (s *Simulation) Seed() int64 { return s.seed }

// Engine returns the mentorship engine.
func (s *Simulation) Engine() *mentorship.Engine { return s.engine }

// Practitioner finds a practitioner by name.
func (s *Simulation) Practitioner(name string) (*mentorship.Practitioner, bool) {
	return s.practitioners.Lookup(strings.TrimSpace(name))
}

// Representative finds a representative by name.
func (s *Simulation) Representative(name string) (*assembly.Representative, bool) {
	return s.representatives.Lookup(strings.TrimSpace(name))
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN
// ══════════════════════════════════════════════════════════════════════════════

// Run executes every step in order. Declined rules are recorded in the
// report and the run continues; any other error stops it.
func (s *Simulation) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{Scenario: s.file.Name, Seed: s.seed}

	s.log.Info("run started", logger.Int("steps", len(s.file.Steps)))

	for i, step := range s.file.Steps {
		if err := ctx.Err(); err != nil {
			rep.Duration = time.Since(start)
			return rep, err
		}

		n := i + 1
		rep.Steps++
		err := s.exec(ctx, n, step, rep)
		switch {
		case err == nil:
		case shared.IsSoftFailure(err):
			rep.decline(n, step.Op, err)
		default:
			rep.Duration = time.Since(start)
			s.log.Error("run aborted", logger.Step(n), logger.Operation(string(step.Op)), logger.Err(err))
			return rep, fmt.Errorf("scenario: step %d (%s): %w", n, step.Op, err)
		}
	}

	rep.Duration = time.Since(start)
	s.log.Info("run finished",
		logger.Int("steps", rep.Steps),
		logger.Int("rolls", rep.Rolls),
		logger.Int("declined", rep.Declined()),
		logger.Latency(rep.Duration),
	)
	return rep, nil
}

func (s *Simulation) exec(ctx context.Context, n int, step Step, rep *Report) error {
	switch step.Op {
	case OpHeading:
		if err := s.out.Emit(ctx, shared.Line{Kind: shared.LineHeading, Text: step.Text}); err != nil {
			s.log.Warn("output sink rejected line", logger.Step(n), logger.Err(err))
		}
		return nil

	case OpDisplay:
		p, err := s.practitioner(step.Who)
		if err != nil {
			return err
		}
		s.engine.DisplayInfo(ctx, p)
		return nil

	case OpAssign:
		mentor, apprentice, err := s.pair(step)
		if err != nil {
			return err
		}
		return s.engine.Assign(ctx, mentor, apprentice)

	case OpQualify:
		p, err := s.practitioner(step.Who)
		if err != nil {
			return err
		}
		if _, err = s.engine.AttemptQualification(ctx, p); err == nil {
			rep.Rolls++
		}
		return err

	case OpQualifyUntil:
		p, err := s.practitioner(step.Who)
		if err != nil {
			return err
		}
		return s.qualifyUntil(ctx, p, step.maxAttempts(), rep)

	case OpTrain:
		return s.train(ctx, n, step, rep)

	case OpGraduate:
		mentor, apprentice, err := s.pair(step)
		if err != nil {
			return err
		}
		_, err = s.engine.Graduate(ctx, mentor, apprentice)
		return err

	case OpPromote:
		p, err := s.practitioner(step.Who)
		if err != nil {
			return err
		}
		_, err = s.engine.Promote(ctx, p)
		return err

	case OpSay:
		if p, ok := s.practitioners.Lookup(strings.TrimSpace(step.Who)); ok {
			s.engine.Say(ctx, p, step.Text)
			return nil
		}
		r, err := s.representative(step.Who)
		if err != nil {
			return err
		}
		s.chamber.Say(ctx, r, step.Text)
		return nil

	case OpAddAttribute:
		r, err := s.representative(step.Who)
		if err != nil {
			return err
		}
		r.AddAttribute(step.Text)
		return nil

	case OpListAttributes:
		caller, err := s.representative(step.Who)
		if err != nil {
			return err
		}
		target := caller
		if step.Target != "" {
			if target, err = s.representative(step.Target); err != nil {
				return err
			}
		}
		s.chamber.ListAttributes(ctx, caller, target)
		return nil

	case OpExchange:
		caller, err := s.representative(step.Who)
		if err != nil {
			return err
		}
		target, err := s.representative(step.Target)
		if err != nil {
			return err
		}
		s.chamber.Exchange(ctx, caller, target, step.Text)
		return nil
	}
	return invalid("Run", "unknown op %q", step.Op)
}

// qualifyUntil rolls until p may advance. A declined attempt ends the loop.
func (s *Simulation) qualifyUntil(ctx context.Context, p *mentorship.Practitioner, limit int, rep *Report) error {
	for attempts := 0; !s.engine.CanAdvance(p); attempts++ {
		if attempts == limit {
			return fmt.Errorf("%w: %s after %d attempts", ErrAttemptsExhausted, p.Name(), limit)
		}
		if _, err := s.engine.AttemptQualification(ctx, p); err != nil {
			return err
		}
		rep.Rolls++
	}
	return nil
}

// train alternates a qualification attempt and a graduation until the
// apprentice has passed the trials. The last graduation outcome is returned;
// earlier declines are recorded on the report.
func (s *Simulation) train(ctx context.Context, n int, step Step, rep *Report) error {
	mentor, apprentice, err := s.pair(step)
	if err != nil {
		return err
	}
	limit := step.maxAttempts()

	for attempts := 0; ; attempts++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempts == limit {
			return fmt.Errorf("%w: %s after %d attempts", ErrAttemptsExhausted, apprentice.Name(), limit)
		}

		_, err = s.engine.AttemptQualification(ctx, apprentice)
		switch {
		case err == nil:
			rep.Rolls++
		case errors.Is(err, mentorship.ErrAlreadySatisfied):
			rep.decline(n, step.Op, err)
		default:
			return err
		}

		_, err = s.engine.Graduate(ctx, mentor, apprentice)
		if apprentice.HasQualified() {
			return err
		}
		if err != nil {
			if !shared.IsSoftFailure(err) {
				return err
			}
			rep.decline(n, step.Op, err)
		}
	}
}

func (s Step) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultMaxAttempts
}

// Registry keys are trimmed names. A miss is a hard not-found error, never
// a declined rule.
func (s *Simulation) practitioner(name string) (*mentorship.Practitioner, error) {
	return s.practitioners.MustLookup(strings.TrimSpace(name))
}

func (s *Simulation) representative(name string) (*assembly.Representative, error) {
	return s.representatives.MustLookup(strings.TrimSpace(name))
}

// pair resolves the mentor and apprentice of a step.
func (s *Simulation) pair(step Step) (mentor, apprentice *mentorship.Practitioner, err error) {
	if mentor, err = s.practitioner(step.Mentor); err != nil {
		return nil, nil, err
	}
	if apprentice, err = s.practitioner(step.Apprentice); err != nil {
		return nil, nil, err
	}
	return mentor, apprentice, nil
}
