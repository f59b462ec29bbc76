package mentorship

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/lineage/internal/domain/ladder"
	"github.com/alem-hub/lineage/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Test helpers
// ═══════════════════════════════════════════════════════════════════════════

type recordingSink struct {
	lines []shared.Line
}

func (s *recordingSink) Emit(_ context.Context, line shared.Line) error {
	s.lines = append(s.lines, line)
	return nil
}

func (s *recordingSink) texts() []string {
	out := make([]string, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, l.Text)
	}
	return out
}

func (s *recordingSink) last() shared.Line {
	if len(s.lines) == 0 {
		return shared.Line{}
	}
	return s.lines[len(s.lines)-1]
}

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// scripted returns the given faces in order, then repeats the last one.
func scripted(faces ...int) DiceFunc {
	i := 0
	return func(sides int) int {
		face := faces[i]
		if i < len(faces)-1 {
			i++
		}
		return face
	}
}

func newPractitioner(t *testing.T, name string, rank ladder.Rank) *Practitioner {
	t.Helper()
	p, err := NewPractitioner(NewPractitionerParams{Name: name, Category: "Guild", Rank: rank})
	require.NoError(t, err)
	return p
}

func newTestEngine(dice Dice, opts ...Option) (*Engine, *recordingSink) {
	sink := &recordingSink{}
	return NewEngine(sink, dice, opts...), sink
}

// ═══════════════════════════════════════════════════════════════════════════
// Construction
// ═══════════════════════════════════════════════════════════════════════════

func TestNewPractitioner_Validation(t *testing.T) {
	_, err := NewPractitioner(NewPractitionerParams{Name: "  "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPractitioner))
	assert.True(t, shared.IsValidation(err))

	_, err = NewPractitioner(NewPractitionerParams{Name: "Ayla", Rank: ladder.Rank(17)})
	assert.True(t, errors.Is(err, ErrInvalidPractitioner))

	_, err = NewPractitioner(NewPractitionerParams{Name: "Ayla", Mentor: "Ayla"})
	assert.True(t, errors.Is(err, ErrInvalidPractitioner))
}

func TestNewPractitioner_Defaults(t *testing.T) {
	qualifiers := []string{"staff", "cloak"}
	p, err := NewPractitioner(NewPractitionerParams{Name: "Ayla", Qualifiers: qualifiers})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID())
	assert.Equal(t, ladder.RankApprentice, p.Rank())
	assert.False(t, p.HasQualified())
	_, hasMentor := p.Mentor()
	assert.False(t, hasMentor)

	// the practitioner keeps its own copy
	qualifiers[0] = "changed"
	assert.Equal(t, []string{"staff", "cloak"}, p.Qualifiers())
	assert.Equal(t, 2, p.QualifierCount())
}

func TestPractitioner_QualifierCountIsMemoized(t *testing.T) {
	p, err := NewPractitioner(NewPractitionerParams{Name: "Ayla", Qualifiers: []string{"staff"}})
	require.NoError(t, err)

	assert.Equal(t, 1, p.QualifierCount())
	p.qualifiers = append(p.qualifiers, "cloak")
	assert.Equal(t, 1, p.QualifierCount())
}

func TestNewEngine_DefaultDiceStayInRange(t *testing.T) {
	e, _ := newTestEngine(nil)
	for i := 0; i < 200; i++ {
		face := e.dice.Roll(10)
		require.GreaterOrEqual(t, face, 1)
		require.LessOrEqual(t, face, 10)
	}
}

func TestPractitioner_Utter(t *testing.T) {
	p := newPractitioner(t, "Ayla", ladder.RankSenior)
	assert.Equal(t, `Senior Ayla: "Patience."`, p.Utter("Patience."))
	assert.Equal(t, "Senior Ayla: \"Say \"when\"\tnow\"", p.Utter("Say \"when\"\tnow"))
}

// ═══════════════════════════════════════════════════════════════════════════
// Qualification
// ═══════════════════════════════════════════════════════════════════════════

func TestAttemptQualification_PassesOnlyOnOne(t *testing.T) {
	for face := 1; face <= QualificationDieSides; face++ {
		engine, _ := newTestEngine(scripted(face))
		p := newPractitioner(t, "Ayla", ladder.RankApprentice)

		passed, err := engine.AttemptQualification(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, face == 1, passed, "face %d", face)
		assert.Equal(t, face == 1, p.HasQualified(), "face %d", face)
	}
}

func TestAttemptQualification_RollsTenSidedDie(t *testing.T) {
	var gotSides int
	engine, _ := newTestEngine(DiceFunc(func(sides int) int {
		gotSides = sides
		return 5
	}))
	p := newPractitioner(t, "Ayla", ladder.RankApprentice)

	_, err := engine.AttemptQualification(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 10, gotSides)
}

func TestAttemptQualification_Reports(t *testing.T) {
	engine, sink := newTestEngine(scripted(4, 1))
	p := newPractitioner(t, "Ayla", ladder.RankApprentice)
	ctx := context.Background()

	_, _ = engine.AttemptQualification(ctx, p)
	_, _ = engine.AttemptQualification(ctx, p)

	assert.Equal(t, []string{
		"Ayla failed their trials.",
		"Ayla passed their trials!",
	}, sink.texts())
}

func TestAttemptQualification_IdempotentOnceQualified(t *testing.T) {
	rolls := 0
	engine, sink := newTestEngine(DiceFunc(func(int) int {
		rolls++
		return 1
	}))
	p := newPractitioner(t, "Ayla", ladder.RankApprentice)
	ctx := context.Background()

	passed, err := engine.AttemptQualification(ctx, p)
	require.NoError(t, err)
	require.True(t, passed)

	rankBefore, formerBefore := p.Rank(), len(p.FormerApprentices())

	passed, err = engine.AttemptQualification(ctx, p)
	assert.False(t, passed)
	assert.ErrorIs(t, err, ErrAlreadySatisfied)
	assert.True(t, shared.IsSoftFailure(err))

	assert.Equal(t, 1, rolls, "no further draw once qualified")
	assert.True(t, p.HasQualified())
	assert.Equal(t, rankBefore, p.Rank())
	assert.Equal(t, formerBefore, len(p.FormerApprentices()))
	assert.Equal(t, shared.LineNotice, sink.last().Kind)
	assert.Equal(t, "Ayla has already passed the trials.", sink.last().Text)
}

func TestAttemptQualification_OnlyAtLowestRank(t *testing.T) {
	engine, sink := newTestEngine(scripted(1))
	p := newPractitioner(t, "Ayla", ladder.RankAdept)

	passed, err := engine.AttemptQualification(context.Background(), p)
	assert.False(t, passed)
	assert.ErrorIs(t, err, ErrNotQualificationRank)
	assert.False(t, p.HasQualified())
	assert.Empty(t, sink.lines)
}

// ═══════════════════════════════════════════════════════════════════════════
// Promotion
// ═══════════════════════════════════════════════════════════════════════════

func TestPromote_ApprenticeNeedsQualification(t *testing.T) {
	engine, sink := newTestEngine(scripted(1))
	p := newPractitioner(t, "Ayla", ladder.RankApprentice)
	ctx := context.Background()

	rank, err := engine.Promote(ctx, p)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, ladder.RankApprentice, rank)
	assert.Equal(t, "Ayla is not eligible to rank up.", sink.last().Text)

	_, err = engine.AttemptQualification(ctx, p)
	require.NoError(t, err)

	rank, err = engine.Promote(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, ladder.RankAdept, rank)
	assert.Equal(t, ladder.RankAdept, p.Rank())
	assert.Equal(t, "Ayla has advanced to the rank of Adept.", sink.last().Text)
	assert.True(t, p.HasQualified(), "promotion keeps qualification")
}

func TestPromote_ClosedRanksAreNotEligible(t *testing.T) {
	engine, sink := newTestEngine(nil)
	p := newPractitioner(t, "Ayla", ladder.RankCounselor)

	_, err := engine.Promote(context.Background(), p)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, ladder.RankCounselor, p.Rank())
	assert.Equal(t, "Ayla is not eligible to rank up.", sink.last().Text)
}

func TestPromote_AtTerminalRank(t *testing.T) {
	open, err := ladder.New(map[ladder.Rank]ladder.Requirement{ladder.RankGrandmaster: {}})
	require.NoError(t, err)

	engine, sink := newTestEngine(nil, WithLadder(open))
	p := newPractitioner(t, "Ayla", ladder.RankGrandmaster)

	rank, err := engine.Promote(context.Background(), p)
	assert.ErrorIs(t, err, ErrAtTerminalRank)
	assert.Equal(t, ladder.RankGrandmaster, rank)
	assert.Equal(t, "Ayla has reached the highest rank.", sink.last().Text)
}

// Scenario B
func TestPromote_AdeptAfterOneGraduation(t *testing.T) {
	engine, _ := newTestEngine(scripted(1))
	ctx := context.Background()

	mentor := newPractitioner(t, "Ayla", ladder.RankAdept)
	apprentice := newPractitioner(t, "Bren", ladder.RankApprentice)

	_, err := engine.Promote(ctx, mentor)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, ladder.RankAdept, mentor.Rank())

	require.NoError(t, engine.Assign(ctx, mentor, apprentice))
	_, err = engine.AttemptQualification(ctx, apprentice)
	require.NoError(t, err)
	_, err = engine.Graduate(ctx, mentor, apprentice)
	require.NoError(t, err)
	require.Len(t, mentor.FormerApprentices(), 1)

	rank, err := engine.Promote(ctx, mentor)
	require.NoError(t, err)
	assert.Equal(t, ladder.RankSenior, rank)
	assert.Equal(t, ladder.RankSenior, mentor.Rank())
	assert.Len(t, mentor.FormerApprentices(), 1, "promotion keeps former apprentices")
}

// ═══════════════════════════════════════════════════════════════════════════
// Assignment
// ═══════════════════════════════════════════════════════════════════════════

func TestAssign_Success(t *testing.T) {
	pub := &recordingPublisher{}
	engine, sink := newTestEngine(nil, WithPublisher(pub))
	mentor := newPractitioner(t, "Ayla", ladder.RankAdept)
	apprentice := newPractitioner(t, "Bren", ladder.RankApprentice)

	require.NoError(t, engine.Assign(context.Background(), mentor, apprentice))

	assert.True(t, mentor.HasApprentice("Bren"))
	assert.Equal(t, "Ayla has taken Bren as an apprentice.", sink.last().Text)
	assert.Equal(t, []shared.EventType{shared.EventApprenticeAssigned}, pub.types())

	holder, ok := engine.CurrentMentor(apprentice)
	require.True(t, ok)
	assert.Same(t, mentor, holder)
}

// Scenario C
func TestAssign_RejectsCandidateAboveLowestRank(t *testing.T) {
	engine, sink := newTestEngine(nil)
	mentor := newPractitioner(t, "Ayla", ladder.RankSenior)
	candidate := newPractitioner(t, "Bren", ladder.RankAdept)

	err := engine.Assign(context.Background(), mentor, candidate)
	assert.ErrorIs(t, err, ErrInvalidCandidateRank)
	assert.True(t, shared.IsSoftFailure(err))
	assert.Empty(t, mentor.CurrentApprentices())
	assert.Equal(t, "Bren is not an apprentice, and thus cannot be taken as one.", sink.last().Text)
}

func TestAssign_RejectsLowestRankMentor(t *testing.T) {
	engine, sink := newTestEngine(nil)
	mentor := newPractitioner(t, "Ayla", ladder.RankApprentice)
	candidate := newPractitioner(t, "Bren", ladder.RankApprentice)

	err := engine.Assign(context.Background(), mentor, candidate)
	assert.ErrorIs(t, err, ErrInsufficientMentorRank)
	assert.Empty(t, mentor.CurrentApprentices())
	assert.Equal(t, "Ayla is not high enough in rank to take an apprentice.", sink.last().Text)
}

func TestAssign_CandidateRankCheckedFirst(t *testing.T) {
	engine, _ := newTestEngine(nil)
	mentor := newPractitioner(t, "Ayla", ladder.RankApprentice)
	candidate := newPractitioner(t, "Bren", ladder.RankAdept)

	err := engine.Assign(context.Background(), mentor, candidate)
	assert.ErrorIs(t, err, ErrInvalidCandidateRank)
}

func TestAssign_AtMostOneMentor(t *testing.T) {
	engine, sink := newTestEngine(nil)
	ctx := context.Background()
	first := newPractitioner(t, "Ayla", ladder.RankAdept)
	second := newPractitioner(t, "Cato", ladder.RankSenior)
	apprentice := newPractitioner(t, "Bren", ladder.RankApprentice)

	require.NoError(t, engine.Assign(ctx, first, apprentice))

	err := engine.Assign(ctx, second, apprentice)
	assert.ErrorIs(t, err, ErrAlreadyApprenticed)
	assert.Empty(t, second.CurrentApprentices())
	assert.Equal(t, "Bren is already an apprentice of Ayla.", sink.last().Text)

	err = engine.Assign(ctx, first, apprentice)
	assert.ErrorIs(t, err, ErrAlreadyApprenticed)
	assert.Len(t, first.CurrentApprentices(), 1)
}

func TestAssign_MentorRankAllowList(t *testing.T) {
	engine, _ := newTestEngine(nil, WithMentorRanks(ladder.RankSenior, ladder.RankCounselor, ladder.RankGrandmaster))
	ctx := context.Background()

	adept := newPractitioner(t, "Ayla", ladder.RankAdept)
	senior := newPractitioner(t, "Cato", ladder.RankSenior)
	apprentice := newPractitioner(t, "Bren", ladder.RankApprentice)

	assert.ErrorIs(t, engine.Assign(ctx, adept, apprentice), ErrInsufficientMentorRank)
	assert.NoError(t, engine.Assign(ctx, senior, apprentice))
}

// ═══════════════════════════════════════════════════════════════════════════
// Graduation
// ═══════════════════════════════════════════════════════════════════════════

// Scenario A
func TestGraduate_AfterForcedQualification(t *testing.T) {
	pub := &recordingPublisher{}
	engine, sink := newTestEngine(scripted(1), WithPublisher(pub))
	ctx := context.Background()
	mentor := newPractitioner(t, "Ayla", ladder.RankAdept)
	apprentice := newPractitioner(t, "Bren", ladder.RankApprentice)

	require.NoError(t, engine.Assign(ctx, mentor, apprentice))

	passed, err := engine.AttemptQualification(ctx, apprentice)
	require.NoError(t, err)
	require.True(t, passed)
	assert.True(t, engine.CanAdvance(apprentice))

	rank, err := engine.Graduate(ctx, mentor, apprentice)
	require.NoError(t, err)
	assert.Equal(t, ladder.RankAdept, rank)
	assert.Equal(t, ladder.RankAdept, apprentice.Rank())
	assert.False(t, mentor.HasApprentice("Bren"))
	require.Len(t, mentor.FormerApprentices(), 1)
	assert.Same(t, apprentice, mentor.FormerApprentices()[0])
	assert.Equal(t, "Bren has graduated to the rank of Adept.", sink.last().Text)

	assert.Equal(t, []shared.EventType{
		shared.EventApprenticeAssigned,
		shared.EventQualificationAttempted,
		shared.EventPractitionerPromoted,
		shared.EventApprenticeGraduated,
	}, pub.types())
}

// Round trip: assign then graduate before qualification.
func TestGraduate_BeforeQualificationIsNotEligible(t *testing.T) {
	engine, sink := newTestEngine(nil)
	ctx := context.Background()
	mentor := newPractitioner(t, "Ayla", ladder.RankAdept)
	apprentice := newPractitioner(t, "Bren", ladder.RankApprentice)

	require.NoError(t, engine.Assign(ctx, mentor, apprentice))

	rank, err := engine.Graduate(ctx, mentor, apprentice)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, ladder.RankApprentice, rank)
	assert.Equal(t, ladder.RankApprentice, apprentice.Rank())
	assert.True(t, mentor.HasApprentice("Bren"))
	assert.Empty(t, mentor.FormerApprentices())
	assert.Equal(t, "Bren has not completed their trials and thus cannot rank up.", sink.last().Text)
}

// Scenario E
func TestGraduate_UnknownApprentice(t *testing.T) {
	engine, sink := newTestEngine(scripted(1))
	ctx := context.Background()
	mentor := newPractitioner(t, "Ayla", ladder.RankAdept)
	assigned := newPractitioner(t, "Bren", ladder.RankApprentice)
	stranger := newPractitioner(t, "Dax", ladder.RankApprentice)

	require.NoError(t, engine.Assign(ctx, mentor, assigned))
	_, err := engine.AttemptQualification(ctx, stranger)
	require.NoError(t, err)

	rank, err := engine.Graduate(ctx, mentor, stranger)
	assert.ErrorIs(t, err, ErrUnknownApprentice)
	assert.True(t, shared.IsNotFound(err))
	assert.Equal(t, ladder.RankApprentice, rank)
	assert.Equal(t, ladder.RankApprentice, stranger.Rank())
	assert.Equal(t, []*Practitioner{assigned}, mentor.CurrentApprentices())
	assert.Empty(t, mentor.FormerApprentices())
	assert.Equal(t, "Dax is not a current apprentice of Ayla.", sink.last().Text)
}

func TestGraduate_FreesApprenticeForNoOneElse(t *testing.T) {
	engine, _ := newTestEngine(scripted(1))
	ctx := context.Background()
	mentor := newPractitioner(t, "Ayla", ladder.RankAdept)
	other := newPractitioner(t, "Cato", ladder.RankSenior)
	apprentice := newPractitioner(t, "Bren", ladder.RankApprentice)

	require.NoError(t, engine.Assign(ctx, mentor, apprentice))
	_, _ = engine.AttemptQualification(ctx, apprentice)
	_, err := engine.Graduate(ctx, mentor, apprentice)
	require.NoError(t, err)

	// graduated apprentices are no longer at the lowest rank
	assert.ErrorIs(t, engine.Assign(ctx, other, apprentice), ErrInvalidCandidateRank)
	_, err = engine.Graduate(ctx, mentor, apprentice)
	assert.ErrorIs(t, err, ErrUnknownApprentice)
	assert.Len(t, mentor.FormerApprentices(), 1)
}

// ═══════════════════════════════════════════════════════════════════════════
// Properties over a full run
// ═══════════════════════════════════════════════════════════════════════════

func TestInvariants_HoldAcrossRepeatedCycles(t *testing.T) {
	engine, _ := newTestEngine(scripted(3, 1, 7, 1, 1, 2, 1))
	ctx := context.Background()

	master := newPractitioner(t, "Ayla", ladder.RankAdept)
	rival := newPractitioner(t, "Cato", ladder.RankSenior)
	pool := []*Practitioner{
		newPractitioner(t, "Bren", ladder.RankApprentice),
		newPractitioner(t, "Dax", ladder.RankApprentice),
		newPractitioner(t, "Eru", ladder.RankApprentice),
	}
	everyone := append([]*Practitioner{master, rival}, pool...)

	lastRank := map[*Practitioner]ladder.Rank{}
	lastFormer := map[*Practitioner][]*Practitioner{}
	check := func() {
		t.Helper()
		for _, p := range everyone {
			assert.GreaterOrEqual(t, p.Rank().Index(), lastRank[p].Index(), "%s rank regressed", p.Name())
			lastRank[p] = p.Rank()

			former := p.FormerApprentices()
			require.GreaterOrEqual(t, len(former), len(lastFormer[p]))
			for i, f := range lastFormer[p] {
				assert.Same(t, f, former[i])
			}
			lastFormer[p] = former

			holders := 0
			for _, m := range everyone {
				if m.HasApprentice(p.Name()) {
					holders++
				}
			}
			assert.LessOrEqual(t, holders, 1, "%s has more than one mentor", p.Name())
		}
	}

	for _, p := range everyone {
		lastRank[p] = p.Rank()
	}

	for _, apprentice := range pool {
		_ = engine.Assign(ctx, master, apprentice)
		check()
		_ = engine.Assign(ctx, rival, apprentice)
		check()
		for i := 0; i < 5 && !apprentice.HasQualified(); i++ {
			_, _ = engine.AttemptQualification(ctx, apprentice)
			check()
		}
		_, _ = engine.Graduate(ctx, master, apprentice)
		check()
		_, _ = engine.Promote(ctx, master)
		check()
	}

	assert.Equal(t, ladder.RankCounselor, master.Rank())
	assert.Len(t, master.FormerApprentices(), 3)
	assert.Empty(t, rival.CurrentApprentices())
}

// ═══════════════════════════════════════════════════════════════════════════
// Display
// ═══════════════════════════════════════════════════════════════════════════

func TestDisplayInfo_Order(t *testing.T) {
	registry := &mapRegistry{}
	engine, sink := newTestEngine(scripted(1), WithRegistry(registry))
	ctx := context.Background()

	mentor, err := NewPractitioner(NewPractitionerParams{
		Name:       "Ayla",
		Category:   "Warden",
		Mentor:     "Orin",
		Rank:       ladder.RankAdept,
		Qualifiers: []string{"staff", "cloak"},
	})
	require.NoError(t, err)
	first := newPractitioner(t, "Bren", ladder.RankApprentice)
	second := newPractitioner(t, "Dax", ladder.RankApprentice)

	require.NoError(t, engine.Assign(ctx, mentor, first))
	require.NoError(t, engine.Assign(ctx, mentor, second))
	_, _ = engine.AttemptQualification(ctx, first)
	_, err = engine.Graduate(ctx, mentor, first)
	require.NoError(t, err)

	sink.lines = nil
	engine.DisplayInfo(ctx, mentor)

	assert.Equal(t, []string{
		"Practitioner: Ayla",
		"Category: Warden",
		"Mentor: Orin",
		"Rank: Adept",
		"Qualifiers: staff, cloak (2 total)",
		"Current apprentices: Dax",
		"Former apprentices: Bren",
	}, sink.texts())
	for _, l := range sink.lines {
		assert.Equal(t, shared.LineSummary, l.Kind)
		assert.Equal(t, "Ayla", l.Subject)
	}
}

func TestDisplayInfo_OmitsEmptyLists(t *testing.T) {
	engine, sink := newTestEngine(nil)
	p := newPractitioner(t, "Bren", ladder.RankApprentice)

	engine.DisplayInfo(context.Background(), p)

	assert.Equal(t, []string{
		"Practitioner: Bren",
		"Category: Guild",
		"Mentor: N/A",
		"Rank: Apprentice",
		"Qualifiers:  (0 total)",
	}, sink.texts())
}

func TestSay(t *testing.T) {
	engine, sink := newTestEngine(nil)
	p := newPractitioner(t, "Ayla", ladder.RankCounselor)

	engine.Say(context.Background(), p, "Again.")

	require.Len(t, sink.lines, 1)
	assert.Equal(t, shared.LineSpeech, sink.lines[0].Kind)
	assert.Equal(t, `Counselor Ayla: "Again."`, sink.lines[0].Text)
}

func TestMentorOf_ResolvesThroughRegistry(t *testing.T) {
	registry := &mapRegistry{}
	engine, _ := newTestEngine(nil, WithRegistry(registry))

	orin := newPractitioner(t, "Orin", ladder.RankCounselor)
	require.NoError(t, registry.Register(orin))

	ayla, err := NewPractitioner(NewPractitionerParams{Name: "Ayla", Mentor: "Orin"})
	require.NoError(t, err)
	mentor, ok := engine.MentorOf(ayla)
	require.True(t, ok)
	assert.Same(t, orin, mentor)

	loner := newPractitioner(t, "Dax", ladder.RankApprentice)
	_, ok = engine.MentorOf(loner)
	assert.False(t, ok)
}

func TestEngine_SinkErrorsDoNotAbort(t *testing.T) {
	failing := shared.SinkFunc(func(context.Context, shared.Line) error {
		return errors.New("closed")
	})
	engine := NewEngine(failing, scripted(1))
	p := newPractitioner(t, "Ayla", ladder.RankApprentice)

	passed, err := engine.AttemptQualification(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, passed)
}

type mapRegistry struct {
	byName map[string]*Practitioner
	order  []*Practitioner
}

func (r *mapRegistry) Register(p *Practitioner) error {
	if r.byName == nil {
		r.byName = map[string]*Practitioner{}
	}
	r.byName[p.Name()] = p
	r.order = append(r.order, p)
	return nil
}

func (r *mapRegistry) Lookup(name string) (*Practitioner, bool) {
	p, ok := r.byName[name]
	return p, ok
}

func (r *mapRegistry) All() []*Practitioner { return r.order }
