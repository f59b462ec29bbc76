// Package ladder defines the ordered rank ladder and the eligibility rules
// for advancing from each rank.
package ladder

import (
	"fmt"
	"strings"

	"github.com/alem-hub/lineage/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANK
// ══════════════════════════════════════════════════════════════════════════════

// Rank is a position on the ladder. The underlying value is the order index.
type Rank int

const (
	// RankApprentice is the lowest rank. Only apprentices can be mentored
	// and only apprentices sit the qualification trial.
	RankApprentice Rank = iota
	// RankAdept is reached by a qualified apprentice.
	RankAdept
	// RankSenior requires one graduated apprentice.
	RankSenior
	// RankCounselor requires two graduated apprentices.
	RankCounselor
	// RankGrandmaster is the terminal rank.
	RankGrandmaster
)

// LowestRank and TerminalRank bound the ladder.
const (
	LowestRank   = RankApprentice
	TerminalRank = RankGrandmaster
)

var rankNames = [...]string{
	RankApprentice:  "Apprentice",
	RankAdept:       "Adept",
	RankSenior:      "Senior",
	RankCounselor:   "Counselor",
	RankGrandmaster: "Grandmaster",
}

// Errors returned by the ladder.
var (
	ErrInvalidRank        = shared.NewDomainError("ladder", "ParseRank", shared.ErrInvalidInput, "unknown rank")
	ErrInvalidRequirement = shared.NewDomainError("ladder", "New", shared.ErrValueOutOfRange, "requirement thresholds cannot be negative")
)

// IsValid reports whether r is on the ladder.
func (r Rank) IsValid() bool {
	return r >= LowestRank && r <= TerminalRank
}

// Index returns the order index of the rank (0 for the lowest).
func (r Rank) Index() int {
	return int(r)
}

// IsLowest reports whether r is the lowest rank.
func (r Rank) IsLowest() bool {
	return r == LowestRank
}

// IsTerminal reports whether r is the terminal rank.
func (r Rank) IsTerminal() bool {
	return r == TerminalRank
}

// String returns the display name of the rank.
func (r Rank) String() string {
	if !r.IsValid() {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

// ParseRank parses a rank name case-insensitively.
func ParseRank(s string) (Rank, error) {
	name := strings.TrimSpace(s)
	for r, n := range rankNames {
		if strings.EqualFold(n, name) {
			return Rank(r), nil
		}
	}
	return 0, shared.WrapError("ladder", "ParseRank", ErrInvalidRank, "unknown rank", fmt.Errorf("%q", s))
}

// Ranks returns every rank in ladder order.
func Ranks() []Rank {
	out := make([]Rank, 0, len(rankNames))
	for r := LowestRank; r <= TerminalRank; r++ {
		out = append(out, r)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// ELIGIBILITY
// ══════════════════════════════════════════════════════════════════════════════

// Standing holds the counters an eligibility check reads.
type Standing struct {
	HasQualified      bool
	FormerApprentices int
}

// Requirement is the rule for leaving a rank.
type Requirement struct {
	// Qualification requires the qualification trial to have been passed.
	Qualification bool `yaml:"qualification"`

	// MinFormerApprentices is the number of graduated apprentices required.
	MinFormerApprentices int `yaml:"min_former_apprentices"`

	// Closed means the rank can never be left by promotion.
	Closed bool `yaml:"closed"`
}

// Satisfied reports whether s meets the requirement.
func (q Requirement) Satisfied(s Standing) bool {
	if q.Closed {
		return false
	}
	if q.Qualification && !s.HasQualified {
		return false
	}
	return s.FormerApprentices >= q.MinFormerApprentices
}

// Ladder maps each rank to the requirement for advancing from it.
type Ladder struct {
	rules map[Rank]Requirement
}

// defaultRules is the standard ladder policy.
func defaultRules() map[Rank]Requirement {
	return map[Rank]Requirement{
		RankApprentice:  {Qualification: true},
		RankAdept:       {MinFormerApprentices: 1},
		RankSenior:      {MinFormerApprentices: 2},
		RankCounselor:   {Closed: true},
		RankGrandmaster: {Closed: true},
	}
}

// Default returns the standard ladder.
func Default() *Ladder {
	return &Ladder{rules: defaultRules()}
}

// New returns the standard ladder with the given per-rank overrides.
func New(overrides map[Rank]Requirement) (*Ladder, error) {
	rules := defaultRules()
	for r, q := range overrides {
		if !r.IsValid() {
			return nil, shared.WrapError("ladder", "New", ErrInvalidRank, "unknown rank", fmt.Errorf("%d", int(r)))
		}
		if q.MinFormerApprentices < 0 {
			return nil, ErrInvalidRequirement
		}
		rules[r] = q
	}
	return &Ladder{rules: rules}, nil
}

// Requirement returns the rule for leaving r.
func (l *Ladder) Requirement(r Rank) (Requirement, bool) {
	q, ok := l.rules[r]
	return q, ok
}

// CanAdvance reports whether a practitioner at rank r with standing s may advance.
// Unknown ranks are never eligible.
func (l *Ladder) CanAdvance(r Rank, s Standing) bool {
	q, ok := l.rules[r]
	if !ok {
		return false
	}
	return q.Satisfied(s)
}

// Next returns the rank after r, or false at the terminal rank.
func (l *Ladder) Next(r Rank) (Rank, bool) {
	if !r.IsValid() || r.IsTerminal() {
		return r, false
	}
	return r + 1, true
}

// Describe returns a human readable form of the rule for leaving r.
func (l *Ladder) Describe(r Rank) string {
	q, ok := l.rules[r]
	if !ok {
		return "never"
	}
	if q.Closed {
		return "never"
	}
	var parts []string
	if q.Qualification {
		parts = append(parts, "qualification passed")
	}
	if q.MinFormerApprentices > 0 {
		parts = append(parts, fmt.Sprintf("%d former apprentice(s)", q.MinFormerApprentices))
	}
	if len(parts) == 0 {
		return "always"
	}
	return strings.Join(parts, " and ")
}
