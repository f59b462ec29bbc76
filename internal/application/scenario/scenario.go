// Package scenario loads YAML scenario files and drives a simulation run
// through the mentorship engine and the assembly chamber.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/lineage/internal/domain/ladder"
	"github.com/alem-hub/lineage/internal/domain/shared"
	"github.com/alem-hub/lineage/internal/infrastructure/random"
)

// ══════════════════════════════════════════════════════════════════════════════
// FILE MODEL
// ══════════════════════════════════════════════════════════════════════════════

// File is a parsed scenario.
type File struct {
	// Name identifies the scenario in logs and stored runs.
	Name string `yaml:"name"`

	// Seed fixes the dice. Takes precedence over SeedPhrase.
	Seed *int64 `yaml:"seed,omitempty"`

	// SeedPhrase derives the seed from text.
	SeedPhrase string `yaml:"seed_phrase,omitempty"`

	// Dice scripts the qualification rolls instead of seeding a generator.
	// After the script runs out the last face repeats.
	Dice []int `yaml:"dice,omitempty"`

	// Ladder overrides requirements per rank name.
	Ladder map[string]ladder.Requirement `yaml:"ladder,omitempty"`

	// MentorRanks restricts which ranks may take apprentices.
	MentorRanks []string `yaml:"mentor_ranks,omitempty"`

	// Chamber names the assembly in exchange reports (default "chamber").
	Chamber string `yaml:"chamber,omitempty"`

	Practitioners   []PractitionerSpec   `yaml:"practitioners"`
	Representatives []RepresentativeSpec `yaml:"representatives,omitempty"`
	Steps           []Step               `yaml:"steps"`
}

// PractitionerSpec declares a practitioner.
type PractitionerSpec struct {
	Name       string   `yaml:"name"`
	Category   string   `yaml:"category"`
	Mentor     string   `yaml:"mentor,omitempty"`
	Rank       string   `yaml:"rank"`
	Qualifiers []string `yaml:"qualifiers,omitempty"`
	Qualified  bool     `yaml:"qualified,omitempty"`
}

// RepresentativeSpec declares a representative. Presiding representatives
// speak with Title instead of their home.
type RepresentativeSpec struct {
	Name       string   `yaml:"name"`
	Category   string   `yaml:"category"`
	Home       string   `yaml:"home"`
	Attributes []string `yaml:"attributes,omitempty"`
	Presiding  bool     `yaml:"presiding,omitempty"`
	Title      string   `yaml:"title,omitempty"`
}

// Op names a step action.
type Op string

const (
	OpHeading        Op = "heading"
	OpDisplay        Op = "display"
	OpAssign         Op = "assign"
	OpQualify        Op = "qualify"
	OpQualifyUntil   Op = "qualify_until"
	OpTrain          Op = "train"
	OpGraduate       Op = "graduate"
	OpPromote        Op = "promote"
	OpSay            Op = "say"
	OpAddAttribute   Op = "add_attribute"
	OpListAttributes Op = "list_attributes"
	OpExchange       Op = "exchange"
)

// Step is one scenario action. Which fields are read depends on Op.
type Step struct {
	Op Op `yaml:"op"`

	// Who is the acting practitioner or representative.
	Who string `yaml:"who,omitempty"`

	// Mentor and Apprentice are read by assign, train and graduate.
	Mentor     string `yaml:"mentor,omitempty"`
	Apprentice string `yaml:"apprentice,omitempty"`

	// Target is the other representative for list_attributes and exchange.
	Target string `yaml:"target,omitempty"`

	// Text is the heading, speech, attribute or deal detail.
	Text string `yaml:"text,omitempty"`

	// MaxAttempts bounds qualify_until and train (default DefaultMaxAttempts).
	MaxAttempts int `yaml:"max_attempts,omitempty"`
}

// DefaultMaxAttempts bounds looping steps when max_attempts is not set.
const DefaultMaxAttempts = 500

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrInvalidScenario marks a structural problem in a scenario file.
var ErrInvalidScenario = errors.New("invalid scenario")

func invalid(op, format string, args ...any) error {
	return shared.WrapError("scenario", op, shared.ErrValidation, "invalid scenario",
		fmt.Errorf("%w: %s", ErrInvalidScenario, fmt.Sprintf(format, args...)))
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

// Load reads and parses a scenario file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// Parse decodes a scenario. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalid("Parse", "empty document")
		}
		return nil, invalid("Parse", "%v", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names, ranks and step fields without building anything.
func (f *File) Validate() error {
	if len(f.Practitioners) == 0 && len(f.Representatives) == 0 {
		return invalid("Validate", "no practitioners or representatives declared")
	}

	// Keys are trimmed the way the entities trim their own names.
	names := make(map[string]string)
	for i, p := range f.Practitioners {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return invalid("Validate", "practitioner %d has no name", i)
		}
		if _, err := parseRank(p.Rank); err != nil {
			return invalid("Validate", "practitioner %q: %v", name, err)
		}
		if prev, dup := names[name]; dup {
			return invalid("Validate", "%q declared twice (%s)", name, prev)
		}
		names[name] = "practitioner"
	}
	for i, r := range f.Representatives {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return invalid("Validate", "representative %d has no name", i)
		}
		if prev, dup := names[name]; dup {
			return invalid("Validate", "%q declared twice (%s)", name, prev)
		}
		names[name] = "representative"
	}

	for name := range f.Ladder {
		if _, err := ladder.ParseRank(name); err != nil {
			return invalid("Validate", "ladder: %v", err)
		}
	}
	for _, name := range f.MentorRanks {
		if _, err := ladder.ParseRank(name); err != nil {
			return invalid("Validate", "mentor_ranks: %v", err)
		}
	}

	for i, s := range f.Steps {
		if err := s.validate(names); err != nil {
			return invalid("Validate", "step %d (%s): %v", i+1, s.Op, err)
		}
	}
	return nil
}

func (s Step) validate(names map[string]string) error {
	need := func(kind, field, name string) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("%s is required", field)
		}
		got, ok := names[name]
		if !ok {
			return fmt.Errorf("unknown %s %q", kind, name)
		}
		if kind != "speaker" && got != kind {
			return fmt.Errorf("%q is a %s, not a %s", name, got, kind)
		}
		return nil
	}
	text := func() error {
		if s.Text == "" {
			return errors.New("text is required")
		}
		return nil
	}
	if s.MaxAttempts < 0 {
		return errors.New("max_attempts cannot be negative")
	}

	switch s.Op {
	case OpHeading:
		return text()
	case OpDisplay, OpQualify, OpQualifyUntil, OpPromote:
		return need("practitioner", "who", s.Who)
	case OpAssign, OpTrain, OpGraduate:
		return errors.Join(
			need("practitioner", "mentor", s.Mentor),
			need("practitioner", "apprentice", s.Apprentice),
		)
	case OpSay:
		return errors.Join(need("speaker", "who", s.Who), text())
	case OpAddAttribute:
		return errors.Join(need("representative", "who", s.Who), text())
	case OpListAttributes:
		if err := need("representative", "who", s.Who); err != nil {
			return err
		}
		if s.Target != "" {
			return need("representative", "target", s.Target)
		}
		return nil
	case OpExchange:
		return errors.Join(
			need("representative", "who", s.Who),
			need("representative", "target", s.Target),
			text(),
		)
	case "":
		return errors.New("op is required")
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
}

// ResolveSeed returns Seed, the seed derived from SeedPhrase, or a fresh
// random seed, in that order.
func (f *File) ResolveSeed() (int64, error) {
	switch {
	case f.Seed != nil:
		return *f.Seed, nil
	case f.SeedPhrase != "":
		return random.SeedFromPhrase(f.SeedPhrase), nil
	default:
		return random.NewSeed()
	}
}

// parseRank treats an empty rank as the lowest one.
func parseRank(s string) (ladder.Rank, error) {
	if strings.TrimSpace(s) == "" {
		return ladder.RankApprentice, nil
	}
	return ladder.ParseRank(s)
}
