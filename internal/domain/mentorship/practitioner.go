package mentorship

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/alem-hub/lineage/internal/domain/ladder"
	"github.com/alem-hub/lineage/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidPractitioner - некорректные параметры при создании.
	ErrInvalidPractitioner = shared.NewDomainError("mentorship", "NewPractitioner", shared.ErrValidation, "invalid practitioner")

	// ErrAlreadySatisfied - квалификация уже сдана.
	ErrAlreadySatisfied = shared.NewDomainError("mentorship", "AttemptQualification", shared.ErrAlreadyProcessed, "qualification already passed")

	// ErrNotQualificationRank - квалификацию сдают только на низшем ранге.
	ErrNotQualificationRank = shared.NewDomainError("mentorship", "AttemptQualification", shared.ErrInvalidState, "qualification is only held at the lowest rank")

	// ErrNotEligible - требования лестницы для повышения не выполнены.
	ErrNotEligible = shared.NewDomainError("mentorship", "Promote", shared.ErrStateTransition, "not eligible to advance")

	// ErrAtTerminalRank - выше ранга нет.
	ErrAtTerminalRank = shared.NewDomainError("mentorship", "Promote", shared.ErrValueOutOfRange, "no further rank")

	// ErrInvalidCandidateRank - кандидат в ученики не на низшем ранге.
	ErrInvalidCandidateRank = shared.NewDomainError("mentorship", "Assign", shared.ErrInvalidInput, "candidate is not at the lowest rank")

	// ErrInsufficientMentorRank - ранг наставника слишком низок.
	ErrInsufficientMentorRank = shared.NewDomainError("mentorship", "Assign", shared.ErrForbidden, "mentor rank too low to take an apprentice")

	// ErrAlreadyApprenticed - кандидат уже числится учеником у наставника.
	ErrAlreadyApprenticed = shared.NewDomainError("mentorship", "Assign", shared.ErrAlreadyExists, "candidate already has a mentor")

	// ErrUnknownApprentice - кандидат не является текущим учеником наставника.
	ErrUnknownApprentice = shared.NewDomainError("mentorship", "Graduate", shared.ErrNotFound, "not a current apprentice of this mentor")
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY: PRACTITIONER
// ══════════════════════════════════════════════════════════════════════════════

// Practitioner - практикующий, проходящий по лестнице рангов.
// Состояние меняется только через Engine.
type Practitioner struct {
	id       string
	name     string
	category string

	// mentor - слабая ссылка на наставника: только имя, разрешается через Registry.
	mentor string

	rank         ladder.Rank
	hasQualified bool

	qualifiers       []string
	qualifierCount   int
	qualifierCounted bool

	// current - текущие ученики в порядке назначения.
	current []*Practitioner

	// former - выпущенные ученики; только дописывается.
	former []*Practitioner
}

// NewPractitionerParams - параметры для создания практикующего.
type NewPractitionerParams struct {
	Name       string
	Category   string
	Mentor     string
	Rank       ladder.Rank
	Qualifiers []string

	// Qualified отмечает уже сданную квалификацию. По умолчанию false.
	Qualified bool
}

// NewPractitioner создаёт практикующего с проверкой параметров.
func NewPractitioner(params NewPractitionerParams) (*Practitioner, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.WrapError("mentorship", "NewPractitioner", ErrInvalidPractitioner, "name is required", shared.ErrEmptyValue)
	}
	if !params.Rank.IsValid() {
		return nil, shared.WrapError("mentorship", "NewPractitioner", ErrInvalidPractitioner, "rank is not on the ladder",
			fmt.Errorf("rank %d", params.Rank.Index()))
	}
	if strings.TrimSpace(params.Mentor) == name {
		return nil, shared.WrapError("mentorship", "NewPractitioner", ErrInvalidPractitioner, "practitioner cannot be their own mentor", shared.ErrInvalidInput)
	}

	qualifiers := make([]string, len(params.Qualifiers))
	copy(qualifiers, params.Qualifiers)

	return &Practitioner{
		id:           uuid.New().String(),
		name:         name,
		category:     params.Category,
		mentor:       strings.TrimSpace(params.Mentor),
		rank:         params.Rank,
		hasQualified: params.Qualified,
		qualifiers:   qualifiers,
	}, nil
}

// ID возвращает внутренний идентификатор (UUID).
func (p *Practitioner) ID() string { return p.id }

// Name возвращает отображаемое имя. Имя неизменно и служит идентичностью.
func (p *Practitioner) Name() string { return p.name }

// Category возвращает категорию; в правилах не участвует.
func (p *Practitioner) Category() string { return p.category }

// Mentor возвращает имя наставника, если он указан.
func (p *Practitioner) Mentor() (string, bool) {
	return p.mentor, p.mentor != ""
}

// Rank возвращает текущий ранг.
func (p *Practitioner) Rank() ladder.Rank { return p.rank }

// HasQualified возвращает true, если квалификация сдана.
func (p *Practitioner) HasQualified() bool { return p.hasQualified }

// Qualifiers возвращает копию списка отличительных знаков.
func (p *Practitioner) Qualifiers() []string {
	out := make([]string, len(p.qualifiers))
	copy(out, p.qualifiers)
	return out
}

// QualifierCount возвращает число знаков. Значение вычисляется при первом
// чтении и больше не пересчитывается.
func (p *Practitioner) QualifierCount() int {
	if !p.qualifierCounted {
		p.qualifierCount = len(p.qualifiers)
		p.qualifierCounted = true
	}
	return p.qualifierCount
}

// CurrentApprentices возвращает копию списка текущих учеников.
func (p *Practitioner) CurrentApprentices() []*Practitioner {
	out := make([]*Practitioner, len(p.current))
	copy(out, p.current)
	return out
}

// FormerApprentices возвращает копию списка выпущенных учеников.
func (p *Practitioner) FormerApprentices() []*Practitioner {
	out := make([]*Practitioner, len(p.former))
	copy(out, p.former)
	return out
}

// HasApprentice проверяет, числится ли ученик с таким именем среди текущих.
func (p *Practitioner) HasApprentice(name string) bool {
	return p.apprenticeIndex(name) >= 0
}

func (p *Practitioner) apprenticeIndex(name string) int {
	for i, a := range p.current {
		if a.name == name {
			return i
		}
	}
	return -1
}

// Standing возвращает счётчики для проверки правил лестницы.
func (p *Practitioner) Standing() ladder.Standing {
	return ladder.Standing{
		HasQualified:      p.hasQualified,
		FormerApprentices: len(p.former),
	}
}

// FullTitle возвращает "<Ранг> <Имя>".
func (p *Practitioner) FullTitle() string {
	return p.rank.String() + " " + p.name
}

// Utter форматирует реплику практикующего.
func (p *Practitioner) Utter(text string) string {
	return fmt.Sprintf("%s: \"%s\"", p.FullTitle(), text)
}

// String возвращает краткое описание для логов.
func (p *Practitioner) String() string {
	return p.FullTitle()
}

func names(ps []*Practitioner) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.name)
	}
	return out
}

var _ shared.Speaker = (*Practitioner)(nil)
