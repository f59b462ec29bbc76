// Package assembly содержит модель представителей собрания: список атрибутов
// (политик), стиль речи и парный обмен атрибутами.
//
// Пакет не связан с mentorship; общая у них только способность "говорить"
// (shared.Speaker).
package assembly

import (
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"

	"github.com/alem-hub/lineage/internal/domain/shared"
)

// ErrInvalidRepresentative - некорректные параметры при создании.
var ErrInvalidRepresentative = shared.NewDomainError("assembly", "NewRepresentative", shared.ErrValidation, "invalid representative")

// AgreementMarkerPrefix - префикс атрибута, который добавляет обмен.
const AgreementMarkerPrefix = "Private Agreement with "

// ══════════════════════════════════════════════════════════════════════════════
// SPEECH STYLE
// ══════════════════════════════════════════════════════════════════════════════

// SpeechStyle форматирует реплику представителя.
type SpeechStyle interface {
	Format(r *Representative, text string) string
}

// DelegateStyle - обычный представитель: `<Имя> of <Дом>: "<текст>"`.
type DelegateStyle struct{}

// Format реализует SpeechStyle.
func (DelegateStyle) Format(r *Representative, text string) string {
	return fmt.Sprintf("%s of %s: \"%s\"", r.name, r.home, text)
}

// PresidingStyle - председательствующий: `<Титул> <Имя>: "<текст>"`.
type PresidingStyle struct {
	Title string
}

// DefaultPresidingTitle используется, если титул не задан.
const DefaultPresidingTitle = "Chancellor"

// Format реализует SpeechStyle.
func (s PresidingStyle) Format(r *Representative, text string) string {
	title := s.Title
	if title == "" {
		title = DefaultPresidingTitle
	}
	return fmt.Sprintf("%s %s: \"%s\"", title, r.name, text)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY: REPRESENTATIVE
// ══════════════════════════════════════════════════════════════════════════════

// Representative - представитель собрания.
type Representative struct {
	id         string
	name       string
	category   string
	home       string
	attributes []string
	style      SpeechStyle
}

// NewRepresentativeParams - параметры для создания представителя.
type NewRepresentativeParams struct {
	Name       string
	Category   string
	Home       string
	Attributes []string

	// Style по умолчанию DelegateStyle.
	Style SpeechStyle
}

// NewRepresentative создаёт представителя.
func NewRepresentative(params NewRepresentativeParams) (*Representative, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, shared.WrapError("assembly", "NewRepresentative", ErrInvalidRepresentative, "name is required", shared.ErrEmptyValue)
	}

	style := params.Style
	if style == nil {
		style = DelegateStyle{}
	}

	attrs := make([]string, len(params.Attributes))
	copy(attrs, params.Attributes)

	return &Representative{
		id:         uuid.New().String(),
		name:       name,
		category:   params.Category,
		home:       params.Home,
		attributes: attrs,
		style:      style,
	}, nil
}

// ID возвращает уникальный идентификатор представителя.
func (r *Representative) ID() string { return r.id }

// Name возвращает имя представителя.
func (r *Representative) Name() string { return r.name }

// Category возвращает категорию представителя.
func (r *Representative) Category() string { return r.category }

// Home возвращает родной мир представителя.
func (r *Representative) Home() string { return r.home }

// Presiding возвращает true для председательствующего стиля.
func (r *Representative) Presiding() bool {
	_, ok := r.style.(PresidingStyle)
	return ok
}

// Utter реализует shared.Speaker.
func (r *Representative) Utter(text string) string {
	return r.style.Format(r, text)
}

// AddAttribute добавляет атрибут в конец списка. Дубликаты допускаются.
func (r *Representative) AddAttribute(value string) {
	r.attributes = append(r.attributes, value)
}

// Attributes возвращает копию списка атрибутов.
func (r *Representative) Attributes() []string {
	out := make([]string, len(r.attributes))
	copy(out, r.attributes)
	return out
}

// AttributeSeq возвращает ленивую последовательность по снимку атрибутов.
// Последовательность можно обходить повторно; изменения после вызова не видны.
func (r *Representative) AttributeSeq() iter.Seq[string] {
	snapshot := r.Attributes()
	return func(yield func(string) bool) {
		for _, a := range snapshot {
			if !yield(a) {
				return
			}
		}
	}
}

// ExchangeWith добавляет обоим участникам маркер соглашения со стороной-партнёром.
// Всегда успешно; согласие и видимость не проверяются.
func (r *Representative) ExchangeWith(other *Representative) {
	r.AddAttribute(AgreementMarkerPrefix + other.name)
	other.AddAttribute(AgreementMarkerPrefix + r.name)
}

var _ shared.Speaker = (*Representative)(nil)
