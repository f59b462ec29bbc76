// Package eventhandler содержит обработчики доменных событий.
// Обработчики подписываются на шину и ведут побочный учёт:
// они ничего не меняют в доменной модели.
package eventhandler

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/alem-hub/lineage/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// PROGRESS STATS HANDLER
// Считает, что произошло за прогон: броски, повышения, выпуски, отказы.
// ═══════════════════════════════════════════════════════════════════════════

// ProgressStats собирает счётчики по событиям прогона.
// Безопасен для асинхронной шины.
type ProgressStats struct {
	mu sync.Mutex

	rolls       int
	passes      int
	promotions  map[string]int // по целевому рангу
	graduations map[string]int // по наставнику
	assignments int
	declines    map[string]int // по операции
	exchanges   int
	events      int

	logger *slog.Logger
}

// Stats - снимок счётчиков.
type Stats struct {
	Events      int
	Rolls       int
	Passes      int
	Assignments int
	Exchanges   int
	Promotions  map[string]int
	Graduations map[string]int
	Declines    map[string]int
}

// PassRate возвращает долю успешных бросков (0, если бросков не было).
func (s Stats) PassRate() float64 {
	if s.Rolls == 0 {
		return 0
	}
	return float64(s.Passes) / float64(s.Rolls)
}

// TotalDeclines возвращает общее число отказов.
func (s Stats) TotalDeclines() int {
	n := 0
	for _, v := range s.Declines {
		n += v
	}
	return n
}

// NewProgressStats создаёт обработчик.
func NewProgressStats(logger *slog.Logger) *ProgressStats {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressStats{
		promotions:  make(map[string]int),
		graduations: make(map[string]int),
		declines:    make(map[string]int),
		logger:      logger.With("handler", "progress_stats"),
	}
}

// Register подписывает обработчик на все события.
func (h *ProgressStats) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}

// Handle реализует shared.EventHandler.
func (h *ProgressStats) Handle(event shared.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events++

	switch e := event.(type) {
	case shared.QualificationAttemptedEvent:
		h.rolls++
		if e.Passed {
			h.passes++
		}
	case shared.PractitionerPromotedEvent:
		h.promotions[e.ToRank]++
	case shared.ApprenticeAssignedEvent:
		h.assignments++
	case shared.ApprenticeGraduatedEvent:
		h.graduations[e.Mentor]++
	case shared.RuleDeclinedEvent:
		h.declines[e.Op]++
	case shared.AttributesExchangedEvent:
		h.exchanges++
	default:
		h.logger.Debug("ignoring event", "event_type", event.EventType())
	}
	return nil
}

// Snapshot возвращает копию счётчиков.
func (h *ProgressStats) Snapshot() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Stats{
		Events:      h.events,
		Rolls:       h.rolls,
		Passes:      h.passes,
		Assignments: h.assignments,
		Exchanges:   h.exchanges,
		Promotions:  copyCounts(h.promotions),
		Graduations: copyCounts(h.graduations),
		Declines:    copyCounts(h.declines),
	}
}

// LogSummary пишет итог прогона одной строкой.
func (h *ProgressStats) LogSummary() {
	s := h.Snapshot()
	h.logger.Info("run statistics",
		"events", s.Events,
		"rolls", s.Rolls,
		"pass_rate", s.PassRate(),
		"assignments", s.Assignments,
		"promotions", sortedKeys(s.Promotions),
		"declines", s.TotalDeclines(),
		"exchanges", s.Exchanges,
	)
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
