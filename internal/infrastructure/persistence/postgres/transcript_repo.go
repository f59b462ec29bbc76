package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/lineage/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUNS
// ══════════════════════════════════════════════════════════════════════════════

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is one row of simulation_runs.
type RunRecord struct {
	ID         string
	Scenario   string
	Seed       int64
	Status     RunStatus
	Steps      int
	Declined   int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// RunRepository records the start and end of simulation runs.
type RunRepository struct {
	db Querier
}

// NewRunRepository creates a run repository.
func NewRunRepository(db Querier) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a run in the running state.
func (r *RunRepository) Start(ctx context.Context, runID, scenario string, seed int64) error {
	const query = `
		INSERT INTO simulation_runs (id, scenario, seed, status)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.Exec(ctx, query, runID, scenario, seed, string(RunRunning)); err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("postgres", "StartRun", shared.ErrAlreadyExists, "run already recorded", err)
		}
		return fmt.Errorf("postgres: start run: %w", err)
	}
	return nil
}

// Finish marks a run completed or failed and stores its counters.
func (r *RunRepository) Finish(ctx context.Context, runID string, status RunStatus, steps, declined int) error {
	const query = `
		UPDATE simulation_runs
		SET status = $2, steps = $3, declined = $4, finished_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, runID, string(status), steps, declined)
	if err != nil {
		return fmt.Errorf("postgres: finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("postgres", "FinishRun", shared.ErrNotFound, "run not found")
	}
	return nil
}

// Get loads one run.
func (r *RunRepository) Get(ctx context.Context, runID string) (*RunRecord, error) {
	const query = `
		SELECT id, scenario, seed, status, steps, declined, started_at, finished_at
		FROM simulation_runs
		WHERE id = $1
	`
	var (
		rec    RunRecord
		status string
	)
	err := r.db.QueryRow(ctx, query, runID).Scan(
		&rec.ID, &rec.Scenario, &rec.Seed, &status, &rec.Steps, &rec.Declined, &rec.StartedAt, &rec.FinishedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("postgres", "GetRun", shared.ErrNotFound, "run not found")
		}
		return nil, fmt.Errorf("postgres: get run: %w", err)
	}
	rec.Status = RunStatus(status)
	return &rec, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT
// ══════════════════════════════════════════════════════════════════════════════

// TranscriptRepository appends the lines of one run to transcript_lines.
// It implements shared.Sink.
type TranscriptRepository struct {
	db    Querier
	runID string

	mu  sync.Mutex
	seq int
}

// NewTranscriptRepository creates a transcript writer for runID.
func NewTranscriptRepository(db Querier, runID string) *TranscriptRepository {
	return &TranscriptRepository{db: db, runID: runID}
}

// Emit implements shared.Sink. Sequence numbers start at 1 and are only
// consumed by successful inserts.
func (r *TranscriptRepository) Emit(ctx context.Context, line shared.Line) error {
	const query = `
		INSERT INTO transcript_lines (run_id, seq, kind, subject, body)
		VALUES ($1, $2, $3, $4, $5)
	`

	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.seq + 1
	if _, err := r.db.Exec(ctx, query, r.runID, seq, string(line.Kind), line.Subject, line.Text); err != nil {
		return fmt.Errorf("postgres: insert transcript line %d: %w", seq, err)
	}
	r.seq = seq
	return nil
}

// Written returns how many lines were stored.
func (r *TranscriptRepository) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Lines loads the transcript of a run in emission order.
func (r *TranscriptRepository) Lines(ctx context.Context, runID string) ([]shared.Line, error) {
	const query = `
		SELECT kind, subject, body
		FROM transcript_lines
		WHERE run_id = $1
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: query transcript: %w", err)
	}
	defer rows.Close()

	var lines []shared.Line
	for rows.Next() {
		var kind string
		var line shared.Line
		if err := rows.Scan(&kind, &line.Subject, &line.Text); err != nil {
			return nil, fmt.Errorf("postgres: scan transcript line: %w", err)
		}
		line.Kind = shared.LineKind(kind)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOG
// ══════════════════════════════════════════════════════════════════════════════

// EventStore writes domain events to domain_events. Handle is a
// shared.EventHandler and is subscribed to the bus.
type EventStore struct {
	db      Querier
	runID   string
	timeout time.Duration
}

// NewEventStore creates an event store for runID.
func NewEventStore(db Querier, runID string) *EventStore {
	return &EventStore{db: db, runID: runID, timeout: 3 * time.Second}
}

// Handle stores one event.
func (s *EventStore) Handle(event shared.Event) error {
	const query = `
		INSERT INTO domain_events (run_id, event_type, aggregate_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("postgres: marshal event payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err = s.db.Exec(ctx, query, s.runID, string(event.EventType()), event.AggregateID(), payload, event.OccurredAt())
	if err != nil {
		return fmt.Errorf("postgres: insert event %s: %w", event.EventType(), err)
	}
	return nil
}
