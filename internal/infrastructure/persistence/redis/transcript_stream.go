package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/lineage/internal/domain/shared"
)

// Commander is the subset of the go-redis client used by this package.
// *redis.Client satisfies it.
type Commander interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

var _ Commander = (*redis.Client)(nil)

// StreamedLine is the JSON form of a transcript line.
type StreamedLine struct {
	Seq     int    `json:"seq"`
	Kind    string `json:"kind"`
	Subject string `json:"subject,omitempty"`
	Text    string `json:"text"`
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT STREAM
// ══════════════════════════════════════════════════════════════════════════════

// TranscriptStream appends every line of one run to a Redis list and
// publishes it to the run's channel. It implements shared.Sink.
type TranscriptStream struct {
	client Commander
	runID  string
	ttl    time.Duration

	mu  sync.Mutex
	seq int
}

// NewTranscriptStream creates a stream for runID.
func NewTranscriptStream(client Commander, runID string) (*TranscriptStream, error) {
	if runID == "" {
		return nil, ErrEmptyRunID
	}
	return &TranscriptStream{client: client, runID: runID, ttl: TTLTranscript}, nil
}

// Emit implements shared.Sink.
func (s *TranscriptStream) Emit(ctx context.Context, line shared.Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq + 1
	data, err := json.Marshal(StreamedLine{
		Seq:     seq,
		Kind:    string(line.Kind),
		Subject: line.Subject,
		Text:    line.Text,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	key := TranscriptKey(s.runID)
	if err := s.client.RPush(ctx, key, string(data)).Err(); err != nil {
		return fmt.Errorf("redis: append line %d: %w", seq, err)
	}
	s.seq = seq

	// The first line sets the expiry for the whole list.
	if seq == 1 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis: expire transcript: %w", err)
		}
	}

	if err := s.client.Publish(ctx, TranscriptChannel(s.runID), string(data)).Err(); err != nil {
		return fmt.Errorf("redis: publish line %d: %w", seq, err)
	}
	return nil
}

// Written returns how many lines were appended.
func (s *TranscriptStream) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Replay reads back the stored lines of a run in order.
func Replay(ctx context.Context, client Commander, runID string) ([]StreamedLine, error) {
	raw, err := client.LRange(ctx, TranscriptKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read transcript: %w", err)
	}

	lines := make([]StreamedLine, 0, len(raw))
	for _, item := range raw {
		var l StreamedLine
		if err := json.Unmarshal([]byte(item), &l); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RUN SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

// RunSummary describes a finished run.
type RunSummary struct {
	Scenario string
	Seed     int64
	Steps    int
	Declined int
	Status   string
}

// RunSummaries stores run summaries as hashes.
type RunSummaries struct {
	client Commander
	ttl    time.Duration
}

// NewRunSummaries creates a summary store.
func NewRunSummaries(client Commander) *RunSummaries {
	return &RunSummaries{client: client, ttl: TTLTranscript}
}

// Save writes the summary of runID.
func (r *RunSummaries) Save(ctx context.Context, runID string, sum RunSummary) error {
	key := RunKey(runID)
	err := r.client.HSet(ctx, key,
		"scenario", sum.Scenario,
		"seed", strconv.FormatInt(sum.Seed, 10),
		"steps", strconv.Itoa(sum.Steps),
		"declined", strconv.Itoa(sum.Declined),
		"status", sum.Status,
	).Err()
	if err != nil {
		return fmt.Errorf("redis: save run summary: %w", err)
	}
	return r.client.Expire(ctx, key, r.ttl).Err()
}

// Load reads the summary of runID. ok is false when nothing is stored.
func (r *RunSummaries) Load(ctx context.Context, runID string) (sum RunSummary, ok bool, err error) {
	fields, err := r.client.HGetAll(ctx, RunKey(runID)).Result()
	if err != nil {
		return RunSummary{}, false, fmt.Errorf("redis: load run summary: %w", err)
	}
	if len(fields) == 0 {
		return RunSummary{}, false, nil
	}

	sum.Scenario = fields["scenario"]
	sum.Status = fields["status"]
	if sum.Seed, err = strconv.ParseInt(fields["seed"], 10, 64); err != nil {
		return RunSummary{}, false, fmt.Errorf("%w: seed: %v", ErrSerialization, err)
	}
	if sum.Steps, err = strconv.Atoi(fields["steps"]); err != nil {
		return RunSummary{}, false, fmt.Errorf("%w: steps: %v", ErrSerialization, err)
	}
	if sum.Declined, err = strconv.Atoi(fields["declined"]); err != nil {
		return RunSummary{}, false, fmt.Errorf("%w: declined: %v", ErrSerialization, err)
	}
	return sum, true, nil
}
