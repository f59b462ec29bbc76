package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles.
// Every flag can be overridden with FEATURE_<NAME>=true|false.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// === Rules ===
	FeatureStrictMentorRanks = "mentorship.strict_mentor_ranks" // only Senior and above may mentor

	// === Output ===
	FeatureStyledOutput = "output.styled" // lipgloss styling on terminals

	// === Transcripts ===
	FeatureTranscriptRedis    = "transcript.redis"    // mirror lines to a Redis list + channel
	FeatureTranscriptPostgres = "transcript.postgres" // store runs and lines in PostgreSQL

	// === Events ===
	FeatureEventsRedis = "events.redis" // publish domain events to Redis
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features: make(map[string]*Feature),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureStrictMentorRanks] = &Feature{
		Name:        FeatureStrictMentorRanks,
		Description: "Restrict mentors to Senior rank and above",
		Enabled:     false,
	}

	ff.features[FeatureStyledOutput] = &Feature{
		Name:        FeatureStyledOutput,
		Description: "Color and emphasis in terminal output",
		Enabled:     true,
	}

	// Remote sinks are opt-in; a run never needs them.
	ff.features[FeatureTranscriptRedis] = &Feature{
		Name:        FeatureTranscriptRedis,
		Description: "Mirror transcript lines to Redis",
		Enabled:     false,
	}

	ff.features[FeatureTranscriptPostgres] = &Feature{
		Name:        FeatureTranscriptPostgres,
		Description: "Store runs and transcripts in PostgreSQL",
		Enabled:     false,
	}

	ff.features[FeatureEventsRedis] = &Feature{
		Name:        FeatureEventsRedis,
		Description: "Publish domain events to a Redis channel",
		Enabled:     false,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false
// Example: FEATURE_TRANSCRIPT_REDIS=true
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "transcript.redis" -> "FEATURE_TRANSCRIPT_REDIS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled. Unknown features are disabled.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// Set enables or disables a feature.
func (ff *FeatureFlags) Set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// EnableFeature enables a feature.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.Set(featureName, true)
}

// DisableFeature disables a feature.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.Set(featureName, false)
}

// GetAllFeatures returns copies of all features sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, v := range ff.features {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// --- Convenience methods for common checks ---

// StrictMentorRanks reports whether mentors must be Senior or above.
func (ff *FeatureFlags) StrictMentorRanks() bool { return ff.IsEnabled(FeatureStrictMentorRanks) }

// StyledOutput reports whether terminal output is styled.
func (ff *FeatureFlags) StyledOutput() bool { return ff.IsEnabled(FeatureStyledOutput) }

// RedisTranscript reports whether lines are mirrored to Redis.
func (ff *FeatureFlags) RedisTranscript() bool { return ff.IsEnabled(FeatureTranscriptRedis) }

// PostgresTranscript reports whether runs are stored in PostgreSQL.
func (ff *FeatureFlags) PostgresTranscript() bool { return ff.IsEnabled(FeatureTranscriptPostgres) }

// RedisEvents reports whether domain events go to Redis.
func (ff *FeatureFlags) RedisEvents() bool { return ff.IsEnabled(FeatureEventsRedis) }

// NeedsRedis reports whether any Redis-backed feature is on.
func (ff *FeatureFlags) NeedsRedis() bool {
	return ff.RedisTranscript() || ff.RedisEvents()
}

// --- Errors ---

var (
	ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
