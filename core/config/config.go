package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"basegraph.app/scribe/core/db"
)

type Config struct {
	OTel         OTelConfig
	Redis        RedisConfig
	SummaryLLM   LLMConfig
	Summary      SummaryConfig
	Segmentation SegmentationConfig
	Env          string
	Port         string
	NodeID       int64
	DB           db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64 // fraction of root traces kept, 1 keeps all
	Environment    string
}

type RedisConfig struct {
	URL               string
	IngestStream      string
	IngestGroup       string
	IngestConsumer    string
	IngestDLQStream   string
	EventStreamPrefix string
	EventStreamMaxLen int64
	TraceHeaderName   string
	MaxAttempts       int
	ReclaimInterval   time.Duration
	ReclaimMinIdle    time.Duration
}

type LLMConfig struct {
	Provider        string // only "openai" is supported
	APIKey          string
	BaseURL         string // Optional: for OpenAI-compatible endpoints
	Model           string
	MaxTokens       int
	ReasoningEffort string
}

// SummaryConfig drives the periodic room summarizer.
type SummaryConfig struct {
	Interval time.Duration
	Window   int // number of most recent segments sent to the model
}

// SegmentationConfig holds the service-wide defaults for the six tunables.
// Rooms may override any of them at creation time.
type SegmentationConfig struct {
	PauseBoundaryMs      int64
	MergeGapMs           int64
	MaxChars             int
	MaxWords             int
	MaxDurationMs        int64
	TopicShiftConfidence float64
}

// Load loads configuration from environment variables.
// In development, it loads .env.server and falls back to .env.
func Load() (Config, error) {
	if getEnv("SCRIBE_ENV", "development") == "development" {
		if err := godotenv.Load(".env.server"); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:    getEnv("SCRIBE_ENV", "development"),
		Port:   getEnv("PORT", "8080"),
		NodeID: int64(getEnvInt("SNOWFLAKE_NODE_ID", 1)),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "scribe"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
			Environment:    getEnv("SCRIBE_ENV", "development"),
		},
		Redis: RedisConfig{
			URL:               getEnv("REDIS_URL", ""),
			IngestStream:      getEnv("REDIS_INGEST_STREAM", "scribe_utterances"),
			IngestGroup:       getEnv("REDIS_INGEST_GROUP", "scribe_group"),
			IngestConsumer:    getEnv("REDIS_INGEST_CONSUMER", "scribe-server"),
			IngestDLQStream:   getEnv("REDIS_INGEST_DLQ_STREAM", "scribe_utterances_dlq"),
			EventStreamPrefix: getEnv("REDIS_EVENT_STREAM_PREFIX", "room-events"),
			EventStreamMaxLen: int64(getEnvInt("REDIS_EVENT_STREAM_MAXLEN", 5000)),
			TraceHeaderName:   getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
			MaxAttempts:       getEnvInt("INGEST_MAX_ATTEMPTS", 3),
			ReclaimInterval:   getEnvDuration("INGEST_RECLAIM_INTERVAL", 30*time.Second),
			ReclaimMinIdle:    getEnvDuration("INGEST_RECLAIM_MIN_IDLE", 2*time.Minute),
		},
		SummaryLLM: LLMConfig{
			Provider:        getEnv("SUMMARY_LLM_PROVIDER", "openai"),
			APIKey:          getEnv("SUMMARY_LLM_API_KEY", ""),
			BaseURL:         getEnv("SUMMARY_LLM_BASE_URL", ""),
			Model:           getEnv("SUMMARY_LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:       getEnvInt("SUMMARY_LLM_MAX_TOKENS", 1024),
			ReasoningEffort: getEnv("SUMMARY_LLM_REASONING_EFFORT", ""),
		},
		Summary: SummaryConfig{
			Interval: getEnvDuration("SUMMARY_INTERVAL", 20*time.Second),
			Window:   getEnvInt("SUMMARY_WINDOW", 40),
		},
		Segmentation: SegmentationConfig{
			PauseBoundaryMs:      int64(getEnvInt("PAUSE_BOUNDARY_MS", 2000)),
			MergeGapMs:           int64(getEnvInt("MERGE_GAP_MS", 1200)),
			MaxChars:             getEnvInt("MAX_CHARS", 280),
			MaxWords:             getEnvInt("MAX_WORDS", 35),
			MaxDurationMs:        int64(getEnvInt("MAX_DURATION_MS", 12000)),
			TopicShiftConfidence: getEnvFloat("TOPIC_SHIFT_CONFIDENCE", 0.60),
		},
	}

	if err := cfg.Segmentation.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && c.Provider == "openai"
}

func (c SummaryConfig) Enabled() bool {
	return c.Interval > 0 && c.Window > 0
}

// Validate rejects thresholds that would make every utterance its own segment
// or that fall outside the confidence range.
func (c SegmentationConfig) Validate() error {
	if c.PauseBoundaryMs <= 0 || c.MergeGapMs <= 0 || c.MaxDurationMs <= 0 {
		return fmt.Errorf("PAUSE_BOUNDARY_MS, MERGE_GAP_MS and MAX_DURATION_MS must be positive")
	}
	if c.MaxChars <= 0 || c.MaxWords <= 0 {
		return fmt.Errorf("MAX_CHARS and MAX_WORDS must be positive")
	}
	if c.TopicShiftConfidence < 0 || c.TopicShiftConfidence > 1 {
		return fmt.Errorf("TOPIC_SHIFT_CONFIDENCE must be within [0, 1], got %v", c.TopicShiftConfidence)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
