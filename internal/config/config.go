package config

import (
	"strings"
	"time"

	"github.com/scriptwell/scriptwell-backend/internal/platform/envutil"
)

// Config is constructed once at startup and passed through constructors.
// Nothing reads the environment after Load returns.
type Config struct {
	// Staleness thresholds.
	OutlineStaleThreshold   int
	CharacterStaleThreshold int

	// Script state machine thresholds.
	EmptyToPartialMinScenes    int
	EmptyToPartialMinPages     int
	PartialToAnalyzedMinScenes int
	PartialToAnalyzedMinPages  int

	// Conversation compression.
	ConversationSummaryMessageThreshold int

	// Prompt token budgets.
	BudgetQuickTokens    int
	BudgetStandardTokens int
	BudgetDeepTokens     int

	// Job deadlines.
	IngestionJobTimeout time.Duration
	RefreshJobTimeout   time.Duration

	// Bounded parallelism.
	SummaryConcurrency   int
	SheetConcurrency     int
	EmbeddingBatchSize   int
	CRDTCompactThreshold int

	// External endpoints / credentials.
	PostgresDSN string
	RedisAddr   string

	// HTTP surface.
	HTTPPort           string
	JWTSecret          string
	CORSAllowedOrigins []string

	// Runtime mode, "dev" or "prod". Drives logger encoding.
	AppEnv string
}

func Load() Config {
	return Config{
		OutlineStaleThreshold:   envutil.Int("OUTLINE_STALE_THRESHOLD", 5),
		CharacterStaleThreshold: envutil.Int("CHARACTER_STALE_THRESHOLD", 3),

		EmptyToPartialMinScenes:    envutil.Int("EMPTY_TO_PARTIAL_MIN_SCENES", 3),
		EmptyToPartialMinPages:     envutil.Int("EMPTY_TO_PARTIAL_MIN_PAGES", 10),
		PartialToAnalyzedMinScenes: envutil.Int("PARTIAL_TO_ANALYZED_MIN_SCENES", 30),
		PartialToAnalyzedMinPages:  envutil.Int("PARTIAL_TO_ANALYZED_MIN_PAGES", 60),

		ConversationSummaryMessageThreshold: envutil.Int("CONVERSATION_SUMMARY_MESSAGE_THRESHOLD", 15),

		BudgetQuickTokens:    envutil.Int("BUDGET_QUICK_TOKENS", 1200),
		BudgetStandardTokens: envutil.Int("BUDGET_STANDARD_TOKENS", 5000),
		BudgetDeepTokens:     envutil.Int("BUDGET_DEEP_TOKENS", 20000),

		IngestionJobTimeout: envutil.Duration("INGESTION_JOB_TIMEOUT", 10*time.Minute),
		RefreshJobTimeout:   envutil.Duration("REFRESH_JOB_TIMEOUT", 5*time.Minute),

		SummaryConcurrency:   envutil.Int("SUMMARY_CONCURRENCY", 8),
		SheetConcurrency:     envutil.Int("SHEET_CONCURRENCY", 4),
		EmbeddingBatchSize:   envutil.Int("EMBEDDING_BATCH_SIZE", 96),
		CRDTCompactThreshold: envutil.Int("CRDT_COMPACT_THRESHOLD", 100),

		PostgresDSN: envutil.String("POSTGRES_DSN", ""),
		RedisAddr:   envutil.String("REDIS_ADDR", "localhost:6379"),

		HTTPPort:           envutil.String("HTTP_PORT", "8080"),
		JWTSecret:          envutil.String("JWT_SECRET", ""),
		CORSAllowedOrigins: strings.Split(envutil.String("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"), ","),

		AppEnv: envutil.String("APP_ENV", "dev"),
	}
}
