package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/model"
)

// Interaction store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamodb"
	StoreNone     = "none"
)

type Config struct {
	Port           string
	AllowedOrigin  string
	CheckpointPath string
	PredictTimeout time.Duration
	LogLevel       string
	LogFormat      string

	// OpenAI-compatible model endpoint used by the generative variant
	OpenAIAPIKey      string
	OpenAIAPIKeyParam string
	OpenAIBaseURL     string
	GeneratorModel    string

	// Dialogue cleaning service (Ollama or any OpenAI-compatible server)
	CleanerModel       string
	CleanerBaseURL     string
	CleanerMaxAttempts int
	CleanerRPS         float64

	// Optional OAuth2 client-credentials in front of the model endpoint
	ModelTokenURL     string
	ModelClientID     string
	ModelClientSecret string
	ModelScopes       []string

	// Interaction log
	InteractionStore   string
	DatabaseURL        string
	DBMigrate          bool
	DynamoTable        string
	RecentInteractions int

	// Training defaults, overridable by CLI flags
	Train model.Hyperparameters
}

func Load() Config {
	_ = godotenv.Load()
	def := model.DefaultHyperparameters()
	cfg := Config{
		Port:           getEnvDefault("PORT", "5000"),
		AllowedOrigin:  getEnvDefault("ALLOWED_ORIGIN", "*"),
		CheckpointPath: getEnvDefault("CHECKPOINT_PATH", "data/momo.ckpt"),
		PredictTimeout: getEnvDurationDefault("PREDICT_TIMEOUT", 5*time.Second),
		LogLevel:       getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvDefault("LOG_FORMAT", "console"),

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIAPIKeyParam: os.Getenv("OPENAI_API_KEY_PARAM"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		GeneratorModel:    getEnvDefault("GENERATOR_MODEL", "mistral-7b-instruct"),

		CleanerModel:       getEnvDefault("CLEANER_MODEL", "llama3"),
		CleanerBaseURL:     getEnvDefault("CLEANER_BASE_URL", "http://localhost:11434/v1"),
		CleanerMaxAttempts: getEnvIntDefault("CLEANER_MAX_ATTEMPTS", 3),
		CleanerRPS:         getEnvFloatDefault("CLEANER_RPS", 2),

		ModelTokenURL:     os.Getenv("MODEL_TOKEN_URL"),
		ModelClientID:     os.Getenv("MODEL_CLIENT_ID"),
		ModelClientSecret: os.Getenv("MODEL_CLIENT_SECRET"),
		ModelScopes:       getEnvListDefault("MODEL_SCOPES", nil),

		InteractionStore:   strings.ToLower(getEnvDefault("INTERACTION_STORE", StoreMemory)),
		DatabaseURL:        os.Getenv("DB_URL"),
		DBMigrate:          getEnvBoolDefault("DB_MIGRATE", true),
		DynamoTable:        os.Getenv("DYNAMO_TABLE"),
		RecentInteractions: getEnvIntDefault("RECENT_INTERACTIONS", 200),

		Train: model.Hyperparameters{
			Epochs:       getEnvIntDefault("TRAIN_EPOCHS", def.Epochs),
			LearningRate: getEnvFloatDefault("TRAIN_LEARNING_RATE", def.LearningRate),
			BatchSize:    getEnvIntDefault("TRAIN_BATCH_SIZE", def.BatchSize),
			MaxSeqLen:    getEnvIntDefault("TRAIN_MAX_SEQ_LENGTH", def.MaxSeqLen),
			WeightDecay:  getEnvFloatDefault("TRAIN_WEIGHT_DECAY", def.WeightDecay),
			EvalFraction: getEnvFloatDefault("TRAIN_EVAL_FRACTION", def.EvalFraction),
			Seed:         int64(getEnvIntDefault("TRAIN_SEED", int(def.Seed))),
		},
	}
	return cfg
}

// Warnings lists configuration problems that do not prevent start-up.
func (c Config) Warnings() []string {
	var out []string
	if c.OpenAIAPIKey == "" && c.OpenAIAPIKeyParam == "" && c.OpenAIBaseURL == "" {
		out = append(out, "OPENAI_API_KEY is not set; generative checkpoints cannot be served")
	}
	if c.InteractionStore == StorePostgres && c.DatabaseURL == "" {
		out = append(out, "INTERACTION_STORE=postgres but DB_URL is empty; interactions will not be persisted")
	}
	if c.InteractionStore == StoreDynamo && c.DynamoTable == "" {
		out = append(out, "INTERACTION_STORE=dynamodb but DYNAMO_TABLE is empty; interactions will not be persisted")
	}
	switch c.InteractionStore {
	case StoreMemory, StorePostgres, StoreDynamo, StoreNone:
	default:
		out = append(out, "unknown INTERACTION_STORE "+strconv.Quote(c.InteractionStore)+"; falling back to memory")
	}
	return out
}

// LogWarnings writes Warnings through the logger.
func (c Config) LogWarnings() {
	for _, w := range c.Warnings() {
		logger.Warnf("warning: %s", w)
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvListDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logger.Warnf("config: %s=%q is not an integer, using %d", key, v, def)
	}
	return def
}

func getEnvFloatDefault(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		logger.Warnf("config: %s=%q is not a number, using %g", key, v, def)
	}
	return def
}

// getEnvDurationDefault accepts Go durations ("750ms") or plain seconds ("5").
func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
		logger.Warnf("config: %s=%q is not a duration, using %s", key, v, def)
	}
	return def
}
