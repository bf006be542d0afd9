package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"momo-intent-backend/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "PREDICT_TIMEOUT", "INTERACTION_STORE", "MODEL_SCOPES", "DB_MIGRATE",
		"TRAIN_EPOCHS", "TRAIN_LEARNING_RATE", "TRAIN_BATCH_SIZE", "TRAIN_MAX_SEQ_LENGTH",
		"TRAIN_WEIGHT_DECAY", "TRAIN_EVAL_FRACTION", "TRAIN_SEED",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	require.Equal(t, "5000", cfg.Port)
	require.Equal(t, 5*time.Second, cfg.PredictTimeout)
	require.Equal(t, StoreMemory, cfg.InteractionStore)
	require.True(t, cfg.DBMigrate)
	require.Nil(t, cfg.ModelScopes)
	require.Equal(t, model.DefaultHyperparameters(), cfg.Train)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PREDICT_TIMEOUT", "750ms")
	t.Setenv("INTERACTION_STORE", "DynamoDB")
	t.Setenv("DYNAMO_TABLE", "momo-interactions")
	t.Setenv("MODEL_SCOPES", "infer, ,admin")
	t.Setenv("DB_MIGRATE", "off")
	t.Setenv("TRAIN_EPOCHS", "12")
	t.Setenv("TRAIN_LEARNING_RATE", "0.05")
	t.Setenv("TRAIN_SEED", "7")

	cfg := Load()
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 750*time.Millisecond, cfg.PredictTimeout)
	require.Equal(t, StoreDynamo, cfg.InteractionStore)
	require.Equal(t, []string{"infer", "admin"}, cfg.ModelScopes)
	require.False(t, cfg.DBMigrate)
	require.Equal(t, 12, cfg.Train.Epochs)
	require.Equal(t, 0.05, cfg.Train.LearningRate)
	require.Equal(t, int64(7), cfg.Train.Seed)
	require.Empty(t, cfg.Warnings())
}

func TestEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "many")
	t.Setenv("X_FLOAT", "lots")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_SECS", "2.5")
	t.Setenv("X_BOOL", "maybe")

	require.Equal(t, 3, getEnvIntDefault("X_INT", 3))
	require.Equal(t, 1.5, getEnvFloatDefault("X_FLOAT", 1.5))
	require.Equal(t, time.Second, getEnvDurationDefault("X_DUR", time.Second))
	require.Equal(t, 2500*time.Millisecond, getEnvDurationDefault("X_SECS", time.Second))
	require.True(t, getEnvBoolDefault("X_BOOL", true))
}

func TestWarnings(t *testing.T) {
	cfg := Config{InteractionStore: StorePostgres}
	w := cfg.Warnings()
	require.Len(t, w, 2)
	require.Contains(t, w[0], "OPENAI_API_KEY")
	require.Contains(t, w[1], "DB_URL")

	cfg = Config{InteractionStore: "redis", OpenAIAPIKey: "k"}
	w = cfg.Warnings()
	require.Len(t, w, 1)
	require.Contains(t, w[0], "unknown INTERACTION_STORE")

	cfg = Config{InteractionStore: StoreNone, OpenAIBaseURL: "http://localhost:11434/v1"}
	require.Empty(t, cfg.Warnings())
}
