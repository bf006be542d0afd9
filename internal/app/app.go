// Package app assembles the inference service from configuration. The HTTP
// server, the Lambda entrypoint and the CLI share it so they serve the same
// checkpoint the same way.
package app

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"momo-intent-backend/internal/checkpoint"
	"momo-intent-backend/internal/config"
	"momo-intent-backend/internal/db"
	"momo-intent-backend/internal/inference"
	"momo-intent-backend/internal/llm"
	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/paramstore"
	"momo-intent-backend/internal/store"
	"momo-intent-backend/internal/types"
	"momo-intent-backend/internal/usecase"
)

type App struct {
	Config     config.Config
	Checkpoint *checkpoint.Checkpoint
	Predictor  inference.Predictor
	Log        store.InteractionLog
	Service    *usecase.PredictService

	closers []func() error
}

// New loads the checkpoint once and builds everything needed to serve it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	ckpt, err := checkpoint.Load(cfg.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", cfg.CheckpointPath, err)
	}
	logger.Infow("checkpoint loaded",
		"path", cfg.CheckpointPath, "kind", ckpt.Kind, "run_id", ckpt.RunID,
		"actions", ckpt.Registry.Len(), "registry_digest", ckpt.Registry.Digest())

	var client inference.ChatCompleter
	if ckpt.Kind == checkpoint.KindGenerator {
		c, err := GeneratorClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = c
	}
	p, err := inference.FromCheckpoint(ckpt, client)
	if err != nil {
		return nil, err
	}
	p = inference.WithTimeout(p, cfg.PredictTimeout)

	a := &App{Config: cfg, Checkpoint: ckpt, Predictor: p}
	log, closer, err := NewInteractionLog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.Log = log

	a.Service, err = usecase.NewPredictService(p, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Health describes what is being served.
func (a *App) Health() types.HealthResponse {
	return types.HealthResponse{
		Status:         "ok",
		Variant:        a.Predictor.Variant(),
		Actions:        a.Checkpoint.Registry.Len(),
		RegistryDigest: a.Checkpoint.Registry.Digest(),
		RunID:          a.Checkpoint.RunID,
	}
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// GeneratorClient builds the client for the generative model endpoint.
func GeneratorClient(ctx context.Context, cfg config.Config) (inference.ChatCompleter, error) {
	opts := llm.Options{
		BaseURL:      cfg.OpenAIBaseURL,
		APIKey:       cfg.OpenAIAPIKey,
		APIKeyParam:  cfg.OpenAIAPIKeyParam,
		TokenURL:     cfg.ModelTokenURL,
		ClientID:     cfg.ModelClientID,
		ClientSecret: cfg.ModelClientSecret,
		Scopes:       cfg.ModelScopes,
	}
	if opts.APIKey == "" && opts.APIKeyParam != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		ps, err := paramstore.New(ssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		opts.Params = ps
	}
	c, err := llm.NewClient(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return c, nil
}

// NewInteractionLog opens the configured interaction store. The returned
// closer may be nil. A store that is selected but not configured degrades to
// discarding interactions.
func NewInteractionLog(ctx context.Context, cfg config.Config) (store.InteractionLog, func() error, error) {
	switch cfg.InteractionStore {
	case config.StoreNone:
		return store.NopLog{}, nil, nil
	case config.StorePostgres:
		if cfg.DatabaseURL == "" {
			logger.Warnf("warning: DB_URL not provided, interactions will not be persisted")
			return store.NopLog{}, nil, nil
		}
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Infof("database connection established")
		if cfg.DBMigrate {
			if err := database.Migrate(ctx); err != nil {
				database.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			logger.Infof("database migrations completed")
		}
		ds, err := store.NewDatabaseStore(database)
		if err != nil {
			database.Close()
			return nil, nil, err
		}
		return ds, database.Close, nil
	case config.StoreDynamo:
		if cfg.DynamoTable == "" {
			logger.Warnf("warning: DYNAMO_TABLE not provided, interactions will not be persisted")
			return store.NopLog{}, nil, nil
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		ds, err := store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
		if err != nil {
			return nil, nil, err
		}
		return ds, nil, nil
	default:
		return store.NewMemoryStore(cfg.RecentInteractions), nil, nil
	}
}
