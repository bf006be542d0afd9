// Package llm builds OpenAI-compatible chat clients for the generative
// predictor and the dialogue cleaner. The same client works against the
// OpenAI API, Ollama and vLLM servers by overriding the base URL.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2/clientcredentials"

	"momo-intent-backend/internal/logger"
	"momo-intent-backend/internal/paramstore"
)

const defaultTimeout = 60 * time.Second

// Options describe how to reach and authenticate against a model endpoint.
type Options struct {
	BaseURL string
	APIKey  string
	// APIKeyParam names an SSM parameter holding the key. Used only when
	// APIKey is empty; requires Params.
	APIKeyParam string
	Params      paramstore.Getter

	// OAuth2 client-credentials, used when TokenURL is set.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	Timeout time.Duration
}

// NewClient resolves credentials and returns a ready client. Endpoints that
// need no key (a local Ollama) are allowed when BaseURL is set.
func NewClient(ctx context.Context, opts Options) (*openai.Client, error) {
	key, err := resolveAPIKey(ctx, opts)
	if err != nil {
		return nil, err
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if key == "" && baseURL == "" && opts.TokenURL == "" {
		return nil, errors.New("llm: no API key, base URL or token URL configured")
	}

	cfg := openai.DefaultConfig(key)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = httpClient(ctx, opts)
	return openai.NewClientWithConfig(cfg), nil
}

func resolveAPIKey(ctx context.Context, opts Options) (string, error) {
	if k := strings.TrimSpace(opts.APIKey); k != "" {
		return k, nil
	}
	if strings.TrimSpace(opts.APIKeyParam) == "" {
		return "", nil
	}
	if opts.Params == nil {
		return "", fmt.Errorf("llm: api key parameter %q set without a parameter store", opts.APIKeyParam)
	}
	k, err := paramstore.Secret(ctx, opts.Params, opts.APIKeyParam)
	if err != nil {
		return "", fmt.Errorf("llm: resolve api key: %w", err)
	}
	return k, nil
}

func httpClient(ctx context.Context, opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if strings.TrimSpace(opts.TokenURL) == "" {
		return &http.Client{Timeout: timeout}
	}
	cc := clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		Scopes:       opts.Scopes,
	}
	logger.Debugw("model endpoint uses oauth2 client credentials", "token_url", opts.TokenURL)
	// The token source outlives the call that built it.
	c := cc.Client(context.WithoutCancel(ctx))
	c.Timeout = timeout
	return c
}
