// Package paramstore reads secrets (model API keys, client secrets) from AWS
// SSM Parameter Store.
package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client satisfies it.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter is what consumers depend on instead of *Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client resolves decrypted parameter values and caches successful lookups
// for the lifetime of the process. Failed lookups are retried on the next
// call.
type Client struct {
	api ssmAPI

	mu    sync.Mutex
	cache map[string]string
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api, cache: make(map[string]string)}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c == nil || c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	c.mu.Lock()
	if v, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", name)
	}
	v := *out.Parameter.Value

	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[string]string)
	}
	c.cache[name] = v
	c.mu.Unlock()
	return v, nil
}

// Secret fetches name and unwraps it. Values stored as a JSON object
// {"token": "..."} yield the token; anything else is returned trimmed.
func Secret(ctx context.Context, g Getter, name string) (string, error) {
	if g == nil {
		return "", errors.New("paramstore: getter must not be nil")
	}
	raw, err := g.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var tp struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal([]byte(raw), &tp); err != nil {
			return "", fmt.Errorf("paramstore: unmarshal %q as JSON: %w", name, err)
		}
		raw = strings.TrimSpace(tp.Token)
	}
	if raw == "" {
		return "", fmt.Errorf("paramstore: secret %q is empty", name)
	}
	return raw, nil
}
