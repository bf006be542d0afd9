package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	getOut *ssm.GetParameterOutput
	getErr error
	calls  int
	last   *ssm.GetParameterInput
}

func (f *fakeAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	f.last = in
	return f.getOut, f.getErr
}

func strPtr(s string) *string { return &s }

func valueOut(v string) *ssm.GetParameterOutput {
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p"), Value: strPtr(v)}}
}

func TestGetParameter_DecryptsAndCaches(t *testing.T) {
	api := &fakeAPI{getOut: valueOut("sk-123")}
	client, err := New(api)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err := client.GetParameter(context.Background(), " /momo/openai ")
		require.NoError(t, err)
		require.Equal(t, "sk-123", v)
	}
	require.Equal(t, 1, api.calls)
	require.Equal(t, "/momo/openai", *api.last.Name)
	require.True(t, *api.last.WithDecryption)
}

func TestGetParameter_ErrorsAreNotCached(t *testing.T) {
	api := &fakeAPI{getErr: errors.New("boom")}
	client, err := New(api)
	require.NoError(t, err)

	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "boom")

	api.getErr = nil
	api.getOut = valueOut("v")
	v, err := client.GetParameter(context.Background(), "p")
	require.NoError(t, err)
	require.Equal(t, "v", v)
	require.Equal(t, 2, api.calls)
}

func TestGetParameter_MissingValue(t *testing.T) {
	api := &fakeAPI{getOut: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: strPtr("p")}}}
	client, err := New(api)
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "missing value")
}

func TestGetParameter_InvalidUse(t *testing.T) {
	_, err := (&Client{}).GetParameter(context.Background(), "p")
	require.ErrorContains(t, err, "not initialized")

	client, err := New(&fakeAPI{})
	require.NoError(t, err)
	_, err = client.GetParameter(context.Background(), "  ")
	require.ErrorContains(t, err, "required")

	_, err = New(nil)
	require.ErrorContains(t, err, "must not be nil")
}

type mapGetter map[string]string

func (m mapGetter) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestSecret(t *testing.T) {
	g := mapGetter{
		"plain":      " sk-plain\n",
		"json":       `{"token":"sk-json"}`,
		"empty-json": `{"token":""}`,
		"bad-json":   `{"token":`,
	}
	ctx := context.Background()

	v, err := Secret(ctx, g, "plain")
	require.NoError(t, err)
	require.Equal(t, "sk-plain", v)

	v, err = Secret(ctx, g, "json")
	require.NoError(t, err)
	require.Equal(t, "sk-json", v)

	_, err = Secret(ctx, g, "empty-json")
	require.ErrorContains(t, err, "empty")
	_, err = Secret(ctx, g, "bad-json")
	require.Error(t, err)
	_, err = Secret(ctx, g, "missing")
	require.Error(t, err)
	_, err = Secret(ctx, nil, "plain")
	require.Error(t, err)
}
