package checkpoint

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"momo-intent-backend/internal/labels"
	"momo-intent-backend/internal/model"
)

func testRegistry(t *testing.T) *labels.Registry {
	t.Helper()
	reg, err := labels.FromActions([]string{"Check balance", "Pay bill", "Send money"})
	require.NoError(t, err)
	return reg
}

func TestSaveLoad(t *testing.T) {
	reg := testRegistry(t)
	acc := 0.9
	ckpt, err := New(model.KindSoftmax, reg, model.DefaultHyperparameters(), Metrics{
		TrainExamples: 8, EvalExamples: 2, EvalAccuracy: &acc,
		ActionCounts: map[string]int{"Send money": 10},
	}, json.RawMessage(`{"w":[1,2]}`))
	require.NoError(t, err)
	_, err = uuid.Parse(ckpt.RunID)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "momo.ckpt")
	require.NoError(t, ckpt.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ckpt.RunID, back.RunID)
	require.Equal(t, model.KindSoftmax, back.Kind)
	require.True(t, ckpt.CreatedAt.Equal(back.CreatedAt))
	require.Equal(t, reg.Serialize(), back.Registry.Serialize())
	require.Equal(t, ckpt.Hyperparameters, back.Hyperparameters)
	require.Equal(t, ckpt.Metrics, back.Metrics)
	require.JSONEq(t, `{"w":[1,2]}`, string(back.Model))
}

func TestDecode_DetectsTamperedRegistry(t *testing.T) {
	ckpt, err := New(KindGenerator, testRegistry(t), model.DefaultHyperparameters(), Metrics{}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ckpt.Encode(&buf))
	plain, err := readPlain(buf.Bytes())
	require.NoError(t, err)

	// swap two indices inside the embedded registry text
	tampered := strings.Replace(plain, `\"Pay bill\": 1`, `\"Pay bill\": 9`, 1)
	require.NotEqual(t, plain, tampered)
	_, err = Decode(bytes.NewReader(writePlain(t, tampered)))
	require.ErrorIs(t, err, ErrRegistryMismatch)
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	_, err := Decode(bytes.NewReader(writePlain(t, `{"version":99}`)))
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode(strings.NewReader("not a checkpoint"))
	require.Error(t, err)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.ckpt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(model.KindSoftmax, nil, model.DefaultHyperparameters(), Metrics{}, nil)
	require.Error(t, err)
	_, err = New("", testRegistry(t), model.DefaultHyperparameters(), Metrics{}, nil)
	require.Error(t, err)
}

func readPlain(b []byte) (string, error) {
	var out bytes.Buffer
	if _, err := out.ReadFrom(snappy.NewReader(bytes.NewReader(b))); err != nil {
		return "", err
	}
	return out.String(), nil
}

func writePlain(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}
