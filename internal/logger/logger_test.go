package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		" error ": zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), "level=%q", in)
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	before := L()
	Init("debug", "json")
	t.Cleanup(func() { Init("info", "console") })
	require.NotSame(t, before, L())
	require.True(t, L().Desugar().Core().Enabled(zapcore.DebugLevel))
}
