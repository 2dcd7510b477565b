package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestTraceLevel(t *testing.T) {
	assert.Less(t, TraceLevel, zapcore.DebugLevel)
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"trace", TraceLevel},
		{"TRACE", TraceLevel},
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := LevelFromString("verbose")
	assert.Error(t, err)
}

type levelRecorder struct {
	zapcore.PrimitiveArrayEncoder
	got string
}

func (r *levelRecorder) AppendString(s string) { r.got = s }

func TestLevelEncoder(t *testing.T) {
	rec := &levelRecorder{}
	levelEncoder(TraceLevel, rec)
	assert.Equal(t, "trace", rec.got)

	levelEncoder(zapcore.WarnLevel, rec)
	assert.Equal(t, "warn", rec.got)
}
