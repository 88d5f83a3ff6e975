package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		wantErr bool
	}{
		{"production", "production", "", false},
		{"development", "development", "", false},
		{"test with level override", "test", "warn", false},
		{"unknown environment", "staging-eu", "", true},
		{"invalid level", "development", "loud", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(tt.env, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}

	t.Run("level override is applied", func(t *testing.T) {
		l, err := NewLogger("development", "error")
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
		assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
	})
}

func TestContextLogger(t *testing.T) {
	t.Run("returns nop logger when absent", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("round-trips a stored logger", func(t *testing.T) {
		l := zap.NewExample()
		ctx := ContextWithLogger(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("falls back when absent", func(t *testing.T) {
		fallback := zap.NewExample()
		assert.Same(t, fallback, FromContextOr(context.Background(), fallback))

		stored := zap.NewExample()
		ctx := ContextWithLogger(context.Background(), stored)
		assert.Same(t, stored, FromContextOr(ctx, fallback))
	})
}
