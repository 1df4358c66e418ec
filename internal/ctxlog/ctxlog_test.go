package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_Default(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWithLogger_RoundTrip(t *testing.T) {
	logger := Discard()
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestNew_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "json", &buf)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown", "module_id", "policy_1")
	assert.Contains(t, buf.String(), `"module_id":"policy_1"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}
