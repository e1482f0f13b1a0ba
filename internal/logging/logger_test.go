package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithService("test-service"))

	logger.Info("image fetched", "source", "drive", "count", 25)

	var e map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "test-service", e["service"])
	assert.Equal(t, "image fetched", e["message"])

	fields, ok := e["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "drive", fields["source"])
	assert.Equal(t, float64(25), fields["count"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("visible")
	logger.Error("visible too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf), WithLevel(LevelError))

	logger.Info("hidden")
	logger.SetLevel(LevelDebug)
	logger.Debug("visible")

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestLogger_CorrelationIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WithOutput(&buf))

	ctx := WithCorrelationID(context.Background(), "abc-123")
	logger.InfoCtx(ctx, "upload complete")

	var e map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "abc-123", e["correlation_id"])
}

func TestCorrelationID_Missing(t *testing.T) {
	assert.Equal(t, "", CorrelationID(context.Background()))
	assert.NotEmpty(t, NewCorrelationID())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
}
