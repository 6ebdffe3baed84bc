package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/flashstudy/internal/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.Level
	}{
		{"debug", logger.DEBUG},
		{"INFO", logger.INFO},
		{"warning", logger.WARN},
		{"Warn", logger.WARN},
		{"error", logger.ERROR},
		{"nonsense", logger.INFO},
		{"", logger.INFO},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.ParseLevel(tt.in))
		})
	}
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithLevel(logger.WARN), logger.WithColors(false))

	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Warn("visible warn %d", 1)
	log.Error("visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warn 1")
	assert.Contains(t, out, "visible error")
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithJSON(true), logger.WithPrefix("study"))

	log.WithFields(map[string]any{"card_id": 7, "outcome": "good"}).Info("review recorded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "review recorded", entry["msg"])
	assert.Equal(t, "study", entry["logger"])
	assert.Equal(t, float64(7), entry["card_id"])
	assert.Equal(t, "good", entry["outcome"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithColors(false)).WithField("request_id", "abc")

	ctx := logger.NewContext(context.Background(), log)
	logger.FromContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), "abc")
	assert.Same(t, logger.Default(), logger.FromContext(context.Background()))
}
