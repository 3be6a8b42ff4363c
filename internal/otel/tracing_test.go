package otel

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protonmc/internal/logging"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	var buf bytes.Buffer

	shutdown, err := Init(context.Background(), logging.New(&buf, time.UTC, logging.LevelInfo))
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tracing_configured", entry["msg"])
	assert.Equal(t, false, entry["tracing_enabled"])
}

func TestInit_UnsupportedProtocolDegrades(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "carrier-pigeon")
	t.Setenv("OTEL_SDK_DISABLED", "")
	var buf bytes.Buffer

	shutdown, err := Init(context.Background(), logging.New(&buf, time.UTC, logging.LevelInfo))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.Contains(t, buf.String(), "tracing_init_failed")
	assert.Contains(t, buf.String(), "unsupported OTLP protocol")
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name, arg string
		want      string
	}{
		{"always_on", "", "AlwaysOnSampler"},
		{"always_off", "", "AlwaysOffSampler"},
		{"traceidratio", "0.5", "TraceIDRatioBased{0.5}"},
		{"traceidratio", "garbage", "AlwaysOnSampler"},
		{"parentbased_traceidratio", "0.25", "ParentBased{root:TraceIDRatioBased{0.25}"},
		{"unknown", "", "ParentBased{root:AlwaysOnSampler"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.arg, func(t *testing.T) {
			assert.Contains(t, sampler(tt.name, tt.arg).Description(), tt.want)
		})
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.1, ratio("0.1"))
	assert.Equal(t, 1.0, ratio("2"))
	assert.Equal(t, 1.0, ratio(""))
}
