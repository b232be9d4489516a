package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/felicita/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	tp, err := NewTracerProvider(ctx, TracingConfig{ServiceName: "fiscal-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("fiscal"))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestTracingConfigFrom(t *testing.T) {
	cfg := TracingConfigFrom(config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		ServiceName:       "fiscal-core",
		SamplingRatio:     0.25,
		ExportInterval:    time.Minute,
	})
	assert.Equal(t, TracingConfig{
		Enabled:           true,
		CollectorEndpoint: "otel:4317",
		SamplingRatio:     0.25,
		ServiceName:       "fiscal-core",
	}, cfg)
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		root  sdktrace.Sampler
	}{
		{1, sdktrace.AlwaysSample()},
		{2, sdktrace.AlwaysSample()},
		{0, sdktrace.NeverSample()},
		{-1, sdktrace.NeverSample()},
		{0.5, sdktrace.TraceIDRatioBased(0.5)},
	}
	for _, tt := range tests {
		want := sdktrace.ParentBased(tt.root).Description()
		assert.Equal(t, want, samplerFor(tt.ratio).Description(), "ratio %v", tt.ratio)
	}
}

func TestServiceResource(t *testing.T) {
	res, err := serviceResource("fiscal-test")
	require.NoError(t, err)

	attrs := make(map[string]string)
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "fiscal-test", attrs["service.name"])
	assert.NotEmpty(t, attrs["service.version"])
}
