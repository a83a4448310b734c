package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type recordExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *recordExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}
	return nil
}

func (e *recordExporter) Shutdown(context.Context) error   { return nil }
func (e *recordExporter) ForceFlush(context.Context) error { return nil }

func (e *recordExporter) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.bodies...)
}

func TestSetupInstallsProviders(t *testing.T) {
	ctx := context.Background()
	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	logs := &recordExporter{}

	tel, err := Setup(ctx, Config{ServiceName: "keel-test"},
		WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(spans)),
		WithMetricReader(reader),
		WithLogProcessor(sdklog.NewSimpleProcessor(logs)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	_, span := otel.Tracer("test").Start(ctx, "op")
	span.End()

	got := spans.GetSpans()
	require.Len(t, got, 1)
	assert.Equal(t, "op", got[0].Name)
	name, ok := got[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "keel-test", name.AsString())

	counter, err := otel.Meter("test").Int64Counter("test.count")
	require.NoError(t, err)
	counter.Add(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	tel.Logger.InfoContext(ctx, "hello")
	assert.Equal(t, []string{"hello"}, logs.snapshot())
}

func TestSetupInstallsPropagator(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, Config{ServiceName: "keel-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(ctx) })

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
	assert.ElementsMatch(t, fields, tel.Propagator.Fields())

}

func TestShutdownTwice(t *testing.T) {
	ctx := context.Background()
	tel, err := Setup(ctx, Config{})
	require.NoError(t, err)

	require.NoError(t, tel.Shutdown(ctx))
	require.NoError(t, tel.Shutdown(ctx))
}
