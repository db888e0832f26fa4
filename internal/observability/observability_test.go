package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"catchcore/internal/core"
)

func TestNewLogger(t *testing.T) {
	t.Run("json at debug", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(LogConfig{Level: "DEBUG", Format: FormatJSON, Output: &buf})
		require.NoError(t, err)
		logger.Debug("group controlled", "group", "SORTING_BATCH#1")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "group controlled", record["msg"])
		assert.Equal(t, "SORTING_BATCH#1", record["group"])
	})

	t.Run("text filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(LogConfig{Level: "warn", Output: &buf})
		require.NoError(t, err)
		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewLogger(LogConfig{Level: "verbose"})
		assert.Error(t, err)
		_, err = NewLogger(LogConfig{Format: "xml"})
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, "WARN", level.String())
	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, "INFO", level.String())
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)
	ctx := context.Background()

	rec.Observe(ctx, "control_tree", true, 20*time.Millisecond)
	rec.Observe(ctx, "control_tree", false, 5*time.Millisecond)
	rec.Observe(ctx, "get_tree", true, time.Millisecond)
	rec.ObserveControl(ctx, "SUMARiS", core.StateInvalid, 3)
	rec.ObserveControl(ctx, "SUMARiS", core.StateValid, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.operations.WithLabelValues("control_tree", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.operations.WithLabelValues("control_tree", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.controls.WithLabelValues("SUMARiS", "INVALID")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.fieldErrors.WithLabelValues("SUMARiS")))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.durations))

	expected := `
# HELP catchcore_control_passes_total Completed control passes by program and final state
# TYPE catchcore_control_passes_total counter
catchcore_control_passes_total{program="SUMARiS",state="INVALID"} 1
catchcore_control_passes_total{program="SUMARiS",state="VALID"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "catchcore_control_passes_total"))

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestOTelTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := NewOTelTracer(tp)

	_, span := tracer.Start(context.Background(), "save_tree")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "get_tree")
	span.End(errors.New("tree not found"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "catchcore.save_tree", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "catchcore.get_tree", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "tree not found", spans[1].Status().Description)
	require.NotEmpty(t, spans[1].Events())
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestServiceWithObservability(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)
	var logs bytes.Buffer
	logger, err := NewLogger(LogConfig{Format: FormatJSON, Output: &logs})
	require.NoError(t, err)

	svc := core.NewInMemoryService(nil, nil,
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(NewOTelTracer(tp)),
	)
	_, err = svc.ListTrees(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("list_trees", "success")))
	require.Len(t, recorder.Ended(), 1)
	assert.Contains(t, logs.String(), `"msg":"core service operation"`)
}

func TestStdoutTracerProvider(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewStdoutTracerProvider(&buf)
	require.NoError(t, err)
	_, span := NewOTelTracer(tp).Start(context.Background(), "compute_tree")
	span.End(nil)
	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "catchcore.compute_tree")
}
