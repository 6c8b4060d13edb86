package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, a := range attrs {
		out[a.Key] = a.Value
	}
	return out
}

func TestToAttribute(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  attribute.Value
	}{
		{"string", "x", attribute.StringValue("x")},
		{"int", 3, attribute.IntValue(3)},
		{"int32", int32(4), attribute.IntValue(4)},
		{"int64", int64(5), attribute.Int64Value(5)},
		{"bool", true, attribute.BoolValue(true)},
		{"float", 1.5, attribute.Float64Value(1.5)},
		{"duration", 2 * time.Second, attribute.StringValue("2s")},
		{"slice", []string{"a", "b"}, attribute.StringSliceValue([]string{"a", "b"})},
		{"unknown", struct{}{}, attribute.StringValue("unknown_type")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := toAttribute("k", tt.value)
			assert.Equal(t, attribute.Key("k"), kv.Key)
			assert.Equal(t, tt.want, kv.Value)
		})
	}
}

func TestTraceOperation(t *testing.T) {
	recorder := setupSpanRecorder(t)

	ctx, span, cleanup := TraceOperation(context.Background(), "credentialing.test", map[string]interface{}{
		"provider.id": "p1",
	})
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	cleanup()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "credentialing.test", spans[0].Name())
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "p1", attrs["provider.id"].AsString())
	assert.Contains(t, attrs, attribute.Key("duration_ms"))
}

func TestTraceEndpointStep(t *testing.T) {
	recorder := setupSpanRecorder(t)

	_, span := TraceInputParsing(context.Background(), "roster_upload")
	span.End()
	_, span = TraceExternalService(context.Background(), "verification_gateway", "verify")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "endpoint.step.parse_input", spans[0].Name())
	assert.Equal(t, "endpoint.step.external_service", spans[1].Name())
	assert.Equal(t, "roster_upload", attrMap(spans[0].Attributes())["input.type"].AsString())
	assert.Equal(t, "verify", attrMap(spans[1].Attributes())["service.operation"].AsString())
}

func TestRecordErrorInSpan(t *testing.T) {
	recorder := setupSpanRecorder(t)

	_, span := TraceEndpointStep(context.Background(), "failing", nil)
	RecordErrorInSpan(span, errors.New("boom"), map[string]interface{}{"provider.id": "p1"})
	AddSpanAttribute(span, "attempt", 2)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "p1", attrs["provider.id"].AsString())
	assert.Equal(t, int64(2), attrs["attempt"].AsInt64())
}
