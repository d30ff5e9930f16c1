package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestTracer_NilProvider(t *testing.T) {
	assert.NotNil(t, Tracer(nil))
}

func TestTracer_WithProvider(t *testing.T) {
	assert.NotNil(t, Tracer(noop.NewTracerProvider()))
}

func TestSetupPropagation(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)

	SetupPropagation()
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}

func TestNewTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(t.Context(), "http://localhost:0/v1/traces", "test-service")
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(t.Context()) }()

	var _ trace.TracerProvider = tp
}

func TestNewTracerProvider_HostPort(t *testing.T) {
	tp, err := NewTracerProvider(t.Context(), "localhost:4318", "")
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(t.Context()) }()

	assert.Len(t, endpointOptions("localhost:4318"), 2)
	assert.Len(t, endpointOptions("https://collector.test/v1/traces"), 1)
}

func TestNewHTTPClient_RecordsSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	client := NewHTTPClient(tp, nil)
	resp, err := client.Get(srv.URL + "/turing/conversation/create")
	require.NoError(t, err)
	resp.Body.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /turing/conversation/create", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
}
