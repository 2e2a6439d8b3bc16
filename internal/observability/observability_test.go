package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lexiqai/voice-interpreter/internal/resilience"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", in, got, want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", false)
	logger.Info().Str("fragment_id", "abc").Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q", buf.String())
	}
	if entry["fragment_id"] != "abc" || entry["message"] != "hello" {
		t.Errorf("Unexpected log entry: %v", entry)
	}
}

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if status.Status != "healthy" || status.Service != serviceName {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestReadinessHandler(t *testing.T) {
	checks := map[string]HealthCheckFunc{
		"asr": func(ctx context.Context) (bool, error) { return true, nil },
		"mt":  func(ctx context.Context) (bool, error) { return false, errors.New("model server down") },
	}

	rec := httptest.NewRecorder()
	ReadinessHandler(checks)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if status.Status != "not_ready" {
		t.Errorf("Expected not_ready, got %s", status.Status)
	}
	if status.Dependencies["mt"].Message != "model server down" {
		t.Errorf("Expected mt failure message, got %+v", status.Dependencies["mt"])
	}
	if status.Dependencies["asr"].Status != "healthy" {
		t.Errorf("Expected asr healthy, got %+v", status.Dependencies["asr"])
	}
}

func TestNewMux_Metrics(t *testing.T) {
	RecordSegment(0)
	server := httptest.NewServer(NewMux(nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "interpreter_vad_segments_total") {
		t.Error("Expected segment counter in /metrics output")
	}
}

func TestStartStageSpan(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	_, span := StartStageSpan(context.Background(), StageTranslation, "frag-1")
	EndSpan(span, errors.New("boom"))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "interpreter.mt" {
		t.Errorf("Expected span interpreter.mt, got %s", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("Expected error status, got %v", spans[0].Status.Code)
	}
}

func TestTrackCircuitBreaker(t *testing.T) {
	cb := TrackCircuitBreaker(resilience.NewCircuitBreaker("test-breaker", 1, time.Minute))

	gauge := circuitBreakerState.WithLabelValues("test-breaker")
	if got := testutil.ToFloat64(gauge); got != float64(resilience.StateClosed) {
		t.Errorf("Expected closed state exported, got %v", got)
	}

	cb.Call(func() error { return errors.New("boom") })
	if got := testutil.ToFloat64(gauge); got != float64(resilience.StateOpen) {
		t.Errorf("Expected open state exported, got %v", got)
	}
}
