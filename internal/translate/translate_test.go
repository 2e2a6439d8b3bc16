package translate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

func testResilience() config.ResilienceConfig {
	return config.ResilienceConfig{
		BreakerMaxFailures:  5,
		BreakerResetTimeout: time.Second,
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
	}
}

func TestMockTranslator(t *testing.T) {
	tr, err := New(context.Background(), config.MTConfig{}, testResilience(), true, zerolog.Nop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out, _ := tr.Translate(context.Background(), "это тестовая фраза", speech.DirRuEn)
	if out != "this is a test phrase" {
		t.Errorf("Expected English mock output, got %q", out)
	}
	out, _ = tr.Translate(context.Background(), "this is a test", speech.DirEnRu)
	if out != "это тестовая фраза" {
		t.Errorf("Expected Russian mock output, got %q", out)
	}
}

func TestNew_UnsupportedEngine(t *testing.T) {
	_, err := New(context.Background(), config.MTConfig{Engine: "argos"}, testResilience(), false, zerolog.Nop())
	if !errors.Is(err, speech.ErrUnsupportedEngine) {
		t.Errorf("Expected ErrUnsupportedEngine, got %v", err)
	}
}

// newModelServer answers /translate by echoing the requested language pair.
func newModelServer(t *testing.T, name string, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(hits, 1)
		var req modelServerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(modelServerResponse{
			Translation: " " + name + ":" + req.Source + ">" + req.Target + ":" + req.Text + " ",
		})
	}))
}

func TestModelServerClient_Routing(t *testing.T) {
	var primaryHits, backHits int32
	primary := newModelServer(t, "primary", &primaryHits)
	defer primary.Close()
	back := newModelServer(t, "back", &backHits)
	defer back.Close()

	cfg := config.MTConfig{Engine: EngineMarian, ModelPath: primary.URL, ModelPathBack: back.URL, Timeout: 5 * time.Second}
	tr, err := New(context.Background(), cfg, testResilience(), false, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}
	defer tr.Close()

	out, err := tr.Translate(context.Background(), "привет", speech.DirRuEn)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out != "primary:ru>en:привет" {
		t.Errorf("Expected trimmed primary output, got %q", out)
	}

	out, err = tr.Translate(context.Background(), "hello", speech.DirEnRu)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out != "back:en>ru:hello" {
		t.Errorf("Expected back model output, got %q", out)
	}
	if primaryHits != 1 || backHits != 1 {
		t.Errorf("Expected one hit each, got primary=%d back=%d", primaryHits, backHits)
	}
}

func TestModelServerClient_FallbackToPrimary(t *testing.T) {
	var hits int32
	primary := newModelServer(t, "primary", &hits)
	defer primary.Close()

	cfg := config.MTConfig{ModelPath: primary.URL, Timeout: 5 * time.Second}
	client, err := NewModelServerClient(EngineNLLB, cfg, resilience.NewCircuitBreaker("mt", 5, time.Second), resilience.DefaultRetryConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	out, err := client.Translate(context.Background(), "hello", speech.DirEnRu)
	if err != nil {
		t.Fatalf("Expected fallback to primary, got error: %v", err)
	}
	if out != "primary:eng_Latn>rus_Cyrl:hello" {
		t.Errorf("Expected NLLB tags via primary model, got %q", out)
	}
}

func TestModelServerClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(modelServerResponse{Translation: "ok"})
	}))
	defer server.Close()

	rc := &resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}
	client, err := NewModelServerClient(EngineMarian, config.MTConfig{ModelPath: server.URL, Timeout: time.Second},
		resilience.NewCircuitBreaker("mt", 5, time.Second), rc, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	out, err := client.Translate(context.Background(), "привет", speech.DirRuEn)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if out != "ok" || calls != 3 {
		t.Errorf("Expected 'ok' after 3 calls, got %q after %d", out, calls)
	}
}

func TestModelServerClient_BadRequestNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer server.Close()

	client, err := NewModelServerClient(EngineMarian, config.MTConfig{ModelPath: server.URL, Timeout: time.Second},
		resilience.NewCircuitBreaker("mt", 5, time.Second), resilience.DefaultRetryConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.Translate(context.Background(), "x", speech.DirRuEn); err == nil {
		t.Fatal("Expected error for 400")
	}
	if calls != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestOpenAIClient_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "gpt-test" {
			t.Errorf("Expected model gpt-test, got %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","created":0,"model":"gpt-test",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  hello world \n"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := config.MTConfig{Engine: EngineOpenAI, APIKey: "test", BaseURL: server.URL + "/v1", Model: "gpt-test"}
	tr, err := New(context.Background(), cfg, testResilience(), false, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create translator: %v", err)
	}

	out, err := tr.Translate(context.Background(), "привет мир", speech.DirRuEn)
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if out != "hello world" {
		t.Errorf("Expected 'hello world', got %q", out)
	}
}

type countingTranslator struct {
	calls int
}

func (c *countingTranslator) Name() string { return "counting" }
func (c *countingTranslator) Translate(ctx context.Context, text string, dir speech.Direction) (string, error) {
	c.calls++
	return "translated:" + text, nil
}
func (c *countingTranslator) Close() error { return nil }

func TestCachedTranslator(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	next := &countingTranslator{}
	tr, err := NewCachedTranslator(context.Background(), next, "redis://"+mr.Addr(), time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer tr.Close()

	for i := 0; i < 3; i++ {
		out, err := tr.Translate(context.Background(), "привет", speech.DirRuEn)
		if err != nil {
			t.Fatalf("Translate failed: %v", err)
		}
		if out != "translated:привет" {
			t.Errorf("Unexpected output %q", out)
		}
	}
	if next.calls != 1 {
		t.Errorf("Expected 1 engine call, got %d", next.calls)
	}

	tr.Translate(context.Background(), "привет", speech.DirEnRu)
	if next.calls != 2 {
		t.Errorf("Expected direction to be part of the key, got %d calls", next.calls)
	}

	keys := mr.Keys()
	if len(keys) != 2 {
		t.Errorf("Expected 2 cache keys, got %d", len(keys))
	}
	if ttl := mr.TTL(keys[0]); ttl != time.Hour {
		t.Errorf("Expected TTL 1h, got %v", ttl)
	}
}

func TestCachedTranslator_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	next := &countingTranslator{}
	tr, err := NewCachedTranslator(context.Background(), next, "redis://"+mr.Addr(), time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer tr.Close()
	mr.Close()

	out, err := tr.Translate(context.Background(), "hello", speech.DirEnRu)
	if err != nil {
		t.Fatalf("Expected cache failure to be bypassed, got %v", err)
	}
	if out != "translated:hello" {
		t.Errorf("Unexpected output %q", out)
	}
}
