package stt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

func TestNew_Mock(t *testing.T) {
	r, err := New(config.ASRConfig{Engine: "does-not-matter"}, config.ResilienceConfig{}, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	res, err := r.Recognize(context.Background(), make([]float32, 1600), 16000)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Language != "ru" || res.Text != "это тестовая фраза" {
		t.Errorf("Expected fixed mock output, got %+v", res)
	}
}

func TestNew_UnsupportedEngine(t *testing.T) {
	_, err := New(config.ASRConfig{Engine: "kaldi"}, config.ResilienceConfig{}, false, zerolog.Nop())
	if !errors.Is(err, speech.ErrUnsupportedEngine) {
		t.Errorf("Expected ErrUnsupportedEngine, got %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(config.ASRConfig{Engine: EngineDeepgram}, config.ResilienceConfig{}, false, zerolog.Nop())
	if !errors.Is(err, speech.ErrEngineNotInitialized) {
		t.Errorf("Expected ErrEngineNotInitialized, got %v", err)
	}
}

// newVoskServer emulates vosk-server: one reply per audio frame, the final
// text on eof.
func newVoskServer(t *testing.T, final string, frames *int32) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cfg map[string]map[string]int
		if err := json.Unmarshal(data, &cfg); err != nil || cfg["config"]["sample_rate"] != 16000 {
			t.Errorf("Expected config message with sample_rate 16000, got %s", data)
		}

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				atomic.AddInt32(frames, 1)
				conn.WriteMessage(websocket.TextMessage, []byte(`{"partial": "при"}`))
				continue
			}
			if strings.Contains(string(data), "eof") {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"text": "`+final+`"}`))
			}
		}
	}))
}

func TestVoskClient_Recognize(t *testing.T) {
	var frames int32
	server := newVoskServer(t, "привет мир", &frames)
	defer server.Close()

	cfg := config.ASRConfig{
		ServerURL: "ws" + strings.TrimPrefix(server.URL, "http"),
		Language:  "ru",
	}
	cb := resilience.NewCircuitBreaker("vosk", 3, time.Second)
	client, err := NewVoskClient(cfg, cb, resilience.DefaultReconnectConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := client.Recognize(ctx, make([]float32, 20000), 16000)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Text != "привет мир" {
		t.Errorf("Expected 'привет мир', got %q", res.Text)
	}
	if res.Language != "ru" {
		t.Errorf("Expected configured language ru, got %s", res.Language)
	}
	if got := atomic.LoadInt32(&frames); got != 3 {
		t.Errorf("Expected 3 audio frames, got %d", got)
	}
}

func TestVoskClient_ServerDown(t *testing.T) {
	cfg := config.ASRConfig{ServerURL: "ws://127.0.0.1:1"}
	cb := resilience.NewCircuitBreaker("vosk", 1, time.Minute)
	rc := &resilience.ReconnectConfig{MaxAttempts: 2, Backoff: time.Millisecond, Multiplier: 1, MaxBackoff: time.Millisecond}

	client, err := NewVoskClient(cfg, cb, rc, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.Recognize(context.Background(), make([]float32, 100), 16000); err == nil {
		t.Fatal("Expected error when server is down")
	}
	_, err = client.Recognize(context.Background(), make([]float32, 100), 16000)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected open circuit after failure, got %v", err)
	}
}

func TestVoskClient_EmptySegment(t *testing.T) {
	client, err := NewVoskClient(config.ASRConfig{ServerURL: "ws://unused"}, resilience.NewCircuitBreaker("vosk", 1, time.Second), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if _, err := client.Recognize(context.Background(), nil, 16000); !errors.Is(err, speech.ErrInvalidAudio) {
		t.Errorf("Expected ErrInvalidAudio, got %v", err)
	}
}
