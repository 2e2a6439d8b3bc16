package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-interpreter/internal/audio"
	"github.com/lexiqai/voice-interpreter/internal/config"
	"github.com/lexiqai/voice-interpreter/internal/resilience"
	"github.com/lexiqai/voice-interpreter/internal/speech"
)

// voskChunkSamples is how many samples are sent per binary frame.
const voskChunkSamples = 8000

// voskResult is the subset of a vosk-server reply we read.
type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// VoskClient recognizes segments against a vosk-server websocket. A fresh
// connection is used per segment so server-side state never leaks between
// utterances. Vosk does not detect language; the configured one is reported.
type VoskClient struct {
	url            string
	language       string
	dialer         *websocket.Dialer
	circuitBreaker *resilience.CircuitBreaker
	reconnect      *resilience.ReconnectConfig
	logger         zerolog.Logger

	mu sync.Mutex
}

// NewVoskClient creates a client for cfg.ServerURL. No connection is made
// until the first segment.
func NewVoskClient(cfg config.ASRConfig, cb *resilience.CircuitBreaker, rc *resilience.ReconnectConfig, logger zerolog.Logger) (*VoskClient, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("%w: vosk server url is empty", speech.ErrEngineNotInitialized)
	}
	lang := cfg.Language
	if lang == "" {
		lang = speech.LangAuto
	}
	return &VoskClient{
		url:            cfg.ServerURL,
		language:       lang,
		dialer:         &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		circuitBreaker: cb,
		reconnect:      rc,
		logger:         logger,
	}, nil
}

// Name returns "vosk".
func (v *VoskClient) Name() string { return EngineVosk }

// Recognize streams the segment as PCM16 and collects the final text.
func (v *VoskClient) Recognize(ctx context.Context, segment []float32, sampleRate int) (*TranscriptionResult, error) {
	if len(segment) == 0 {
		return nil, fmt.Errorf("%w: empty segment", speech.ErrInvalidAudio)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var text string
	err := v.circuitBreaker.Call(func() error {
		var err error
		text, err = v.recognize(ctx, segment, sampleRate)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("vosk: %w", err)
	}
	return &TranscriptionResult{Language: v.language, Text: text}, nil
}

func (v *VoskClient) recognize(ctx context.Context, segment []float32, sampleRate int) (string, error) {
	conn, err := resilience.Connect(ctx, "vosk", func(ctx context.Context) (*websocket.Conn, error) {
		c, _, err := v.dialer.DialContext(ctx, v.url, nil)
		return c, err
	}, v.reconnect)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteJSON(map[string]any{"config": map[string]any{"sample_rate": sampleRate}}); err != nil {
		return "", fmt.Errorf("send config: %w", err)
	}

	var parts []string
	for start := 0; start < len(segment); start += voskChunkSamples {
		end := start + voskChunkSamples
		if end > len(segment) {
			end = len(segment)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, audio.Float32ToPCM16(segment[start:end])); err != nil {
			return "", fmt.Errorf("send audio: %w", err)
		}
		res, err := readVoskResult(conn)
		if err != nil {
			return "", err
		}
		if t := strings.TrimSpace(res.Text); t != "" {
			parts = append(parts, t)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return "", fmt.Errorf("send eof: %w", err)
	}
	res, err := readVoskResult(conn)
	if err != nil {
		return "", err
	}
	if t := strings.TrimSpace(res.Text); t != "" {
		parts = append(parts, t)
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return strings.Join(parts, " "), nil
}

func readVoskResult(conn *websocket.Conn) (*voskResult, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var res voskResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &res, nil
}

// Close is a no-op; connections are per segment.
func (v *VoskClient) Close() error { return nil }
