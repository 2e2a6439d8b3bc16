package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Audio source modes.
const (
	ModeMic = "mic"
	ModeWAV = "wav"
)

// Config holds all configuration for the interpreter. Values come from
// struct defaults, then the environment (and .env), then an optional YAML
// file whose keys override both.
type Config struct {
	App        AppConfig        `envconfig:"APP" yaml:"app"`
	VAD        VADConfig        `envconfig:"VAD" yaml:"vad"`
	ASR        ASRConfig        `envconfig:"ASR" yaml:"asr"`
	MT         MTConfig         `envconfig:"MT" yaml:"mt"`
	TTS        TTSConfig        `envconfig:"TTS" yaml:"tts"`
	Logging    LoggingConfig    `envconfig:"LOGGING" yaml:"logging"`
	Pipeline   PipelineConfig   `envconfig:"PIPELINE" yaml:"pipeline"`
	Resilience ResilienceConfig `envconfig:"RESILIENCE" yaml:"resilience"`
	Metrics    MetricsConfig    `envconfig:"METRICS" yaml:"metrics"`
}

// AppConfig selects the audio source and translation direction.
type AppConfig struct {
	Mode       string `envconfig:"MODE" default:"mic" yaml:"mode"` // mic, wav
	InputWAV   string `envconfig:"INPUT_WAV" yaml:"input_wav"`
	Mock       bool   `envconfig:"MOCK" default:"true" yaml:"mock"` // deterministic engines, no models
	SampleRate int    `envconfig:"SAMPLE_RATE" default:"16000" yaml:"sample_rate"`
	ChunkMs    int    `envconfig:"CHUNK_MS" default:"500" yaml:"chunk_ms"`
	Dir        string `envconfig:"DIR" default:"auto" yaml:"dir"` // ru-en, en-ru, auto
	StopFile   string `envconfig:"STOP_FILE" yaml:"stop_file"`
}

// VADConfig tunes the energy segmenter.
type VADConfig struct {
	Threshold    float64 `envconfig:"THRESHOLD" default:"0.0008" yaml:"threshold"` // mean squared amplitude
	MinSpeechMs  int     `envconfig:"MIN_SPEECH_MS" default:"400" yaml:"min_speech_ms"`
	MinSilenceMs int     `envconfig:"MIN_SILENCE_MS" default:"300" yaml:"min_silence_ms"`
}

// ASRConfig selects the recognition engine.
type ASRConfig struct {
	Engine    string `envconfig:"ENGINE" default:"faster-whisper" yaml:"engine"` // faster-whisper, whisper, vosk, deepgram
	ModelPath string `envconfig:"MODEL_PATH" default:"models/ggml-small.bin" yaml:"model_path"`
	ServerURL string `envconfig:"SERVER_URL" default:"ws://localhost:2700" yaml:"server_url"` // vosk-server
	Language  string `envconfig:"LANGUAGE" default:"auto" yaml:"language"`
	BeamSize  int    `envconfig:"BEAM_SIZE" default:"5" yaml:"beam_size"`
	Threads   int    `envconfig:"THREADS" default:"4" yaml:"threads"`
	APIKey    string `envconfig:"API_KEY" yaml:"api_key"`
	Model     string `envconfig:"MODEL" default:"nova-2" yaml:"model"` // deepgram model
}

// MTConfig selects the translation engine. For marian and nllb-ct2,
// ModelPath and ModelPathBack are model server URLs for ru-en and en-ru.
type MTConfig struct {
	Engine        string        `envconfig:"ENGINE" default:"nllb-ct2" yaml:"engine"` // marian, nllb-ct2, openai
	ModelPath     string        `envconfig:"MODEL_PATH" default:"http://localhost:8081" yaml:"model_path"`
	ModelPathBack string        `envconfig:"MODEL_PATH_BACK" yaml:"model_path_back"`
	MaxSrcTokens  int           `envconfig:"MAX_SRC_TOKENS" default:"64" yaml:"max_src_tokens"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"10s" yaml:"timeout"`
	APIKey        string        `envconfig:"API_KEY" yaml:"api_key"`
	BaseURL       string        `envconfig:"BASE_URL" yaml:"base_url"`
	Model         string        `envconfig:"MODEL" default:"gpt-4o-mini" yaml:"model"`
	CacheURL      string        `envconfig:"CACHE_URL" yaml:"cache_url"` // redis://...; empty disables
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"24h" yaml:"cache_ttl"`
}

// TTSConfig selects the synthesis engine and playback device.
type TTSConfig struct {
	Engine   string         `envconfig:"ENGINE" default:"piper" yaml:"engine"` // piper, edge, cartesia
	Voices   VoicesConfig   `envconfig:"VOICES" yaml:"voices"`
	Playback PlaybackConfig `envconfig:"PLAYBACK" yaml:"playback"`
	Piper    PiperConfig    `envconfig:"PIPER" yaml:"piper"`
	Cartesia CartesiaConfig `envconfig:"CARTESIA" yaml:"cartesia"`
}

// VoicesConfig names the voice per output language: a model path for piper,
// a voice name for edge, a voice id for cartesia.
type VoicesConfig struct {
	RU string `envconfig:"RU" default:"models/ru_RU-irina-medium.onnx" yaml:"ru"`
	EN string `envconfig:"EN" default:"models/en_US-lessac-medium.onnx" yaml:"en"`
}

// PlaybackConfig selects the output device.
type PlaybackConfig struct {
	Device string  `envconfig:"DEVICE" yaml:"device"` // "", default, index, name substring, none
	Volume float64 `envconfig:"VOLUME" default:"0.9" yaml:"volume"`
}

// PiperConfig carries piper synthesis parameters.
type PiperConfig struct {
	Binary      string  `envconfig:"BINARY" default:"piper" yaml:"binary"`
	LengthScale float64 `envconfig:"LENGTH_SCALE" default:"1.0" yaml:"length_scale"`
	NoiseScale  float64 `envconfig:"NOISE_SCALE" default:"0.667" yaml:"noise_scale"`
	NoiseW      float64 `envconfig:"NOISE_W" default:"0.8" yaml:"noise_w"`
	SpeakerRU   string  `envconfig:"SPEAKER_RU" yaml:"speaker_ru"`
	SpeakerEN   string  `envconfig:"SPEAKER_EN" yaml:"speaker_en"`
}

// CartesiaConfig holds Cartesia API settings.
type CartesiaConfig struct {
	APIKey  string `envconfig:"API_KEY" yaml:"api_key"`
	ModelID string `envconfig:"MODEL_ID" default:"sonic-multilingual" yaml:"model_id"`
	BaseURL string `envconfig:"BASE_URL" default:"https://api.cartesia.ai" yaml:"base_url"`
}

// LoggingConfig covers the process log and the session logs.
type LoggingConfig struct {
	Level      string `envconfig:"LEVEL" default:"info" yaml:"level"`
	Pretty     bool   `envconfig:"PRETTY" default:"false" yaml:"pretty"`
	Dir        string `envconfig:"DIR" default:"logs" yaml:"dir"`
	Backend    string `envconfig:"BACKEND" default:"text" yaml:"backend"` // text, sqlite, both
	SaveTTSWAV bool   `envconfig:"SAVE_TTS_WAV" default:"false" yaml:"save_tts_wav"`
}

// PipelineConfig tunes the queue between the two stages.
type PipelineConfig struct {
	QueueSize              int           `envconfig:"QUEUE_SIZE" default:"32" yaml:"queue_size"`
	EnqueueWait            time.Duration `envconfig:"ENQUEUE_WAIT" default:"200ms" yaml:"enqueue_wait"`
	PollInterval           time.Duration `envconfig:"POLL_INTERVAL" default:"200ms" yaml:"poll_interval"`
	ShutdownGrace          time.Duration `envconfig:"SHUTDOWN_GRACE" default:"1s" yaml:"shutdown_grace"`
	MaxConsecutiveFailures int           `envconfig:"MAX_CONSECUTIVE_FAILURES" default:"5" yaml:"max_consecutive_failures"` // 0 disables
}

// ResilienceConfig guards remote engines.
type ResilienceConfig struct {
	BreakerMaxFailures   int           `envconfig:"BREAKER_MAX_FAILURES" default:"5" yaml:"breaker_max_failures"`
	BreakerResetTimeout  time.Duration `envconfig:"BREAKER_RESET_TIMEOUT" default:"30s" yaml:"breaker_reset_timeout"`
	RetryMaxAttempts     int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3" yaml:"retry_max_attempts"`
	RetryInitialBackoff  time.Duration `envconfig:"RETRY_INITIAL_BACKOFF" default:"100ms" yaml:"retry_initial_backoff"`
	ReconnectMaxAttempts int           `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5" yaml:"reconnect_max_attempts"`
	ReconnectBackoff     time.Duration `envconfig:"RECONNECT_BACKOFF" default:"500ms" yaml:"reconnect_backoff"`
}

// MetricsConfig controls the observability HTTP server.
type MetricsConfig struct {
	Enabled bool   `envconfig:"ENABLED" default:"false" yaml:"enabled"`
	Addr    string `envconfig:"ADDR" default:":9090" yaml:"addr"`
}

// Load reads configuration from .env, the environment and, when path is not
// empty, a YAML file. Overrides (typically command-line flags) run last,
// before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}
	for _, o := range overrides {
		o(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without reading .env or validating.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// MergeFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error

	switch c.App.Mode {
	case ModeMic, ModeWAV:
	default:
		errs = append(errs, fmt.Errorf("app.mode must be mic or wav, got %q", c.App.Mode))
	}
	if c.App.Mode == ModeWAV && c.App.InputWAV == "" {
		errs = append(errs, errors.New("app.input_wav is required in wav mode"))
	}
	switch strings.ToLower(c.App.Dir) {
	case "", "auto", "ru-en", "en-ru":
	default:
		errs = append(errs, fmt.Errorf("app.dir must be ru-en, en-ru or auto, got %q", c.App.Dir))
	}
	if c.App.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("app.sample_rate must be positive, got %d", c.App.SampleRate))
	}
	if c.App.ChunkMs <= 0 {
		errs = append(errs, fmt.Errorf("app.chunk_ms must be positive, got %d", c.App.ChunkMs))
	}
	if c.VAD.MinSpeechMs < 0 || c.VAD.MinSilenceMs < 0 {
		errs = append(errs, errors.New("vad durations must not be negative"))
	}
	if c.Pipeline.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.queue_size must be positive, got %d", c.Pipeline.QueueSize))
	}
	if c.Pipeline.MaxConsecutiveFailures < 0 {
		errs = append(errs, errors.New("pipeline.max_consecutive_failures must not be negative"))
	}
	switch c.Logging.Backend {
	case "text", "sqlite", "both":
	default:
		errs = append(errs, fmt.Errorf("logging.backend must be text, sqlite or both, got %q", c.Logging.Backend))
	}
	if c.TTS.Playback.Volume < 0 {
		errs = append(errs, errors.New("tts.playback.volume must not be negative"))
	}

	return errors.Join(errs...)
}
