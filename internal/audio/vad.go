package audio

// VADConfig holds configuration for the energy-based voice activity detector.
type VADConfig struct {
	EnergyThreshold float64 // mean squared amplitude above which a block counts as speech
	MinSpeechMs     int     // buffered speech needed to confirm an utterance
	MinSilenceMs    int     // trailing silence needed to close a confirmed utterance
	SampleRate      int     // samples per second of incoming blocks
}

// DefaultVADConfig returns a default VAD configuration for 16 kHz mono input.
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 0.0008,
		MinSpeechMs:     400,
		MinSilenceMs:    300,
		SampleRate:      16000,
	}
}

// VADState is the segmenter state.
type VADState int

const (
	StateIdle         VADState = iota // nothing buffered
	StateAccumulating                 // buffering, speech not yet confirmed
	StateConfirmed                    // confirmed speech, tracking trailing silence
)

func (s VADState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateConfirmed:
		return "confirmed"
	}
	return "unknown"
}

// VADDetector turns a stream of fixed-duration blocks into finalized speech
// segments. It debounces both ends: sustained energy confirms speech and
// sustained silence closes a segment, so short noise spikes are discarded and
// micro-pauses inside an utterance are kept.
//
// A VADDetector is not safe for concurrent use; the capture stage owns it.
type VADDetector struct {
	config     *VADConfig
	minSpeech  int // samples
	minSilence int // samples

	buffer         []float32
	silenceCounter int // samples
	confirmed      bool
}

// NewVADDetector creates a new VAD detector.
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{
		config:     config,
		minSpeech:  MsToSamples(config.MinSpeechMs, config.SampleRate),
		minSilence: MsToSamples(config.MinSilenceMs, config.SampleRate),
	}
}

// Push feeds one block and returns a finalized segment, or nil. The segment
// includes the trailing silence blocks that closed it, so its duration is
// longer than the speech itself. Blocks are copied; callers may reuse them.
func (v *VADDetector) Push(block []float32) []float32 {
	if MeanSquare(block) > v.config.EnergyThreshold {
		v.silenceCounter = 0
		v.buffer = append(v.buffer, block...)
		if !v.confirmed && len(v.buffer) >= v.minSpeech {
			v.confirmed = true
		}
		return nil
	}

	if !v.confirmed {
		// Noise spike: never confirmed, drop everything buffered.
		v.Reset()
		return nil
	}

	v.buffer = append(v.buffer, block...)
	v.silenceCounter += len(block)
	if v.silenceCounter < v.minSilence {
		return nil
	}

	segment := v.buffer
	v.buffer = nil
	v.silenceCounter = 0
	v.confirmed = false
	return segment
}

// Reset drops any buffered audio and returns to idle.
func (v *VADDetector) Reset() {
	v.buffer = nil
	v.silenceCounter = 0
	v.confirmed = false
}

// State returns the current segmenter state.
func (v *VADDetector) State() VADState {
	switch {
	case v.confirmed:
		return StateConfirmed
	case len(v.buffer) > 0:
		return StateAccumulating
	default:
		return StateIdle
	}
}

// IsSpeaking returns whether speech is currently confirmed.
func (v *VADDetector) IsSpeaking() bool {
	return v.confirmed
}

// Buffered returns the number of samples currently held.
func (v *VADDetector) Buffered() int {
	return len(v.buffer)
}
