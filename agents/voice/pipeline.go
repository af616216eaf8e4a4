package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/speech"
)

const emptyTranscriptReply = "抱歉，我没有听清您说的话，请再试一次。"

// Recognizer abstracts the speech recognition tool.
type Recognizer interface {
	Run(ctx context.Context, input *speech.RecognizeInput) (*speech.RecognizeOutput, error)
}

// Synthesizer abstracts the speech synthesis tool.
type Synthesizer interface {
	Run(ctx context.Context, input *speech.SynthesizeInput) (*speech.SynthesizeOutput, error)
}

// Responder produces the text reply for a transcribed utterance. The intent
// router satisfies this.
type Responder interface {
	Process(ctx context.Context, input *schema.Input) (*schema.Output, error)
}

// Result is one full voice interaction.
type Result struct {
	// Transcript of the user's speech.
	Transcript string `json:"transcript"`
	// Reply text generated for the transcript.
	Reply string `json:"reply"`
	// Audio spoken rendition of the reply, empty when synthesis is off.
	Audio []byte `json:"audio,omitempty"`
}

type Config struct {
	recognizer  Recognizer
	responder   Responder
	synthesizer Synthesizer
	sampleRate  int
	logger      zerolog.Logger
}

// Pipeline turns spoken audio into a spoken reply: recognition, intent
// dispatch, then synthesis. Synthesis is optional.
type Pipeline struct {
	Config
}

type Option func(c *Config)

func WithRecognizer(r Recognizer) Option {
	return func(c *Config) {
		c.recognizer = r
	}
}

func WithResponder(r Responder) Option {
	return func(c *Config) {
		c.responder = r
	}
}

func WithSynthesizer(s Synthesizer) Option {
	return func(c *Config) {
		c.synthesizer = s
	}
}

// WithSampleRate sets the PCM sample rate of uploaded audio.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.sampleRate = rate
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.logger = logger.With().Str("component", "voice").Logger()
	}
}

func New(opts ...Option) *Pipeline {
	ret := new(Pipeline)
	ret.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(&ret.Config)
	}
	return ret
}

// Run processes one voice interaction.
func (p *Pipeline) Run(ctx context.Context, audio []byte) (*Result, error) {
	if p.recognizer == nil || p.responder == nil {
		return nil, fmt.Errorf("voice pipeline is not fully configured")
	}
	recognizeInput := speech.NewRecognizeInput(audio)
	if p.sampleRate > 0 {
		recognizeInput.SampleRate = p.sampleRate
	}
	recognized, err := p.recognizer.Run(ctx, recognizeInput)
	if err != nil {
		return nil, fmt.Errorf("speech recognition: %w", err)
	}
	transcript := strings.TrimSpace(recognized.Text)
	result := &Result{Transcript: transcript}
	if transcript == "" {
		result.Reply = emptyTranscriptReply
		return result, nil
	}
	p.logger.Info().Str("transcript", transcript).Msg("recognized utterance")

	reply, err := p.responder.Process(ctx, schema.NewInput(transcript))
	if err != nil {
		return nil, err
	}
	result.Reply = reply.ChatMessage

	if p.synthesizer != nil {
		spoken, err := p.synthesizer.Run(ctx, speech.NewSynthesizeInput(result.Reply))
		if err != nil {
			// A silent reply is better than no reply.
			p.logger.Warn().Err(err).Msg("speech synthesis failed")
		} else {
			result.Audio = spoken.Audio
		}
	}
	return result, nil
}
