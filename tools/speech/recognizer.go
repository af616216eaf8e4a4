package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools"
)

const (
	// DefaultSampleRate expected by the recognition models.
	DefaultSampleRate = 16000

	defaultChunkSize = 8000
)

// RecognizeInput Schema carrying raw PCM audio to transcribe.
type RecognizeInput struct {
	schema.Base
	// Audio mono 16-bit little-endian PCM samples.
	Audio []byte `json:"audio" jsonschema:"title=audio,description=Mono 16-bit little-endian PCM samples." validate:"required"`
	// SampleRate of the audio, defaults to 16000.
	SampleRate int `json:"sample_rate,omitempty" jsonschema:"title=sample_rate,description=Sample rate of the audio."`
}

func NewRecognizeInput(audio []byte) *RecognizeInput {
	return &RecognizeInput{Audio: audio, SampleRate: DefaultSampleRate}
}

func (s RecognizeInput) String() string {
	return fmt.Sprintf("audio(%d bytes, %d Hz)", len(s.Audio), s.SampleRate)
}

// RecognizeOutput Schema with the transcription.
type RecognizeOutput struct {
	schema.Base
	// Text the recognized utterance.
	Text string `json:"text" jsonschema:"title=text,description=The recognized utterance."`
}

func (s RecognizeOutput) String() string {
	return s.Text
}

type RecognizerConfig struct {
	tools.Config
	serverURL string
	chunkSize int
	timeout   time.Duration
}

// Recognizer streams PCM audio to a speech recognition websocket server and
// assembles the transcription from its result messages.
type Recognizer struct {
	RecognizerConfig
}

func NewRecognizer(opts ...RecognizerOption) *Recognizer {
	ret := new(Recognizer)
	for _, opt := range opts {
		opt(&ret.RecognizerConfig)
	}
	if ret.Title() == "" {
		ret.SetTitle("SpeechRecognitionTool")
	}
	if ret.Description() == "" {
		ret.SetDescription("Transcribes spoken audio to text.")
	}
	if ret.serverURL == "" {
		ret.serverURL = "ws://localhost:2700"
	}
	if ret.chunkSize == 0 {
		ret.chunkSize = defaultChunkSize
	}
	if ret.timeout == 0 {
		ret.timeout = 30 * time.Second
	}
	return ret
}

type recognizerResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// Run transcribes the audio. The server protocol is a config message, binary
// audio chunks, then an eof marker; every message carrying a "text" field is
// a finalized segment.
func (t *Recognizer) Run(ctx context.Context, input *RecognizeInput) (*RecognizeOutput, error) {
	if len(input.Audio) == 0 {
		return nil, fmt.Errorf("recognize input audio is empty")
	}
	sampleRate := input.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, t.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial recognition server: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	cfg, _ := json.Marshal(map[string]any{"config": map[string]any{"sample_rate": sampleRate}})
	if err := conn.Write(ctx, websocket.MessageText, cfg); err != nil {
		return nil, fmt.Errorf("send recognizer config: %w", err)
	}

	var segments []string
	collect := func(bs []byte) {
		var res recognizerResult
		if json.Unmarshal(bs, &res) == nil && res.Text != "" {
			segments = append(segments, res.Text)
		}
	}

	for offset := 0; offset < len(input.Audio); offset += t.chunkSize {
		end := offset + t.chunkSize
		if end > len(input.Audio) {
			end = len(input.Audio)
		}
		if err := conn.Write(ctx, websocket.MessageBinary, input.Audio[offset:end]); err != nil {
			return nil, fmt.Errorf("send audio chunk: %w", err)
		}
		_, bs, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read recognizer result: %w", err)
		}
		collect(bs)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"eof" : 1}`)); err != nil {
		return nil, fmt.Errorf("send eof marker: %w", err)
	}
	_, bs, err := conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read final result: %w", err)
	}
	collect(bs)

	return &RecognizeOutput{Text: strings.TrimSpace(strings.Join(segments, " "))}, nil
}
