package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clipperhouse/uax29/sentences"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools"
)

// SynthesizeInput Schema carrying text to speak.
type SynthesizeInput struct {
	schema.Base
	// Text to synthesize.
	Text string `json:"text" jsonschema:"title=text,description=The text to synthesize." validate:"required"`
}

func NewSynthesizeInput(text string) *SynthesizeInput {
	return &SynthesizeInput{Text: text}
}

func (s SynthesizeInput) String() string {
	return s.Text
}

// SynthesizeOutput Schema with the rendered audio.
type SynthesizeOutput struct {
	schema.Base
	// Audio raw PCM audio of the spoken text.
	Audio []byte `json:"audio" jsonschema:"title=audio,description=Raw PCM audio of the spoken text."`
	// Segments number of sentence chunks rendered.
	Segments int `json:"segments,omitempty"`
}

func (s SynthesizeOutput) String() string {
	return fmt.Sprintf("audio(%d bytes, %d segments)", len(s.Audio), s.Segments)
}

type SynthesizerConfig struct {
	tools.Config
	endpoint   string
	voice      string
	rate       int
	maxChunk   int
	httpClient *http.Client
}

// Synthesizer renders text to speech through a local TTS HTTP endpoint.
// Long replies are split at sentence boundaries so the server never sees a
// request past its input limit and playback can start on the first chunk.
type Synthesizer struct {
	SynthesizerConfig
}

func NewSynthesizer(opts ...SynthesizerOption) *Synthesizer {
	ret := new(Synthesizer)
	for _, opt := range opts {
		opt(&ret.SynthesizerConfig)
	}
	if ret.Title() == "" {
		ret.SetTitle("SpeechSynthesisTool")
	}
	if ret.Description() == "" {
		ret.SetDescription("Renders text as spoken audio.")
	}
	if ret.endpoint == "" {
		ret.endpoint = "http://localhost:5002/api/tts"
	}
	if ret.rate == 0 {
		ret.rate = 180
	}
	if ret.maxChunk == 0 {
		ret.maxChunk = 300
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return ret
}

// Run synthesizes the text, one sentence chunk at a time, and concatenates
// the audio.
func (t *Synthesizer) Run(ctx context.Context, input *SynthesizeInput) (*SynthesizeOutput, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, fmt.Errorf("synthesize input text is empty")
	}
	chunks := ChunkSentences(text, t.maxChunk)
	buf := new(bytes.Buffer)
	for _, chunk := range chunks {
		audio, err := t.synthesizeChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		buf.Write(audio)
	}
	return &SynthesizeOutput{Audio: buf.Bytes(), Segments: len(chunks)}, nil
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
	Rate  int    `json:"rate,omitempty"`
}

func (t *Synthesizer) synthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	bs, err := json.Marshal(synthesizeRequest{Text: text, Voice: t.voice, Rate: t.rate})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesis server status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	return audio, nil
}

// ChunkSentences splits text at sentence boundaries into chunks no longer
// than maxLen bytes. A single sentence over maxLen becomes its own chunk.
func ChunkSentences(text string, maxLen int) []string {
	seg := sentences.NewSegmenter([]byte(text))
	var (
		chunks  []string
		current strings.Builder
	)
	for seg.Next() {
		sentence := string(seg.Bytes())
		if current.Len() > 0 && current.Len()+len(sentence) > maxLen {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	if len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
