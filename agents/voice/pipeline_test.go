package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/speech"
)

type stubRecognizer struct {
	text string
	err  error
}

func (s *stubRecognizer) Run(ctx context.Context, input *speech.RecognizeInput) (*speech.RecognizeOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &speech.RecognizeOutput{Text: s.text}, nil
}

type stubResponder struct {
	lastInput string
}

func (s *stubResponder) Process(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	s.lastInput = input.ChatMessage
	return schema.NewOutput("回复：" + input.ChatMessage), nil
}

type stubSynthesizer struct {
	err error
}

func (s *stubSynthesizer) Run(ctx context.Context, input *speech.SynthesizeInput) (*speech.SynthesizeOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &speech.SynthesizeOutput{Audio: []byte("PCM:" + input.Text)}, nil
}

func TestPipelineRun(t *testing.T) {
	responder := &stubResponder{}
	pipeline := New(
		WithRecognizer(&stubRecognizer{text: "今天天气怎么样"}),
		WithResponder(responder),
		WithSynthesizer(&stubSynthesizer{}),
	)

	result, err := pipeline.Run(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, "今天天气怎么样", result.Transcript)
	assert.Equal(t, "回复：今天天气怎么样", result.Reply)
	assert.Equal(t, "今天天气怎么样", responder.lastInput)
	assert.NotEmpty(t, result.Audio)
}

func TestPipelineEmptyTranscript(t *testing.T) {
	responder := &stubResponder{}
	pipeline := New(
		WithRecognizer(&stubRecognizer{text: "  "}),
		WithResponder(responder),
	)

	result, err := pipeline.Run(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Empty(t, result.Transcript)
	assert.Contains(t, result.Reply, "没有听清")
	assert.Empty(t, responder.lastInput)
}

func TestPipelineSynthesisFailureIsNotFatal(t *testing.T) {
	pipeline := New(
		WithRecognizer(&stubRecognizer{text: "你好"}),
		WithResponder(&stubResponder{}),
		WithSynthesizer(&stubSynthesizer{err: errors.New("tts down")}),
	)

	result, err := pipeline.Run(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "回复：你好", result.Reply)
	assert.Empty(t, result.Audio)
}

func TestPipelineRecognitionFailure(t *testing.T) {
	pipeline := New(
		WithRecognizer(&stubRecognizer{err: errors.New("server down")}),
		WithResponder(&stubResponder{}),
	)
	_, err := pipeline.Run(context.Background(), []byte{1})
	assert.Error(t, err)
}
