package conversation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/linkreader"
	"github.com/polychat-ai/polychat/tools/sentiment"
)

type stubRunner struct {
	label string
	calls int
}

func (s *stubRunner) Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error {
	s.calls++
	output.ChatMessage = s.label + ": " + input.ChatMessage
	return nil
}

type stubAnalyzer struct {
	polarity sentiment.Polarity
}

func (s *stubAnalyzer) Run(ctx context.Context, input *sentiment.Input) (*sentiment.Output, error) {
	return &sentiment.Output{Polarity: s.polarity, Confidence: 0.9}, nil
}

func TestProcessAutoPicksReasoner(t *testing.T) {
	chat := &stubRunner{label: "chat"}
	reasoner := &stubRunner{label: "reasoner"}
	agent := New(WithChat(chat), WithReasoner(reasoner))

	out, err := agent.Process(context.Background(), schema.NewInput("为什么天空是蓝色的？"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.ChatMessage, "reasoner:"))
	assert.Equal(t, 1, reasoner.calls)
	assert.Equal(t, 0, chat.calls)

	out, err = agent.Process(context.Background(), schema.NewInput("你好"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.ChatMessage, "chat:"))
	assert.Equal(t, 1, chat.calls)
}

func TestProcessFixedStrategy(t *testing.T) {
	chat := &stubRunner{label: "chat"}
	reasoner := &stubRunner{label: "reasoner"}
	agent := New(WithChat(chat), WithReasoner(reasoner), WithStrategy(StrategyReasoner))

	_, err := agent.Process(context.Background(), schema.NewInput("你好"))
	require.NoError(t, err)
	assert.Equal(t, 1, reasoner.calls)
	assert.Equal(t, 0, chat.calls)

	agent.SetStrategy(StrategyChat)
	_, err = agent.Process(context.Background(), schema.NewInput("为什么"))
	require.NoError(t, err)
	assert.Equal(t, 1, chat.calls)
}

func TestProcessSentimentAdjustment(t *testing.T) {
	chat := &stubRunner{label: "chat"}
	agent := New(
		WithChat(chat),
		WithStrategy(StrategyChat),
		WithAnalyzer(&stubAnalyzer{polarity: sentiment.Negative}),
		WithShowAnalysis(true),
	)

	out, err := agent.Process(context.Background(), schema.NewInput("今天真倒霉"))
	require.NoError(t, err)
	assert.Contains(t, out.ChatMessage, "情感分析结果")
	assert.Contains(t, out.ChatMessage, "chat: 今天真倒霉")
}

type stubReader struct {
	fetched []string
}

func (s *stubReader) Run(ctx context.Context, input *linkreader.Input) (*linkreader.Output, error) {
	s.fetched = append(s.fetched, input.Link)
	return &linkreader.Output{Title: "示例页面", Content: "页面正文"}, nil
}

func TestProcessReadsPastedLinks(t *testing.T) {
	chat := &stubRunner{label: "chat"}
	reader := &stubReader{}
	agent := New(WithChat(chat), WithStrategy(StrategyChat), WithLinkReader(reader))

	out, err := agent.Process(context.Background(), schema.NewInput("帮我总结 https://example.com/post"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/post"}, reader.fetched)
	assert.Contains(t, out.ChatMessage, "页面正文")
	assert.Contains(t, out.ChatMessage, "帮我总结")

	// Messages without URLs never touch the reader.
	_, err = agent.Process(context.Background(), schema.NewInput("你好"))
	require.NoError(t, err)
	assert.Len(t, reader.fetched, 1)
}

func TestProcessNoModelConfigured(t *testing.T) {
	agent := New(WithStrategy(StrategyChat))
	_, err := agent.Process(context.Background(), schema.NewInput("你好"))
	assert.Error(t, err)
}
