package government

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/sentiment"
)

type stubModel struct {
	lastPrompt string
}

func (s *stubModel) Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error {
	s.lastPrompt = input.ChatMessage
	output.ChatMessage = "model answer"
	return nil
}

type stubAnalyzer struct{}

func (s *stubAnalyzer) Run(ctx context.Context, input *sentiment.Input) (*sentiment.Output, error) {
	return &sentiment.Output{Polarity: sentiment.Negative}, nil
}

func TestProcessCatalogHit(t *testing.T) {
	agent := New()
	out, err := agent.Process(context.Background(), schema.NewInput("我想办理身份证需要什么材料"))
	require.NoError(t, err)
	assert.Contains(t, out.ChatMessage, "身份证办理办事指南")
	assert.Contains(t, out.ChatMessage, "户口簿")
	assert.Contains(t, out.ChatMessage, "办理流程")
}

func TestProcessFallsBackToModel(t *testing.T) {
	model := &stubModel{}
	agent := New(WithModel(model))

	out, err := agent.Process(context.Background(), schema.NewInput("居住证怎么办"))
	require.NoError(t, err)
	assert.Equal(t, "model answer", out.ChatMessage)
	assert.Equal(t, "居住证怎么办", model.lastPrompt)
}

func TestProcessSentimentAdjustment(t *testing.T) {
	agent := New(WithAnalyzer(&stubAnalyzer{}))
	out, err := agent.Process(context.Background(), schema.NewInput("社保断缴了真烦"))
	require.NoError(t, err)
	// The catalog guide is kept, wrapped in a soothing template.
	assert.Contains(t, out.ChatMessage, "社保查询办事指南")
	assert.NotEqual(t, 0, len(out.ChatMessage))
}

func TestProcessNoModelNoCatalogHit(t *testing.T) {
	agent := New()
	_, err := agent.Process(context.Background(), schema.NewInput("居住证怎么办"))
	assert.Error(t, err)
}
