package education

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
)

type stubModel struct {
	lastPrompt string
}

func (s *stubModel) Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error {
	s.lastPrompt = input.ChatMessage
	output.ChatMessage = "model answer"
	return nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text    string
		subject Subject
		query   QueryType
	}{
		{"计算 3+5*2", SubjectMath, QueryCalculation},
		{"什么是微积分", SubjectMath, QueryConcept},
		{"求解方程 x^2 = 4", SubjectMath, QuerySolve},
		{"物理中的能量守恒是什么", SubjectPhysics, QueryConcept},
		{"化学反应速率受什么影响", SubjectChemistry, QueryGeneral},
		{"帮我讲讲历史", SubjectGeneral, QueryGeneral},
	}
	for _, tt := range tests {
		subject, query := Classify(tt.text)
		assert.Equal(t, tt.subject, subject, tt.text)
		assert.Equal(t, tt.query, query, tt.text)
	}
}

func TestExtractExpression(t *testing.T) {
	expr, ok := ExtractExpression("帮我计算 3+5*2 等于多少")
	require.True(t, ok)
	assert.Equal(t, "3+5*2", expr)

	// A bare number is not an expression.
	_, ok = ExtractExpression("今年是 2026 年")
	assert.False(t, ok)

	_, ok = ExtractExpression("没有算式")
	assert.False(t, ok)
}

func TestEvaluate(t *testing.T) {
	v, err := Evaluate("3+5*2")
	require.NoError(t, err)
	assert.Equal(t, 13.0, v)

	v, err = Evaluate("2^10")
	require.NoError(t, err)
	assert.Equal(t, 1024.0, v)

	v, err = Evaluate("(1+2)/4")
	require.NoError(t, err)
	assert.Equal(t, 0.75, v)

	_, err = Evaluate("3+*")
	assert.Error(t, err)
}

func TestProcessArithmeticSkipsModel(t *testing.T) {
	model := &stubModel{}
	agent := New(WithModel(model))

	out, err := agent.Process(context.Background(), schema.NewInput("计算 3+5*2"))
	require.NoError(t, err)
	assert.Equal(t, "3+5*2 = 13", out.ChatMessage)
	assert.Empty(t, model.lastPrompt)
}

func TestProcessFallsBackToModel(t *testing.T) {
	model := &stubModel{}
	agent := New(WithModel(model))

	out, err := agent.Process(context.Background(), schema.NewInput("什么是导数"))
	require.NoError(t, err)
	assert.Equal(t, "model answer", out.ChatMessage)
	assert.Equal(t, "什么是导数", model.lastPrompt)
}

func ExampleEvaluate() {
	v, _ := Evaluate("(3+5)*2")
	fmt.Println(v)
	// Output: 16
}

func TestProcessNoModel(t *testing.T) {
	agent := New()
	_, err := agent.Process(context.Background(), schema.NewInput("什么是导数"))
	assert.Error(t, err)
}
