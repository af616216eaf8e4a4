package weather

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/weather"
	"github.com/polychat-ai/polychat/tools/weatherchart"
)

type stubWeatherTool struct {
	lastInput *weather.Input
	output    *weather.Output
	err       error
}

func (s *stubWeatherTool) Run(ctx context.Context, input *weather.Input) (*weather.Output, error) {
	s.lastInput = input
	return s.output, s.err
}

func TestProcessCurrentWeather(t *testing.T) {
	tool := &stubWeatherTool{output: &weather.Output{
		Location:   weather.Location{Name: "北京"},
		Now:        &weather.Now{Text: "晴", Temperature: "25"},
		LastUpdate: "2026-08-23T10:00:00+08:00",
	}}
	agent := New(WithTool(tool))

	out, err := agent.Process(context.Background(), schema.NewInput("北京天气怎么样"))
	require.NoError(t, err)
	assert.Equal(t, "北京", tool.lastInput.City)
	assert.Equal(t, 1, tool.lastInput.Days)
	assert.Contains(t, out.ChatMessage, "📍 北京")
	assert.Contains(t, out.ChatMessage, "当前天气：晴")
	assert.Contains(t, out.ChatMessage, "25°C")
	assert.Nil(t, agent.LastChart())
}

func TestProcessForecastRendersChart(t *testing.T) {
	tool := &stubWeatherTool{output: &weather.Output{
		Location: weather.Location{Name: "上海"},
		Daily: []weather.Daily{
			{Date: "2026-08-23", TextDay: "晴", High: "33", Low: "26"},
			{Date: "2026-08-24", TextDay: "多云", High: "32", Low: "25"},
			{Date: "2026-08-25", TextDay: "小雨", High: "29", Low: "24"},
		},
	}}
	agent := New(WithTool(tool), WithChart(weatherchart.New(weatherchart.WithSize(200, 150))))

	out, err := agent.Process(context.Background(), schema.NewInput("上海未来3天天气"))
	require.NoError(t, err)
	assert.Equal(t, 3, tool.lastInput.Days)
	assert.Contains(t, out.ChatMessage, "未来天气")
	assert.Contains(t, out.ChatMessage, "2026-08-25：小雨")
	assert.NotEmpty(t, agent.LastChart())
}

func ExampleFormatReport() {
	fmt.Println(FormatReport(&weather.Output{
		Location: weather.Location{Name: "北京"},
		Now:      &weather.Now{Text: "晴", Temperature: "25"},
	}))
	// Output:
	// 📍 北京
	// 🕐 当前天气：晴
	// 🌡️ 当前气温：25°C
}

func TestProcessNoCity(t *testing.T) {
	tool := &stubWeatherTool{}
	agent := New(WithTool(tool))

	out, err := agent.Process(context.Background(), schema.NewInput("天气怎么样"))
	require.NoError(t, err)
	assert.Contains(t, out.ChatMessage, "没有识别出")
	assert.Nil(t, tool.lastInput)
}
