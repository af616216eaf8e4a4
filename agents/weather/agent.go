package weather

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/weather"
	"github.com/polychat-ai/polychat/tools/weatherchart"
)

const noCityReply = "抱歉，我没有识别出您想查询哪个城市的天气。请告诉我城市名，例如：北京天气怎么样？"

// WeatherTool abstracts the weather lookup tool.
type WeatherTool interface {
	Run(ctx context.Context, input *weather.Input) (*weather.Output, error)
}

// ChartTool abstracts the temperature chart renderer.
type ChartTool interface {
	Run(ctx context.Context, input *weatherchart.Input) (*weatherchart.Output, error)
}

type Config struct {
	name   string
	tool   WeatherTool
	chart  ChartTool
	logger zerolog.Logger
}

// Agent resolves weather questions without calling a language model. It
// parses the city and forecast window out of the text, queries the weather
// tool and formats a report. Multi-day queries also render a temperature
// chart, kept for the web layer to serve.
type Agent struct {
	Config

	chartMtx  sync.RWMutex
	lastChart []byte
}

type Option func(c *Config)

func WithName(name string) Option {
	return func(c *Config) {
		c.name = name
	}
}

func WithTool(tool WeatherTool) Option {
	return func(c *Config) {
		c.tool = tool
	}
}

func WithChart(chart ChartTool) Option {
	return func(c *Config) {
		c.chart = chart
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.logger = logger.With().Str("component", "weather").Logger()
	}
}

func New(opts ...Option) *Agent {
	ret := new(Agent)
	ret.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.name == "" {
		ret.name = "WeatherAgent"
	}
	return ret
}

// Name implements agents.IntentHandler.
func (a *Agent) Name() string {
	return a.name
}

// LastChart returns the PNG chart of the most recent forecast reply, or nil.
func (a *Agent) LastChart() []byte {
	a.chartMtx.RLock()
	defer a.chartMtx.RUnlock()
	return a.lastChart
}

// Process implements agents.IntentHandler.
func (a *Agent) Process(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	city, days := weather.ParseQuery(input.ChatMessage)
	if city == "" {
		return schema.NewOutput(noCityReply), nil
	}
	a.logger.Info().Str("city", city).Int("days", days).Msg("weather lookup")

	report, err := a.tool.Run(ctx, weather.NewInput(city, days))
	if err != nil {
		return nil, fmt.Errorf("weather lookup for %s: %w", city, err)
	}

	a.updateChart(ctx, report)
	return schema.NewOutput(FormatReport(report)), nil
}

func (a *Agent) updateChart(ctx context.Context, report *weather.Output) {
	a.chartMtx.Lock()
	a.lastChart = nil
	a.chartMtx.Unlock()
	if a.chart == nil || len(report.Daily) < 2 {
		return
	}
	dates := make([]string, 0, len(report.Daily))
	highs := make([]float64, 0, len(report.Daily))
	lows := make([]float64, 0, len(report.Daily))
	for _, day := range report.Daily {
		high, err1 := strconv.ParseFloat(day.High, 64)
		low, err2 := strconv.ParseFloat(day.Low, 64)
		if err1 != nil || err2 != nil {
			return
		}
		dates = append(dates, day.Date)
		highs = append(highs, high)
		lows = append(lows, low)
	}
	out, err := a.chart.Run(ctx, weatherchart.NewInput(dates, highs, lows))
	if err != nil {
		a.logger.Warn().Err(err).Msg("chart rendering failed")
		return
	}
	a.chartMtx.Lock()
	a.lastChart = out.PNG
	a.chartMtx.Unlock()
}

// FormatReport renders a weather report for chat display.
func FormatReport(out *weather.Output) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📍 %s", out.Location.Name)
	if out.Now != nil {
		fmt.Fprintf(&b, "\n🕐 当前天气：%s", out.Now.Text)
		fmt.Fprintf(&b, "\n🌡️ 当前气温：%s°C", out.Now.Temperature)
	}
	if len(out.Daily) > 0 {
		b.WriteString("\n📅 未来天气：")
		for _, day := range out.Daily {
			fmt.Fprintf(&b, "\n  %s：%s，%s°C ~ %s°C", day.Date, day.TextDay, day.Low, day.High)
		}
	}
	if out.LastUpdate != "" {
		fmt.Fprintf(&b, "\n🔄 更新时间：%s", out.LastUpdate)
	}
	return b.String()
}
