package weatherchart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools"
)

// Input Schema for the temperature chart tool.
type Input struct {
	schema.Base
	// Dates one label per day, oldest first.
	Dates []string `json:"dates" jsonschema:"title=dates,description=One label per day." validate:"required,min=2"`
	// Highs daily high temperatures in degrees.
	Highs []float64 `json:"highs" jsonschema:"title=highs,description=Daily high temperatures." validate:"required"`
	// Lows daily low temperatures in degrees.
	Lows []float64 `json:"lows" jsonschema:"title=lows,description=Daily low temperatures." validate:"required"`
}

func NewInput(dates []string, highs, lows []float64) *Input {
	return &Input{
		Dates: dates,
		Highs: highs,
		Lows:  lows,
	}
}

func (s Input) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

// Output holds the rendered chart.
type Output struct {
	schema.Base
	// PNG is the encoded chart image.
	PNG []byte `json:"png,omitempty" jsonschema:"title=png,description=The encoded chart image."`
}

type Config struct {
	tools.Config
	width  int
	height int
	margin int
}

// Tool renders a daily high/low temperature line chart as a PNG image.
type Tool struct {
	Config
}

type Option func(c *Config)

func WithSize(width, height int) Option {
	return func(c *Config) {
		c.width = width
		c.height = height
	}
}

func New(opts ...Option) *Tool {
	ret := new(Tool)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle("WeatherChartTool")
	}
	if ret.width == 0 {
		ret.width = 800
	}
	if ret.height == 0 {
		ret.height = 600
	}
	if ret.margin == 0 {
		ret.margin = 60
	}
	return ret
}

var (
	axisColor = color.RGBA{60, 60, 60, 255}
	gridColor = color.RGBA{220, 220, 220, 255}
	highColor = color.RGBA{220, 70, 50, 255}
	lowColor  = color.RGBA{50, 110, 220, 255}
)

// Run renders the chart.
func (t *Tool) Run(ctx context.Context, input *Input) (*Output, error) {
	n := len(input.Dates)
	if n < 2 {
		return nil, fmt.Errorf("chart needs at least two days, got %d", n)
	}
	if len(input.Highs) != n || len(input.Lows) != n {
		return nil, fmt.Errorf("dates, highs and lows must have equal length")
	}

	minTemp, maxTemp := input.Lows[0], input.Highs[0]
	for i := 0; i < n; i++ {
		if input.Lows[i] < minTemp {
			minTemp = input.Lows[i]
		}
		if input.Highs[i] > maxTemp {
			maxTemp = input.Highs[i]
		}
	}
	minTemp -= 5
	maxTemp += 5

	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for x := 0; x < t.width; x++ {
		for y := 0; y < t.height; y++ {
			img.Set(x, y, color.White)
		}
	}

	plotW := t.width - 2*t.margin
	plotH := t.height - 2*t.margin
	toX := func(i int) int {
		return t.margin + i*plotW/(n-1)
	}
	toY := func(temp float64) int {
		frac := (temp - minTemp) / (maxTemp - minTemp)
		return t.height - t.margin - int(frac*float64(plotH))
	}

	// Horizontal gridlines every 5 degrees.
	for tick := int(minTemp); tick <= int(maxTemp); tick++ {
		if tick%5 != 0 {
			continue
		}
		y := toY(float64(tick))
		drawLine(img, t.margin, y, t.width-t.margin, y, gridColor)
	}
	// Axes.
	drawLine(img, t.margin, t.margin, t.margin, t.height-t.margin, axisColor)
	drawLine(img, t.margin, t.height-t.margin, t.width-t.margin, t.height-t.margin, axisColor)

	plotSeries(img, input.Highs, toX, toY, highColor)
	plotSeries(img, input.Lows, toX, toY, lowColor)

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return &Output{PNG: buf.Bytes()}, nil
}

func plotSeries(img *image.RGBA, values []float64, toX func(int) int, toY func(float64) int, c color.RGBA) {
	for i := 0; i < len(values); i++ {
		x, y := toX(i), toY(values[i])
		drawMarker(img, x, y, c)
		if i > 0 {
			drawLine(img, toX(i-1), toY(values[i-1]), x, y, c)
		}
	}
}

func drawMarker(img *image.RGBA, cx, cy int, c color.RGBA) {
	for dx := -2; dx <= 2; dx++ {
		for dy := -2; dy <= 2; dy++ {
			img.Set(cx+dx, cy+dy, c)
		}
	}
}

// drawLine rasterizes a segment with the integer Bresenham walk.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
