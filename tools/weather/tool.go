package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools"
)

// MaxForecastDays is the longest forecast window a query may request.
const MaxForecastDays = 3

const (
	defaultBaseURL  = "https://api.seniverse.com/v3"
	defaultLanguage = "zh-Hans"
	defaultUnit     = "c"
)

// Input Schema for a weather lookup.
type Input struct {
	schema.Base
	// City name to look up.
	City string `json:"city" jsonschema:"title=city,description=The city name to look up." validate:"required"`
	// Days number of days to report, 1 means today only.
	Days int `json:"days" jsonschema:"title=days,description=Number of days to report starting from today,minimum=1,maximum=3" validate:"required,min=1,max=3"`
}

func NewInput(city string, days int) *Input {
	return &Input{
		City: city,
		Days: days,
	}
}

func (s Input) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

// Location identifies the place a report refers to.
type Location struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Country  string `json:"country,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Now is the current weather condition. The upstream API reports values as
// strings.
type Now struct {
	Text        string `json:"text"`
	Code        string `json:"code,omitempty"`
	Temperature string `json:"temperature"`
}

// Daily is a single day of forecast.
type Daily struct {
	Date          string `json:"date"`
	TextDay       string `json:"text_day"`
	TextNight     string `json:"text_night"`
	High          string `json:"high"`
	Low           string `json:"low"`
	WindDirection string `json:"wind_direction,omitempty"`
	WindScale     string `json:"wind_scale,omitempty"`
	Humidity      string `json:"humidity,omitempty"`
}

// Output Schema for the output of the weather tool.
type Output struct {
	schema.Base
	Location   Location `json:"location"`
	Now        *Now     `json:"now,omitempty"`
	Daily      []Daily  `json:"daily,omitempty"`
	LastUpdate string   `json:"last_update,omitempty"`
}

func (s Output) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

type apiResult struct {
	Location   Location `json:"location"`
	Now        *Now     `json:"now,omitempty"`
	Daily      []Daily  `json:"daily,omitempty"`
	LastUpdate string   `json:"last_update,omitempty"`
}

type apiResponse struct {
	Results []apiResult `json:"results"`
}

type Config struct {
	tools.Config
	apiKey      string
	baseURL     string
	language    string
	unit        string
	maxAttempts int
	retryDelay  time.Duration
	httpClient  *http.Client
}

// Tool queries current weather and daily forecasts from the Seniverse REST
// API. CJK city names are transliterated before lookup and the results are
// cached per city.
type Tool struct {
	Config
	validate *validator.Validate

	cacheMtx  sync.RWMutex
	nameCache map[string]string
}

func New(opts ...Option) *Tool {
	ret := new(Tool)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle("WeatherQueryTool")
	}
	if ret.Description() == "" {
		ret.SetDescription("Looks up current weather and short range forecasts for a city.")
	}
	if ret.baseURL == "" {
		ret.baseURL = defaultBaseURL
	}
	if ret.language == "" {
		ret.language = defaultLanguage
	}
	if ret.unit == "" {
		ret.unit = defaultUnit
	}
	if ret.maxAttempts == 0 {
		ret.maxAttempts = 3
	}
	if ret.retryDelay == 0 {
		ret.retryDelay = time.Second
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	ret.validate = validator.New()
	ret.nameCache = make(map[string]string)
	return ret
}

// Run executes the weather lookup with the given parameters. Multi-day
// queries merge the daily forecast with the current conditions.
func (t *Tool) Run(ctx context.Context, input *Input) (*Output, error) {
	if err := t.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid weather input: %w", err)
	}
	loc := t.cityLocation(input.City)
	if input.Days <= 1 {
		now, err := t.fetchNow(ctx, loc)
		if err != nil {
			return nil, err
		}
		return &Output{
			Location:   now.Location,
			Now:        now.Now,
			LastUpdate: now.LastUpdate,
		}, nil
	}
	daily, err := t.fetchDaily(ctx, loc, input.Days)
	if err != nil {
		return nil, err
	}
	out := &Output{
		Location:   daily.Location,
		Daily:      daily.Daily,
		LastUpdate: daily.LastUpdate,
	}
	if len(out.Daily) > input.Days {
		out.Daily = out.Daily[:input.Days]
	}
	// Current conditions are best effort on forecast queries.
	if now, err := t.fetchNow(ctx, loc); err == nil {
		out.Now = now.Now
	}
	return out, nil
}

func (t *Tool) cityLocation(city string) string {
	t.cacheMtx.RLock()
	loc, ok := t.nameCache[city]
	t.cacheMtx.RUnlock()
	if ok {
		return loc
	}
	loc = TransliterateCity(city)
	t.cacheMtx.Lock()
	t.nameCache[city] = loc
	t.cacheMtx.Unlock()
	return loc
}

func (t *Tool) fetchNow(ctx context.Context, loc string) (*apiResult, error) {
	values := url.Values{}
	values.Set("key", t.apiKey)
	values.Set("location", loc)
	values.Set("language", t.language)
	values.Set("unit", t.unit)
	return t.fetch(ctx, fmt.Sprintf("%s/weather/now.json?%s", t.baseURL, values.Encode()))
}

func (t *Tool) fetchDaily(ctx context.Context, loc string, days int) (*apiResult, error) {
	values := url.Values{}
	values.Set("key", t.apiKey)
	values.Set("location", loc)
	values.Set("language", t.language)
	values.Set("unit", t.unit)
	values.Set("start", "0")
	values.Set("days", fmt.Sprintf("%d", days))
	return t.fetch(ctx, fmt.Sprintf("%s/weather/daily.json?%s", t.baseURL, values.Encode()))
}

func (t *Tool) fetch(ctx context.Context, link string) (*apiResult, error) {
	var lastErr error
	delay := t.retryDelay
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		result, err := t.fetchOnce(ctx, link)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("weather API failed after %d attempts: %w", t.maxAttempts, lastErr)
}

func (t *Tool) fetchOnce(ctx context.Context, link string) (*apiResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather API request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API status %d", resp.StatusCode)
	}
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	if len(body.Results) == 0 {
		return nil, fmt.Errorf("weather API returned no results")
	}
	return &body.Results[0], nil
}
