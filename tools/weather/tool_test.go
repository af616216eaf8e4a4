package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/weather/now.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q, want %q", got, "test-key")
		}
		if got := r.URL.Query().Get("location"); got != "Beijing" {
			t.Errorf("location = %q, want %q", got, "Beijing")
		}
		json.NewEncoder(w).Encode(apiResponse{Results: []apiResult{{
			Location:   Location{Name: "北京"},
			Now:        &Now{Text: "晴", Temperature: "25"},
			LastUpdate: "2026-08-23T10:00:00+08:00",
		}}})
	})
	mux.HandleFunc("/weather/daily.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("days"); got != "3" {
			t.Errorf("days = %q, want %q", got, "3")
		}
		json.NewEncoder(w).Encode(apiResponse{Results: []apiResult{{
			Location: Location{Name: "北京"},
			Daily: []Daily{
				{Date: "2026-08-23", TextDay: "晴", High: "30", Low: "22"},
				{Date: "2026-08-24", TextDay: "多云", High: "29", Low: "21"},
				{Date: "2026-08-25", TextDay: "小雨", High: "26", Low: "20"},
			},
			LastUpdate: "2026-08-23T08:00:00+08:00",
		}}})
	})
	return httptest.NewServer(mux)
}

func TestToolRunNow(t *testing.T) {
	srv := newFakeAPI(t)
	defer srv.Close()

	tool := New(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	out, err := tool.Run(context.Background(), NewInput("北京", 1))
	require.NoError(t, err)
	require.NotNil(t, out.Now)
	assert.Equal(t, "晴", out.Now.Text)
	assert.Equal(t, "25", out.Now.Temperature)
	assert.Empty(t, out.Daily)
}

func TestToolRunForecast(t *testing.T) {
	srv := newFakeAPI(t)
	defer srv.Close()

	tool := New(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	out, err := tool.Run(context.Background(), NewInput("北京", 3))
	require.NoError(t, err)
	assert.Len(t, out.Daily, 3)
	require.NotNil(t, out.Now)
	assert.Equal(t, "25", out.Now.Temperature)
}

func TestToolRunValidation(t *testing.T) {
	tool := New(WithAPIKey("test-key"))
	_, err := tool.Run(context.Background(), NewInput("", 1))
	assert.Error(t, err)
	_, err = tool.Run(context.Background(), NewInput("北京", 9))
	assert.Error(t, err)
}

func TestToolRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(apiResponse{Results: []apiResult{{
			Location: Location{Name: "北京"},
			Now:      &Now{Text: "晴", Temperature: "25"},
		}}})
	}))
	defer srv.Close()

	tool := New(WithAPIKey("k"), WithBaseURL(srv.URL), WithRetryDelay(time.Millisecond))
	out, err := tool.Run(context.Background(), NewInput("北京", 1))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "25", out.Now.Temperature)
}
