package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeAPI(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := new(int)
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", func(w http.ResponseWriter, r *http.Request) {
		*tokenCalls++
		q := r.URL.Query()
		if got := q.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		if got := q.Get("client_id"); got != "ak" {
			t.Errorf("client_id = %q", got)
		}
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 2592000})
	})
	mux.HandleFunc("/rpc/2.0/nlp/v1/sentiment_classify", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_token"); got != "tok" {
			t.Errorf("access_token = %q", got)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		resp := classifyResponse{}
		if strings.Contains(req["text"], "喜欢") {
			resp.Items = append(resp.Items, classifyItem{Sentiment: 2, Confidence: 0.95, PositiveProb: 0.97, NegativeProb: 0.03})
		} else {
			resp.Items = append(resp.Items, classifyItem{Sentiment: 0, Confidence: 0.88, PositiveProb: 0.05, NegativeProb: 0.95})
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/rpc/2.0/nlp/v1/emotion", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"label":"optimistic","prob":0.9,"subitems":[{"label":"happy","prob":0.8}]},{"label":"neutral","prob":0.1}]}`))
	})
	return httptest.NewServer(mux), tokenCalls
}

func TestRunPositive(t *testing.T) {
	srv, tokenCalls := newFakeAPI(t)
	defer srv.Close()

	tool := New(WithCredentials("ak", "sk"), WithBaseURL(srv.URL))
	out, err := tool.Run(context.Background(), NewInput("我很喜欢这个产品"))
	require.NoError(t, err)
	assert.Equal(t, Positive, out.Polarity)
	assert.InDelta(t, 0.95, out.Confidence, 1e-9)
	assert.Equal(t, "乐观", out.MainEmotion)
	require.Len(t, out.Emotions, 2)
	require.Len(t, out.Emotions[0].SubEmotions, 1)
	assert.Equal(t, "开心", out.Emotions[0].SubEmotions[0].Display)

	// Second call reuses the cached token.
	_, err = tool.Run(context.Background(), NewInput("我很喜欢它"))
	require.NoError(t, err)
	assert.Equal(t, 1, *tokenCalls)
}

func TestRunNegative(t *testing.T) {
	srv, _ := newFakeAPI(t)
	defer srv.Close()

	tool := New(WithCredentials("ak", "sk"), WithBaseURL(srv.URL))
	out, err := tool.Run(context.Background(), NewInput("太糟糕了"))
	require.NoError(t, err)
	assert.Equal(t, Negative, out.Polarity)
}

func TestRunEmptyText(t *testing.T) {
	tool := New(WithCredentials("ak", "sk"))
	_, err := tool.Run(context.Background(), NewInput("  "))
	assert.Error(t, err)
}

func TestAdjustResponse(t *testing.T) {
	adjusted := AdjustResponse(Negative, "已为您查询订单。")
	assert.Contains(t, adjusted, "已为您查询订单。")
	assert.Equal(t, "hello", AdjustResponse("unknown", "hello"))
}

func TestFormatReport(t *testing.T) {
	report := FormatReport(&Output{
		Polarity:          Positive,
		Confidence:        0.9,
		PositiveProb:      0.92,
		NegativeProb:      0.08,
		MainEmotion:       "乐观",
		EmotionConfidence: 0.85,
	})
	assert.Contains(t, report, "情感倾向: positive")
	assert.Contains(t, report, "主要情绪: 乐观")
}
