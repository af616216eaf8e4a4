package speech

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeRecognitionServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()

		// First message is the config.
		_, bs, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var cfg struct {
			Config struct {
				SampleRate int `json:"sample_rate"`
			} `json:"config"`
		}
		if err := json.Unmarshal(bs, &cfg); err != nil || cfg.Config.SampleRate != 16000 {
			t.Errorf("unexpected config message %s", bs)
		}

		for {
			typ, bs, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && strings.Contains(string(bs), "eof") {
				conn.Write(ctx, websocket.MessageText, []byte(`{"text":"今天天气怎么样"}`))
				return
			}
			conn.Write(ctx, websocket.MessageText, []byte(`{"partial":"今天"}`))
		}
	}))
}

func TestRecognizerRun(t *testing.T) {
	srv := newFakeRecognitionServer(t)
	defer srv.Close()

	tool := NewRecognizer(WithServerURL(srv.URL), WithChunkSize(512))
	out, err := tool.Run(context.Background(), NewRecognizeInput(make([]byte, 2048)))
	require.NoError(t, err)
	assert.Equal(t, "今天天气怎么样", out.Text)
}

func TestRecognizerRejectsEmptyAudio(t *testing.T) {
	tool := NewRecognizer()
	_, err := tool.Run(context.Background(), &RecognizeInput{})
	assert.Error(t, err)
}

func TestSynthesizerRun(t *testing.T) {
	var requests []synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)
		w.Write([]byte("PCM:" + req.Text + ";"))
	}))
	defer srv.Close()

	tool := NewSynthesizer(WithEndpoint(srv.URL), WithVoice("zh"), WithMaxChunk(40))
	out, err := tool.Run(context.Background(), NewSynthesizeInput("First sentence here. Second sentence here. Third one."))
	require.NoError(t, err)
	assert.Equal(t, len(requests), out.Segments)
	assert.Greater(t, out.Segments, 1)
	assert.Contains(t, string(out.Audio), "First sentence here.")
	for _, req := range requests {
		assert.Equal(t, "zh", req.Voice)
	}
}

func TestChunkSentences(t *testing.T) {
	chunks := ChunkSentences("One. Two. Three.", 12)
	assert.Equal(t, []string{"One. Two.", "Three."}, chunks)

	// A short text stays whole.
	chunks = ChunkSentences("只有一句话。", 300)
	assert.Equal(t, []string{"只有一句话。"}, chunks)
}
