package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polychat-ai/polychat/agents"
	"github.com/polychat-ai/polychat/agents/voice"
	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
)

type echoHandler struct{}

func (echoHandler) Name() string { return "echo" }

func (echoHandler) Process(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	return schema.NewOutput("**echo** " + input.ChatMessage), nil
}

type stubChart struct {
	png []byte
}

func (s *stubChart) LastChart() []byte { return s.png }

type stubVoice struct{}

func (stubVoice) Run(ctx context.Context, audio []byte) (*voice.Result, error) {
	return &voice.Result{Transcript: "你好", Reply: "你好！", Audio: []byte{1, 2}}, nil
}

type stubVision struct{}

func (stubVision) Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error {
	n := 0
	if att := input.Attachement(); att != nil {
		n = len(att.ImageURLs)
	}
	output.ChatMessage = fmt.Sprintf("saw %d image(s): %s", n, input.ChatMessage)
	return nil
}

func newTestServer(cfg Config, chart ChartSource, voicePipe VoicePipeline) *Server {
	router := agents.NewRouter()
	router.Register(agents.IntentConversation, echoHandler{})
	return New(cfg, router, chart, voicePipe, stubVision{}, zerolog.Nop())
}

func TestIndexShipsAllPanels(t *testing.T) {
	s := newTestServer(Config{}, nil, nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	for _, id := range []string{"panel-chat", "panel-voice", "panel-image", "panel-activity"} {
		assert.Contains(t, page, id)
	}

	// The client script must exercise every API the page's panels depend on.
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	js := rec.Body.String()
	for _, endpoint := range []string{"/api/chat", "/api/voice", "/api/image", "/api/events/stream", "/api/chart", "/api/history/clear"} {
		assert.Contains(t, js, endpoint)
	}
}

func TestHandleChat(t *testing.T) {
	s := newTestServer(Config{}, nil, nil)
	body, _ := json.Marshal(chatRequest{Message: "你好"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "**echo** 你好", resp.Reply)
	assert.Contains(t, resp.ReplyHTML, "<strong>echo</strong>")
	assert.NotEmpty(t, resp.SessionID)
}

func TestHandleChatRejectsEmptyMessage(t *testing.T) {
	s := newTestServer(Config{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(`{"message":"  "}`)))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(Config{Username: "admin", Password: "secret"}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleStats(t *testing.T) {
	s := newTestServer(Config{}, nil, nil)
	body, _ := json.Marshal(chatRequest{Message: "你好"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	s.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Messages)
	assert.Equal(t, int64(1), resp.Intents[agents.IntentConversation])
}

func TestHandleChart(t *testing.T) {
	s := newTestServer(Config{}, &stubChart{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/chart", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = newTestServer(Config{}, &stubChart{png: []byte("fake png")}, nil)
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestHandleVoice(t *testing.T) {
	s := newTestServer(Config{}, nil, stubVoice{})
	req := httptest.NewRequest(http.MethodPost, "/api/voice", bytes.NewReader(make([]byte, 1024)))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp voiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "你好", resp.Transcript)
	assert.Equal(t, "你好！", resp.Reply)
	assert.NotEmpty(t, resp.Audio)
}

func TestHandleVoiceDisabled(t *testing.T) {
	s := newTestServer(Config{}, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/voice", bytes.NewReader([]byte{1}))
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleImage(t *testing.T) {
	s := newTestServer(Config{}, nil, nil)

	var imgBuf bytes.Buffer
	require.NoError(t, png.Encode(&imgBuf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image", "test.png")
	require.NoError(t, err)
	fw.Write(imgBuf.Bytes())
	mw.WriteField("message", "这是什么？")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/image", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp imageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "saw 1 image(s): 这是什么？", resp.Reply)
}

func TestHandleImageRejectsNonImage(t *testing.T) {
	s := newTestServer(Config{}, nil, nil)

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, _ := mw.CreateFormFile("image", "notes.txt")
	fw.Write([]byte("just text"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/image", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandleEventStream(t *testing.T) {
	s := newTestServer(Config{}, nil, nil)

	body, _ := json.Marshal(chatRequest{Message: "你好"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	s.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), req)

	srv := httptest.NewServer(s.httpServer.Handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	streamReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(streamReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readFrame := func() (event, data string) {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return event, data
			}
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				event = v
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok {
				data = v
			}
		}
	}

	// The exchange made before connecting is replayed from the ring buffer,
	// tagged with the intent that dispatched it.
	event, data := readFrame()
	assert.Equal(t, "chat", event)
	assert.Contains(t, data, `"intent":"conversation"`)
	assert.Contains(t, data, "**echo** 你好")

	// Once the replay frame arrived the subscription is live.
	s.eventBus.Publish(Event{Message: "再见", Reply: "下次见"})
	event, data = readFrame()
	assert.Equal(t, "chat", event)
	assert.Contains(t, data, "下次见")

	// Dropping the client must release the handler, otherwise srv.Close
	// (which waits for in-flight requests) would hang the test.
	cancel()
}

func TestEventBusRing(t *testing.T) {
	eb := NewEventBus(2)
	eb.Publish(Event{Message: "a", Reply: "1"})
	eb.Publish(Event{Message: "b", Reply: "2"})
	eb.Publish(Event{Message: "c", Reply: "3"})

	recent := eb.Recent()
	require.Len(t, recent, 2)
	assert.Contains(t, string(recent[0]), `"b"`)
	assert.Contains(t, string(recent[1]), `"c"`)
}
