package web

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/polychat-ai/polychat/schema"
)

const (
	maxVoiceUpload = 10 << 20
	maxImageUpload = 8 << 20
)

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	ReplyHTML string `json:"reply_html"`
	HasChart  bool   `json:"has_chart,omitempty"`
}

type voiceResponse struct {
	SessionID  string `json:"session_id"`
	Transcript string `json:"transcript"`
	Reply      string `json:"reply"`
	ReplyHTML  string `json:"reply_html"`
	Audio      string `json:"audio,omitempty"`
}

type indexData struct {
	SessionID string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := indexData{SessionID: uuid.NewString()}
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	intent, output, err := s.router.ProcessIntent(r.Context(), schema.NewInput(req.Message))
	if err != nil {
		s.logger.Error().Err(err).Str("session", req.SessionID).Msg("chat failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.eventBus.Publish(Event{
		Session: req.SessionID,
		Intent:  intent,
		Message: req.Message,
		Reply:   output.ChatMessage,
	})

	writeJSON(w, chatResponse{
		SessionID: req.SessionID,
		Reply:     output.ChatMessage,
		ReplyHTML: RenderMarkdown(output.ChatMessage),
		HasChart:  s.chart != nil && len(s.chart.LastChart()) > 0,
	})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.voice == nil {
		http.Error(w, "voice is disabled", http.StatusNotFound)
		return
	}
	audio, err := io.ReadAll(io.LimitReader(r.Body, maxVoiceUpload))
	if err != nil || len(audio) == 0 {
		http.Error(w, "audio body is required", http.StatusBadRequest)
		return
	}
	kind := mimetype.Detect(audio)
	if !strings.HasPrefix(kind.String(), "audio/") && !kind.Is("application/octet-stream") {
		s.logger.Warn().Str("mime", kind.String()).Msg("rejected voice upload")
		http.Error(w, "unsupported audio type "+kind.String(), http.StatusUnsupportedMediaType)
		return
	}

	ctx := r.Context()
	result, err := s.voice.Run(ctx, audio)
	if err != nil {
		s.logger.Error().Err(err).Msg("voice interaction failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if result.Transcript != "" {
		s.eventBus.Publish(Event{
			Session: sessionID,
			Message: result.Transcript,
			Reply:   result.Reply,
		})
	}

	resp := voiceResponse{
		SessionID:  sessionID,
		Transcript: result.Transcript,
		Reply:      result.Reply,
		ReplyHTML:  RenderMarkdown(result.Reply),
	}
	if len(result.Audio) > 0 {
		resp.Audio = base64.StdEncoding.EncodeToString(result.Audio)
	}
	writeJSON(w, resp)
}

type imageResponse struct {
	Reply     string `json:"reply"`
	ReplyHTML string `json:"reply_html"`
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.vision == nil {
		http.Error(w, "image chat is disabled", http.StatusNotFound)
		return
	}
	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()
	img, err := io.ReadAll(io.LimitReader(file, maxImageUpload))
	if err != nil {
		http.Error(w, "read image", http.StatusBadRequest)
		return
	}
	kind := mimetype.Detect(img)
	if !strings.HasPrefix(kind.String(), "image/") {
		http.Error(w, "unsupported image type "+kind.String(), http.StatusUnsupportedMediaType)
		return
	}
	message := strings.TrimSpace(r.FormValue("message"))
	if message == "" {
		message = "请描述这张图片。"
	}

	input := schema.NewInput(message)
	input.SetAttachement(&schema.Attachement{
		ImageURLs: []string{"data:" + kind.String() + ";base64," + base64.StdEncoding.EncodeToString(img)},
	})
	output := new(schema.Output)
	if err := s.vision.Run(r.Context(), input, output, nil); err != nil {
		s.logger.Error().Err(err).Msg("image chat failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, imageResponse{
		Reply:     output.ChatMessage,
		ReplyHTML: RenderMarkdown(output.ChatMessage),
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.router.ClearHistory()
	writeJSON(w, map[string]string{"status": "ok"})
}

type statsResponse struct {
	UptimeSeconds int64            `json:"uptime_seconds"`
	Messages      int              `json:"messages"`
	Intents       map[string]int64 `json:"intents"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statsResponse{
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Messages:      s.router.History().MessageCount(),
		Intents:       s.router.Stats(),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.chart == nil {
		http.NotFound(w, r)
		return
	}
	png := s.chart.LastChart()
	if len(png) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
