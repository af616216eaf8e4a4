package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/polychat-ai/polychat/agents"
	"github.com/polychat-ai/polychat/agents/voice"
	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
)

//go:embed static templates
var content embed.FS

// Config holds web UI settings passed to New.
type Config struct {
	Listen   string
	Username string // HTTP Basic Auth username (empty = no auth).
	Password string // HTTP Basic Auth password (empty = no auth).
}

// ChartSource exposes the most recent forecast chart.
type ChartSource interface {
	LastChart() []byte
}

// VoicePipeline handles one voice interaction.
type VoicePipeline interface {
	Run(ctx context.Context, audio []byte) (*voice.Result, error)
}

// VisionRunner answers a question about an attached image.
type VisionRunner interface {
	Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error
}

// Server serves the browser chat UI on a local TCP port.
type Server struct {
	listen     string
	router     *agents.Router
	chart      ChartSource
	voice      VoicePipeline
	vision     VisionRunner
	startedAt  time.Time
	httpServer *http.Server
	logger     zerolog.Logger
	templates  *template.Template
	eventBus   *EventBus
	username   string
	password   string
}

// New creates the web UI server. The chart, voice and vision parameters may
// be nil when the matching features are disabled. If cfg.Username and
// cfg.Password are non-empty, HTTP Basic Auth is required for all routes.
func New(cfg Config, router *agents.Router, chart ChartSource, voicePipe VoicePipeline, vision VisionRunner, logger zerolog.Logger) *Server {
	s := &Server{
		listen:    cfg.Listen,
		router:    router,
		chart:     chart,
		voice:     voicePipe,
		vision:    vision,
		startedAt: time.Now(),
		logger:    logger.With().Str("component", "web").Logger(),
		eventBus:  NewEventBus(50),
		username:  cfg.Username,
		password:  cfg.Password,
	}

	tmplFS, _ := fs.Sub(content, "templates")
	s.templates = template.Must(template.New("").ParseFS(tmplFS, "*.html"))

	mux := http.NewServeMux()

	staticFS, _ := fs.Sub(content, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/",
		http.FileServer(http.FS(staticFS))))

	mux.HandleFunc("GET /", s.handleIndex)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/voice", s.handleVoice)
	mux.HandleFunc("POST /api/image", s.handleImage)
	mux.HandleFunc("POST /api/history/clear", s.handleClearHistory)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/chart", s.handleChart)
	mux.HandleFunc("GET /api/events/stream", s.handleEventStream)

	s.httpServer = &http.Server{Handler: s.securityMiddleware(mux)}
	return s
}

// securityMiddleware adds security headers and optional HTTP Basic Auth to
// all responses.
func (s *Server) securityMiddleware(next http.Handler) http.Handler {
	authEnabled := s.username != "" && s.password != ""
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")

		if authEnabled {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(s.username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) != 1 {
				w.Header().Set("WWW-Authenticate", `Basic realm="polychat"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Start begins listening on TCP. Blocks until Shutdown or error.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	s.logger.Info().Str("listen", s.listen).Msg("web UI listening")
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
