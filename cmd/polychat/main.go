package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bububa/instructor-go/pkg/instructor"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/polychat-ai/polychat/agents"
	"github.com/polychat-ai/polychat/agents/conversation"
	"github.com/polychat-ai/polychat/agents/ecommerce"
	"github.com/polychat-ai/polychat/agents/education"
	"github.com/polychat-ai/polychat/agents/government"
	"github.com/polychat-ai/polychat/agents/voice"
	weatheragent "github.com/polychat-ai/polychat/agents/weather"
	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/components/knowledge"
	"github.com/polychat-ai/polychat/components/systemprompt/simple"
	"github.com/polychat-ai/polychat/config"
	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/linkreader"
	"github.com/polychat-ai/polychat/tools/sentiment"
	"github.com/polychat-ai/polychat/tools/speech"
	weathertool "github.com/polychat-ai/polychat/tools/weather"
	"github.com/polychat-ai/polychat/tools/weatherchart"
	"github.com/polychat-ai/polychat/web"
)

var version = "dev"

var cfgFile string

func main() {
	// Local development keys live in .env; absence is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "polychat",
		Short:   "Multi-agent chatbot served on a local port",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "path to the configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatbot and web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve() error {
	manager, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg := manager.Config()

	logger := newLogger(cfg.Logging)
	manager.SetLogger(logger)
	manager.Watch()

	router, weatherAgent := buildRouter(manager, cfg, logger)

	var voicePipe web.VoicePipeline
	if cfg.Features.Voice {
		voicePipe = buildVoicePipeline(cfg, router, logger)
	}
	var vision web.VisionRunner
	if m, ok := cfg.Models["minicpm"]; ok && m.Vision {
		vision = newChatAgent("VisionAgent", visionPrompt, m)
	}

	server := web.New(web.Config{
		Listen:   fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Username: cfg.Web.Auth.User,
		Password: cfg.Web.Auth.Password,
	}, router, weatherAgent, voicePipe, vision, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info().Str("version", version).Msgf("open http://%s:%d in your browser", cfg.Web.Host, cfg.Web.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Logging) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// newInstructor builds a structured-output client against an OpenAI
// compatible endpoint, which is what the local model daemon exposes.
func newInstructor(m config.Model) instructor.Instructor {
	clientCfg := openai.DefaultConfig(m.APIKey)
	if m.APIBase != "" {
		clientCfg.BaseURL = m.APIBase
	}
	clt := openai.NewClientWithConfig(clientCfg)
	return instructor.FromOpenAI(clt, instructor.WithMode(instructor.ModeJSON), instructor.WithMaxRetries(3), instructor.WithValidation())
}

// newBoundedMemory caps agent histories at 50 messages and roughly 6k tokens
// so long sessions do not grow without bound.
func newBoundedMemory() *components.Memory {
	memory := components.NewMemory(50)
	if counter, err := components.NewTikTokenCounter("cl100k_base"); err == nil {
		memory.SetTokenBudget(6000, counter)
	}
	return memory
}

func newChatAgent(name, prompt string, m config.Model) *agents.Agent[schema.Input, schema.Output] {
	memory := newBoundedMemory()
	return agents.NewAgent[schema.Input, schema.Output](
		agents.WithClient(newInstructor(m)),
		agents.WithModel(m.Name),
		agents.WithTemperature(m.Temperature),
		agents.WithMaxTokens(m.MaxTokens),
		agents.WithMemory(memory),
		agents.WithSystemPromptGenerator(simple.New(prompt)),
		agents.WithName(name),
	)
}

const (
	chatPrompt     = "你是一个友好的中文智能助手，回答要简洁准确。Always respond using the proper JSON schema."
	reasonPrompt   = "你是一个擅长推理的助手，回答前先逐步思考。Always respond using the proper JSON schema."
	polishPrompt   = "请把给定的回答润色成简洁友好的最终回复，保留全部事实。Always respond using the proper JSON schema."
	educationHint  = "你是一个耐心的辅导老师，结合参考资料讲解知识点。Always respond using the proper JSON schema."
	governmentHint = "你是政务服务助手，依据参考资料回答办事咨询，无法确定时建议咨询官方渠道。Always respond using the proper JSON schema."
	visionPrompt   = "你是一个图像理解助手，描述图片内容并回答相关问题。Always respond using the proper JSON schema."
)

func buildRouter(manager *config.Manager, cfg config.Config, logger zerolog.Logger) (*agents.Router, *weatheragent.Agent) {
	chatAgent := newChatAgent("QwenAgent", chatPrompt, cfg.Models["qwen"])
	reasonAgent := newChatAgent("DeepseekAgent", reasonPrompt, cfg.Models["deepseek"])
	polisher := agents.NewAgent[schema.Output, schema.Output](
		agents.WithClient(newInstructor(cfg.Models["qwen"])),
		agents.WithMemory(newBoundedMemory()),
		agents.WithModel(cfg.Models["qwen"].Name),
		agents.WithTemperature(cfg.Models["qwen"].Temperature),
		agents.WithMaxTokens(cfg.Models["qwen"].MaxTokens),
		agents.WithSystemPromptGenerator(simple.New(polishPrompt)),
		agents.WithName("PolishAgent"),
	)
	hybrid := agents.NewChain[schema.Input, schema.Output](reasonAgent, polisher)

	var analyzer *sentiment.Tool
	if cfg.Features.Sentiment && cfg.APIs.Baidu.APIKey != "" {
		analyzer = sentiment.New(
			sentiment.WithCredentials(cfg.APIs.Baidu.APIKey, cfg.APIs.Baidu.SecretKey),
			sentiment.WithBaseURL(cfg.APIs.Baidu.BaseURL),
		)
	}

	convOpts := []conversation.Option{
		conversation.WithChat(chatAgent),
		conversation.WithReasoner(reasonAgent),
		conversation.WithHybridChain(hybrid),
		conversation.WithLinkReader(linkreader.New()),
		conversation.WithStrategy(conversation.Strategy(cfg.Strategy)),
		conversation.WithShowAnalysis(cfg.Features.ShowAnalysis),
		conversation.WithLogger(logger),
	}
	if analyzer != nil {
		convOpts = append(convOpts, conversation.WithAnalyzer(analyzer))
	}
	conversationAgent := conversation.New(convOpts...)

	eduStore := seedStore("education", cfg, education.DefaultDocuments(), logger)
	govStore := seedStore("government", cfg, government.DefaultDocuments(), logger)

	weatherAgent := weatheragent.New(
		weatheragent.WithTool(weathertool.New(
			weathertool.WithAPIKey(cfg.APIs.Weather.Key),
			weathertool.WithBaseURL(cfg.APIs.Weather.BaseURL),
			weathertool.WithLanguage(cfg.APIs.Weather.Language),
			weathertool.WithUnit(cfg.APIs.Weather.Unit),
		)),
		weatheragent.WithChart(weatherchart.New()),
		weatheragent.WithLogger(logger),
	)

	educationAgent := education.New(
		education.WithModel(newChatAgent("EducationModel", educationHint, cfg.Models["qwen"])),
		education.WithKnowledge(eduStore),
		education.WithLogger(logger),
	)
	ecommerceAgent := ecommerce.New(
		ecommerce.WithModel(chatAgent),
		ecommerce.WithLogger(logger),
	)
	govOpts := []government.Option{
		government.WithModel(newChatAgent("GovernmentModel", governmentHint, cfg.Models["qwen"])),
		government.WithKnowledge(govStore),
		government.WithLogger(logger),
	}
	if analyzer != nil {
		govOpts = append(govOpts, government.WithAnalyzer(analyzer))
	}
	governmentAgent := government.New(govOpts...)

	router := agents.NewRouter(
		agents.WithRouterLogger(logger),
		agents.WithRules(agents.DefaultRules(manager)...),
	)
	router.Register(agents.IntentConversation, conversationAgent)
	router.Register(agents.IntentWeather, weatherAgent)
	router.Register(agents.IntentEducation, educationAgent)
	router.Register(agents.IntentEcommerce, ecommerceAgent)
	router.Register(agents.IntentGovernment, governmentAgent)
	return router, weatherAgent
}

// seedStore indexes the reference documents. A dead embeddings endpoint is
// not fatal: the agents answer without retrieval context.
func seedStore(name string, cfg config.Config, docs []knowledge.Document, logger zerolog.Logger) *knowledge.Store {
	clientCfg := openai.DefaultConfig(cfg.Embedding.APIKey)
	if cfg.Embedding.APIBase != "" {
		clientCfg.BaseURL = cfg.Embedding.APIBase
	}
	embed := knowledge.OpenAIEmbedding(openai.NewClientWithConfig(clientCfg), cfg.Embedding.Name)
	store, err := knowledge.NewStore(name, embed)
	if err != nil {
		logger.Warn().Err(err).Str("store", name).Msg("knowledge store unavailable")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := store.Add(ctx, docs...); err != nil {
		logger.Warn().Err(err).Str("store", name).Msg("knowledge seeding failed")
		return nil
	}
	logger.Info().Str("store", name).Int("documents", len(docs)).Msg("knowledge store ready")
	return store
}

func buildVoicePipeline(cfg config.Config, router *agents.Router, logger zerolog.Logger) *voice.Pipeline {
	recognizer := speech.NewRecognizer(
		speech.WithServerURL(cfg.Voice.RecognitionURL),
	)
	synthesizer := speech.NewSynthesizer(
		speech.WithEndpoint(cfg.Voice.TTS.Endpoint),
		speech.WithVoice(cfg.Voice.TTS.Voice),
		speech.WithRate(cfg.Voice.TTS.Rate),
	)
	return voice.New(
		voice.WithRecognizer(recognizer),
		voice.WithResponder(router),
		voice.WithSynthesizer(synthesizer),
		voice.WithSampleRate(cfg.Voice.SampleRate),
		voice.WithLogger(logger),
	)
}
