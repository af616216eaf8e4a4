package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polychat-ai/polychat/agents"
	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/linkreader"
	"github.com/polychat-ai/polychat/tools/sentiment"
)

// Strategy selects which local model answers general conversation.
type Strategy string

const (
	// StrategyAuto picks the chat or reasoning model per question.
	StrategyAuto Strategy = "auto"
	// StrategyChat always uses the chat model.
	StrategyChat Strategy = "qwen"
	// StrategyReasoner always uses the reasoning model.
	StrategyReasoner Strategy = "deepseek"
	// StrategyHybrid drafts with the reasoning model, then polishes with
	// the chat model.
	StrategyHybrid Strategy = "hybrid"
)

// ModelRunner abstracts a configured chat agent.
type ModelRunner interface {
	Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error
}

// Analyzer abstracts the sentiment tool.
type Analyzer interface {
	Run(ctx context.Context, input *sentiment.Input) (*sentiment.Output, error)
}

// LinkReader abstracts the page reading tool.
type LinkReader interface {
	Run(ctx context.Context, input *linkreader.Input) (*linkreader.Output, error)
}

// maxLinks caps how many pasted URLs are fetched for one message.
const maxLinks = 2

// reasoningHints mark questions better served by the reasoning model.
var reasoningHints = []string{
	"为什么", "分析", "推理", "证明", "比较", "评价", "逻辑", "步骤",
	"why", "analyze", "reason", "prove", "compare", "step by step",
}

type Config struct {
	name         string
	strategy     Strategy
	chat         ModelRunner
	reasoner     ModelRunner
	hybrid       *agents.Chain[schema.Input, schema.Output]
	analyzer     Analyzer
	reader       LinkReader
	showAnalysis bool
	logger       zerolog.Logger
}

// Agent answers general conversation through the local model daemon. It
// implements the router IntentHandler and serves as the routing fallback.
type Agent struct {
	Config
}

type Option func(c *Config)

func WithName(name string) Option {
	return func(c *Config) {
		c.name = name
	}
}

func WithStrategy(strategy Strategy) Option {
	return func(c *Config) {
		c.strategy = strategy
	}
}

// WithChat sets the chat model agent.
func WithChat(chat ModelRunner) Option {
	return func(c *Config) {
		c.chat = chat
	}
}

// WithReasoner sets the reasoning model agent.
func WithReasoner(reasoner ModelRunner) Option {
	return func(c *Config) {
		c.reasoner = reasoner
	}
}

// WithHybridChain sets the draft-then-polish chain used by StrategyHybrid.
func WithHybridChain(chain *agents.Chain[schema.Input, schema.Output]) Option {
	return func(c *Config) {
		c.hybrid = chain
	}
}

// WithAnalyzer enables sentiment aware replies.
func WithAnalyzer(analyzer Analyzer) Option {
	return func(c *Config) {
		c.analyzer = analyzer
	}
}

// WithLinkReader fetches URLs pasted in chat and feeds their content to the
// model as context.
func WithLinkReader(reader LinkReader) Option {
	return func(c *Config) {
		c.reader = reader
	}
}

// WithShowAnalysis prefixes replies with the sentiment analysis report.
func WithShowAnalysis(show bool) Option {
	return func(c *Config) {
		c.showAnalysis = show
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.logger = logger.With().Str("component", "conversation").Logger()
	}
}

func New(opts ...Option) *Agent {
	ret := new(Agent)
	ret.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.name == "" {
		ret.name = "ConversationAgent"
	}
	if ret.strategy == "" {
		ret.strategy = StrategyAuto
	}
	return ret
}

// Name implements agents.IntentHandler.
func (a *Agent) Name() string {
	return a.name
}

// SetStrategy switches the model strategy at runtime.
func (a *Agent) SetStrategy(strategy Strategy) {
	a.strategy = strategy
}

// Process implements agents.IntentHandler.
func (a *Agent) Process(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	var analysis *sentiment.Output
	if a.analyzer != nil {
		res, err := a.analyzer.Run(ctx, sentiment.NewInput(input.ChatMessage))
		if err != nil {
			a.logger.Warn().Err(err).Msg("sentiment analysis unavailable")
		} else {
			analysis = res
		}
	}

	if pages := a.readLinks(ctx, input.ChatMessage); pages != "" {
		input = schema.NewInput(fmt.Sprintf("参考以下网页内容回答。\n%s\n\n%s", pages, input.ChatMessage))
	}

	output := new(schema.Output)
	if err := a.generate(ctx, input, output); err != nil {
		return nil, err
	}

	if analysis != nil {
		output.ChatMessage = sentiment.AdjustResponse(analysis.Polarity, output.ChatMessage)
		if a.showAnalysis {
			output.ChatMessage = sentiment.FormatReport(analysis) + "\n\n" + output.ChatMessage
		}
	}
	return output, nil
}

func (a *Agent) generate(ctx context.Context, input *schema.Input, output *schema.Output) error {
	runner, label := a.pick(input.ChatMessage)
	a.logger.Debug().Str("model", label).Str("strategy", string(a.strategy)).Msg("generating reply")
	switch label {
	case "hybrid":
		_, err := a.hybrid.Run(ctx, input, output)
		return err
	default:
		if runner == nil {
			return fmt.Errorf("no model configured for strategy %q", a.strategy)
		}
		return runner.Run(ctx, input, output, nil)
	}
}

// pick resolves the strategy to a concrete runner.
func (a *Agent) pick(text string) (ModelRunner, string) {
	switch a.strategy {
	case StrategyChat:
		return a.chat, "chat"
	case StrategyReasoner:
		return a.reasoner, "reasoner"
	case StrategyHybrid:
		if a.hybrid != nil {
			return nil, "hybrid"
		}
		return a.chat, "chat"
	default:
		if a.reasoner != nil && wantsReasoning(text) {
			return a.reasoner, "reasoner"
		}
		if a.chat != nil {
			return a.chat, "chat"
		}
		return a.reasoner, "reasoner"
	}
}

// readLinks fetches URLs pasted into the message and renders them as prompt
// context. Fetch failures degrade to answering without the page.
func (a *Agent) readLinks(ctx context.Context, text string) string {
	if a.reader == nil {
		return ""
	}
	urls := linkreader.ExtractURLs(text)
	if len(urls) > maxLinks {
		urls = urls[:maxLinks]
	}
	var sb strings.Builder
	for _, u := range urls {
		page, err := a.reader.Run(ctx, linkreader.NewInput(u))
		if err != nil {
			a.logger.Warn().Err(err).Str("url", u).Msg("link fetch failed")
			continue
		}
		fmt.Fprintf(&sb, "【%s】%s\n%s\n", page.Title, u, page.Content)
	}
	return strings.TrimSpace(sb.String())
}

func wantsReasoning(text string) bool {
	lower := strings.ToLower(text)
	for _, hint := range reasoningHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
