package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
)

// defaultHistoryLimit bounds the shared history when no memory is supplied.
const defaultHistoryLimit = 200

// Intent names understood by the router.
const (
	IntentConversation = "conversation"
	IntentWeather      = "weather"
	IntentEducation    = "education"
	IntentEcommerce    = "ecommerce"
	IntentGovernment   = "government"
)

// IntentHandler handles chat input routed to a single intent.
type IntentHandler interface {
	Name() string
	Process(ctx context.Context, input *schema.Input) (*schema.Output, error)
}

// Rule matches user input to an intent. A rule fires when any keyword is a
// substring of the input or any pattern matches it. A nil Enabled gate
// means the rule is always active.
type Rule struct {
	Intent   string
	Keywords []string
	Patterns []*regexp.Regexp
	Enabled  func() bool
}

func (r Rule) matches(text string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Router dispatches user input to the registered intent handlers. Routing is
// deterministic keyword and pattern matching over an ordered rule list,
// falling back to the conversation intent when nothing matches.
type Router struct {
	rules    []Rule
	handlers map[string]IntentHandler
	fallback string
	history  *components.Memory
	hits     map[string]*atomic.Int64
	logger   zerolog.Logger
	mtx      sync.RWMutex
}

type RouterOption func(r *Router)

func WithRouterLogger(logger zerolog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger.With().Str("component", "router").Logger()
	}
}

func WithHistory(mem *components.Memory) RouterOption {
	return func(r *Router) {
		r.history = mem
	}
}

func WithFallback(intent string) RouterOption {
	return func(r *Router) {
		r.fallback = intent
	}
}

func WithRules(rules ...Rule) RouterOption {
	return func(r *Router) {
		r.rules = append(r.rules, rules...)
	}
}

// NewRouter returns a Router with no handlers registered.
func NewRouter(opts ...RouterOption) *Router {
	ret := &Router{
		handlers: make(map[string]IntentHandler),
		hits:     make(map[string]*atomic.Int64),
		fallback: IntentConversation,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.history == nil {
		ret.history = components.NewMemory(defaultHistoryLimit)
	}
	return ret
}

// Register attaches a handler for the given intent.
func (r *Router) Register(intent string, h IntentHandler) {
	r.mtx.Lock()
	r.handlers[intent] = h
	if _, ok := r.hits[intent]; !ok {
		r.hits[intent] = atomic.NewInt64(0)
	}
	r.mtx.Unlock()
}

// Route classifies input text into an intent without dispatching it.
func (r *Router) Route(text string) string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	for _, rule := range r.rules {
		if rule.Enabled != nil && !rule.Enabled() {
			continue
		}
		if _, registered := r.handlers[rule.Intent]; !registered {
			continue
		}
		if rule.matches(text) {
			r.logger.Debug().Str("intent", rule.Intent).Msg("matched routing rule")
			return rule.Intent
		}
	}
	return r.fallback
}

// Process classifies the input and dispatches it to the matching handler.
// Both sides of the exchange are recorded in the shared history.
func (r *Router) Process(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	_, output, err := r.ProcessIntent(ctx, input)
	return output, err
}

// ProcessIntent is Process that also returns the intent that handled the
// input. Classification happens exactly once, so the returned intent is the
// one dispatched even when feature flags flip mid-request.
func (r *Router) ProcessIntent(ctx context.Context, input *schema.Input) (string, *schema.Output, error) {
	intent := r.Route(input.ChatMessage)

	r.mtx.RLock()
	handler, ok := r.handlers[intent]
	if !ok {
		handler, ok = r.handlers[r.fallback]
		intent = r.fallback
	}
	counter := r.hits[intent]
	r.mtx.RUnlock()
	if !ok {
		return intent, nil, fmt.Errorf("no handler registered for intent %q", intent)
	}
	if counter != nil {
		counter.Inc()
	}

	r.logger.Info().Str("intent", intent).Msg("dispatching user input")
	r.history.NewTurn()
	r.history.NewMessage(components.UserRole, *input)

	output, err := handler.Process(ctx, input)
	if err != nil {
		r.logger.Error().Err(err).Str("intent", intent).Msg("handler failed")
		return intent, nil, fmt.Errorf("%s handler: %w", intent, err)
	}
	r.history.NewMessage(components.AssistantRole, *output)
	return intent, output, nil
}

// History returns the shared conversation history.
func (r *Router) History() *components.Memory {
	return r.history
}

// ClearHistory drops the shared conversation history.
func (r *Router) ClearHistory() {
	r.history.Reset()
	r.logger.Info().Msg("conversation history cleared")
}

// Stats returns per-intent dispatch counts.
func (r *Router) Stats() map[string]int64 {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	out := make(map[string]int64, len(r.hits))
	for intent, counter := range r.hits {
		out[intent] = counter.Load()
	}
	return out
}

// FeatureGates reports whether an intent is currently enabled.
type FeatureGates interface {
	IntentEnabled(intent string) bool
}

// DefaultRules returns the built-in routing table. The keyword and pattern
// sets cover both Chinese and English phrasings of each intent.
func DefaultRules(gates FeatureGates) []Rule {
	gate := func(intent string) func() bool {
		if gates == nil {
			return nil
		}
		return func() bool { return gates.IntentEnabled(intent) }
	}
	return []Rule{
		{
			Intent:   IntentWeather,
			Keywords: []string{"天气", "气温", "温度", "下雨", "阴天", "晴天", "多云", "weather", "forecast", "temperature"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`.*?(?:查询|查看|想知道|告诉我)?.*?(?:的)?天气.*?`),
				regexp.MustCompile(`.*?天气(?:怎么样|如何).*?`),
				regexp.MustCompile(`(?i)(?:what'?s|how'?s) the weather`),
			},
			Enabled: gate(IntentWeather),
		},
		{
			Intent:   IntentEcommerce,
			Keywords: []string{"购物", "商品", "价格", "订单", "购买", "电商", "手机", "电脑", "耳机", "平板", "order", "shopping", "cart"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`.*?(?:想买|推荐|查询|搜索).*?(?:商品|产品|手机|电脑|耳机|平板).*?`),
				regexp.MustCompile(`.*?(?:\d+元|\d+到\d+元).*?(?:以下|以内|之间).*?`),
				regexp.MustCompile(`.*?(?:购物指南|选购指南|购买建议).*?`),
				regexp.MustCompile(`.*?(?:查询|查看).*?(?:订单).*?`),
				regexp.MustCompile(`(?i)(?:buy|purchase|recommend) .*(?:phone|laptop|headphone|tablet)`),
			},
			Enabled: gate(IntentEcommerce),
		},
		{
			Intent:   IntentEducation,
			Keywords: []string{"数学", "计算", "方程", "函数", "几何", "代数", "微积分", "物理", "化学", "教育", "math", "equation", "calculate"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`.*?(?:计算|求解|证明|解方程).*?`),
				regexp.MustCompile(`.*?(?:\d+[+\-*/^]\d+).*?`),
				regexp.MustCompile(`.*?(?:数学|物理|化学).*?(?:问题|题目|公式).*?`),
			},
			Enabled: gate(IntentEducation),
		},
		{
			Intent:   IntentGovernment,
			Keywords: []string{"政务", "证件", "社保", "医保", "公积金", "税务", "户口", "驾照", "身份证", "护照", "passport", "pension", "tax"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`.*?(?:办理|申请|查询).*?(?:证件|社保|医保|公积金|税务).*?`),
				regexp.MustCompile(`.*?(?:政府|政务).*?(?:服务|咨询).*?`),
			},
			Enabled: gate(IntentGovernment),
		},
	}
}
