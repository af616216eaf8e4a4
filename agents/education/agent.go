package education

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/rs/zerolog"

	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/components/knowledge"
	"github.com/polychat-ai/polychat/schema"
)

// QueryType classifies an education question.
type QueryType string

const (
	QueryCalculation QueryType = "calculation"
	QueryConcept     QueryType = "concept"
	QuerySolve       QueryType = "solve"
	QueryGeneral     QueryType = "general"
)

// Subject of an education question.
type Subject string

const (
	SubjectMath      Subject = "math"
	SubjectPhysics   Subject = "physics"
	SubjectChemistry Subject = "chemistry"
	SubjectGeneral   Subject = "general"
)

var subjectKeywords = map[Subject][]string{
	SubjectMath:      {"数学", "方程", "函数", "几何", "代数", "微积分", "计算", "math", "equation"},
	SubjectPhysics:   {"物理", "力学", "电学", "光学", "能量", "physics"},
	SubjectChemistry: {"化学", "元素", "分子", "反应", "chemistry"},
}

var queryTypeKeywords = map[QueryType][]string{
	QueryConcept: {"是什么", "什么是", "概念", "定义", "解释", "what is"},
	QuerySolve:   {"求解", "解方程", "证明", "解题", "solve", "prove"},
}

var (
	// expressionRe pulls a candidate arithmetic expression out of mixed text.
	expressionRe = regexp.MustCompile(`[\d+\-*/^().\s]{3,}`)
	// arithmeticRe accepts only plain arithmetic, no identifiers.
	arithmeticRe = regexp.MustCompile(`^[\d+\-*/^().\s]+$`)
	// boundsRe rejects fragments torn off a larger formula, like "^2" from
	// "x^2".
	boundsRe   = regexp.MustCompile(`^[\d(].*[\d)]$|^\d$`)
	digitRe    = regexp.MustCompile(`\d`)
	operatorRe = regexp.MustCompile(`[+\-*/^]`)
)

// ModelRunner abstracts a configured chat agent.
type ModelRunner interface {
	Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error
}

type Config struct {
	name      string
	model     ModelRunner
	store     *knowledge.Store
	retrieveN int
	logger    zerolog.Logger
}

// Agent answers study questions. Plain arithmetic is evaluated locally
// without a model round trip; everything else goes to the model with
// subject material retrieved from the knowledge store as context.
type Agent struct {
	Config
}

type Option func(c *Config)

func WithName(name string) Option {
	return func(c *Config) {
		c.name = name
	}
}

func WithModel(model ModelRunner) Option {
	return func(c *Config) {
		c.model = model
	}
}

// WithKnowledge sets the subject material store.
func WithKnowledge(store *knowledge.Store) Option {
	return func(c *Config) {
		c.store = store
	}
}

// WithRetrieveN sets how many reference entries are retrieved per question.
func WithRetrieveN(n int) Option {
	return func(c *Config) {
		c.retrieveN = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.logger = logger.With().Str("component", "education").Logger()
	}
}

func New(opts ...Option) *Agent {
	ret := new(Agent)
	ret.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.name == "" {
		ret.name = "EducationAgent"
	}
	if ret.retrieveN == 0 {
		ret.retrieveN = 3
	}
	return ret
}

// Name implements agents.IntentHandler.
func (a *Agent) Name() string {
	return a.name
}

var subjectOrder = []Subject{SubjectMath, SubjectPhysics, SubjectChemistry}

var queryTypeOrder = []QueryType{QuerySolve, QueryConcept}

// Classify reports the subject and query type of the question.
func Classify(text string) (Subject, QueryType) {
	subject := SubjectGeneral
outer:
	for _, s := range subjectOrder {
		for _, kw := range subjectKeywords[s] {
			if strings.Contains(text, kw) {
				subject = s
				break outer
			}
		}
	}
	if _, ok := ExtractExpression(text); ok {
		return subject, QueryCalculation
	}
	for _, qt := range queryTypeOrder {
		for _, kw := range queryTypeKeywords[qt] {
			if strings.Contains(text, kw) {
				return subject, qt
			}
		}
	}
	return subject, QueryGeneral
}

// ExtractExpression finds a plain arithmetic expression in the text. It
// requires at least one digit and one operator so bare numbers do not
// trigger the calculation path.
func ExtractExpression(text string) (string, bool) {
	for _, candidate := range expressionRe.FindAllString(text, -1) {
		expr := strings.TrimSpace(candidate)
		if !arithmeticRe.MatchString(expr) {
			continue
		}
		if !digitRe.MatchString(expr) || !operatorRe.MatchString(expr) {
			continue
		}
		if !boundsRe.MatchString(expr) {
			continue
		}
		return expr, true
	}
	return "", false
}

// Evaluate computes a plain arithmetic expression. The caret is treated as
// exponentiation.
func Evaluate(expr string) (float64, error) {
	normalized := strings.ReplaceAll(expr, "^", "**")
	eval, err := govaluate.NewEvaluableExpression(normalized)
	if err != nil {
		return 0, fmt.Errorf("parse expression %q: %w", expr, err)
	}
	result, err := eval.Evaluate(nil)
	if err != nil {
		return 0, fmt.Errorf("evaluate expression %q: %w", expr, err)
	}
	value, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q is not numeric", expr)
	}
	return value, nil
}

// Process implements agents.IntentHandler.
func (a *Agent) Process(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	subject, queryType := Classify(input.ChatMessage)
	a.logger.Debug().Str("subject", string(subject)).Str("type", string(queryType)).Msg("education question")

	if queryType == QueryCalculation {
		if expr, ok := ExtractExpression(input.ChatMessage); ok {
			if value, err := Evaluate(expr); err == nil {
				return schema.NewOutput(fmt.Sprintf("%s = %s", strings.TrimSpace(expr), formatNumber(value))), nil
			}
			// Malformed arithmetic falls through to the model.
		}
	}

	if a.model == nil {
		return nil, fmt.Errorf("no model configured")
	}
	prompt := input.ChatMessage
	if a.store != nil {
		results, err := a.store.Query(ctx, input.ChatMessage, a.retrieveN)
		if err != nil {
			a.logger.Warn().Err(err).Msg("knowledge retrieval failed")
		} else if reference := knowledge.RenderContext(results); reference != "" {
			prompt = fmt.Sprintf("参考资料：\n%s\n\n问题：%s", reference, input.ChatMessage)
		}
	}
	output := new(schema.Output)
	if err := a.model.Run(ctx, schema.NewInput(prompt), output, nil); err != nil {
		return nil, err
	}
	return output, nil
}

// DefaultDocuments returns the built-in subject reference material used to
// seed the knowledge store.
func DefaultDocuments() []knowledge.Document {
	return []knowledge.Document{
		{ID: "math-quadratic", Content: "一元二次方程 ax²+bx+c=0 的求根公式为 x = (-b ± √(b²-4ac)) / 2a，判别式 Δ=b²-4ac 决定根的个数。", Metadata: map[string]string{"subject": "math"}},
		{ID: "math-derivative", Content: "导数表示函数在某点的瞬时变化率，常用求导法则包括幂函数法则 (xⁿ)'=nxⁿ⁻¹、乘积法则和链式法则。", Metadata: map[string]string{"subject": "math"}},
		{ID: "math-pythagorean", Content: "勾股定理：直角三角形两直角边的平方和等于斜边的平方，即 a²+b²=c²。", Metadata: map[string]string{"subject": "math"}},
		{ID: "physics-newton", Content: "牛顿第二定律：物体加速度与合外力成正比，与质量成反比，F=ma。", Metadata: map[string]string{"subject": "physics"}},
		{ID: "physics-energy", Content: "能量守恒定律：能量既不会凭空产生也不会凭空消失，只能从一种形式转化为另一种形式。", Metadata: map[string]string{"subject": "physics"}},
		{ID: "chemistry-mole", Content: "摩尔是物质的量的单位，1 摩尔物质含有约 6.02×10²³ 个基本单元（阿伏伽德罗常数）。", Metadata: map[string]string{"subject": "chemistry"}},
		{ID: "chemistry-balance", Content: "配平化学方程式时，方程两边每种元素的原子个数必须相等，常用最小公倍数法。", Metadata: map[string]string{"subject": "chemistry"}},
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
