package ecommerce

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/schema"
)

// QueryType classifies a shopping question.
type QueryType string

const (
	QueryOrder   QueryType = "order"
	QuerySearch  QueryType = "search"
	QueryGuide   QueryType = "guide"
	QueryGeneral QueryType = "general"
)

var (
	orderIDRe    = regexp.MustCompile(`(?i)(OD\d{8,})`)
	priceRangeRe = regexp.MustCompile(`(\d+)\s*(?:到|至|-)\s*(\d+)\s*元`)
	priceCapRe   = regexp.MustCompile(`(\d+)\s*元\s*(?:以下|以内)`)
)

var categoryKeywords = []string{"手机", "电脑", "耳机", "平板"}

var guideKeywords = []string{"购物指南", "选购指南", "购买建议", "怎么选", "如何选"}

// ModelRunner abstracts a configured chat agent.
type ModelRunner interface {
	Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error
}

type Config struct {
	name   string
	store  *Store
	model  ModelRunner
	logger zerolog.Logger
}

// Agent answers shopping questions against the product catalog and order
// book. Catalog and order lookups are answered directly; buying advice goes
// to the model with the matching catalog entries as context.
type Agent struct {
	Config
}

type Option func(c *Config)

func WithName(name string) Option {
	return func(c *Config) {
		c.name = name
	}
}

func WithStore(store *Store) Option {
	return func(c *Config) {
		c.store = store
	}
}

func WithModel(model ModelRunner) Option {
	return func(c *Config) {
		c.model = model
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.logger = logger.With().Str("component", "ecommerce").Logger()
	}
}

func New(opts ...Option) *Agent {
	ret := new(Agent)
	ret.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.name == "" {
		ret.name = "EcommerceAgent"
	}
	if ret.store == nil {
		ret.store = NewDemoStore()
	}
	return ret
}

// Name implements agents.IntentHandler.
func (a *Agent) Name() string {
	return a.name
}

// Classify reports the query type of the question.
func Classify(text string) QueryType {
	if orderIDRe.MatchString(text) || strings.Contains(text, "订单") {
		return QueryOrder
	}
	for _, kw := range guideKeywords {
		if strings.Contains(text, kw) {
			return QueryGuide
		}
	}
	if priceRangeRe.MatchString(text) || priceCapRe.MatchString(text) {
		return QuerySearch
	}
	for _, kw := range categoryKeywords {
		if strings.Contains(text, kw) {
			return QuerySearch
		}
	}
	return QueryGeneral
}

// parseQuery pulls the category keyword and price window out of the text.
func parseQuery(text string) (keyword string, minPrice, maxPrice float64) {
	for _, kw := range categoryKeywords {
		if strings.Contains(text, kw) {
			keyword = kw
			break
		}
	}
	if m := priceRangeRe.FindStringSubmatch(text); m != nil {
		minPrice, _ = strconv.ParseFloat(m[1], 64)
		maxPrice, _ = strconv.ParseFloat(m[2], 64)
		return
	}
	if m := priceCapRe.FindStringSubmatch(text); m != nil {
		maxPrice, _ = strconv.ParseFloat(m[1], 64)
	}
	return
}

// Process implements agents.IntentHandler.
func (a *Agent) Process(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	queryType := Classify(input.ChatMessage)
	a.logger.Debug().Str("type", string(queryType)).Msg("shopping question")

	switch queryType {
	case QueryOrder:
		return a.processOrder(input.ChatMessage)
	case QuerySearch:
		keyword, minPrice, maxPrice := parseQuery(input.ChatMessage)
		products := a.store.Search(keyword, minPrice, maxPrice)
		return schema.NewOutput(FormatProducts(products)), nil
	case QueryGuide:
		return a.processGuide(ctx, input)
	default:
		if a.model == nil {
			return schema.NewOutput("您好，请问想查询商品、订单还是需要购物建议？"), nil
		}
		output := new(schema.Output)
		if err := a.model.Run(ctx, input, output, nil); err != nil {
			return nil, err
		}
		return output, nil
	}
}

func (a *Agent) processOrder(text string) (*schema.Output, error) {
	m := orderIDRe.FindStringSubmatch(text)
	if m == nil {
		return schema.NewOutput("请提供订单号（以 OD 开头），我来帮您查询。"), nil
	}
	order, ok := a.store.Order(strings.ToUpper(m[1]))
	if !ok {
		return schema.NewOutput(fmt.Sprintf("没有找到订单 %s，请确认订单号是否正确。", m[1])), nil
	}
	return schema.NewOutput(FormatOrder(order)), nil
}

func (a *Agent) processGuide(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	keyword, minPrice, maxPrice := parseQuery(input.ChatMessage)
	products := a.store.Search(keyword, minPrice, maxPrice)
	if a.model == nil {
		return schema.NewOutput(FormatProducts(products)), nil
	}
	prompt := fmt.Sprintf("可选商品：\n%s\n\n用户需求：%s\n请给出简洁的选购建议。", FormatProducts(products), input.ChatMessage)
	output := new(schema.Output)
	if err := a.model.Run(ctx, schema.NewInput(prompt), output, nil); err != nil {
		return nil, err
	}
	return output, nil
}
