package government

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polychat-ai/polychat/components"
	"github.com/polychat-ai/polychat/components/knowledge"
	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools/sentiment"
)

// Service is one entry of the public service catalog.
type Service struct {
	Name      string
	Keywords  []string
	Materials []string
	Procedure []string
	Duration  string
	Notes     string
}

// DefaultCatalog returns the built-in public service catalog.
func DefaultCatalog() []Service {
	return []Service{
		{
			Name:      "身份证办理",
			Keywords:  []string{"身份证", "证件办理"},
			Materials: []string{"户口簿", "近期免冠照片", "旧身份证（换领时）"},
			Procedure: []string{"到户籍所在地派出所提交申请", "现场采集照片和指纹", "缴纳工本费", "领取回执并等待制证"},
			Duration:  "一般 15 个工作日内发放",
		},
		{
			Name:      "社保查询",
			Keywords:  []string{"社保", "社会保险", "养老保险", "pension"},
			Materials: []string{"本人身份证", "社保卡"},
			Procedure: []string{"登录当地社保服务平台或前往社保大厅", "实名认证后查询缴费记录"},
			Duration:  "即时办理",
		},
		{
			Name:      "公积金提取",
			Keywords:  []string{"公积金"},
			Materials: []string{"本人身份证", "公积金联名卡", "提取事由证明材料"},
			Procedure: []string{"准备提取事由对应的证明材料", "到公积金管理中心或线上渠道提交申请", "审核通过后资金转入联名卡"},
			Duration:  "审核通过后 3 个工作日内到账",
		},
		{
			Name:      "驾照换证",
			Keywords:  []string{"驾照", "驾驶证"},
			Materials: []string{"本人身份证", "原驾驶证", "体检证明", "近期照片"},
			Procedure: []string{"办理体检并取得证明", "到车管所或交管平台提交换证申请", "缴费后领取新证"},
			Duration:  "一般当场或 3 个工作日内办结",
		},
		{
			Name:      "个人所得税",
			Keywords:  []string{"个税", "个人所得税", "税务", "tax"},
			Materials: []string{"本人身份证", "收入及专项附加扣除资料"},
			Procedure: []string{"在个人所得税服务渠道实名注册", "填报专项附加扣除", "年度汇算时确认申报并办理退补税"},
			Duration:  "年度汇算期为每年 3 月至 6 月",
		},
	}
}

// ModelRunner abstracts a configured chat agent.
type ModelRunner interface {
	Run(ctx context.Context, input *schema.Input, output *schema.Output, apiResp *components.ApiResponse) error
}

// Analyzer abstracts the sentiment tool.
type Analyzer interface {
	Run(ctx context.Context, input *sentiment.Input) (*sentiment.Output, error)
}

type Config struct {
	name      string
	catalog   []Service
	model     ModelRunner
	store     *knowledge.Store
	analyzer  Analyzer
	retrieveN int
	logger    zerolog.Logger
}

// Agent answers questions about public services. Catalog hits are answered
// from the service guides directly; anything else goes to the model with
// retrieved reference material. When a sentiment analyzer is configured the
// reply tone follows the user's mood.
type Agent struct {
	Config
}

type Option func(c *Config)

func WithName(name string) Option {
	return func(c *Config) {
		c.name = name
	}
}

func WithCatalog(catalog []Service) Option {
	return func(c *Config) {
		c.catalog = catalog
	}
}

func WithModel(model ModelRunner) Option {
	return func(c *Config) {
		c.model = model
	}
}

func WithKnowledge(store *knowledge.Store) Option {
	return func(c *Config) {
		c.store = store
	}
}

func WithAnalyzer(analyzer Analyzer) Option {
	return func(c *Config) {
		c.analyzer = analyzer
	}
}

func WithRetrieveN(n int) Option {
	return func(c *Config) {
		c.retrieveN = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.logger = logger.With().Str("component", "government").Logger()
	}
}

func New(opts ...Option) *Agent {
	ret := new(Agent)
	ret.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.name == "" {
		ret.name = "GovernmentAgent"
	}
	if ret.catalog == nil {
		ret.catalog = DefaultCatalog()
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

// Lookup finds the catalog service matching the question, if any.
func (a *Agent) Lookup(text string) (Service, bool) {
	for _, svc := range a.catalog {
		for _, kw := range svc.Keywords {
			if strings.Contains(text, kw) {
				return svc, true
			}
		}
	}
	return Service{}, false
}

// Process implements agents.IntentHandler.
func (a *Agent) Process(ctx context.Context, input *schema.Input) (*schema.Output, error) {
	var reply string
	if svc, ok := a.Lookup(input.ChatMessage); ok {
		a.logger.Debug().Str("service", svc.Name).Msg("catalog hit")
		reply = FormatService(svc)
	} else {
		if a.model == nil {
			return nil, fmt.Errorf("no model configured")
		}
		prompt := input.ChatMessage
		if a.store != nil {
			results, err := a.store.Query(ctx, input.ChatMessage, a.retrieveN)
			if err != nil {
				a.logger.Warn().Err(err).Msg("knowledge retrieval failed")
			} else if reference := knowledge.RenderContext(results); reference != "" {
				prompt = fmt.Sprintf("参考资料：\n%s\n\n咨询：%s", reference, input.ChatMessage)
			}
		}
		output := new(schema.Output)
		if err := a.model.Run(ctx, schema.NewInput(prompt), output, nil); err != nil {
			return nil, err
		}
		reply = output.ChatMessage
	}

	if a.analyzer != nil {
		if analysis, err := a.analyzer.Run(ctx, sentiment.NewInput(input.ChatMessage)); err == nil {
			reply = sentiment.AdjustResponse(analysis.Polarity, reply)
		}
	}
	return schema.NewOutput(reply), nil
}

// DefaultDocuments returns reference material beyond the catalog, used to
// seed the knowledge store for questions no catalog entry covers.
func DefaultDocuments() []knowledge.Document {
	return []knowledge.Document{
		{ID: "gov-residence-permit", Content: "居住证办理：持本人身份证、居住地住址证明（租赁合同或房产证）到居住地派出所申请，受理后 15 个工作日内发放。", Metadata: map[string]string{"topic": "residence"}},
		{ID: "gov-marriage", Content: "婚姻登记：男女双方持身份证、户口簿共同到一方户籍所在地婚姻登记机关办理，当场发证。", Metadata: map[string]string{"topic": "marriage"}},
		{ID: "gov-business-license", Content: "个体工商户营业执照：通过政务服务网提交名称申报和经营者信息，审核通过后到登记窗口领取执照，一般 3 个工作日办结。", Metadata: map[string]string{"topic": "business"}},
		{ID: "gov-newborn", Content: "新生儿落户：凭出生医学证明、父母双方户口簿和结婚证，到父母一方户籍所在地派出所办理出生登记。", Metadata: map[string]string{"topic": "household"}},
	}
}

// FormatService renders a service guide for chat display.
func FormatService(svc Service) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏛️ %s办事指南", svc.Name)
	if len(svc.Materials) > 0 {
		b.WriteString("\n所需材料：")
		for _, m := range svc.Materials {
			fmt.Fprintf(&b, "\n- %s", m)
		}
	}
	if len(svc.Procedure) > 0 {
		b.WriteString("\n办理流程：")
		for i, step := range svc.Procedure {
			fmt.Fprintf(&b, "\n%d. %s", i+1, step)
		}
	}
	if svc.Duration != "" {
		fmt.Fprintf(&b, "\n办理时限：%s", svc.Duration)
	}
	if svc.Notes != "" {
		fmt.Fprintf(&b, "\n温馨提示：%s", svc.Notes)
	}
	return b.String()
}
