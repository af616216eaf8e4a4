package linkreader

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools"
)

var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// ExtractURLs returns every http(s) URL found in free form chat text.
func ExtractURLs(text string) []string {
	return urlRe.FindAllString(text, -1)
}

// Input Schema naming the page to read.
type Input struct {
	schema.Base
	// Link the page URL.
	Link string `json:"link" jsonschema:"title=link,description=The page URL to read." validate:"required,url"`
}

func NewInput(link string) *Input {
	return &Input{Link: link}
}

func (s Input) String() string {
	return s.Link
}

// Output Schema with the extracted page content.
type Output struct {
	schema.Base
	// Title of the page.
	Title string `json:"title,omitempty" jsonschema:"title=title,description=The page title."`
	// Description from page metadata.
	Description string `json:"description,omitempty" jsonschema:"title=description,description=The page meta description."`
	// SiteName from page metadata.
	SiteName string `json:"site_name,omitempty" jsonschema:"title=site_name,description=The site name."`
	// Content page body converted to markdown.
	Content string `json:"content,omitempty" jsonschema:"title=content,description=The page body as markdown."`
}

func (s Output) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

type Config struct {
	tools.Config
	httpClient *http.Client
	userAgent  string
	maxContent int
}

// Tool fetches a web page and extracts its metadata plus a markdown
// rendition of the body, suitable for feeding to a model as context.
type Tool struct {
	Config
}

type Option func(c *Config)

func WithHTTPClient(clt *http.Client) Option {
	return func(c *Config) {
		c.httpClient = clt
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.userAgent = ua
	}
}

// WithMaxContent caps the markdown content length in runes.
func WithMaxContent(max int) Option {
	return func(c *Config) {
		c.maxContent = max
	}
}

func New(opts ...Option) *Tool {
	ret := new(Tool)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle("LinkReaderTool")
	}
	if ret.Description() == "" {
		ret.SetDescription("Reads a web page and returns its content as markdown.")
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if ret.userAgent == "" {
		ret.userAgent = "Mozilla/5.0 (compatible; polychat/1.0)"
	}
	if ret.maxContent == 0 {
		ret.maxContent = 8000
	}
	return ret
}

// Run fetches and extracts the page.
func (t *Tool) Run(ctx context.Context, input *Input) (*Output, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.Link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", t.userAgent)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", input.Link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", input.Link, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	out := new(Output)
	out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && v != "" {
		out.Title = v
	}
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		out.Description = v
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && v != "" {
		out.Description = v
	}
	if v, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		out.SiteName = v
	}

	// Strip chrome the model has no use for.
	doc.Find("script, style, nav, header, footer, iframe, noscript").Remove()
	body, err := doc.Find("body").Html()
	if err != nil {
		return nil, fmt.Errorf("extract body: %w", err)
	}
	content, err := htmltomarkdown.ConvertString(body)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	content = strings.TrimSpace(content)
	if runes := []rune(content); len(runes) > t.maxContent {
		content = string(runes[:t.maxContent]) + "…"
	}
	out.Content = content
	return out, nil
}
