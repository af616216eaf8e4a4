package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/polychat-ai/polychat/schema"
	"github.com/polychat-ai/polychat/tools"
)

// Polarity of a piece of text.
type Polarity = string

const (
	Positive Polarity = "positive"
	Negative Polarity = "negative"
	Neutral  Polarity = "neutral"
)

const (
	defaultAuthURL = "https://aip.baidubce.com"
	tokenTTLMargin = time.Minute
)

// emotionLabels maps upstream emotion labels to display names.
var emotionLabels = map[string]string{
	"optimistic":  "乐观",
	"pessimistic": "悲观",
	"neutral":     "中性",
	"happy":       "开心",
	"angry":       "愤怒",
	"sad":         "伤心",
	"disgusting":  "厌恶",
	"fearful":     "恐惧",
}

// responseTemplates adjust the tone of a reply per detected polarity.
var responseTemplates = map[Polarity][]string{
	Positive: {
		"很高兴看到您心情不错！%s",
		"您的积极态度真让人愉快！%s",
		"太好了！%s",
	},
	Negative: {
		"理解您的心情。%s",
		"别担心，让我来帮您。%s",
		"我明白您的感受。%s",
	},
	Neutral: {
		"%s",
		"好的，我明白了。%s",
		"我来帮您解答。%s",
	},
}

// Input Schema for sentiment analysis.
type Input struct {
	schema.Base
	// Text to analyze.
	Text string `json:"text" jsonschema:"title=text,description=The text to analyze." validate:"required"`
}

func NewInput(text string) *Input {
	return &Input{Text: text}
}

func (s Input) String() string {
	return s.Text
}

// EmotionItem is one entry of the emotion distribution.
type EmotionItem struct {
	Label       string        `json:"label"`
	Display     string        `json:"display,omitempty"`
	Probability float64       `json:"probability"`
	SubEmotions []EmotionItem `json:"sub_emotions,omitempty"`
}

// Output Schema for the combined sentiment and emotion analysis.
type Output struct {
	schema.Base
	// Polarity overall sentiment of the text.
	Polarity Polarity `json:"polarity" jsonschema:"title=polarity,enum=positive,enum=negative,enum=neutral,description=Overall sentiment of the text."`
	// Confidence of the polarity classification.
	Confidence float64 `json:"confidence,omitempty"`
	// PositiveProb probability the text is positive.
	PositiveProb float64 `json:"positive_prob,omitempty"`
	// NegativeProb probability the text is negative.
	NegativeProb float64 `json:"negative_prob,omitempty"`
	// MainEmotion strongest detected conversational emotion.
	MainEmotion string `json:"main_emotion,omitempty"`
	// EmotionConfidence probability of the main emotion.
	EmotionConfidence float64 `json:"emotion_confidence,omitempty"`
	// Emotions full emotion distribution.
	Emotions []EmotionItem `json:"emotions,omitempty"`
}

func (s Output) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

type Config struct {
	tools.Config
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// Tool analyzes text sentiment and conversational emotion through the Baidu
// NLP REST API. OAuth tokens are fetched lazily and cached until shortly
// before they expire.
type Tool struct {
	Config

	tokenMtx    sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func New(opts ...Option) *Tool {
	ret := new(Tool)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle("SentimentAnalysisTool")
	}
	if ret.Description() == "" {
		ret.SetDescription("Classifies text polarity and conversational emotion.")
	}
	if ret.baseURL == "" {
		ret.baseURL = defaultAuthURL
	}
	if ret.httpClient == nil {
		ret.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return ret
}

// Run analyzes polarity and emotion for the given text.
func (t *Tool) Run(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("sentiment input text is empty")
	}
	token, err := t.token(ctx)
	if err != nil {
		return nil, err
	}
	out := new(Output)
	if err := t.classify(ctx, token, input.Text, out); err != nil {
		return nil, err
	}
	// Emotion distribution is best effort; polarity alone is still useful.
	_ = t.emotion(ctx, token, input.Text, out)
	return out, nil
}

// AdjustResponse rewraps a model reply with a tone template matching the
// detected polarity.
func AdjustResponse(polarity Polarity, response string) string {
	templates, ok := responseTemplates[polarity]
	if !ok {
		return response
	}
	tpl := templates[rand.Intn(len(templates))]
	return fmt.Sprintf(tpl, response)
}

// FormatReport renders a human readable analysis block shown above replies
// when analysis display is enabled.
func FormatReport(out *Output) string {
	var b strings.Builder
	b.WriteString("情感分析结果：\n")
	fmt.Fprintf(&b, "情感倾向: %s (置信度 %.2f%%)\n", out.Polarity, out.Confidence*100)
	fmt.Fprintf(&b, "积极概率: %.2f%%  消极概率: %.2f%%", out.PositiveProb*100, out.NegativeProb*100)
	if out.MainEmotion != "" {
		fmt.Fprintf(&b, "\n主要情绪: %s (置信度 %.2f%%)", out.MainEmotion, out.EmotionConfidence*100)
	}
	return b.String()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error,omitempty"`
}

func (t *Tool) token(ctx context.Context) (string, error) {
	t.tokenMtx.Lock()
	defer t.tokenMtx.Unlock()
	if t.accessToken != "" && time.Now().Before(t.tokenExpiry) {
		return t.accessToken, nil
	}
	values := url.Values{}
	values.Set("grant_type", "client_credentials")
	values.Set("client_id", t.apiKey)
	values.Set("client_secret", t.secretKey)
	link := fmt.Sprintf("%s/oauth/2.0/token?%s", t.baseURL, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}
	defer resp.Body.Close()
	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.Error != "" || body.AccessToken == "" {
		return "", fmt.Errorf("token request rejected: %s", body.Error)
	}
	t.accessToken = body.AccessToken
	t.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - tokenTTLMargin)
	return t.accessToken, nil
}

type classifyItem struct {
	Sentiment    int     `json:"sentiment"`
	Confidence   float64 `json:"confidence"`
	PositiveProb float64 `json:"positive_prob"`
	NegativeProb float64 `json:"negative_prob"`
}

type classifyResponse struct {
	Items    []classifyItem `json:"items"`
	ErrorMsg string         `json:"error_msg,omitempty"`
}

func (t *Tool) classify(ctx context.Context, token, text string, out *Output) error {
	var body classifyResponse
	if err := t.post(ctx, "/rpc/2.0/nlp/v1/sentiment_classify", token, map[string]string{"text": text}, &body); err != nil {
		return err
	}
	if body.ErrorMsg != "" {
		return fmt.Errorf("sentiment_classify: %s", body.ErrorMsg)
	}
	if len(body.Items) == 0 {
		return fmt.Errorf("sentiment_classify returned no items")
	}
	item := body.Items[0]
	switch item.Sentiment {
	case 0:
		out.Polarity = Negative
	case 2:
		out.Polarity = Positive
	default:
		out.Polarity = Neutral
	}
	out.Confidence = item.Confidence
	out.PositiveProb = item.PositiveProb
	out.NegativeProb = item.NegativeProb
	return nil
}

type emotionResponse struct {
	Items []struct {
		Label    string  `json:"label"`
		Prob     float64 `json:"prob"`
		SubItems []struct {
			Label string  `json:"label"`
			Prob  float64 `json:"prob"`
		} `json:"subitems,omitempty"`
	} `json:"items"`
	ErrorMsg string `json:"error_msg,omitempty"`
}

func (t *Tool) emotion(ctx context.Context, token, text string, out *Output) error {
	var body emotionResponse
	if err := t.post(ctx, "/rpc/2.0/nlp/v1/emotion", token, map[string]string{"text": text, "scene": "talk"}, &body); err != nil {
		return err
	}
	if body.ErrorMsg != "" {
		return fmt.Errorf("emotion: %s", body.ErrorMsg)
	}
	for _, item := range body.Items {
		entry := EmotionItem{
			Label:       item.Label,
			Display:     emotionLabels[item.Label],
			Probability: item.Prob,
		}
		for _, sub := range item.SubItems {
			entry.SubEmotions = append(entry.SubEmotions, EmotionItem{
				Label:       sub.Label,
				Display:     emotionLabels[sub.Label],
				Probability: sub.Prob,
			})
		}
		out.Emotions = append(out.Emotions, entry)
		if item.Prob > out.EmotionConfidence {
			out.EmotionConfidence = item.Prob
			out.MainEmotion = entry.Display
			if out.MainEmotion == "" {
				out.MainEmotion = entry.Label
			}
		}
	}
	return nil
}

func (t *Tool) post(ctx context.Context, path, token string, payload any, out any) error {
	bs, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s%s?charset=UTF-8&access_token=%s", t.baseURL, path, url.QueryEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, bytes.NewReader(bs))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sentiment API request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sentiment API status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sentiment response: %w", err)
	}
	return nil
}
