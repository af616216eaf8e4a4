package components

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"

	cohere "github.com/cohere-ai/cohere-go/v2"
	"github.com/gabriel-vasile/mimetype"
	anthropic "github.com/liushuangls/go-anthropic/v2"
	"github.com/rs/xid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/polychat-ai/polychat/schema"
)

// NewTurnID returns a new turn ID.
func NewTurnID() string {
	return xid.New().String()
}

// MessageRole is the role of the message sender (e.g., 'user', 'system', 'tool')
type MessageRole = string

const (
	SystemRole    MessageRole = "system"
	UserRole      MessageRole = "user"
	AssistantRole MessageRole = "assistant"
	ToolRole      MessageRole = "tool"
)

// Message represents a single entry in the chat history.
type Message struct {
	content schema.Schema
	// role is the role of the message sender
	role MessageRole
	// turnID is the unique identifier for the turn this message belongs to
	turnID string
}

// NewMessage returns a new Message
func NewMessage(role MessageRole, content schema.Schema) *Message {
	return &Message{
		role:    role,
		content: content,
	}
}

// SetTurnID set message turnID
func (m *Message) SetTurnID(turnID string) *Message {
	m.turnID = turnID
	return m
}

// Role returns message role
func (m Message) Role() MessageRole {
	return m.role
}

// Content returns message content
func (m Message) Content() schema.Schema {
	return m.content
}

// Attachement returns message attachement
func (m Message) Attachement() *schema.Attachement {
	return m.content.Attachement()
}

// TurnID returns message turnID
func (m Message) TurnID() string {
	return m.turnID
}

// ToOpenAI converts the message into an openai ChatCompletionMessage.
// Image attachements become multi-part content for vision capable models.
func (m Message) ToOpenAI(dist *openai.ChatCompletionMessage) {
	dist.Role = m.role
	attachement := m.Attachement()
	if attachement == nil || len(attachement.ImageURLs) == 0 {
		dist.Content = schema.Stringify(m.content)
		return
	}
	dist.MultiContent = make([]openai.ChatMessagePart, 0, len(attachement.ImageURLs)+1)
	dist.MultiContent = append(dist.MultiContent, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: schema.Stringify(m.content),
	})
	for _, imageURL := range attachement.ImageURLs {
		dist.MultiContent = append(dist.MultiContent, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: imageURL,
			},
		})
	}
}

// ToAnthropic converts the message into an anthropic Message.
func (m Message) ToAnthropic(dist *anthropic.Message) {
	dist.Role = anthropic.ChatRole(m.role)
	attachement := m.Attachement()
	if attachement == nil || (len(attachement.ImageURLs) == 0 && len(attachement.Files) == 0) {
		dist.Content = []anthropic.MessageContent{anthropic.NewTextMessageContent(schema.Stringify(m.content))}
		return
	}
	images := fetchImages(context.Background(), attachement.ImageURLs)
	dist.Content = make([]anthropic.MessageContent, 0, len(images)+len(attachement.Files)+1)
	dist.Content = append(dist.Content, anthropic.NewTextMessageContent(schema.Stringify(m.content)))
	buf := new(bytes.Buffer)
	for _, img := range images {
		buf.Reset()
		if err := png.Encode(buf, img); err != nil {
			continue
		}
		src := anthropic.MessageContentSource{
			Type:      "base64",
			MediaType: "image/png",
			Data:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		}
		dist.Content = append(dist.Content, anthropic.NewImageMessageContent(src))
	}
	for _, f := range attachement.Files {
		buf.Reset()
		tee := io.TeeReader(f, buf)
		mimeType, err := mimetype.DetectReader(tee)
		if err != nil {
			continue
		}
		src := anthropic.MessageContentSource{
			Type:      "base64",
			MediaType: mimeType.String(),
			Data:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		}
		dist.Content = append(dist.Content, anthropic.NewDocumentMessageContent(src))
	}
}

// ToCohere converts the message into a cohere chat history Message.
func (m Message) ToCohere(dist *cohere.Message) {
	switch m.role {
	case SystemRole:
		dist.Role = "SYSTEM"
		dist.System = &cohere.ChatMessage{
			Message: schema.Stringify(m.content),
		}
	case AssistantRole:
		dist.Role = "CHATBOT"
		dist.Chatbot = &cohere.ChatMessage{
			Message: schema.Stringify(m.content),
		}
	default:
		dist.Role = "USER"
		dist.User = &cohere.ChatMessage{
			Message: schema.Stringify(m.content),
		}
	}
}

func fetchImages(ctx context.Context, urls []string) []image.Image {
	imgs := make([]image.Image, 0, len(urls))
	for _, link := range urls {
		img, err := fetchImage(ctx, link)
		if err != nil {
			continue
		}
		imgs = append(imgs, img)
	}
	return imgs
}

func fetchImage(ctx context.Context, imgURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching image", resp.StatusCode)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, err
	}
	return img, nil
}
