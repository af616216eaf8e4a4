package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringify(t *testing.T) {
	assert.Equal(t, "hello", Stringify(String("hello")))
	assert.Equal(t, `{"chat_message":"hi"}`, Stringify(*NewInput("hi")))
}

func TestChatSchemaAttachement(t *testing.T) {
	in := NewInput("describe this picture")
	assert.Nil(t, in.Attachement())
	in.SetAttachement(&Attachement{ImageURLs: []string{"http://localhost/cat.png"}})
	if assert.NotNil(t, in.Attachement()) {
		assert.Len(t, in.Attachement().ImageURLs, 1)
	}
}
