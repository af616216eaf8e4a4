package schema

import "encoding/json"

// Schema is the shape of everything that travels between the router, the
// agents and the model endpoints: chat inputs, replies, tool payloads.
type Schema interface {
	// Attachement returns the images or files riding along with the message.
	Attachement() *Attachement
}

// SchemaPointer is a mutable Schema, needed when a handler attaches an
// uploaded image to an input before dispatch.
type SchemaPointer interface {
	Schema
	SetAttachement(*Attachement)
}

// Stringify renders a schema for prompts and token counting.
func Stringify(s Schema) string {
	if v, ok := s.(String); ok {
		return string(v)
	}
	bs, _ := json.Marshal(s)
	return string(bs)
}

// ToBytes renders a schema for wire transport.
func ToBytes(s Schema) []byte {
	if v, ok := s.(String); ok {
		return []byte(v)
	}
	bs, _ := json.Marshal(s)
	return bs
}
