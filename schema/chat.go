package schema

// Input is the standard chat input schema for user facing agents.
type Input struct {
	Base
	// ChatMessage The message sent by the user to the assistant.
	ChatMessage string `json:"chat_message" jsonschema:"title=chat_message,description=The message sent by the user to the assistant." validate:"required"`
}

// NewInput returns a new chat Input
func NewInput(msg string) *Input {
	return &Input{
		ChatMessage: msg,
	}
}

func (i Input) String() string {
	return i.ChatMessage
}

// Output is the standard chat output schema for user facing agents.
type Output struct {
	Base
	// ChatMessage The response generated by the assistant.
	ChatMessage string `json:"chat_message" jsonschema:"title=chat_message,description=The response generated by the assistant." validate:"required"`
}

// NewOutput returns a new chat Output
func NewOutput(msg string) *Output {
	return &Output{
		ChatMessage: msg,
	}
}

func (o Output) String() string {
	return o.ChatMessage
}
