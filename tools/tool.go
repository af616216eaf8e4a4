package tools

// ITool is the base behavior shared by all tools.
type ITool interface {
	SetTitle(string)
	Title() string
	SetDescription(string)
	Description() string
}
