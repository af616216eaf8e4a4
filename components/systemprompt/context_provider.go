package systemprompt

// ContextProvider is an interface that defines the title and info of a context provider
type ContextProvider interface {
	Title() string
	Info() string
}

// StaticProvider is a fixed title/info pair, handy for injecting
// pre-rendered context like retrieval results into a system prompt.
type StaticProvider struct {
	ProviderTitle string
	ProviderInfo  string
}

func (p StaticProvider) Title() string {
	return p.ProviderTitle
}

func (p StaticProvider) Info() string {
	return p.ProviderInfo
}
