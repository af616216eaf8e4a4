package simple

import "github.com/polychat-ai/polychat/components/systemprompt"

type Option = func(g *Generator)

// WithContextProviders set Generator context providers
func WithContextProviders(providers ...systemprompt.ContextProvider) Option {
	return func(g *Generator) {
		g.AddContextProviders(providers...)
	}
}
