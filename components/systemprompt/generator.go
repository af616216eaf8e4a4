package systemprompt

import "fmt"

// Generator is system prompt generator framework
type Generator interface {
	Generate() string
	// ContextProvider retrieves a context provider by name.
	// If the context provider is not found returns not found error
	ContextProvider(title string) (ContextProvider, error)
	// AddContextProviders registers new context providers
	AddContextProviders(providers ...ContextProvider)
	// RemoveContextProviders Unregisters an existing context provider.
	RemoveContextProviders(titles ...string)
}

// BaseGenerator carries the shared context provider registry for concrete
// generators.
type BaseGenerator struct {
	contextProviders []ContextProvider
}

func (g *BaseGenerator) ContextProviders() []ContextProvider {
	return g.contextProviders
}

// ContextProvider retrieves a context provider by name.
// If the context provider is not found returns not found error
func (g *BaseGenerator) ContextProvider(title string) (ContextProvider, error) {
	for _, p := range g.contextProviders {
		if p.Title() == title {
			return p, nil
		}
	}
	return nil, fmt.Errorf("context provider '%s' not found", title)
}

// AddContextProviders registers new context providers
func (g *BaseGenerator) AddContextProviders(providers ...ContextProvider) {
	for _, provider := range providers {
		if _, err := g.ContextProvider(provider.Title()); err != nil {
			g.contextProviders = append(g.contextProviders, provider)
		}
	}
}

// RemoveContextProviders Unregisters an existing context provider.
func (g *BaseGenerator) RemoveContextProviders(titles ...string) {
	mp := make(map[string]struct{}, len(titles))
	for _, v := range titles {
		mp[v] = struct{}{}
	}
	providers := make([]ContextProvider, 0, len(g.contextProviders))
	for _, p := range g.contextProviders {
		if _, found := mp[p.Title()]; found {
			continue
		}
		providers = append(providers, p)
	}
	g.contextProviders = providers
}
