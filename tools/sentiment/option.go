package sentiment

import "net/http"

type Option func(c *Config)

// WithCredentials sets the API key and secret used for OAuth token exchange.
func WithCredentials(apiKey, secretKey string) Option {
	return func(c *Config) {
		c.apiKey = apiKey
		c.secretKey = secretKey
	}
}

// WithBaseURL overrides the API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the default http client.
func WithHTTPClient(clt *http.Client) Option {
	return func(c *Config) {
		c.httpClient = clt
	}
}

// WithTitle set tool title
func WithTitle(title string) Option {
	return func(c *Config) {
		c.SetTitle(title)
	}
}

// WithDescription set tool description
func WithDescription(description string) Option {
	return func(c *Config) {
		c.SetDescription(description)
	}
}
