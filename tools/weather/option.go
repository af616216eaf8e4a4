package weather

import (
	"net/http"
	"time"
)

type Option func(c *Config)

func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.apiKey = key
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.baseURL = baseURL
	}
}

func WithLanguage(language string) Option {
	return func(c *Config) {
		c.language = language
	}
}

func WithUnit(unit string) Option {
	return func(c *Config) {
		c.unit = unit
	}
}

func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		c.maxAttempts = n
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) {
		c.retryDelay = d
	}
}

func WithHTTPClient(clt *http.Client) Option {
	return func(c *Config) {
		c.httpClient = clt
	}
}
