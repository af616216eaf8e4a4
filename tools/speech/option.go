package speech

import (
	"net/http"
	"time"
)

type RecognizerOption func(c *RecognizerConfig)

// WithServerURL sets the recognition server websocket URL.
func WithServerURL(serverURL string) RecognizerOption {
	return func(c *RecognizerConfig) {
		c.serverURL = serverURL
	}
}

// WithChunkSize sets the audio chunk size in bytes.
func WithChunkSize(size int) RecognizerOption {
	return func(c *RecognizerConfig) {
		c.chunkSize = size
	}
}

// WithRecognizeTimeout bounds a whole recognition round trip.
func WithRecognizeTimeout(timeout time.Duration) RecognizerOption {
	return func(c *RecognizerConfig) {
		c.timeout = timeout
	}
}

type SynthesizerOption func(c *SynthesizerConfig)

// WithEndpoint sets the TTS server endpoint.
func WithEndpoint(endpoint string) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.endpoint = endpoint
	}
}

// WithVoice selects the synthesis voice.
func WithVoice(voice string) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.voice = voice
	}
}

// WithRate sets the speaking rate in words per minute.
func WithRate(rate int) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.rate = rate
	}
}

// WithMaxChunk caps the byte length of one synthesis request.
func WithMaxChunk(maxChunk int) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.maxChunk = maxChunk
	}
}

// WithSynthesizerHTTPClient overrides the default http client.
func WithSynthesizerHTTPClient(clt *http.Client) SynthesizerOption {
	return func(c *SynthesizerConfig) {
		c.httpClient = clt
	}
}
