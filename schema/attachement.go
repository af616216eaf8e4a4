package schema

import "io"

// Attachement carries the multimodal extras of a message. The image chat
// endpoint fills ImageURLs with data URLs so the vision model receives the
// uploaded picture inline.
type Attachement struct {
	// ImageURLs image URLs or base64 data URLs, one part per image.
	ImageURLs []string `json:"image_url,omitempty"`
	// Files raw file readers, consumed by providers that accept file input.
	Files []io.Reader `json:"file,omitempty"`
}
