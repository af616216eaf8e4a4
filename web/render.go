package web

import (
	"gitlab.com/golang-commonmark/markdown"
)

var md = markdown.New(
	markdown.HTML(false),
	markdown.Breaks(true),
	markdown.Linkify(true),
)

// RenderMarkdown converts a chat reply to HTML for browser display. Raw
// HTML in the input is not passed through.
func RenderMarkdown(text string) string {
	return md.RenderToString([]byte(text))
}
