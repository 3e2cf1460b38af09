// ABOUTME: Renders chat message markdown into sanitized HTML
// ABOUTME: goldmark with GFM extensions, then a bluemonday UGC policy over the output

package render

import (
	"bytes"
	"fmt"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown to HTML that is safe to embed in a page.
// It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New creates a Renderer. Single newlines become line breaks, matching how
// chat messages are typed.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)

	policy := bluemonday.UGCPolicy()
	// Keep "language-go" style classes for client-side highlighting
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")

	return &Renderer{md: md, policy: policy}
}

// Markdown renders src. If conversion fails the escaped source is returned
// in a paragraph, so callers always get displayable HTML.
func (r *Renderer) Markdown(src string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return fmt.Sprintf("<p>%s</p>", html.EscapeString(src))
	}
	return r.policy.Sanitize(buf.String())
}
