// ABOUTME: System prompt catalogue loaded from a TOML file
// ABOUTME: Composes a shared default prompt with an optional per-model prompt

package provider

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// FallbackPrompt is used when no prompt is configured at all.
const FallbackPrompt = "You are a helpful AI assistant."

// Prompts holds system prompts. The TOML layout is:
//
//	default = "..."
//
//	[models."gemini-2.0-flash"]
//	prompt = "..."
type Prompts struct {
	Default string                 `toml:"default"`
	Models  map[string]ModelPrompt `toml:"models"`
}

// ModelPrompt is the model-specific part of a system prompt.
type ModelPrompt struct {
	Prompt string `toml:"prompt"`
}

// LoadPrompts reads a prompt catalogue. An empty path yields an empty
// catalogue, which resolves every model to FallbackPrompt.
func LoadPrompts(path string) (*Prompts, error) {
	p := &Prompts{}
	if path == "" {
		return p, nil
	}
	md, err := toml.DecodeFile(path, p)
	if err != nil {
		return nil, fmt.Errorf("reading prompts %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in prompts %s: %v", path, undecoded)
	}
	// Keys may be ids or display names; store them by id.
	byID := make(map[string]ModelPrompt, len(p.Models))
	for name, mp := range p.Models {
		m, err := ParseModel(name)
		if err != nil {
			return nil, fmt.Errorf("prompts %s: %w", path, err)
		}
		byID[string(m)] = mp
	}
	p.Models = byID
	return p, nil
}

// For returns the system prompt for a model: the default prompt and the
// model prompt joined by a blank line, whichever of them are set.
func (p *Prompts) For(model Model) string {
	if p == nil {
		return FallbackPrompt
	}
	var parts []string
	if s := strings.TrimSpace(p.Default); s != "" {
		parts = append(parts, s)
	}
	if mp, ok := p.Models[string(model)]; ok {
		if s := strings.TrimSpace(mp.Prompt); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return FallbackPrompt
	}
	return strings.Join(parts, "\n\n")
}
