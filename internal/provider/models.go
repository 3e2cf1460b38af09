// ABOUTME: Closed set of chat models offered to users
// ABOUTME: Maps model identifiers to display names and validates user input

package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownModel is returned when a model name is not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Model identifies an upstream model. Only the constants below are valid.
type Model string

const (
	ModelBeykusSmall  Model = "gemini-2.0-flash"
	ModelBeykusChat   Model = "gemini-1.5-flash-8b"
	ModelBeykusSmallR Model = "gemini-2.0-pro-exp-02-05"
)

// DefaultModel is used for chats that never picked a model.
const DefaultModel = ModelBeykusSmall

// ModelInfo describes a model for clients.
type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
}

var catalog = []ModelInfo{
	{ID: string(ModelBeykusSmall), DisplayName: "BEYKUS_SMALL"},
	{ID: string(ModelBeykusChat), DisplayName: "BEYKUS_CHAT"},
	{ID: string(ModelBeykusSmallR), DisplayName: "BEYKUS_SMALL_R"},
}

// Models lists the available models in catalog order.
func Models() []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ParseModel validates a model identifier. The display name is accepted too.
func ParseModel(name string) (Model, error) {
	name = strings.TrimSpace(name)
	for _, m := range catalog {
		if name == m.ID || name == m.DisplayName {
			return Model(m.ID), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

// Valid reports whether m is exactly the id of a catalog model.
func (m Model) Valid() bool {
	for _, info := range catalog {
		if info.ID == string(m) {
			return true
		}
	}
	return false
}

// DisplayName returns the user-facing name, or the raw id for unknown models.
func (m Model) DisplayName() string {
	for _, info := range catalog {
		if info.ID == string(m) {
			return info.DisplayName
		}
	}
	return string(m)
}
