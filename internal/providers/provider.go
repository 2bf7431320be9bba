package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/AI-Template-SDK/senso-tracker/internal/providers/common"
)

// Provider is one AI platform normalized to a single ask operation
type Provider interface {
	Name() string
	Model() string
	Ask(ctx context.Context, query string) (*common.Answer, error)
}

// ID identifies a supported AI platform
type ID string

const (
	ChatGPT    ID = "chatgpt"
	Gemini     ID = "gemini"
	Perplexity ID = "perplexity"
	Claude     ID = "claude"
)

// All lists the supported platforms in reporting order
var All = []ID{ChatGPT, Gemini, Perplexity, Claude}

func (id ID) String() string {
	return string(id)
}

// UnsupportedProviderError names an identifier that is not in the registry
type UnsupportedProviderError struct {
	ID string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("providers: unsupported provider %q", e.ID)
}

// Parse resolves a case-insensitive identifier or alias to an ID
func Parse(s string) (ID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chatgpt", "openai":
		return ChatGPT, nil
	case "gemini":
		return Gemini, nil
	case "perplexity":
		return Perplexity, nil
	case "claude", "anthropic":
		return Claude, nil
	default:
		return "", &UnsupportedProviderError{ID: s}
	}
}
