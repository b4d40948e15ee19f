package llm

import (
	"context"

	"github.com/lysyi3m/bulletin-comb/app/errs"
)

const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// systemPrompt is sent alongside every source prompt.
const systemPrompt = "You extract events from municipal bulletins. Reply with a single JSON object of the form {\"eventos\": [...]} and nothing else."

// Client sends one prompt to a model and returns the raw text reply.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

type Options struct {
	Provider         string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	MaxTokens        int
}

// NewClient picks a provider. "auto" prefers OpenAI when its key is set.
func NewClient(opts Options) (Client, error) {
	provider := opts.Provider
	if provider == "" || provider == ProviderAuto {
		switch {
		case opts.OpenAIAPIKey != "":
			provider = ProviderOpenAI
		case opts.AnthropicAPIKey != "":
			provider = ProviderAnthropic
		default:
			return nil, errs.Configuration("no LLM API key configured (set OPENAI_API_KEY or ANTHROPIC_API_KEY)")
		}
	}

	switch provider {
	case ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, errs.Configuration("OPENAI_API_KEY is required for provider %s", provider)
		}
		return NewOpenAIClient(opts.OpenAIAPIKey, opts.OpenAIModel, opts.OpenAIBaseURL, opts.MaxTokens), nil
	case ProviderAnthropic:
		if opts.AnthropicAPIKey == "" {
			return nil, errs.Configuration("ANTHROPIC_API_KEY is required for provider %s", provider)
		}
		return NewAnthropicClient(opts.AnthropicAPIKey, opts.AnthropicModel, opts.AnthropicBaseURL, opts.MaxTokens), nil
	default:
		return nil, errs.Configuration("unknown LLM provider '%s'", provider)
	}
}
