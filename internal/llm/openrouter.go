package llm

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterAdapter creates an adapter for the OpenRouter API
// (OpenAI-compatible). Ids are prefixed with "openrouter-".
func NewOpenRouterAdapter(apiKey string, model string, opts Options) *OpenAIAdapter {
	if opts.BaseURL == "" {
		opts.BaseURL = openRouterBaseURL
	}
	return newChatAdapter("openrouter", apiKey, model, opts)
}
