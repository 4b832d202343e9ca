package core

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mohammad-safakhou/dockagent/config"
)

// NewLLMProvider creates the text-completion backend selected by
// configuration. Supported providers: gemini (default) and openai.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "gemini":
		return NewGeminiProvider(cfg.Gemini), nil
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// GeminiProvider implements LLMProvider against the Gemini REST API.
type GeminiProvider struct {
	config config.ProviderConfig
	http   *HTTPClient
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(cfg config.ProviderConfig) *GeminiProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &GeminiProvider{
		config: cfg,
		http:   NewHTTPClient(timeout, 2, 300*time.Millisecond),
	}
}

// Complete sends prompt as a single-turn generation request.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("gemini API key not configured")
	}

	model := p.config.Model
	if model == "" {
		model = "gemini-1.5-pro"
	}
	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Parts []part `json:"parts"`
	}
	body := map[string]interface{}{
		"contents": []content{{Parts: []part{{Text: prompt}}}},
		"generationConfig": map[string]interface{}{
			"temperature":     p.config.Temperature,
			"maxOutputTokens": p.config.MaxTokens,
		},
	}

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", baseURL, model)
	headers := map[string]string{"x-goog-api-key": apiKey}
	if err := p.http.DoJSON(ctx, http.MethodPost, url, headers, body, &out); err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini completion: empty response")
	}

	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// OpenAIProvider implements LLMProvider against the chat completions API.
type OpenAIProvider struct {
	config config.ProviderConfig
	http   *HTTPClient
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIProvider{
		config: cfg,
		http:   NewHTTPClient(timeout, 2, 300*time.Millisecond),
	}
}

// Complete sends prompt as a single user message.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	apiKey := p.config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", fmt.Errorf("openai API key not configured")
	}

	model := p.config.Model
	if model == "" {
		model = "gpt-4o"
	}
	baseURL := p.config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	type chatMsg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type chatReq struct {
		Model       string    `json:"model"`
		Messages    []chatMsg `json:"messages"`
		Temperature float64   `json:"temperature,omitempty"`
		MaxTokens   int       `json:"max_tokens,omitempty"`
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	err := p.http.DoJSON(ctx, http.MethodPost, baseURL+"/chat/completions", headers, chatReq{
		Model:       model,
		Messages:    []chatMsg{{Role: "user", Content: prompt}},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no choices")
	}
	return out.Choices[0].Message.Content, nil
}
