package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements domain.CompletionProvider using the chat completions API.
// Works with any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewOpenAIProvider creates a new OpenAI-compatible provider
func NewOpenAIProvider(baseURL, apiKey string, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAIProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: trimBaseURL(baseURL, openAIBaseURL),
		apiKey:  apiKey,
	}
}

var _ domain.CompletionProvider = (*OpenAIProvider)(nil)

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate calls /chat/completions. Images are passed as data URLs.
func (p *OpenAIProvider) Generate(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	content := []openAIContentPart{{Type: "text", Text: req.UserPrompt}}
	for _, img := range req.Images {
		content = append(content, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: img}})
	}

	payload := openAIRequest{
		Model: req.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: content},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var result openAIResponse
	url := fmt.Sprintf("%s/chat/completions", p.baseURL)
	if err := postJSON(ctx, p.client, domain.ProviderOpenAI, url, headers, payload, &result); err != nil {
		return domain.Completion{}, err
	}

	if len(result.Choices) == 0 {
		return domain.Completion{}, domain.NewAPIError(domain.ProviderOpenAI, "no choices in response")
	}

	text := result.Choices[0].Message.Content
	tokens := approxTokens(text)
	if result.Usage != nil && result.Usage.TotalTokens > 0 {
		tokens = result.Usage.TotalTokens
	}
	return domain.Completion{Text: text, Tokens: tokens}, nil
}
