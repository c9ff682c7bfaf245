package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// AnthropicProvider implements domain.CompletionProvider using the messages API.
type AnthropicProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewAnthropicProvider(baseURL, apiKey string, timeout time.Duration) *AnthropicProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AnthropicProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: trimBaseURL(baseURL, anthropicBaseURL),
		apiKey:  apiKey,
	}
}

var _ domain.CompletionProvider = (*AnthropicProvider)(nil)

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicRequest struct {
	Model    string `json:"model"`
	System   string `json:"system,omitempty"`
	Messages []struct {
		Role    string           `json:"role"`
		Content []anthropicBlock `json:"content"`
	} `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
	Usage   *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Generate places image blocks before the text block, as the messages API recommends.
func (p *AnthropicProvider) Generate(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	blocks := make([]anthropicBlock, 0, len(req.Images)+1)
	for _, img := range req.Images {
		mediaType, data, err := splitDataURL(img)
		if err != nil {
			return domain.Completion{}, domain.NewAPIError(domain.ProviderAnthropic, "invalid image: %v", err)
		}
		blocks = append(blocks, anthropicBlock{
			Type:   "image",
			Source: &anthropicSource{Type: "base64", MediaType: mediaType, Data: data},
		})
	}
	blocks = append(blocks, anthropicBlock{Type: "text", Text: req.UserPrompt})

	payload := anthropicRequest{
		Model:       req.Model,
		System:      req.SystemPrompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	payload.Messages = append(payload.Messages, struct {
		Role    string           `json:"role"`
		Content []anthropicBlock `json:"content"`
	}{Role: "user", Content: blocks})

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var result anthropicResponse
	if err := postJSON(ctx, p.client, domain.ProviderAnthropic, p.baseURL+"/v1/messages", headers, payload, &result); err != nil {
		return domain.Completion{}, err
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()

	tokens := approxTokens(text)
	if result.Usage != nil && result.Usage.OutputTokens > 0 {
		tokens = result.Usage.OutputTokens
	}
	return domain.Completion{Text: text, Tokens: tokens}, nil
}
