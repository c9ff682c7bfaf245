package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider implements domain.CompletionProvider using the generateContent REST API.
type GeminiProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewGeminiProvider(baseURL, apiKey string, timeout time.Duration) *GeminiProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GeminiProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: trimBaseURL(baseURL, geminiBaseURL),
		apiKey:  apiKey,
	}
}

var _ domain.CompletionProvider = (*GeminiProvider)(nil)

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends system and user prompt as a single text part followed by inline images.
func (p *GeminiProvider) Generate(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	parts := []geminiPart{{Text: req.SystemPrompt + "\n\n" + req.UserPrompt}}
	for _, img := range req.Images {
		mediaType, data, err := splitDataURL(img)
		if err != nil {
			return domain.Completion{}, domain.NewAPIError(domain.ProviderGemini, "invalid image: %v", err)
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mediaType, Data: data}})
	}

	var payload geminiRequest
	payload.Contents = []geminiContent{{Role: "user", Parts: parts}}
	payload.GenerationConfig.Temperature = req.Temperature
	payload.GenerationConfig.MaxOutputTokens = req.MaxTokens

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(req.Model))
	headers := map[string]string{"x-goog-api-key": p.apiKey}

	var result geminiResponse
	if err := postJSON(ctx, p.client, domain.ProviderGemini, endpoint, headers, payload, &result); err != nil {
		return domain.Completion{}, err
	}

	var sb strings.Builder
	if len(result.Candidates) > 0 {
		for _, part := range result.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	text := sb.String()

	tokens := approxTokens(text)
	if result.UsageMetadata != nil && result.UsageMetadata.TotalTokenCount > 0 {
		tokens = result.UsageMetadata.TotalTokenCount
	}
	return domain.Completion{Text: text, Tokens: tokens}, nil
}
