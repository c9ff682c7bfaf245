package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/manthysbr/floral/internal/core/domain"
)

const defaultTimeout = 120 * time.Second

// postJSON sends payload to url and decodes a 2xx body into out.
// Every failure comes back as *domain.APIError.
func postJSON(ctx context.Context, client *http.Client, provider domain.Provider, url string, headers map[string]string, payload, out any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return domain.NewAPIError(provider, "failed to marshal payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return domain.NewAPIError(provider, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return domain.NewAPIError(provider, "failed to call API: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewAPIError(provider, "failed to read response: %v", err)
	}

	// All three vendors report failures as {"error": {"message": "..."}}
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return &domain.APIError{Provider: provider, Message: envelope.Error.Message}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.NewAPIError(provider, "API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewAPIError(provider, "failed to decode response: %v", err)
	}
	return nil
}

// approxTokens estimates usage when a backend does not report it.
func approxTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// splitDataURL breaks "data:image/png;base64,AAAA" into media type and payload.
// Bare base64 strings are treated as JPEG.
func splitDataURL(s string) (mediaType, data string, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "image/jpeg", s, nil
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URL")
	}
	mediaType = strings.TrimPrefix(header, "data:")
	mediaType, _, _ = strings.Cut(mediaType, ";")
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return mediaType, payload, nil
}

func trimBaseURL(baseURL, fallback string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return fallback
	}
	return baseURL
}
