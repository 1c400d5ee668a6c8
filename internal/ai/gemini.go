package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type GeminiProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateReq struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenerateResp struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGeminiProvider(baseURL, apiKey, model string) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// Gemini only knows the roles "user" and "model"; system messages are
// folded into the user turn stream.
func geminiRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("gemini: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", fmt.Errorf("gemini: %w", ErrNotConfigured)
	}

	reqBody := geminiGenerateReq{
		Contents: func() []geminiContent {
			out := make([]geminiContent, 0, len(messages))
			for _, m := range messages {
				out = append(out, geminiContent{
					Role:  geminiRole(m.Role),
					Parts: []geminiPart{{Text: m.Content}},
				})
			}
			return out
		}(),
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.BaseURL, "/"), p.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("gemini: %s", msg)
	}

	var decoded geminiGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Candidates) == 0 {
		return "", errors.New("gemini: empty response")
	}

	var sb strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
