package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"nutritrack/internal/models"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-2.5-flash"
)

// GeminiClient calls generateContent on the Gemini API through the genai SDK.
type GeminiClient struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

func NewGeminiClient(apiKey, baseURL, model string, timeout time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GeminiClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Model:      model,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (c *GeminiClient) GenerateTurn(ctx context.Context, req *models.TurnRequest) ([]byte, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, backendError("missing Gemini API key")
	}
	model := c.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      c.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: strings.TrimSpace(c.BaseURL)},
	})
	if err != nil {
		return nil, backendError("create Gemini client: %v", err)
	}

	contents, err := geminiContents(req.Parts)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, geminiConfig(req))
	if err != nil {
		return nil, geminiError(err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, backendError("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, backendError("no candidates in Gemini response")
	}

	text := resp.Text()
	if text == "" {
		return nil, backendError("empty Gemini response (finish reason %q)", resp.Candidates[0].FinishReason)
	}
	return []byte(text), nil
}

func geminiContents(parts []models.Part) ([]*genai.Content, error) {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.InlineImage != nil {
			data, err := base64.StdEncoding.DecodeString(p.InlineImage.Data)
			if err != nil {
				return nil, backendError("decode inline image: %v", err)
			}
			out = append(out, genai.NewPartFromBytes(data, p.InlineImage.MIMEType))
			continue
		}
		if p.Text == "" {
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return []*genai.Content{genai.NewContentFromParts(out, genai.RoleUser)}, nil
}

func geminiConfig(req *models.TurnRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType: req.ResponseMIMEType,
		ResponseSchema:   req.ResponseSchema,
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	return cfg
}

// geminiError maps SDK errors onto failure kinds. API errors carry an HTTP
// status; everything else failed before a response arrived.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return backendError("Gemini request failed with status %d: %s", apiErr.Code, apiErr.Message)
	}
	return transportError(fmt.Errorf("execute Gemini request: %w", err))
}
