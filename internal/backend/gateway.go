// internal/backend/gateway.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nutritrack/internal/models"
)

const (
	DefaultProxyURL     = "http://mcp-compose-http-proxy:9876"
	DefaultGatewayModel = "google/gemini-2.5-flash"
)

// GatewayClient sends turns through the MCP proxy's OpenRouter gateway as a
// create_completion tool call.
type GatewayClient struct {
	httpClient *http.Client
	proxyURL   string
	apiKey     string
	model      string
	maxTokens  int
}

func NewGatewayClient(proxyURL, apiKey, model string, timeout time.Duration) *GatewayClient {
	if proxyURL == "" {
		proxyURL = DefaultProxyURL
	}
	if model == "" {
		model = DefaultGatewayModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &GatewayClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		proxyURL:  strings.TrimRight(proxyURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: 2000,
	}
}

func (g *GatewayClient) GenerateTurn(ctx context.Context, req *models.TurnRequest) ([]byte, error) {
	systemPrompt, err := gatewaySystemPrompt(req)
	if err != nil {
		return nil, err
	}

	completionRequest := map[string]interface{}{
		"model":         g.model,
		"system_prompt": systemPrompt,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": gatewayContent(req.Parts),
			},
		},
		"max_tokens":      g.maxTokens,
		"temperature":     req.Temperature,
		"response_format": map[string]string{"type": "json_object"},
	}

	gatewayResponse, err := g.callGateway(ctx, "create_completion", completionRequest)
	if err != nil {
		return nil, err
	}

	return extractCompletionContent(gatewayResponse)
}

// gatewaySystemPrompt appends the reply schema to the instruction since the
// gateway has no native structured-output field.
func gatewaySystemPrompt(req *models.TurnRequest) (string, error) {
	schema, err := json.MarshalIndent(req.ResponseSchema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal response schema: %w", err)
	}
	return fmt.Sprintf("%s\n\nIMPORTANT: Always respond with a single valid JSON object matching this schema:\n%s",
		req.SystemInstruction, schema), nil
}

func gatewayContent(parts []models.Part) []map[string]interface{} {
	content := make([]map[string]interface{}, 0, len(parts))
	for _, p := range parts {
		if p.InlineImage != nil {
			content = append(content, map[string]interface{}{
				"type": "image_url",
				"image_url": map[string]string{
					"url": fmt.Sprintf("data:%s;base64,%s", p.InlineImage.MIMEType, p.InlineImage.Data),
				},
			})
			continue
		}
		content = append(content, map[string]interface{}{
			"type": "text",
			"text": p.Text,
		})
	}
	return content
}

func (g *GatewayClient) callGateway(ctx context.Context, toolName string, args interface{}) (string, error) {
	url := fmt.Sprintf("%s/openrouter-gateway", g.proxyURL)

	requestData := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", transportError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", backendError("request failed with status %d and couldn't read body: %v", resp.StatusCode, err)
		}
		return "", backendError("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var rpcResponse struct {
		Result *struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResponse); err != nil {
		return "", backendError("failed to decode response: %v", err)
	}

	if rpcResponse.Error != nil {
		return "", backendError("gateway error %d: %s", rpcResponse.Error.Code, rpcResponse.Error.Message)
	}
	if rpcResponse.Result == nil || len(rpcResponse.Result.Content) == 0 {
		return "", backendError("unexpected response format")
	}
	if rpcResponse.Result.IsError {
		return "", backendError("gateway tool error: %s", rpcResponse.Result.Content[0].Text)
	}

	return rpcResponse.Result.Content[0].Text, nil
}

// extractCompletionContent unwraps the completion object the gateway returns
// as text. Gateways that return the model output directly are passed through.
func extractCompletionContent(gatewayOutput string) ([]byte, error) {
	var completion map[string]interface{}
	if err := json.Unmarshal([]byte(gatewayOutput), &completion); err != nil {
		return []byte(gatewayOutput), nil
	}

	content, ok := completion["content"].(string)
	if !ok {
		if _, hasReply := completion["reply"]; hasReply {
			return []byte(gatewayOutput), nil
		}
		return nil, backendError("completion has no content")
	}
	if strings.TrimSpace(content) == "" {
		return nil, backendError("empty completion content")
	}

	return []byte(content), nil
}
