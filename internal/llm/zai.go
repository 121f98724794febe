package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

const zaiEndpoint = "https://api.z.ai/api/paas/v4/chat/completions"

// ZAIProvider implements the Provider interface for z.ai (GLM models)
type ZAIProvider struct {
	apiKey string
	model  string
	client *http.Client
}

// NewZAIProvider creates a new z.ai provider
func NewZAIProvider(apiKey, model string) *ZAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("ZAI_API_KEY")
	}
	if model == "" {
		model = "glm-4.7"
	}
	return &ZAIProvider{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{},
	}
}

func (p *ZAIProvider) Name() string {
	return "zai"
}

// Generate sends a chat completion request to z.ai GLM
func (p *ZAIProvider) Generate(ctx context.Context, system string, messages []Message) (string, error) {
	converted := make([]map[string]string, 0, len(messages)+1)
	if system != "" {
		converted = append(converted, map[string]string{"role": "system", "content": system})
	}
	for _, m := range messages {
		converted = append(converted, map[string]string{"role": m.Role, "content": m.Content})
	}

	body, err := json.Marshal(map[string]interface{}{
		"model":      p.model,
		"messages":   converted,
		"max_tokens": 4096,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", zaiEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("z.ai API error: %s", string(respBody))
	}

	var result zaiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no response from z.ai")
	}

	return result.Choices[0].Message.Content, nil
}

type zaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
