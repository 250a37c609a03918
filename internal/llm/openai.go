package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type openaiCompatible struct {
	provider   string
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	client     *http.Client
}

type openaiRequest struct {
	Model     string          `json:"model"`
	Messages  []openaiMessage `json:"messages"`
	Tools     []openaiTool    `json:"tools,omitempty"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newOpenAICompatible(provider, apiKey, baseURL, model string, maxRetries int) LLM {
	return &openaiCompatible{
		provider:   provider,
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		maxRetries: maxRetries,
		client:     http.DefaultClient,
	}
}

func (o *openaiCompatible) Chat(ctx context.Context, req Request) (*ChatResponse, error) {
	reqBody := openaiRequest{
		Model:     o.model,
		Messages:  o.convertMessages(req.System, req.Messages),
		MaxTokens: req.MaxTokens,
	}

	for _, tool := range req.Tools {
		reqBody.Tools = append(reqBody.Tools, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, providerError(o.provider, 0, fmt.Errorf("marshal request: %w", err))
	}

	var body []byte
	var statusCode int
	for attempt := range o.maxRetries {
		body, statusCode, err = o.post(ctx, jsonBody)
		if err != nil {
			return nil, providerError(o.provider, 0, err)
		}
		if statusCode == http.StatusOK {
			break
		}
		if !isRetryableStatus(statusCode) {
			break
		}
		if attempt < o.maxRetries-1 {
			if waitErr := backoff(ctx, attempt); waitErr != nil {
				return nil, providerError(o.provider, statusCode, waitErr)
			}
		}
	}

	if statusCode != http.StatusOK {
		return nil, providerError(o.provider, statusCode, fmt.Errorf("api error: %s", string(body)))
	}

	var oaiResp openaiResponse
	if err := json.Unmarshal(body, &oaiResp); err != nil {
		return nil, providerError(o.provider, statusCode, fmt.Errorf("unmarshal response: %w", err))
	}

	if oaiResp.Error != nil {
		return nil, providerError(o.provider, statusCode, fmt.Errorf("api error: %s", oaiResp.Error.Message))
	}

	if len(oaiResp.Choices) == 0 {
		return nil, providerError(o.provider, statusCode, fmt.Errorf("no choices in response"))
	}

	return o.parseResponse(&oaiResp), nil
}

func (o *openaiCompatible) post(ctx context.Context, jsonBody []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, 0, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return body, resp.StatusCode, nil
}

func (o *openaiCompatible) convertMessages(system string, messages []Message) []openaiMessage {
	var result []openaiMessage

	if system != "" {
		result = append(result, openaiMessage{Role: "system", Content: system})
	}

	for _, msg := range messages {
		oaiMsg := openaiMessage{Role: msg.Role, Content: msg.Content, ToolCallID: msg.ToolCallID}
		for _, tc := range msg.ToolCalls {
			call := openaiToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = tc.Arguments
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, call)
		}
		result = append(result, oaiMsg)
	}

	return result
}

func (o *openaiCompatible) parseResponse(resp *openaiResponse) *ChatResponse {
	choice := resp.Choices[0]
	result := &ChatResponse{
		ID:         resp.ID,
		Model:      resp.Model,
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
	}

	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	if resp.Usage != nil {
		result.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return result
}

func (o *openaiCompatible) Provider() string {
	return o.provider
}

func (o *openaiCompatible) Model() string {
	return o.model
}
