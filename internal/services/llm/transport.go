package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"declutter/internal/services"
)

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatChoice struct {
	Message chatReply `json:"message"`
	// Some providers answer with the streaming shape even when stream=false.
	Delta        chatReply `json:"delta"`
	Text         string    `json:"text"`
	FinishReason string    `json:"finish_reason"`
}

type chatReply struct {
	Content      string        `json:"content"`
	Refusal      string        `json:"refusal"`
	FunctionCall *functionCall `json:"function_call"`
	ToolCalls    []struct {
		Function functionCall `json:"function"`
	} `json:"tool_calls"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// text returns the reply content, falling back to function or tool call
// arguments for models that answer JSON mode through a call.
func (r chatReply) text() string {
	if s := strings.TrimSpace(r.Content); s != "" {
		return s
	}
	if r.FunctionCall != nil {
		if s := strings.TrimSpace(r.FunctionCall.Arguments); s != "" {
			return s
		}
	}
	for _, call := range r.ToolCalls {
		if s := strings.TrimSpace(call.Function.Arguments); s != "" {
			return s
		}
	}
	return ""
}

// answer returns the first non-empty answer and the first finish reason.
func (r chatResponse) answer() (content, finishReason string) {
	for _, choice := range r.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		for _, candidate := range []string{choice.Message.text(), choice.Delta.text(), strings.TrimSpace(choice.Text)} {
			if candidate != "" {
				return candidate, finishReason
			}
		}
	}
	return "", finishReason
}

func (r chatResponse) refusal() string {
	for _, choice := range r.Choices {
		for _, s := range []string{choice.Message.Refusal, choice.Delta.Refusal} {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// send performs a single HTTP exchange. Non-2xx statuses come back as
// *httpStatusError and undecodable bodies as *malformedPayloadError.
func (c *Client) send(ctx context.Context, payload chatRequest) (chatResponse, []byte, error) {
	var out chatResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return out, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return out, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return out, body, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, body, &malformedPayloadError{Op: "llm request", Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Error != nil {
		return out, body, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(out.Error.Message))
	}
	return out, body, nil
}

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20
