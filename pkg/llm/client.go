// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"wellmind-go/internal/config"
)

// Client defines the interface for an LLM client.
type Client interface {
	// StreamChatCompletion 以流式方式调用聊天接口，返回一个可逐条读取增量的流。
	StreamChatCompletion(ctx context.Context, req ChatRequest) (ChatStream, error)
	// CreateChatCompletion 以非流式方式调用聊天接口，返回完整文本。
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// ChatStream 表示一次流式聊天响应。Recv 在流正常结束时返回 io.EOF。
type ChatStream interface {
	Recv() (*Delta, error)
	Close() error
}

// Message 表示一条角色消息。
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall 是模型发起的一次工具调用请求。
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall 携带工具名与 JSON 文本形式的参数。
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool 是对模型公布的一个可调用工具。
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition 描述工具的名称与参数 JSON Schema。
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest 描述一次聊天请求。Model 为空时使用配置中的默认模型。
type ChatRequest struct {
	Model      string
	Messages   []Message
	Tools      []Tool
	ToolChoice string
}

// Delta 是流式响应中的一个增量分片。
type Delta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta 是工具调用的增量分片，按 Index 归属到同一次调用。
// ID 与函数名可能只在首个分片出现，Arguments 按到达顺序拼接。
type ToolCallDelta struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

type openAIClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client from the config.
func NewClient(cfg config.LLMConfig) Client {
	return &openAIClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type chatRequestBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Tools       []Tool    `json:"tools,omitempty"`
	ToolChoice  string    `json:"tool_choice,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta Delta `json:"delta"`
	} `json:"choices"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (c *openAIClient) buildBody(req ChatRequest, stream bool) chatRequestBody {
	body := chatRequestBody{
		Model:      req.Model,
		Messages:   req.Messages,
		Stream:     stream,
		Tools:      req.Tools,
		ToolChoice: req.ToolChoice,
	}
	if body.Model == "" {
		body.Model = c.cfg.Model
	}
	// 从全局配置注入生成参数（若非零值）
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		body.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		body.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		body.MaxTokens = &m
	}
	return body
}

func (c *openAIClient) newRequest(ctx context.Context, body chatRequestBody, sse bool) (*http.Request, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if sse {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// StreamChatCompletion calls the chat completions API with streaming enabled.
func (c *openAIClient) StreamChatCompletion(ctx context.Context, req ChatRequest) (ChatStream, error) {
	httpReq, err := c.newRequest(ctx, c.buildBody(req, true), true)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	return &sseStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

// CreateChatCompletion calls the chat completions API without streaming.
func (c *openAIClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	httpReq, err := c.newRequest(ctx, c.buildBody(req, false), false)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat api returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// sseStream 从 text/event-stream 响应体中逐条解析 delta。
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

// Recv 读取下一条增量。流结束（[DONE] 或 EOF）时返回 io.EOF。
func (s *sseStream) Recv() (*Delta, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			return nil, io.EOF
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// 无法解析的行（心跳、注释）直接跳过
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		return &delta, nil
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
