// Package grok is a thin chat-completion client for the xAI API. It reuses
// the go-openai message and tool types for the wire format but issues the
// request itself, because xAI's search_parameters request extension and the
// top-level citations response field have no counterpart in the go-openai
// client.
package grok

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"
)

const defaultBaseURL = "https://api.x.ai/v1"

// SearchParameters enables xAI live search on a completion call.
type SearchParameters struct {
	Mode            string `json:"mode"`
	ReturnCitations bool   `json:"return_citations"`
	FromDate        string `json:"from_date,omitempty"`
	ToDate          string `json:"to_date,omitempty"`
}

// Request is one chat-completion call.
type Request struct {
	Model            string                         `json:"model"`
	Messages         []openai.ChatCompletionMessage `json:"messages"`
	Tools            []openai.Tool                  `json:"tools,omitempty"`
	ToolChoice       any                            `json:"tool_choice,omitempty"`
	SearchParameters *SearchParameters              `json:"search_parameters,omitempty"`
}

// Response is the first choice of a completion plus any search citations.
type Response struct {
	Message   openai.ChatCompletionMessage
	Citations []string
}

// Completer issues one chat completion. The analysis pipeline depends on
// this interface so tests can substitute canned responses.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client is the live xAI implementation of Completer.
type Client struct {
	http   *resty.Client
	apiKey string
}

func NewClient(apiKey string) *Client {
	return newClient(defaultBaseURL, apiKey)
}

func newClient(baseURL, apiKey string) *Client {
	return &Client{
		http:   resty.New().SetBaseURL(baseURL).SetTimeout(120 * time.Second),
		apiKey: apiKey,
	}
}

type wireResponse struct {
	Choices []struct {
		Message openai.ChatCompletionMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	var out wireResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("xAI request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("xAI API error: %s: %s", resp.Status(), resp.String())
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("no choices in xAI response")
	}

	return &Response{Message: out.Choices[0].Message, Citations: out.Citations}, nil
}
