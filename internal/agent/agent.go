// Package agent drives the multi-step analysis of one trade description:
// a forced event-info tool pass, an optional trades-info tool pass, and a
// final live-search synthesis that produces the opinion and its citations.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"polyagent/internal/grok"
	"polyagent/internal/polymarket"
	"polyagent/internal/prompts"
)

// Result is the terminal output of one analysis run.
type Result struct {
	Content   string
	Citations []string
}

// Reporter receives human-readable progress notices during a run. Delivery
// failures are logged and never abort the analysis.
type Reporter interface {
	Report(message string) error
}

// MarketData is the slice of the Polymarket client the agent needs.
type MarketData interface {
	FetchEvent(ctx context.Context, link string) (*polymarket.Event, error)
	FetchTrades(ctx context.Context, conditionID string) (json.RawMessage, error)
}

// Agent is the analysis pipeline. It never holds per-run state; Analyze is a
// pure function of the description plus the progress side channel.
type Agent struct {
	llm    grok.Completer
	market MarketData
	model  string
}

func New(llm grok.Completer, market MarketData, model string) *Agent {
	return &Agent{llm: llm, market: market, model: model}
}

var eventInfoTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: openai.FunctionDefinition{
		Name:        "get_event_info",
		Description: "Fetch the Polymarket event behind a link: title, status, liquidity, volume and per-market outcome probabilities.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"eventLink": {
					Type:        jsonschema.String,
					Description: "The full Polymarket event URL supplied by the user.",
				},
			},
			Required: []string{"eventLink"},
		},
	},
}

var tradesInfoTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: openai.FunctionDefinition{
		Name:        "get_trades_info",
		Description: "Fetch recent large cash trades for one market of the event, identified by its condition id.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"conditionId": {
					Type:        jsonschema.String,
					Description: "The conditionId of the market to inspect, taken from the event info.",
				},
			},
			Required: []string{"conditionId"},
		},
	},
}

// Analyze runs the three-step pipeline over the composed trade description.
// Completion failures propagate to the caller; data-fetch failures are folded
// into the conversation as tagged tool output.
func (a *Agent) Analyze(ctx context.Context, description string, progress Reporter) (*Result, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: prompts.SystemPrompt()},
		{Role: openai.ChatMessageRoleUser, Content: description},
	}

	messages, hasEventInfo, err := a.eventInfoStep(ctx, messages, progress)
	if err != nil {
		return nil, err
	}

	if hasEventInfo {
		messages, err = a.tradesInfoStep(ctx, messages, progress)
		if err != nil {
			return nil, err
		}
	}

	return a.synthesize(ctx, messages, progress)
}

// eventInfoStep forces a get_event_info call and feeds its result, or a
// tagged error, back into the conversation.
func (a *Agent) eventInfoStep(ctx context.Context, messages []openai.ChatCompletionMessage, progress Reporter) ([]openai.ChatCompletionMessage, bool, error) {
	resp, err := a.llm.Complete(ctx, grok.Request{
		Model:    a.model,
		Messages: messages,
		Tools:    []openai.Tool{eventInfoTool},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: "get_event_info"},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("event info completion: %w", err)
	}

	messages = append(messages, resp.Message)

	hasEventInfo := false
	for _, call := range resp.Message.ToolCalls {
		content, ok := a.callTool(ctx, call)
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Content:    content,
		})
		if call.Function.Name != "get_event_info" {
			continue
		}
		if ok {
			hasEventInfo = true
			report(progress, "📡 Event info fetched.")
		} else {
			report(progress, "⚠️ Event info lookup failed, continuing without it.")
		}
	}
	return messages, hasEventInfo, nil
}

// tradesInfoStep offers get_trades_info and lets the model decide whether to
// use it.
func (a *Agent) tradesInfoStep(ctx context.Context, messages []openai.ChatCompletionMessage, progress Reporter) ([]openai.ChatCompletionMessage, error) {
	resp, err := a.llm.Complete(ctx, grok.Request{
		Model:    a.model,
		Messages: messages,
		Tools:    []openai.Tool{tradesInfoTool},
	})
	if err != nil {
		return nil, fmt.Errorf("trades info completion: %w", err)
	}

	if len(resp.Message.ToolCalls) == 0 {
		if resp.Message.Content != "" {
			messages = append(messages, resp.Message)
		}
		report(progress, "🤖 No trade data requested, continuing.")
		return messages, nil
	}

	messages = append(messages, resp.Message)
	for _, call := range resp.Message.ToolCalls {
		content, ok := a.callTool(ctx, call)
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Content:    content,
		})
		if ok {
			report(progress, "📊 Trades info fetched.")
		} else {
			report(progress, "⚠️ Trades info lookup failed, continuing without it.")
		}
	}
	return messages, nil
}

// synthesize issues the final live-search completion over the accumulated
// conversation, constrained to news from the last three days.
func (a *Agent) synthesize(ctx context.Context, messages []openai.ChatCompletionMessage, progress Reporter) (*Result, error) {
	report(progress, "🔎 Performing live search for recent news…")

	now := time.Now()
	resp, err := a.llm.Complete(ctx, grok.Request{
		Model:    a.model,
		Messages: messages,
		SearchParameters: &grok.SearchParameters{
			Mode:            "on",
			ReturnCitations: true,
			FromDate:        now.AddDate(0, 0, -3).Format("2006-01-02"),
			ToDate:          now.Format("2006-01-02"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis completion: %w", err)
	}

	report(progress, "✅ Analysis complete.")
	return &Result{Content: resp.Message.Content, Citations: resp.Citations}, nil
}

// callTool dispatches one tool call and returns the tool message content.
// Every failure, including undecodable arguments, becomes a tagged error
// payload for the model to reason around.
func (a *Agent) callTool(ctx context.Context, call openai.ToolCall) (content string, ok bool) {
	switch call.Function.Name {
	case "get_event_info":
		var args struct {
			EventLink string `json:"eventLink"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return taggedError(fmt.Sprintf("bad tool arguments: %v", err)), false
		}
		event, err := a.market.FetchEvent(ctx, args.EventLink)
		if err != nil {
			return taggedError(err.Error()), false
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return taggedError(fmt.Sprintf("event encoding failed: %v", err)), false
		}
		return string(payload), true

	case "get_trades_info":
		var args struct {
			ConditionID string `json:"conditionId"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return taggedError(fmt.Sprintf("bad tool arguments: %v", err)), false
		}
		trades, err := a.market.FetchTrades(ctx, args.ConditionID)
		if err != nil {
			return taggedError(err.Error()), false
		}
		return string(trades), true
	}

	return taggedError(fmt.Sprintf("unknown tool %q", call.Function.Name)), false
}

func taggedError(reason string) string {
	payload, _ := json.Marshal(map[string]string{"error": reason})
	return string(payload)
}

func report(r Reporter, message string) {
	if r == nil {
		return
	}
	if err := r.Report(message); err != nil {
		log.Printf("⚠️ Failed to deliver progress notice: %v", err)
	}
}
