package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Client is a conversational LLM endpoint speaking the "responses" protocol:
// each call may carry the id of a previous response to continue the same
// conversation, and may return function calls for the host to execute.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single model invocation
type Request struct {
	Model              string    `json:"model"`
	Instructions       string    `json:"instructions,omitempty"`
	Input              []Item    `json:"input"`
	Tools              []ToolDef `json:"tools,omitempty"`
	PreviousResponseID string    `json:"previous_response_id,omitempty"`
}

// ToolDef is one function declaration offered to the model. Parameters is a
// raw JSON-schema object so declarations load verbatim from tools.json files.
type ToolDef struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Item is one element of the model input: either a conversation message or
// the output of a previously requested function call.
type Item struct {
	Type    string `json:"type"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	Output  string `json:"output,omitempty"`
}

// UserMessage builds a user-authored message item
func UserMessage(text string) Item {
	return Item{Type: "message", Role: "user", Content: text}
}

// FunctionCallOutput binds an executed tool result to its call id
func FunctionCallOutput(callID, output string) Item {
	return Item{Type: "function_call_output", CallID: callID, Output: output}
}

// Response is the model reply. Output items are either assistant messages
// carrying text content or function-call descriptors.
type Response struct {
	ID     string       `json:"id"`
	Output []OutputItem `json:"output"`
}

// OutputItem is one element of the model output array
type OutputItem struct {
	Type      string        `json:"type"`
	Role      string        `json:"role,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
}

// ContentPart is one text fragment of an assistant message
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// FunctionCall is a decoded tool invocation requested by the model
type FunctionCall struct {
	Name   string
	CallID string
	Args   map[string]any
}

// Text concatenates all text fragments of the response
func (r *Response) Text() string {
	var parts []string
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" && c.Text != "" {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// FunctionCalls decodes every function-call item of the response
func (r *Response) FunctionCalls() ([]FunctionCall, error) {
	var calls []FunctionCall
	for _, item := range r.Output {
		if item.Type != "function_call" {
			continue
		}

		args := map[string]any{}
		if item.Arguments != "" {
			if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
				return nil, goerr.Wrap(err, "failed to decode function call arguments",
					goerr.V("name", item.Name),
					goerr.V("call_id", item.CallID),
				)
			}
		}
		calls = append(calls, FunctionCall{
			Name:   item.Name,
			CallID: item.CallID,
			Args:   args,
		})
	}
	return calls, nil
}
