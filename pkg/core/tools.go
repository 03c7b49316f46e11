package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolDefinition describes one agent-facing tool in a form that maps
// directly onto function-calling APIs.
type ToolDefinition struct {
	// Name is the tool name presented to the model.
	Name string `json:"name"`

	// Description tells the model when to use the tool.
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolDefinitions returns the tool surface exposed to a conversational
// agent: search_memory and save_memory. The save tool accepts only the
// writable categories; consolidated records cannot be written through
// it.
func ToolDefinitions() []ToolDefinition {
	writable := make([]string, len(WritableCategories))
	for i, category := range WritableCategories {
		writable[i] = string(category)
	}
	all := make([]string, len(Categories))
	for i, category := range Categories {
		all[i] = string(category)
	}

	return []ToolDefinition{
		{
			Name:        "search_memory",
			Description: "Search saved memories by meaning and keywords. Returns the most relevant memories, best first. An empty result means nothing relevant is stored.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "What to look for.",
					},
					"category": map[string]interface{}{
						"type":        "string",
						"enum":        all,
						"description": "Restrict results to one category. Naming self-observation here includes those records.",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results.",
					},
					"include_self_observation": map[string]interface{}{
						"type":        "boolean",
						"description": "Also search self-observation memories, which are excluded by default.",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "save_memory",
			Description: "Save something worth remembering for future conversations.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"content": map[string]interface{}{
						"type":        "string",
						"description": "The memory text to save.",
					},
					"category": map[string]interface{}{
						"type":        "string",
						"enum":        writable,
						"description": "Memory category. Defaults to conversational.",
					},
				},
				"required": []string{"content"},
			},
		},
	}
}

type searchMemoryArgs struct {
	Query                  string `json:"query"`
	Category               string `json:"category,omitempty"`
	Limit                  int    `json:"limit,omitempty"`
	IncludeSelfObservation bool   `json:"include_self_observation,omitempty"`
}

type saveMemoryArgs struct {
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

type toolMemory struct {
	ID       int64   `json:"id"`
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// HandleToolCall dispatches a tool call by name with JSON-encoded
// arguments and returns a JSON-encoded result. It is the bridge between
// a function-calling model and the client.
//
// Example:
//
//	result, err := client.HandleToolCall(ctx, "search_memory", []byte(`{"query":"answer style"}`))
func (c *Client) HandleToolCall(ctx context.Context, name string, args []byte) (string, error) {
	switch name {
	case "search_memory":
		var parsed searchMemoryArgs
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", NewMemoryError("HandleToolCall", fmt.Errorf("%w: %v", ErrValidation, err))
		}
		return c.toolSearchMemory(ctx, parsed)
	case "save_memory":
		var parsed saveMemoryArgs
		if err := json.Unmarshal(args, &parsed); err != nil {
			return "", NewMemoryError("HandleToolCall", fmt.Errorf("%w: %v", ErrValidation, err))
		}
		return c.toolSaveMemory(ctx, parsed)
	default:
		return "", NewMemoryError("HandleToolCall", fmt.Errorf("%w: unknown tool %q", ErrValidation, name))
	}
}

func (c *Client) toolSearchMemory(ctx context.Context, args searchMemoryArgs) (string, error) {
	opts := []SearchOption{}
	if args.Category != "" {
		opts = append(opts, WithCategoriesForSearch(Category(args.Category)))
	}
	if args.Limit > 0 {
		opts = append(opts, WithLimit(args.Limit))
	}
	if args.IncludeSelfObservation {
		opts = append(opts, WithSelfObservation())
	}

	records, err := c.Search(ctx, args.Query, opts...)
	if err != nil {
		return "", err
	}

	memories := make([]toolMemory, len(records))
	for i, record := range records {
		memories[i] = toolMemory{
			ID:       record.ID,
			Content:  record.Content,
			Category: string(record.Category),
			Score:    record.Score,
		}
	}

	result, err := json.Marshal(map[string]interface{}{
		"memories": memories,
		"count":    len(memories),
	})
	if err != nil {
		return "", NewMemoryError("HandleToolCall", err)
	}
	return string(result), nil
}

func (c *Client) toolSaveMemory(ctx context.Context, args saveMemoryArgs) (string, error) {
	opts := []SaveOption{}
	if args.Category != "" {
		opts = append(opts, WithCategory(Category(args.Category)))
	}

	record, err := c.Save(ctx, args.Content, opts...)
	if err != nil {
		return "", err
	}

	result, err := json.Marshal(map[string]interface{}{
		"saved":    true,
		"id":       record.ID,
		"category": string(record.Category),
	})
	if err != nil {
		return "", NewMemoryError("HandleToolCall", err)
	}
	return string(result), nil
}
