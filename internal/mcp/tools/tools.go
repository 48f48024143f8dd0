// Package tools defines the shared [Tool] type used by the MCP tool packages
// in mtgctx. Each sub-package exports a constructor function that returns a
// slice of [Tool] values ready for registration with the MCP server.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Handler executes a tool with its raw JSON arguments. The returned value is
// encoded as the tool's JSON result. A returned error that implements
// [json.Marshaler] is sent to the caller as an error payload; any other error
// is reported as plain text.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool represents a tool ready for registration with the MCP server.
type Tool struct {
	// Name is the dotted tool name callers invoke, e.g. "mtg.rules.search".
	Name string

	// Description is presented to the model choosing between tools.
	Description string

	// InputSchema is the JSON Schema of the argument object. It must have
	// "type": "object".
	InputSchema map[string]any

	// Handler runs the tool.
	Handler Handler

	// ReadOnly marks tools without side effects. Every mtgctx tool only
	// reads from public APIs.
	ReadOnly bool
}

// Object returns an object schema with the given properties and required
// property names.
func Object(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// String returns a string property schema.
func String(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// Decode unmarshals args into a T. Empty or null arguments decode to the zero
// T, so tools without parameters accept a missing argument object.
func Decode[T any](args json.RawMessage) (T, error) {
	var v T
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return v, fmt.Errorf("tools: decode arguments: %w", err)
	}
	return v, nil
}
