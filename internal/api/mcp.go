package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing the preference stores as tools
// plus a resource listing the default store.
func NewMCPServer(stores Stores, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"prefs",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("prefs: persistent string preferences, optionally namespaced (named:<name>, legacy, group:<id>)."),
		server.WithRecovery(),
	)

	storeArg := mcp.WithString("store", mcp.Description("Store configuration: named:<name>, legacy or group:<id>. Defaults to the configured store."))

	s.AddTool(
		mcp.NewTool("get_preference",
			mcp.WithDescription("Read a preference value."),
			mcp.WithString("key", mcp.Description("Preference key"), mcp.Required()),
			storeArg,
		),
		mcpGet(stores),
	)

	s.AddTool(
		mcp.NewTool("set_preference",
			mcp.WithDescription("Write a preference value, replacing any previous one."),
			mcp.WithString("key", mcp.Description("Preference key"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value to set"), mcp.Required()),
			storeArg,
		),
		mcpSet(stores),
	)

	s.AddTool(
		mcp.NewTool("remove_preference",
			mcp.WithDescription("Delete a preference. Deleting a missing key succeeds."),
			mcp.WithString("key", mcp.Description("Preference key"), mcp.Required()),
			storeArg,
		),
		mcpRemove(stores),
	)

	s.AddTool(
		mcp.NewTool("list_preferences",
			mcp.WithDescription("List preference keys in a store."),
			storeArg,
		),
		mcpList(stores),
	)

	s.AddTool(
		mcp.NewTool("clear_preferences",
			mcp.WithDescription("Delete every preference in a store. For legacy and group stores this clears the whole backing store; clearing legacy also removes the server's own settings and API token."),
			storeArg,
		),
		mcpClear(stores),
	)

	s.AddResource(
		mcp.NewResource(
			"prefs://keys",
			"Preference keys",
			mcp.WithResourceDescription("Keys in the default preference store as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceKeys(stores),
	)

	return s
}

func mcpGet(stores Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		store, err := stores.Open(req.GetString("store", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		value, ok, err := store.Get(key)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get preference: %v", err)), nil
		}
		if !ok {
			return mcpError(fmt.Sprintf("%s is not set", key)), nil
		}
		return mcpText(value), nil
	}
}

func mcpSet(stores Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		value, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}
		store, err := stores.Open(req.GetString("store", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		if err := store.Set(key, value); err != nil {
			return mcpError(fmt.Sprintf("failed to set preference: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %s", key, value)), nil
	}
}

func mcpRemove(stores Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		store, err := stores.Open(req.GetString("store", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		if err := store.Remove(key); err != nil {
			return mcpError(fmt.Sprintf("failed to remove preference: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Removed %s", key)), nil
	}
}

func mcpList(stores Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		store, err := stores.Open(req.GetString("store", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		b, err := marshalKeys(store.Keys)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpClear(stores Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		store, err := stores.Open(req.GetString("store", ""))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := store.RemoveAll(); err != nil {
			return mcpError(fmt.Sprintf("failed to clear preferences: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Cleared %s", store.Configuration())), nil
	}
}

func mcpResourceKeys(stores Stores) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		store, err := stores.Open("")
		if err != nil {
			return nil, fmt.Errorf("failed to open default store: %w", err)
		}
		b, err := marshalKeys(store.Keys)
		if err != nil {
			return nil, err
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// marshalKeys returns the sorted keys as a JSON array, never null.
func marshalKeys(list func() ([]string, error)) ([]byte, error) {
	keys, err := list()
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	sort.Strings(keys)
	return json.Marshal(keys)
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
