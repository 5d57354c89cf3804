package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/gtc/internal/errors"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result with IsError
// set, so the client sees it instead of a protocol error
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	if errors.IsRootError(err) {
		errorData["help"] = "root must be an existing directory; pass an absolute path or one relative to the configured corpus root"
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

// fileFailure is the wire form of a per-file error
type fileFailure struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
	Type      string `json:"type"`
	Error     string `json:"error"`
}

func fileFailures(err error) []fileFailure {
	var out []fileFailure
	for _, fe := range errors.FileErrors(err) {
		out = append(out, fileFailure{
			Path:      fe.Path,
			Operation: fe.Operation,
			Type:      string(fe.Type),
			Error:     fe.Error(),
		})
	}
	return out
}
