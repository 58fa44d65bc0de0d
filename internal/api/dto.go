package api

import "github.com/mark3labs/mcp-go/mcp"

// ContentBlock is one text block of a tool response.
type ContentBlock struct {
	Type string `json:"type" example:"text"`
	Text string `json:"text" example:"- 🟢 **demo** (active) | 1/4 (25%)"`
}

// ToolResponse mirrors the tool result shape: content blocks plus an error flag.
type ToolResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"is_error"`
}

// ReviewRequest is the body of POST /reviews.
type ReviewRequest struct {
	Period string `json:"period" example:"week"`
	Date   string `json:"date,omitempty" example:"2026-W42"`
	Notes  string `json:"notes,omitempty"`
}

// ToolInfo describes one callable tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is returned for transport-level failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toResponse(r *mcp.CallToolResult) ToolResponse {
	out := ToolResponse{Content: []ContentBlock{}, IsError: r.IsError}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out.Content = append(out.Content, ContentBlock{Type: "text", Text: tc.Text})
		}
	}
	return out
}
