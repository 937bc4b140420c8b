package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type scratchParams struct {
	Remove string `json:"remove,omitempty" jsonschema:"name of a scratch directory to delete"`
}

func (h *handler) scratchHandler(ctx context.Context, req *mcp.CallToolRequest, params scratchParams) (*mcp.CallToolResult, any, error) {
	_, _, root := h.snapshot()

	if params.Remove != "" {
		if err := root.Remove(params.Remove); err != nil {
			return errorResult(fmt.Sprintf("Failed to remove %s: %v", params.Remove, err))
		}
		return textResult(fmt.Sprintf("Removed %s", params.Remove))
	}

	entries, err := root.Retained()
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to list scratch root: %v", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scratch root: %s\n", root.Path)
	if len(entries) == 0 {
		fmt.Fprintln(&b, "No scratch directories.")
		return textResult(b.String())
	}
	fmt.Fprintf(&b, "Directories (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s  %s\n", e.ModTime.Format(time.RFC3339), e.Name)
	}
	return textResult(b.String())
}
