package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sparsa/bup"
)

type workspaceParams struct{}

func (h *handler) workspaceHandler(ctx context.Context, req *mcp.CallToolRequest, _ workspaceParams) (*mcp.CallToolResult, any, error) {
	workspace, repoRoot, root := h.snapshot()

	h.mu.RLock()
	timeout := h.logger.Runner.Timeout
	maxOutput := h.logger.Runner.MaxOutput
	h.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "buptest %s\n", bup.Version)
	fmt.Fprintf(&b, "Workspace: %s\n", workspace)
	fmt.Fprintf(&b, "Repository root: %s\n", repoRoot)
	fmt.Fprintf(&b, "Scratch root: %s\n", root.Path)
	if root.KeepAlways {
		fmt.Fprintln(&b, "Scratch policy: keep always")
	} else {
		fmt.Fprintln(&b, "Scratch policy: keep on failure")
	}

	if timeout > 0 {
		fmt.Fprintf(&b, "Timeout: %s\n", timeout)
	} else {
		fmt.Fprintln(&b, "Timeout: none")
	}
	if maxOutput > 0 {
		fmt.Fprintf(&b, "Max output: %d bytes\n", maxOutput)
	} else {
		fmt.Fprintln(&b, "Max output: unlimited")
	}

	if entries, err := root.Retained(); err != nil {
		fmt.Fprintln(&b, "Scratch directories: (failed to list)")
	} else {
		fmt.Fprintf(&b, "Scratch directories: %d\n", len(entries))
	}

	return textResult(b.String())
}
