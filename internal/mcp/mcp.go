// Package mcp provides the buptest MCP server, exposing the harness's
// command runner and scratch directories as tools.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sparsa/bup"
	"github.com/Sparsa/bup/internal/config"
	"github.com/Sparsa/bup/internal/record"
	"github.com/Sparsa/bup/internal/runner"
	"github.com/Sparsa/bup/internal/scratch"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu        sync.RWMutex
	logger    *runner.Logger
	store     record.Store
	scratch   *scratch.Root
	workspace string
	repoRoot  string
}

// NewServer creates an MCP server with all harness tools registered.
// Runs made through the server are saved to store, which is also attached
// to logger.
func NewServer(logger *runner.Logger, store record.Store, root *scratch.Root, workspace string) *mcp.Server {
	if logger.Runner == nil {
		logger.Runner = &runner.Runner{}
	}
	logger.Store = store
	h := &handler{
		logger:    logger,
		store:     store,
		scratch:   root,
		workspace: workspace,
		repoRoot:  workspace, // updated via roots
	}

	opts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "buptest", Version: bup.Version}, opts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "harness_workspace",
		Description: "Show the repository root, scratch root, and runner settings in effect.",
	}, h.workspaceHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "harness_run",
		Description: `Run a command through the test harness and capture its output.

Give either argv (preferred) or line (run with /bin/sh -c). The command is echoed to the
server's stderr. A non-zero exit is an error unless no_check is true. The result includes a
run ID for harness_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "harness_inspect",
		Description: "Show the stored record (command, exit code, stdout, stderr, timing) of a harness_run by run ID.",
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "harness_scratch",
		Description: `List scratch directories under the scratch root, oldest first.

Directories left here belong to tests that failed. Pass remove=<name> to delete one.`,
	}, h.scratchHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and reloads
// the config for the first file root, if any.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		return
	}
	root, err := scratch.FromConfig(loaded)
	if err != nil {
		return
	}
	root.Log = h.scratch.Log

	h.mu.Lock()
	defer h.mu.Unlock()
	h.logger.Runner.Timeout = loaded.Config.Timeout()
	h.logger.Runner.MaxOutput = loaded.Config.MaxOutputBytes()
	h.scratch = root
	h.workspace = workspace
	h.repoRoot = loaded.RepoRoot
}

func (h *handler) snapshot() (workspace, repoRoot string, root *scratch.Root) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.workspace, h.repoRoot, h.scratch
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
