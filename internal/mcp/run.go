package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sparsa/bup/internal/record"
	"github.com/Sparsa/bup/internal/runner"
)

type runParams struct {
	Argv    []string          `json:"argv,omitempty" jsonschema:"program and arguments, e.g. [\"git\", \"status\"]; mutually exclusive with line"`
	Line    string            `json:"line,omitempty" jsonschema:"shell command line run with /bin/sh -c; mutually exclusive with argv"`
	Dir     string            `json:"dir,omitempty" jsonschema:"working directory, relative to the workspace unless absolute"`
	Input   string            `json:"input,omitempty" jsonschema:"text written to the command's stdin"`
	Env     map[string]string `json:"env,omitempty" jsonschema:"environment overrides, passed as given; an empty value sets the variable to the empty string"`
	Unset   []string          `json:"unset,omitempty" jsonschema:"names of environment variables to remove"`
	NoCheck bool              `json:"no_check,omitempty" jsonschema:"report a non-zero exit as a normal result instead of an error"`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	var cmd runner.Command
	switch {
	case len(params.Argv) > 0 && params.Line != "":
		return errorResult("give either argv or line, not both")
	case len(params.Argv) > 0:
		cmd = runner.Argv(params.Argv...)
	case params.Line != "":
		cmd = runner.Line(params.Line)
	default:
		return errorResult("argv or line is required")
	}

	// Copy what the run needs so a long child does not hold the lock.
	h.mu.RLock()
	workspace := h.workspace
	r := *h.logger.Runner
	logger := *h.logger
	h.mu.RUnlock()
	logger.Runner = &r

	dir := params.Dir
	if dir == "" {
		dir = workspace
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(workspace, dir)
	}

	// The server's own stdio may be the transport, so every stream is
	// piped or discarded.
	opts := runner.Options{
		Dir:     dir,
		Env:     params.Env,
		Unset:   params.Unset,
		Stdout:  runner.Pipe,
		Stderr:  runner.Pipe,
		NoCheck: params.NoCheck,
	}
	if params.Input != "" {
		opts.Input = []byte(params.Input)
	} else {
		opts.Stdin = runner.Discard
	}

	res, err := logger.Ex(ctx, cmd, opts)
	if res == nil {
		return errorResult(fmt.Sprintf("Failed to run %s: %v", cmd, err))
	}

	text := record.Format(runner.NewRecord(res, err))
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return errorResult(text)
	}
	return textResult(text)
}
