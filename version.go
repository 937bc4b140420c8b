// Package bup holds build metadata for the bup test harness.
package bup

// Version is the harness version reported by the CLI and the MCP server.
var Version = "v0.1.0-dev"
