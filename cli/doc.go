// Package cli implements the command-line interface for x402search.
//
// The cli package provides:
// - one-shot searches rendered as JSON or as a paged markdown report
// - single URL license lookups
// - the MCP stdio server command
// - a listing of the environment configuration
package cli
