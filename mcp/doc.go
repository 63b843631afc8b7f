// Package mcp exposes the licensed search agent as a Model Context Protocol server.
//
// The mcp package provides:
// - the search tool, which returns results with license verdicts and optional licensed fetches
// - the check_license tool for single URL lookups
// - a stdio server that stops when its context is cancelled
package mcp
