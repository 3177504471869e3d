// Package integration provides cross-package tests for hive.
// They drive a real coordinator against a temporary git repository, the
// real exec launcher running shell-script agents, and both store backends.
//
// Build tag: integration
// Run with: go test -tags integration ./internal/integration/...
package integration
