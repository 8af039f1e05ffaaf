// Package integration contains the end-to-end smoke test for the sigma
// binary. The test drives init, plan, tdd, review and status against a
// throwaway project using the go runner, so it needs a Go toolchain on PATH.
//
// Run with: go test ./integration/... -v -timeout 120s
package integration
