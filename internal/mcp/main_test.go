package mcp

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in the mcp package.
// The transport's read loop must be fully shut down by Stop, so any surviving
// goroutine here is a real cleanup bug.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
