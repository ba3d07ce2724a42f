// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
)

// Logger returns a logger which logs to the unit test log of t. The verbosity
// floor is given by level; records below it are discarded.
func Logger(t *testing.T, level slog.Level) log.Logger {
	return log.NewLogger(log.LogfmtHandlerWithLevel(&testWriter{t: t}, level))
}

// testWriter forwards whole formatted log lines to t.Logf so they interleave
// with the test runner's own output and stay attached to the right test.
type testWriter struct {
	mu sync.Mutex
	t  *testing.T
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.t.Logf("%s", bytes.TrimRight(p, "\n"))
	return len(p), nil
}
