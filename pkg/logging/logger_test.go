package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memOutput collects entries for assertions.
type memOutput struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (m *memOutput) Write(e LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memOutput) Sync() error  { return nil }
func (m *memOutput) Close() error { return nil }

func TestSeverityFiltering(t *testing.T) {
	out := &memOutput{}
	logger := NewLogger(Config{Severity: WARN, Outputs: []Output{out}})

	ctx := context.Background()
	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped")
	logger.Warn(ctx, "kept %d", 1)
	logger.Error(ctx, "kept %d", 2)

	require.Len(t, out.entries, 2)
	assert.Equal(t, "kept 1", out.entries[0].Message)
	assert.Equal(t, WARN, out.entries[0].Severity)
	assert.Equal(t, "kept 2", out.entries[1].Message)
}

func TestDefaultFieldsAttached(t *testing.T) {
	out := &memOutput{}
	logger := NewLogger(Config{
		Severity:      INFO,
		Outputs:       []Output{out},
		DefaultFields: map[string]interface{}{"run_id": "abc"},
	})

	logger.Info(context.Background(), "hello")
	require.Len(t, out.entries, 1)
	assert.Equal(t, "abc", out.entries[0].Fields["run_id"])
	assert.Equal(t, "logger_test.go", out.entries[0].File)
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, DEBUG, ParseSeverity("debug"))
	assert.Equal(t, WARN, ParseSeverity("WARN"))
	assert.Equal(t, INFO, ParseSeverity("unknown"))
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Severity: INFO, Outputs: []Output{NewJSONOutput(&buf)}})
	logger.Info(context.Background(), "structured %s", "message")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, "structured message", payload["message"])
	assert.Equal(t, "INFO", payload["severity"])
}

func TestConsoleOutputWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	out := &ConsoleOutput{writer: &buf, color: false}
	require.NoError(t, out.Write(LogEntry{Severity: ERROR, Message: "plain"}))
	assert.Contains(t, buf.String(), "ERROR")
	assert.False(t, strings.Contains(buf.String(), "\033["))
}

func TestGetLoggerLazyDefault(t *testing.T) {
	SetLogger(nil)
	first := GetLogger()
	require.NotNil(t, first)
	assert.Same(t, first, GetLogger())
}
