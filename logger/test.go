package logger

import (
	"os"
	"sync"
)

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
}

// testLogs is shared by a TestLogger and every logger derived from it.
type testLogs struct {
	mutex   sync.Mutex
	entries []TestLogEntry
}

type TestLogger struct {
	metadata map[string]interface{}
	prefix   string
	logs     *testLogs
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) WithPrefix(prefix string) Logger {
	return &TestLogger{metadata: c.metadata, prefix: c.prefix + prefix, logs: c.logs}
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]interface{}, len(c.metadata)+len(metadata))
	for k, v := range c.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = v
	}
	return &TestLogger{metadata: kv, prefix: c.prefix, logs: c.logs}
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool {
	return level < LevelNone
}

func (c *TestLogger) Log(level string, msg string, args ...interface{}) {
	c.logs.mutex.Lock()
	c.logs.entries = append(c.logs.entries, TestLogEntry{level, c.prefix + msg, args})
	c.logs.mutex.Unlock()
}

// Logs returns a snapshot of every entry logged so far, including entries
// logged through derived loggers.
func (c *TestLogger) Logs() []TestLogEntry {
	c.logs.mutex.Lock()
	defer c.logs.mutex.Unlock()
	out := make([]TestLogEntry, len(c.logs.entries))
	copy(out, c.logs.entries)
	return out
}

// Metadata returns the metadata attached with With.
func (c *TestLogger) Metadata() map[string]interface{} {
	return c.metadata
}

func (c *TestLogger) Trace(msg string, args ...interface{}) { c.Log("TRACE", msg, args...) }
func (c *TestLogger) Debug(msg string, args ...interface{}) { c.Log("DEBUG", msg, args...) }
func (c *TestLogger) Info(msg string, args ...interface{})  { c.Log("INFO", msg, args...) }
func (c *TestLogger) Warn(msg string, args ...interface{})  { c.Log("WARNING", msg, args...) }
func (c *TestLogger) Error(msg string, args ...interface{}) { c.Log("ERROR", msg, args...) }

func (c *TestLogger) Fatal(msg string, args ...interface{}) {
	c.Log("FATAL", msg, args...)
	os.Exit(1)
}

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{logs: &testLogs{}}
}
