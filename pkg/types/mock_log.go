package types

import "sync"

// MockLogger records messages for assertions in tests.
type MockLogger struct {
	mu       sync.Mutex
	Messages []string
}

func (m *MockLogger) record(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, msg)
}

func (m *MockLogger) Debug(msg string, fields ...interface{})  { m.record(msg) }
func (m *MockLogger) Info(msg string, fields ...interface{})   { m.record(msg) }
func (m *MockLogger) Warn(msg string, fields ...interface{})   { m.record(msg) }
func (m *MockLogger) Error(msg string, fields ...interface{})  { m.record(msg) }
func (m *MockLogger) Fatalf(msg string, fields ...interface{}) { m.record(msg) }
