package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock of Logger. Tests use it to assert that the
// bus controller reports a condition, e.g. a warning on an unexpected status.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// AllowTrace lets any Debug and Info call through, so a test only sets
// expectations for the warnings and errors it checks.
func (m *MockLogger) AllowTrace() *MockLogger {
	m.On("Debug", mock.Anything, mock.Anything).Maybe().Return()
	m.On("Info", mock.Anything, mock.Anything).Maybe().Return()

	return m
}

// ExpectWarn expects one Warn call with msg.
func (m *MockLogger) ExpectWarn(msg string) *mock.Call {
	return m.On("Warn", msg, mock.Anything).Once()
}

// Fields returns the key-value pairs passed with the n-th call to method.
func (m *MockLogger) Fields(method string, n int) []any {
	i := 0
	for _, c := range m.Calls {
		if c.Method != method {
			continue
		}
		if i == n {
			kv, _ := c.Arguments.Get(1).([]any)
			return kv
		}
		i++
	}

	return nil
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) Fatal(msg string, keysAndValues ...any) {
	m.Called(msg, keysAndValues)
}

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	args := m.Called()
	return args.Get(0).(Level)
}

// With returns m itself unless an expectation for With is set, so calls on
// child loggers are recorded on the same mock.
func (m *MockLogger) With(keyValues ...any) Logger {
	for _, c := range m.ExpectedCalls {
		if c.Method == "With" {
			args := m.Called(keyValues...)
			return args.Get(0).(Logger)
		}
	}

	return m
}
