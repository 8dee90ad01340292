package hfhub

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MrScripty/Pumas-Library-sub004/pkg/logging"
)

func TestNewProgress(t *testing.T) {
	logger := logging.Discard()

	p := NewProgress("model.bin", logger, 1024, true)
	assert.Equal(t, "model.bin", p.filename)
	assert.Equal(t, logger, p.logger)
	assert.EqualValues(t, 1024, p.total)
	assert.EqualValues(t, 0, p.current)
	assert.True(t, p.enabled)
}

func TestNewProgressWithResume(t *testing.T) {
	logger := logging.Discard()

	p := NewProgressWithResume("model.bin", logger, 1024, 256, true)
	assert.EqualValues(t, 1024, p.total)
	assert.EqualValues(t, 256, p.current)
}

func TestProgressAdd(t *testing.T) {
	var buf bytes.Buffer
	logger := &mockLogger{buffer: &buf}

	p := NewProgress("model.bin", logger, 2048, true)
	p.Add(512)
	assert.EqualValues(t, 512, p.current)
	assert.Contains(t, buf.String(), "model.bin")
	assert.Contains(t, buf.String(), "download progress")
}

func TestProgressAddRespectsLogInterval(t *testing.T) {
	var buf bytes.Buffer
	logger := &mockLogger{buffer: &buf}

	p := NewProgress("model.bin", logger, 2048, true)
	p.lastLogged = time.Now()
	p.Add(512)
	assert.Empty(t, buf.String(), "a write immediately after the last log should not log again")
}

func TestProgressAddDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := &mockLogger{buffer: &buf}

	p := NewProgress("model.bin", logger, 2048, false)
	p.Add(512)
	assert.EqualValues(t, 512, p.current)
	assert.Empty(t, buf.String())
}

func TestProgressAddNilSafe(t *testing.T) {
	var p *Progress
	assert.NotPanics(t, func() { p.Add(100) })
}

func TestProgressFinish(t *testing.T) {
	var buf bytes.Buffer
	logger := &mockLogger{buffer: &buf}

	p := NewProgress("model.bin", logger, 2048, true)
	p.Add(2048)
	p.Finish()
	assert.Contains(t, buf.String(), "download complete")
}

func TestProgressFinishNilSafe(t *testing.T) {
	var p *Progress
	assert.NotPanics(t, func() { p.Finish() })
}

func TestProgressFinishDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := &mockLogger{buffer: &buf}

	p := NewProgress("model.bin", logger, 2048, false)
	p.Finish()
	assert.Empty(t, buf.String())
}

func TestNewSimpleProgressWriter(t *testing.T) {
	var dst bytes.Buffer
	var logBuf bytes.Buffer
	logger := &mockLogger{buffer: &logBuf}

	p := NewProgress("model.bin", logger, 100, true)
	w := NewSimpleProgressWriter(&dst, p)

	data := []byte("test data")
	n, err := w.Write(data)
	assert.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, dst.Bytes())
	assert.EqualValues(t, len(data), p.current)
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{
			name:     "bytes",
			bytes:    512,
			expected: "512 B",
		},
		{
			name:     "kilobytes",
			bytes:    1536, // 1.5 KB
			expected: "1.5 KB",
		},
		{
			name:     "megabytes",
			bytes:    1024 * 1024 * 2, // 2 MB
			expected: "2.0 MB",
		},
		{
			name:     "gigabytes",
			bytes:    1024 * 1024 * 1024 * 3, // 3 GB
			expected: "3.0 GB",
		},
		{
			name:     "zero bytes",
			bytes:    0,
			expected: "0 B",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatSize(tt.bytes)
			assert.Equal(t, tt.expected, result)
		})
	}
}

// Mock logger for testing
type mockLogger struct {
	buffer *bytes.Buffer
	fields map[string]interface{}
}

func (m *mockLogger) WithField(key string, value interface{}) logging.Interface {
	newLogger := &mockLogger{
		buffer: m.buffer,
		fields: make(map[string]interface{}),
	}
	for k, v := range m.fields {
		newLogger.fields[k] = v
	}
	newLogger.fields[key] = value
	return newLogger
}

func (m *mockLogger) WithError(err error) logging.Interface {
	return m.WithField("error", err)
}

func (m *mockLogger) Debug(msg string) {
	m.buffer.WriteString("DEBUG: ")
	m.buffer.WriteString(msg)
	m.writeFields()
}

func (m *mockLogger) Info(msg string) {
	m.buffer.WriteString("INFO: ")
	m.buffer.WriteString(msg)
	m.writeFields()
}

func (m *mockLogger) Warn(msg string) {
	m.buffer.WriteString("WARN: ")
	m.buffer.WriteString(msg)
	m.writeFields()
}

func (m *mockLogger) Error(msg string) {
	m.buffer.WriteString("ERROR: ")
	m.buffer.WriteString(msg)
	m.writeFields()
}

func (m *mockLogger) Fatal(msg string) {
	m.buffer.WriteString("FATAL: ")
	m.buffer.WriteString(msg)
	m.writeFields()
}

func (m *mockLogger) Debugf(format string, args ...interface{}) {
	m.buffer.WriteString("DEBUGF: ")
	m.buffer.WriteString(format)
	m.writeFields()
}

func (m *mockLogger) Infof(format string, args ...interface{}) {
	m.buffer.WriteString("INFOF: ")
	m.buffer.WriteString(format)
	m.writeFields()
}

func (m *mockLogger) Warnf(format string, args ...interface{}) {
	m.buffer.WriteString("WARNF: ")
	m.buffer.WriteString(format)
	m.writeFields()
}

func (m *mockLogger) Errorf(format string, args ...interface{}) {
	m.buffer.WriteString("ERRORF: ")
	m.buffer.WriteString(format)
	m.writeFields()
}

func (m *mockLogger) Fatalf(format string, args ...interface{}) {
	m.buffer.WriteString("FATALF: ")
	m.buffer.WriteString(format)
	m.writeFields()
}

func (m *mockLogger) writeFields() {
	for k, v := range m.fields {
		m.buffer.WriteString(" ")
		m.buffer.WriteString(k)
		m.buffer.WriteString("=")
		switch val := v.(type) {
		case string:
			m.buffer.WriteString(val)
		case error:
			m.buffer.WriteString(val.Error())
		default:
			m.buffer.WriteString("unknown")
		}
	}
	m.buffer.WriteString("\n")
}

// Benchmark tests
func BenchmarkFormatSize(b *testing.B) {
	sizes := []int64{
		512,
		1536,
		1024 * 1024 * 2,
		1024 * 1024 * 1024 * 3,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, size := range sizes {
			formatSize(size)
		}
	}
}

func BenchmarkProgressAdd(b *testing.B) {
	p := NewProgress("model.bin", logging.Discard(), int64(b.N), true)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Add(1)
	}
}
