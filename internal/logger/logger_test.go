package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInit(t *testing.T) {
	Init()
	assert.NotNil(t, log)
}

func TestInfo(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, `"level":"INFO"`)
}

func TestInfoWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("booking created", "booking_id", 42)

	output := buf.String()
	assert.Contains(t, output, "booking created")
	assert.Contains(t, output, `"booking_id":42`)
}

func TestError(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Error("test error")

	output := buf.String()
	assert.Contains(t, output, "test error")
	assert.Contains(t, output, `"level":"ERROR"`)
}

func TestErrorf(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Errorf("failed after %d attempts", 3)

	assert.Contains(t, buf.String(), "failed after 3 attempts")
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("test debug")

	output := buf.String()
	assert.Contains(t, output, "test debug")
	assert.Contains(t, output, `"level":"DEBUG"`)
}
