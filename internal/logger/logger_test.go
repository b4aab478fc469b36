package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_VerboseGate(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetVerbose(false)

	SetVerbose(false)
	Debug("hidden %d", 1)
	Info("hidden")
	Warn("hidden")
	Section("hidden")
	assert.Empty(t, buf.String())

	SetVerbose(true)
	assert.True(t, IsVerbose())
	Debug("query %q", "civil suit")
	Warn("slow")
	Section("Retrieval")
	out := buf.String()
	assert.Contains(t, out, `[DEBUG] query "civil suit"`)
	assert.Contains(t, out, "[WARN] slow")
	assert.Contains(t, out, "=== Retrieval ===")
}

func TestLogger_Always(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Always("warning: %s", "summary failed")
	assert.Equal(t, "warning: summary failed\n", buf.String())
}
