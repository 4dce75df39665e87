package version

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = ""
	assert.Equal(t, "dev", GetVersion())
	Version = "v1.2.0"
	assert.Equal(t, "v1.2.0", GetVersion())
}

func TestPrintVersion(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime })

	Version, GitCommit, BuildTime = "v1.2.0", "0123456789abcdef", "2025-06-01T00:00:00Z"
	var buf bytes.Buffer
	PrintVersion(&buf)

	out := buf.String()
	assert.Contains(t, out, "mcpgate version v1.2.0\n")
	assert.Contains(t, out, "Git commit: 0123456\n")
	assert.Contains(t, out, "Build time: 2025-06-01T00:00:00Z\n")
	assert.Contains(t, out, runtime.Version())
}
