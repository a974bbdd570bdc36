package common

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCrashReport(t *testing.T) {
	config := NewDefaultConfig()
	config.Logging.Dir = t.TempDir()
	InstallCrashHandler(config)

	path := WriteCrashReport("selector engine exploded")
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(path, config.Logging.Dir))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "PRICEWATCH CRASH REPORT")
	assert.Contains(t, string(content), "selector engine exploded")
	assert.Contains(t, string(content), "=== GOROUTINES ===")
}
