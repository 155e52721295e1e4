package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecuteWatch_InvalidInterval(t *testing.T) {
	var stderr bytes.Buffer
	code := executeWatch("", "https://example.com", "soon", "info", crawlOverrides{}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "invalid interval")
}

func TestExecuteWatch_InvalidTargets(t *testing.T) {
	var stderr bytes.Buffer
	code := executeWatch("", "example.com", "1h", "info", crawlOverrides{}, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "invalid targets")
}

func TestDoMcpServer_InvalidLogLevel(t *testing.T) {
	var stderr bytes.Buffer
	code := doMcpServer("", "stdio", 8080, "loud", &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Invalid log level")
}

func TestDoMcpServer_ConfigNotFound(t *testing.T) {
	var stderr bytes.Buffer
	code := doMcpServer("/nonexistent/config.yaml", "stdio", 8080, "info", &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error loading config")
}

func TestDoMcpServer_UnknownTransport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, fmt.Sprintf("state_dir: %q\noutput_dir: %q\n",
		filepath.Join(dir, "state"), filepath.Join(dir, "out")))

	var stderr bytes.Buffer
	code := doMcpServer(cfgPath, "carrier-pigeon", 8080, "error", &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unknown transport")
}
