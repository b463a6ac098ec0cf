package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nudge.log")

	logger, err := New(Options{File: path, Level: "debug"})
	require.NoError(t, err)

	logger.Info("scheduler: started")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scheduler: started")
	assert.Contains(t, string(data), `"time"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{File: filepath.Join(t.TempDir(), "x.log"), Level: "loud"})
	assert.Error(t, err)
}

func TestDefaultPathEndsWithLogName(t *testing.T) {
	assert.Equal(t, "nudge.log", filepath.Base(DefaultPath()))
}
