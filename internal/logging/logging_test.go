package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tileswipe.log")
	log, err := New(path, "debug")
	require.NoError(t, err)
	log.Debug("tile loaded")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `"msg":"tile loaded"`))
}

func TestNewRejectsLevel(t *testing.T) {
	_, err := New("", "chatty")
	require.Error(t, err)
}
