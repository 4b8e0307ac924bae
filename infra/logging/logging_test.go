package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Encoding = "xml"
	assert.Error(t, cfg.Validate())
}

func TestNewWritesRotatedFile(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Encoding = "console"
	cfg.File = filepath.Join(t.TempDir(), "tickbook.log")

	log, err := New(cfg)
	require.NoError(t, err)
	log.Named("test").Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "test")
}
