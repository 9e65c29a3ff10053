package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesLevel(t *testing.T) {
	logger := New(Options{Level: "debug"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger = New(Options{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splits.log")
	logger := New(Options{Level: "info", File: path})
	logger.WithField("stage", "shore").Info("stage entered")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stage entered")
	assert.Contains(t, string(data), "stage=shore")
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	logger := New(Options{})
	assert.Same(t, logger, OrDiscard(logger))
}
