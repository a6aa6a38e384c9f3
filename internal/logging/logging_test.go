package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesToEveryWriter(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewLogger(&a, &b)
	logger.Info().Str("job", "j1").Msg("export started")

	assert.Contains(t, a.String(), `"job":"j1"`)
	assert.Equal(t, a.String(), b.String())
}

func TestInitWithLogFile(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	path := filepath.Join(t.TempDir(), "logs", "vortex.log")
	closer, err := Init(false, path)
	require.NoError(t, err)

	logger := WithComponent("mixer")
	logger.Info().Msg("mix finished")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"mixer"`)
	assert.Contains(t, string(data), `"message":"mix finished"`)
}
