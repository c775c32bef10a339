package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyops/internal/logging"
)

func TestNewAcceptsKnownLevels(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := logging.New(level, false)
		require.NoError(t, err, "level %s", level)
		assert.NotNil(t, logger)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := logging.New("verbose", false)
	assert.Error(t, err)
}

func TestNewDevelopmentMode(t *testing.T) {
	t.Parallel()

	logger, err := logging.New("debug", true)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
