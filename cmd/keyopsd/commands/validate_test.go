package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyops/cmd/keyopsd/commands"
)

func TestValidateCommandAcceptsGoodConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keyopsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 1
listener:
  socket_path: /tmp/keyops.sock
providers:
  software:
    enabled: true
`), 0o600))

	cmd := commands.NewValidateCommand(&path)
	var out bytes.Buffer
	cmd.SetOut(&out)

	require.NoError(t, cmd.RunE(cmd, nil))
	assert.Contains(t, out.String(), "is valid")
	assert.Contains(t, out.String(), "provider: software")
}

func TestValidateCommandRejectsBadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keyopsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`version: 1`), 0o600))

	cmd := commands.NewValidateCommand(&path)
	assert.Error(t, cmd.RunE(cmd, nil))
}
