package secure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyops/internal/secure"
)

func TestBufferRoundTrip(t *testing.T) {
	buf := secure.NewBufferFromString("123456")

	locked, err := buf.Open()
	require.NoError(t, err)
	assert.Equal(t, "123456", locked.String())
	locked.Destroy()
}

func TestBufferDestroyIsIdempotent(t *testing.T) {
	buf := secure.NewBufferFromString("pin")
	buf.Destroy()
	buf.Destroy()

	locked, err := buf.Open()
	require.NoError(t, err)
	assert.Empty(t, locked.Bytes())
	locked.Destroy()
}
