package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/pkg/requests"
)

func TestDirectAuthenticator(t *testing.T) {
	t.Parallel()

	a := auth.NewDirectAuthenticator()

	t.Run("NameFromField", func(t *testing.T) {
		name, err := a.Authenticate(requests.AuthDirect, []byte("app-one"))
		require.NoError(t, err)
		require.NotNil(t, name)
		assert.Equal(t, auth.ApplicationName("app-one"), *name)
	})

	t.Run("EmptyFieldMeansNoName", func(t *testing.T) {
		name, err := a.Authenticate(requests.AuthDirect, nil)
		require.NoError(t, err)
		assert.Nil(t, name)
	})

	t.Run("NoneAuthType", func(t *testing.T) {
		name, err := a.Authenticate(requests.AuthNone, []byte("ignored")[:0])
		require.NoError(t, err)
		assert.Nil(t, name)
	})

	t.Run("InvalidUTF8Rejected", func(t *testing.T) {
		_, err := a.Authenticate(requests.AuthDirect, []byte{0xFF, 0xFE})
		assert.ErrorIs(t, err, auth.ErrMalformedAuthField)
	})

	t.Run("UnknownAuthType", func(t *testing.T) {
		_, err := a.Authenticate(requests.AuthType(9), []byte("x"))
		assert.ErrorIs(t, err, auth.ErrUnknownAuthType)
	})

	t.Run("Describe", func(t *testing.T) {
		info := a.Describe()
		assert.Equal(t, requests.AuthDirect, info.ID)
		assert.NotEmpty(t, info.Description)
	})
}
