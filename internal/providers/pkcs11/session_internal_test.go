package pkcs11

import (
	"testing"

	p11 "github.com/miekg/pkcs11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	internalkeyinfo "github.com/systmms/keyops/internal/keyinfo"
	"github.com/systmms/keyops/internal/secure"
)

func newSessionTestProvider(t *testing.T, token *fakeToken, pin *secure.Buffer) *Provider {
	t.Helper()
	provider, err := New(Config{
		Token:      token,
		SlotNumber: 0,
		UserPin:    pin,
		Store:      internalkeyinfo.NewMemoryStore(),
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return provider
}

// The token's login primitive must run exactly once on the 0 -> 1
// counter transition, logout exactly once on 1 -> 0, whatever the
// interleaving of session opens and closes in between.
func TestLoginCounterSharedAcrossSessions(t *testing.T) {
	t.Parallel()

	token := newFakeToken()
	provider := newSessionTestProvider(t, token, secure.NewBufferFromString("123456"))

	s1, err := provider.openSession(readOnlySession)
	require.NoError(t, err)
	assert.Equal(t, 1, token.loginCalls)
	assert.Equal(t, uint64(1), provider.loggedSessions)

	s2, err := provider.openSession(readWriteSession)
	require.NoError(t, err)
	assert.Equal(t, 1, token.loginCalls, "second session must not log in again")
	assert.Equal(t, uint64(2), provider.loggedSessions)

	s3, err := provider.openSession(readOnlySession)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), provider.loggedSessions)

	s2.close()
	assert.Equal(t, 0, token.logoutCalls, "logout only fires for the last session")
	assert.Equal(t, uint64(2), provider.loggedSessions)

	s3.close()
	assert.Equal(t, 0, token.logoutCalls)

	s1.close()
	assert.Equal(t, 1, token.logoutCalls)
	assert.Equal(t, uint64(0), provider.loggedSessions)
	assert.Zero(t, token.openSessionCount(), "all raw sessions closed")
}

// The counter always equals the number of sessions currently marked
// logged in.
func TestLoginCounterMatchesMarkedSessions(t *testing.T) {
	t.Parallel()

	token := newFakeToken()
	provider := newSessionTestProvider(t, token, secure.NewBufferFromString("123456"))

	var sessions []*session
	for i := 0; i < 5; i++ {
		s, err := provider.openSession(readOnlySession)
		require.NoError(t, err)
		sessions = append(sessions, s)

		marked := 0
		for _, open := range sessions {
			if open.loggedIn {
				marked++
			}
		}
		assert.Equal(t, uint64(marked), provider.loggedSessions)
	}
	for i, s := range sessions {
		s.close()
		assert.Equal(t, uint64(len(sessions)-i-1), provider.loggedSessions)
	}
}

func TestLoginWithoutPinIsLocalOnly(t *testing.T) {
	t.Parallel()

	token := newFakeToken()
	provider := newSessionTestProvider(t, token, nil)

	s, err := provider.openSession(readOnlySession)
	require.NoError(t, err)
	assert.Zero(t, token.loginCalls, "no PIN, no token login")
	assert.True(t, s.loggedIn)

	s.close()
	assert.Zero(t, token.logoutCalls)
}

func TestLoginFailureClosesRawSession(t *testing.T) {
	t.Parallel()

	token := newFakeToken()
	token.loginErr = p11.Error(p11.CKR_PIN_INCORRECT)
	provider := newSessionTestProvider(t, token, secure.NewBufferFromString("bad"))

	_, err := provider.openSession(readOnlySession)
	assert.Error(t, err)
	assert.Zero(t, token.openSessionCount(), "raw session must not leak")
	assert.Equal(t, uint64(0), provider.loggedSessions)
}

func TestLoginIdempotentPerSession(t *testing.T) {
	t.Parallel()

	token := newFakeToken()
	provider := newSessionTestProvider(t, token, secure.NewBufferFromString("123456"))

	s, err := provider.openSession(readOnlySession)
	require.NoError(t, err)

	// A second login on the same session is a no-op.
	require.NoError(t, s.login())
	assert.Equal(t, 1, token.loginCalls)
	assert.Equal(t, uint64(1), provider.loggedSessions)

	// A second logout on the same session is a no-op too.
	require.NoError(t, s.logout())
	require.NoError(t, s.logout())
	assert.Equal(t, 1, token.logoutCalls)

	s.close()
}
