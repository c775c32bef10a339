package back_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/internal/back"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

func newDispatcher(t *testing.T) *back.Dispatcher {
	t.Helper()
	dispatcher, err := back.NewDispatcher(map[requests.ProviderID]*back.Handler{
		requests.ProviderCore:   newCoreHandler(t),
		requests.ProviderPkcs11: newHandler(t, &spyProvider{}, requests.ProviderPkcs11),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return dispatcher
}

func TestNewDispatcherValidates(t *testing.T) {
	t.Parallel()

	_, err := back.NewDispatcher(nil, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = back.NewDispatcher(map[requests.ProviderID]*back.Handler{
		requests.ProviderCore: nil,
	}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestDispatchUnregisteredProvider(t *testing.T) {
	t.Parallel()

	dispatcher := newDispatcher(t)

	resp := dispatcher.Dispatch(request(requests.OpSignHash, requests.ProviderSoftware), nil)
	assert.Equal(t, requests.ProviderNotRegistered, resp.Header.Status)
	assert.Empty(t, resp.Body)
}

// A ping aimed at the PKCS #11 handler fails the opcode-class check
// first: a core opcode is not supported by a non-core provider.
func TestDispatchWrongProvider(t *testing.T) {
	t.Parallel()

	dispatcher := newDispatcher(t)

	resp := dispatcher.Dispatch(request(requests.OpPing, requests.ProviderPkcs11), nil)
	assert.Equal(t, requests.PsaErrorNotSupported, resp.Header.Status)
	assert.Empty(t, resp.Body)
}

func TestDispatchWrongProviderID(t *testing.T) {
	t.Parallel()

	handler := newCoreHandler(t)
	dispatcher, err := back.NewDispatcher(map[requests.ProviderID]*back.Handler{
		requests.ProviderPkcs11: handler,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	// Core handler installed under the pkcs11 id: the capability check
	// fails on the provider id.
	resp := dispatcher.Dispatch(request(requests.OpPing, requests.ProviderPkcs11), nil)
	assert.Equal(t, requests.WrongProviderID, resp.Header.Status)
	assert.Empty(t, resp.Body)
}

func TestDispatchPingThroughCore(t *testing.T) {
	t.Parallel()

	dispatcher := newDispatcher(t)
	conv := newConverter(t)

	resp := dispatcher.Dispatch(request(requests.OpPing, requests.ProviderCore), nil)
	require.Equal(t, requests.Success, resp.Header.Status)

	result, err := conv.BodyToResult(resp.Body, requests.OpPing)
	require.NoError(t, err)
	assert.Equal(t, operations.PingResult{VersionMaj: 1, VersionMin: 0}, result)
}

func TestDispatchForwardsApplicationName(t *testing.T) {
	t.Parallel()

	spy := &spyProvider{}
	dispatcher, err := back.NewDispatcher(map[requests.ProviderID]*back.Handler{
		requests.ProviderPkcs11: newHandler(t, spy, requests.ProviderPkcs11),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	conv := newConverter(t)
	body, err := conv.OperationToBody(operations.GenerateKey{KeyName: "k", Attributes: operations.KeyAttributes{
		KeyType:   operations.KeyTypeRsaKeyPair,
		Bits:      2048,
		Algorithm: operations.AlgorithmRsaPkcs1v15Sign,
	}})
	require.NoError(t, err)

	req := request(requests.OpGenerateKey, requests.ProviderPkcs11)
	req.Body = body

	resp := dispatcher.Dispatch(req, nil)
	assert.Equal(t, requests.NotAuthenticated, resp.Header.Status)
	assert.Zero(t, spy.calls.Load())

	app := auth.ApplicationName("app-a")
	resp = dispatcher.Dispatch(req, &app)
	assert.Equal(t, requests.Success, resp.Header.Status)
	assert.Equal(t, int64(1), spy.calls.Load())
}
