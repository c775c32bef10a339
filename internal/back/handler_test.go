package back_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/internal/back"
	"github.com/systmms/keyops/internal/providers"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// spyProvider counts every capability call that reaches it.
type spyProvider struct {
	providers.Base
	calls atomic.Int64
}

func (s *spyProvider) Describe() (operations.ProviderInfo, error) {
	return operations.ProviderInfo{ID: requests.ProviderPkcs11}, nil
}

func (s *spyProvider) SignHash(auth.ApplicationName, operations.SignHash) (operations.SignHashResult, error) {
	s.calls.Add(1)
	return operations.SignHashResult{Signature: []byte("sig")}, nil
}

func (s *spyProvider) GenerateKey(auth.ApplicationName, operations.GenerateKey) (operations.GenerateKeyResult, error) {
	s.calls.Add(1)
	return operations.GenerateKeyResult{}, nil
}

func newConverter(t *testing.T) *operations.CborConverter {
	t.Helper()
	conv, err := operations.NewCborConverter()
	require.NoError(t, err)
	return conv
}

func newHandler(t *testing.T, provider providers.Provider, id requests.ProviderID) *back.Handler {
	t.Helper()
	handler, err := back.NewHandler(back.HandlerConfig{
		Provider:    provider,
		Converter:   newConverter(t),
		ProviderID:  id,
		ContentType: requests.BodyCbor,
		AcceptType:  requests.BodyCbor,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return handler
}

func newCoreHandler(t *testing.T) *back.Handler {
	t.Helper()
	core, err := providers.NewCoreProvider(providers.CoreConfig{VersionMaj: 1, VersionMin: 0})
	require.NoError(t, err)
	return newHandler(t, core, requests.ProviderCore)
}

func request(opcode requests.Opcode, provider requests.ProviderID) *requests.Request {
	return &requests.Request{Header: requests.RequestHeader{
		Opcode:      opcode,
		Provider:    provider,
		ContentType: requests.BodyCbor,
		AcceptType:  requests.BodyCbor,
	}}
}

func TestNewHandlerValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := back.NewHandler(back.HandlerConfig{
		Converter: newConverter(t),
		Logger:    zaptest.NewLogger(t),
	})
	assert.Error(t, err)

	_, err = back.NewHandler(back.HandlerConfig{
		Provider: &spyProvider{},
		Logger:   zaptest.NewLogger(t),
	})
	assert.Error(t, err)
}

// IsCapable is total: every combination of opcode, provider id, content
// type and accept type yields exactly one status without panicking.
func TestIsCapableTotal(t *testing.T) {
	t.Parallel()

	handlers := map[requests.ProviderID]*back.Handler{
		requests.ProviderCore:   newCoreHandler(t),
		requests.ProviderPkcs11: newHandler(t, &spyProvider{}, requests.ProviderPkcs11),
	}
	bodyTypes := []requests.BodyType{requests.BodyCbor, requests.BodyType(7)}

	for _, handler := range handlers {
		for _, opcode := range requests.AllOpcodes {
			for _, headerProvider := range append(requests.AllProviderIDs, requests.ProviderID(99)) {
				for _, contentType := range bodyTypes {
					for _, acceptType := range bodyTypes {
						req := request(opcode, headerProvider)
						req.Header.ContentType = contentType
						req.Header.AcceptType = acceptType
						status := handler.IsCapable(req)
						// One definite answer, never a panic.
						_ = status.String()
					}
				}
			}
		}
	}
}

// Core opcodes never pass capability on a non-core handler and vice
// versa.
func TestIsCapableOpcodeProviderCompatibility(t *testing.T) {
	t.Parallel()

	coreHandler := newCoreHandler(t)
	pkcs11Handler := newHandler(t, &spyProvider{}, requests.ProviderPkcs11)

	for _, opcode := range requests.AllOpcodes {
		if opcode.IsCore() {
			req := request(opcode, requests.ProviderPkcs11)
			assert.Equal(t, requests.PsaErrorNotSupported, pkcs11Handler.IsCapable(req),
				"core opcode %s on non-core handler", opcode)
		} else {
			req := request(opcode, requests.ProviderCore)
			assert.Equal(t, requests.PsaErrorNotSupported, coreHandler.IsCapable(req),
				"non-core opcode %s on core handler", opcode)
		}
	}
}

func TestIsCapableChecksInOrder(t *testing.T) {
	t.Parallel()

	handler := newHandler(t, &spyProvider{}, requests.ProviderPkcs11)

	// Opcode class first: a core opcode on a non-core handler.
	req := request(requests.OpPing, requests.ProviderPkcs11)
	assert.Equal(t, requests.PsaErrorNotSupported, handler.IsCapable(req))

	req = request(requests.OpSignHash, requests.ProviderSoftware)
	assert.Equal(t, requests.WrongProviderID, handler.IsCapable(req))

	req = request(requests.OpSignHash, requests.ProviderPkcs11)
	req.Header.ContentType = requests.BodyType(9)
	assert.Equal(t, requests.ContentTypeNotSupported, handler.IsCapable(req))

	req = request(requests.OpSignHash, requests.ProviderPkcs11)
	req.Header.AcceptType = requests.BodyType(9)
	assert.Equal(t, requests.AcceptTypeNotSupported, handler.IsCapable(req))

	req = request(requests.OpSignHash, requests.ProviderPkcs11)
	assert.Equal(t, requests.Success, handler.IsCapable(req))
}

// Every tenant-scoped opcode is rejected before the provider is touched
// when no application name is present.
func TestUnauthenticatedTenantOpsRejected(t *testing.T) {
	t.Parallel()

	spy := &spyProvider{}
	handler := newHandler(t, spy, requests.ProviderPkcs11)

	for _, opcode := range requests.AllOpcodes {
		if opcode.IsCore() || !operations.RequiresApplication(opcode) {
			continue
		}
		resp := handler.ExecuteRequest(request(opcode, requests.ProviderPkcs11), nil)
		assert.Equal(t, requests.NotAuthenticated, resp.Header.Status, "opcode %s", opcode)
		assert.Empty(t, resp.Body, "opcode %s", opcode)
	}
	assert.Zero(t, spy.calls.Load(), "provider must never be invoked")
}

func TestExecuteRequestSignHash(t *testing.T) {
	t.Parallel()

	spy := &spyProvider{}
	handler := newHandler(t, spy, requests.ProviderPkcs11)
	conv := newConverter(t)

	body, err := conv.OperationToBody(operations.SignHash{KeyName: "k1", Hash: []byte{1}})
	require.NoError(t, err)
	req := request(requests.OpSignHash, requests.ProviderPkcs11)
	req.Body = body

	app := auth.ApplicationName("app-a")
	resp := handler.ExecuteRequest(req, &app)
	require.Equal(t, requests.Success, resp.Header.Status)

	result, err := conv.BodyToResult(resp.Body, requests.OpSignHash)
	require.NoError(t, err)
	assert.Equal(t, operations.SignHashResult{Signature: []byte("sig")}, result)
	assert.Equal(t, int64(1), spy.calls.Load())
}

func TestExecuteRequestDecodeFailure(t *testing.T) {
	t.Parallel()

	handler := newHandler(t, &spyProvider{}, requests.ProviderPkcs11)

	req := request(requests.OpSignHash, requests.ProviderPkcs11)
	req.Body = []byte{0xFF, 0x00}

	app := auth.ApplicationName("app-a")
	resp := handler.ExecuteRequest(req, &app)
	assert.Equal(t, requests.DeserializingBodyFailed, resp.Header.Status)
	assert.Empty(t, resp.Body)
}

func TestExecuteRequestProviderErrorBecomesStatus(t *testing.T) {
	t.Parallel()

	// The spy does not override VerifyHash, so Base answers
	// PsaErrorNotSupported.
	handler := newHandler(t, &spyProvider{}, requests.ProviderPkcs11)

	app := auth.ApplicationName("app-a")
	resp := handler.ExecuteRequest(request(requests.OpVerifyHash, requests.ProviderPkcs11), &app)
	assert.Equal(t, requests.PsaErrorNotSupported, resp.Header.Status)
	assert.Empty(t, resp.Body)
}

func TestExecuteRequestEchoesHeader(t *testing.T) {
	t.Parallel()

	handler := newCoreHandler(t)

	req := request(requests.OpPing, requests.ProviderCore)
	req.Header.Session = 77
	req.Header.VersionMaj = 1

	resp := handler.ExecuteRequest(req, nil)
	assert.Equal(t, requests.Success, resp.Header.Status)
	assert.Equal(t, uint64(77), resp.Header.Session)
	assert.Equal(t, uint8(1), resp.Header.VersionMaj)
	assert.Equal(t, requests.OpPing, resp.Header.Opcode)
	assert.Equal(t, requests.ProviderCore, resp.Header.Provider)
}
