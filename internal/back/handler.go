// Package back converts requests into provider calls: the back-end
// handler decodes a request body into a native operation, dispatches it
// to its provider, and encodes the result into a response; the
// dispatcher selects the handler for a request's provider id.
package back

import (
	"errors"

	"go.uber.org/zap"

	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/internal/providers"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// Handler pairs one provider with one body converter. All fields are
// immutable after construction, so a handler is safe for concurrent
// use.
type Handler struct {
	provider    providers.Provider
	converter   operations.Converter
	providerID  requests.ProviderID
	contentType requests.BodyType
	acceptType  requests.BodyType
	logger      *zap.Logger
}

// HandlerConfig configures a back-end handler. Every field is required.
type HandlerConfig struct {
	Provider    providers.Provider
	Converter   operations.Converter
	ProviderID  requests.ProviderID
	ContentType requests.BodyType
	AcceptType  requests.BodyType
	Logger      *zap.Logger
}

// NewHandler validates the configuration and builds the handler.
// Missing fields are fatal here, not at request time.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Provider == nil {
		return nil, errors.New("back-end handler: provider is missing")
	}
	if cfg.Converter == nil {
		return nil, errors.New("back-end handler: converter is missing")
	}
	if cfg.Logger == nil {
		return nil, errors.New("back-end handler: logger is missing")
	}
	return &Handler{
		provider:    cfg.Provider,
		converter:   cfg.Converter,
		providerID:  cfg.ProviderID,
		contentType: cfg.ContentType,
		acceptType:  cfg.AcceptType,
		logger:      cfg.Logger.Named("backend-handler"),
	}, nil
}

// IsCapable assesses whether this handler-provider pair can process the
// request, short-circuiting in a fixed order: opcode class first, then
// provider id, content type, accept type.
func (h *Handler) IsCapable(req *requests.Request) requests.ResponseStatus {
	header := &req.Header

	if header.Opcode.IsCore() != (h.providerID == requests.ProviderCore) {
		h.logger.Error("request operation is not compatible with the provider targeted",
			zap.Stringer("opcode", header.Opcode),
			zap.Stringer("provider", h.providerID))
		return requests.PsaErrorNotSupported
	}
	if header.Provider != h.providerID {
		return requests.WrongProviderID
	}
	if header.ContentType != h.contentType {
		return requests.ContentTypeNotSupported
	}
	if header.AcceptType != h.acceptType {
		return requests.AcceptTypeNotSupported
	}
	return requests.Success
}

// ExecuteRequest decodes the body, dispatches the operation to the
// provider, and encodes the result. Every failure, from decode to
// encode, becomes a response carrying the status on the echoed header
// with an empty body.
func (h *Handler) ExecuteRequest(req *requests.Request, app *auth.ApplicationName) *requests.Response {
	header := req.Header

	op, err := h.converter.BodyToOperation(req.Body, header.Opcode)
	if err != nil {
		return requests.ResponseFromHeader(header, requests.StatusFromError(err, requests.DeserializingBodyFailed))
	}

	if operations.RequiresApplication(header.Opcode) && app == nil {
		return requests.ResponseFromHeader(header, requests.NotAuthenticated)
	}

	var result operations.NativeResult
	switch op := op.(type) {
	case operations.Ping:
		var res operations.PingResult
		res, err = h.provider.Ping(op)
		result = res
	case operations.ListProviders:
		var res operations.ListProvidersResult
		res, err = h.provider.ListProviders(op)
		result = res
	case operations.ListOpcodes:
		var res operations.ListOpcodesResult
		res, err = h.provider.ListOpcodes(op)
		result = res
	case operations.ListAuthenticators:
		var res operations.ListAuthenticatorsResult
		res, err = h.provider.ListAuthenticators(op)
		result = res
	case operations.GenerateKey:
		var res operations.GenerateKeyResult
		res, err = h.provider.GenerateKey(*app, op)
		result = res
	case operations.ImportKey:
		var res operations.ImportKeyResult
		res, err = h.provider.ImportKey(*app, op)
		result = res
	case operations.ExportPublicKey:
		var res operations.ExportPublicKeyResult
		res, err = h.provider.ExportPublicKey(*app, op)
		result = res
	case operations.ExportKey:
		var res operations.ExportKeyResult
		res, err = h.provider.ExportKey(*app, op)
		result = res
	case operations.DestroyKey:
		var res operations.DestroyKeyResult
		res, err = h.provider.DestroyKey(*app, op)
		result = res
	case operations.SignHash:
		var res operations.SignHashResult
		res, err = h.provider.SignHash(*app, op)
		result = res
	case operations.VerifyHash:
		var res operations.VerifyHashResult
		res, err = h.provider.VerifyHash(*app, op)
		result = res
	case operations.AsymmetricEncrypt:
		var res operations.AsymmetricEncryptResult
		res, err = h.provider.AsymmetricEncrypt(*app, op)
		result = res
	case operations.AsymmetricDecrypt:
		var res operations.AsymmetricDecryptResult
		res, err = h.provider.AsymmetricDecrypt(*app, op)
		result = res
	case operations.AeadEncrypt:
		var res operations.AeadEncryptResult
		res, err = h.provider.AeadEncrypt(*app, op)
		result = res
	case operations.AeadDecrypt:
		var res operations.AeadDecryptResult
		res, err = h.provider.AeadDecrypt(*app, op)
		result = res
	case operations.RawKeyAgreement:
		var res operations.RawKeyAgreementResult
		res, err = h.provider.RawKeyAgreement(*app, op)
		result = res
	case operations.ListKeys:
		var res operations.ListKeysResult
		res, err = h.provider.ListKeys(*app, op)
		result = res
	case operations.HashCompute:
		// The application name is checked above and then discarded,
		// keeping the contract uniform with the tenant operations.
		var res operations.HashComputeResult
		res, err = h.provider.HashCompute(op)
		result = res
	case operations.HashCompare:
		var res operations.HashCompareResult
		res, err = h.provider.HashCompare(op)
		result = res
	case operations.GenerateRandom:
		var res operations.GenerateRandomResult
		res, err = h.provider.GenerateRandom(op)
		result = res
	default:
		return requests.ResponseFromHeader(header, requests.OpcodeDoesNotExist)
	}
	if err != nil {
		return requests.ResponseFromHeader(header, requests.StatusFromError(err, requests.PsaErrorGenericError))
	}

	response := requests.ResponseFromHeader(header, requests.Success)
	body, err := h.converter.ResultToBody(result)
	if err != nil {
		response.Header.Status = requests.StatusFromError(err, requests.SerializingBodyFailed)
		return response
	}
	response.Body = body
	return response
}
