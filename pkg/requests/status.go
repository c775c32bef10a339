package requests

import "fmt"

// ResponseStatus is the closed taxonomy of response outcomes. It is a
// status code on the wire, not an error hierarchy: every failure inside
// the service is folded into exactly one of these values before it
// crosses the dispatch boundary.
type ResponseStatus uint16

const (
	// Success reports a completed operation.
	Success ResponseStatus = 0
	// WrongProviderID reports a header whose provider does not match the
	// handler it reached.
	WrongProviderID ResponseStatus = 1
	// ContentTypeNotSupported reports a request body encoding the
	// handler does not accept.
	ContentTypeNotSupported ResponseStatus = 2
	// AcceptTypeNotSupported reports a response body encoding the
	// handler cannot produce.
	AcceptTypeNotSupported ResponseStatus = 3
	// WireProtocolVersionNotSupported reports an unsupported header
	// version.
	WireProtocolVersionNotSupported ResponseStatus = 4
	// ProviderNotRegistered reports a provider id with no handler
	// installed.
	ProviderNotRegistered ResponseStatus = 5
	// ProviderDoesNotExist reports a provider id outside the closed
	// enumeration.
	ProviderDoesNotExist ResponseStatus = 6
	// DeserializingBodyFailed reports a body that could not be decoded
	// into an operation.
	DeserializingBodyFailed ResponseStatus = 7
	// SerializingBodyFailed reports a result that could not be encoded
	// into a body.
	SerializingBodyFailed ResponseStatus = 8
	// OpcodeDoesNotExist reports an opcode outside the closed
	// enumeration.
	OpcodeDoesNotExist ResponseStatus = 9
	// ResponseTooLarge reports a response body over the configured
	// limit.
	ResponseTooLarge ResponseStatus = 10
	// NotAuthenticated reports a tenant-scoped operation submitted
	// without an application name.
	NotAuthenticated ResponseStatus = 11
	// AuthenticatorDoesNotExist reports an auth type outside the closed
	// enumeration.
	AuthenticatorDoesNotExist ResponseStatus = 12
	// KeyInfoManagerError reports a key-info store backend failure or a
	// malformed stored identifier.
	KeyInfoManagerError ResponseStatus = 13
	// KeyAlreadyExists reports a create or import against a key triple
	// that is already mapped.
	KeyAlreadyExists ResponseStatus = 14
	// UnsupportedOperation reports an attribute combination the provider
	// does not implement.
	UnsupportedOperation ResponseStatus = 15

	// PsaErrorGenericError is the fallback for unclassified provider
	// failures.
	PsaErrorGenericError ResponseStatus = 1132
	// PsaErrorNotPermitted reports a usage the key attributes forbid.
	PsaErrorNotPermitted ResponseStatus = 1133
	// PsaErrorNotSupported reports a primitive the back end does not
	// offer at all.
	PsaErrorNotSupported ResponseStatus = 1134
	// PsaErrorInvalidArgument reports a malformed operation field.
	PsaErrorInvalidArgument ResponseStatus = 1135
	// PsaErrorBufferTooSmall reports an output buffer shorter than the
	// primitive requires.
	PsaErrorBufferTooSmall ResponseStatus = 1138
	// PsaErrorAlreadyExists mirrors KeyAlreadyExists at the PSA layer.
	PsaErrorAlreadyExists ResponseStatus = 1139
	// PsaErrorDoesNotExist reports a key lookup that found nothing.
	PsaErrorDoesNotExist ResponseStatus = 1140
	// PsaErrorInsufficientEntropy reports a random generator failure.
	PsaErrorInsufficientEntropy ResponseStatus = 1148
	// PsaErrorInvalidSignature reports a signature the token rejected.
	PsaErrorInvalidSignature ResponseStatus = 1149
	// PsaErrorCommunicationFailure reports a session or attribute
	// transfer failure against the token.
	PsaErrorCommunicationFailure ResponseStatus = 1145
	// PsaErrorStorageFailure reports a provider-side persistence
	// failure.
	PsaErrorStorageFailure ResponseStatus = 1146
	// PsaErrorHardwareFailure reports an unspecified token error.
	PsaErrorHardwareFailure ResponseStatus = 1147
	// PsaErrorDataCorrupt reports stored provider data of the wrong
	// shape, such as an opaque id of the wrong length.
	PsaErrorDataCorrupt ResponseStatus = 1152
)

// Error makes a ResponseStatus usable where Go expects an error. Success
// should never be returned as an error; callers return nil instead.
func (s ResponseStatus) Error() string {
	return s.String()
}

func (s ResponseStatus) String() string {
	switch s {
	case Success:
		return "success"
	case WrongProviderID:
		return "wrong provider ID"
	case ContentTypeNotSupported:
		return "requested content type is not supported"
	case AcceptTypeNotSupported:
		return "requested accept type is not supported"
	case WireProtocolVersionNotSupported:
		return "wire protocol version is not supported"
	case ProviderNotRegistered:
		return "provider is not registered"
	case ProviderDoesNotExist:
		return "provider does not exist"
	case DeserializingBodyFailed:
		return "failed to deserialize request body"
	case SerializingBodyFailed:
		return "failed to serialize response body"
	case OpcodeDoesNotExist:
		return "opcode does not exist"
	case ResponseTooLarge:
		return "response is too large"
	case NotAuthenticated:
		return "request is not authenticated"
	case AuthenticatorDoesNotExist:
		return "authenticator does not exist"
	case KeyInfoManagerError:
		return "key info manager error"
	case KeyAlreadyExists:
		return "key already exists"
	case UnsupportedOperation:
		return "operation not supported for these attributes"
	case PsaErrorGenericError:
		return "generic provider error"
	case PsaErrorNotPermitted:
		return "operation not permitted by key policy"
	case PsaErrorNotSupported:
		return "primitive not supported by provider"
	case PsaErrorInvalidArgument:
		return "invalid argument"
	case PsaErrorBufferTooSmall:
		return "buffer too small"
	case PsaErrorAlreadyExists:
		return "key already exists on provider"
	case PsaErrorDoesNotExist:
		return "key does not exist"
	case PsaErrorInsufficientEntropy:
		return "insufficient entropy"
	case PsaErrorInvalidSignature:
		return "invalid signature"
	case PsaErrorCommunicationFailure:
		return "communication failure with provider back end"
	case PsaErrorStorageFailure:
		return "provider storage failure"
	case PsaErrorHardwareFailure:
		return "provider hardware failure"
	case PsaErrorDataCorrupt:
		return "provider data corrupt"
	default:
		return fmt.Sprintf("status(%d)", uint16(s))
	}
}

// StatusFromError converts an internal error to the status carried on a
// response. Errors that already are a ResponseStatus pass through;
// anything else folds into the fallback status.
func StatusFromError(err error, fallback ResponseStatus) ResponseStatus {
	if err == nil {
		return Success
	}
	if status, ok := err.(ResponseStatus); ok {
		return status
	}
	return fallback
}
