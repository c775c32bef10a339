// Package auth converts a request's authentication field into an
// application name. Key namespaces are scoped by the name it produces.
package auth

import (
	"errors"
	"unicode/utf8"

	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// ApplicationName is the authenticated identity of a client
// application. It is opaque to the service beyond namespacing keys.
type ApplicationName string

// Authenticator turns the raw authentication field of a request into an
// application name, or nil when the request carries none.
type Authenticator interface {
	// Authenticate returns the application name established by the
	// field, nil if the field legitimately carries none, or an error if
	// the field is malformed for this authenticator.
	Authenticate(authType requests.AuthType, field []byte) (*ApplicationName, error)
	// Describe returns the authenticator's identity metadata.
	Describe() operations.AuthenticatorInfo
}

// ErrUnknownAuthType reports an auth type this authenticator does not
// handle.
var ErrUnknownAuthType = errors.New("unknown authentication type")

// ErrMalformedAuthField reports an authentication field that does not
// parse.
var ErrMalformedAuthField = errors.New("malformed authentication field")

// DirectAuthenticator trusts the authentication field: its bytes are
// the application name. Suitable for deployments where the socket's
// permissions already gate access.
type DirectAuthenticator struct{}

// NewDirectAuthenticator builds the direct authenticator.
func NewDirectAuthenticator() *DirectAuthenticator {
	return &DirectAuthenticator{}
}

// Authenticate implements Authenticator.
func (a *DirectAuthenticator) Authenticate(authType requests.AuthType, field []byte) (*ApplicationName, error) {
	switch authType {
	case requests.AuthNone:
		return nil, nil
	case requests.AuthDirect:
		if len(field) == 0 {
			return nil, nil
		}
		if !utf8.Valid(field) {
			return nil, ErrMalformedAuthField
		}
		name := ApplicationName(field)
		return &name, nil
	default:
		return nil, ErrUnknownAuthType
	}
}

// Describe implements Authenticator.
func (a *DirectAuthenticator) Describe() operations.AuthenticatorInfo {
	return operations.AuthenticatorInfo{
		Description: "Direct authenticator, the authentication field is the application name",
		VersionMaj:  0,
		VersionMin:  1,
		VersionRev:  0,
		ID:          requests.AuthDirect,
	}
}
