package operations

import (
	"github.com/google/uuid"

	"github.com/systmms/keyops/pkg/requests"
)

// ProviderInfo is the identity metadata every provider exposes through
// describe and the core provider aggregates for list_providers.
type ProviderInfo struct {
	UUID        uuid.UUID           `cbor:"1,keyasint"`
	Description string              `cbor:"2,keyasint"`
	Vendor      string              `cbor:"3,keyasint"`
	VersionMaj  uint8               `cbor:"4,keyasint"`
	VersionMin  uint8               `cbor:"5,keyasint"`
	VersionRev  uint8               `cbor:"6,keyasint"`
	ID          requests.ProviderID `cbor:"7,keyasint"`
}

// AuthenticatorInfo describes one authenticator the service accepts.
type AuthenticatorInfo struct {
	Description string            `cbor:"1,keyasint"`
	VersionMaj  uint8             `cbor:"2,keyasint"`
	VersionMin  uint8             `cbor:"3,keyasint"`
	VersionRev  uint8             `cbor:"4,keyasint"`
	ID          requests.AuthType `cbor:"5,keyasint"`
}

// KeyDescription is one entry of a list_keys result.
type KeyDescription struct {
	Provider   requests.ProviderID `cbor:"1,keyasint"`
	Name       string              `cbor:"2,keyasint"`
	Attributes KeyAttributes       `cbor:"3,keyasint"`
}
