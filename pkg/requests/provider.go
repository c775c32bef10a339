package requests

import "fmt"

// ProviderID identifies a cryptographic back end. The values are part of
// the wire format.
type ProviderID uint8

const (
	// ProviderCore is the administrative provider present in every
	// deployment.
	ProviderCore ProviderID = 0
	// ProviderSoftware is the in-process software provider.
	ProviderSoftware ProviderID = 1
	// ProviderPkcs11 is the PKCS #11 token provider.
	ProviderPkcs11 ProviderID = 2
)

// AllProviderIDs lists every known provider identifier.
var AllProviderIDs = []ProviderID{ProviderCore, ProviderSoftware, ProviderPkcs11}

// IsValid reports whether the identifier is part of the closed
// enumeration.
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderCore, ProviderSoftware, ProviderPkcs11:
		return true
	default:
		return false
	}
}

func (p ProviderID) String() string {
	switch p {
	case ProviderCore:
		return "core"
	case ProviderSoftware:
		return "software"
	case ProviderPkcs11:
		return "pkcs11"
	default:
		return fmt.Sprintf("provider(%d)", uint8(p))
	}
}
