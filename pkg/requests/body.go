package requests

import "fmt"

// BodyType selects the serialization used for request and response
// bodies.
type BodyType uint8

const (
	// BodyCbor is the canonical body encoding.
	BodyCbor BodyType = 0
)

func (b BodyType) String() string {
	switch b {
	case BodyCbor:
		return "cbor"
	default:
		return fmt.Sprintf("body(%d)", uint8(b))
	}
}

// AuthType selects how the authentication field of a request is
// interpreted.
type AuthType uint8

const (
	// AuthNone carries no authentication material.
	AuthNone AuthType = 0
	// AuthDirect carries the application name as UTF-8 bytes.
	AuthDirect AuthType = 1
)

func (a AuthType) String() string {
	switch a {
	case AuthNone:
		return "none"
	case AuthDirect:
		return "direct"
	default:
		return fmt.Sprintf("auth(%d)", uint8(a))
	}
}
