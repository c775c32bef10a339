package operations

import "fmt"

// KeyType classifies the key material a provider holds.
type KeyType uint8

const (
	KeyTypeNone KeyType = iota
	KeyTypeRsaKeyPair
	KeyTypeRsaPublicKey
	KeyTypeEccKeyPair
	KeyTypeEccPublicKey
	KeyTypeAes
	KeyTypeChacha20
)

func (k KeyType) String() string {
	switch k {
	case KeyTypeNone:
		return "none"
	case KeyTypeRsaKeyPair:
		return "rsa-keypair"
	case KeyTypeRsaPublicKey:
		return "rsa-public-key"
	case KeyTypeEccKeyPair:
		return "ecc-keypair"
	case KeyTypeEccPublicKey:
		return "ecc-public-key"
	case KeyTypeAes:
		return "aes"
	case KeyTypeChacha20:
		return "chacha20"
	default:
		return fmt.Sprintf("key-type(%d)", uint8(k))
	}
}

// Algorithm binds a key to the one primitive it may be used with.
type Algorithm uint32

const (
	AlgorithmNone Algorithm = iota
	AlgorithmRsaPkcs1v15Sign
	AlgorithmRsaPkcs1v15Crypt
	AlgorithmRsaOaepSha256
	AlgorithmEcdsaSha256
	AlgorithmAeadAesGcm
	AlgorithmAeadChacha20Poly1305
	AlgorithmEcdh
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmRsaPkcs1v15Sign:
		return "rsa-pkcs1v15-sign"
	case AlgorithmRsaPkcs1v15Crypt:
		return "rsa-pkcs1v15-crypt"
	case AlgorithmRsaOaepSha256:
		return "rsa-oaep-sha256"
	case AlgorithmEcdsaSha256:
		return "ecdsa-sha256"
	case AlgorithmAeadAesGcm:
		return "aead-aes-gcm"
	case AlgorithmAeadChacha20Poly1305:
		return "aead-chacha20-poly1305"
	case AlgorithmEcdh:
		return "ecdh"
	default:
		return fmt.Sprintf("algorithm(%d)", uint32(a))
	}
}

// HashAlgorithm selects the digest for the hash operations.
type HashAlgorithm uint8

const (
	HashSha256 HashAlgorithm = iota
	HashSha384
	HashSha512
)

func (h HashAlgorithm) String() string {
	switch h {
	case HashSha256:
		return "sha256"
	case HashSha384:
		return "sha384"
	case HashSha512:
		return "sha512"
	default:
		return fmt.Sprintf("hash(%d)", uint8(h))
	}
}

// UsageFlags lists the operations the key owner permits.
type UsageFlags struct {
	Sign    bool `cbor:"1,keyasint,omitempty"`
	Verify  bool `cbor:"2,keyasint,omitempty"`
	Encrypt bool `cbor:"3,keyasint,omitempty"`
	Decrypt bool `cbor:"4,keyasint,omitempty"`
	Export  bool `cbor:"5,keyasint,omitempty"`
	Derive  bool `cbor:"6,keyasint,omitempty"`
}

// KeyAttributes describes a key at creation time and travels with it in
// the key-info store. The service never reinterprets attributes beyond
// rejecting combinations a provider does not implement.
type KeyAttributes struct {
	KeyType   KeyType    `cbor:"1,keyasint"`
	Bits      uint32     `cbor:"2,keyasint"`
	Algorithm Algorithm  `cbor:"3,keyasint"`
	Usage     UsageFlags `cbor:"4,keyasint"`
}
