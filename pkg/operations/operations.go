package operations

import "github.com/systmms/keyops/pkg/requests"

// NativeOperation is the tagged union of every supported operation. The
// tag is the opcode; the dispatcher switches on the concrete type, so
// adding an opcode without extending every switch fails to compile.
type NativeOperation interface {
	Opcode() requests.Opcode
}

// Administrative operations.

// Ping requests the supported wire protocol version.
type Ping struct{}

// ListProviders requests the descriptions of all registered providers.
type ListProviders struct{}

// ListOpcodes requests the opcodes a given provider supports.
type ListOpcodes struct {
	Provider requests.ProviderID `cbor:"1,keyasint"`
}

// ListAuthenticators requests the authenticators the service accepts.
type ListAuthenticators struct{}

// Tenant-scoped operations.

// GenerateKey creates a new key under the caller's namespace.
type GenerateKey struct {
	KeyName    string        `cbor:"1,keyasint"`
	Attributes KeyAttributes `cbor:"2,keyasint"`
}

// ImportKey stores externally supplied key material.
type ImportKey struct {
	KeyName    string        `cbor:"1,keyasint"`
	Attributes KeyAttributes `cbor:"2,keyasint"`
	Data       []byte        `cbor:"3,keyasint"`
}

// ExportPublicKey exports the public half of a key as DER.
type ExportPublicKey struct {
	KeyName string `cbor:"1,keyasint"`
}

// ExportKey exports the full key material, where the policy allows it.
type ExportKey struct {
	KeyName string `cbor:"1,keyasint"`
}

// DestroyKey removes a key and its store mapping.
type DestroyKey struct {
	KeyName string `cbor:"1,keyasint"`
}

// SignHash signs an already computed hash.
type SignHash struct {
	KeyName string `cbor:"1,keyasint"`
	Hash    []byte `cbor:"2,keyasint"`
}

// VerifyHash checks a signature over an already computed hash.
type VerifyHash struct {
	KeyName   string `cbor:"1,keyasint"`
	Hash      []byte `cbor:"2,keyasint"`
	Signature []byte `cbor:"3,keyasint"`
}

// AsymmetricEncrypt encrypts a short plaintext with a public key.
type AsymmetricEncrypt struct {
	KeyName   string `cbor:"1,keyasint"`
	Plaintext []byte `cbor:"2,keyasint"`
	Salt      []byte `cbor:"3,keyasint,omitempty"`
}

// AsymmetricDecrypt decrypts a short ciphertext with a private key.
type AsymmetricDecrypt struct {
	KeyName    string `cbor:"1,keyasint"`
	Ciphertext []byte `cbor:"2,keyasint"`
	Salt       []byte `cbor:"3,keyasint,omitempty"`
}

// AeadEncrypt performs one-shot authenticated encryption.
type AeadEncrypt struct {
	KeyName        string `cbor:"1,keyasint"`
	Nonce          []byte `cbor:"2,keyasint"`
	AdditionalData []byte `cbor:"3,keyasint,omitempty"`
	Plaintext      []byte `cbor:"4,keyasint"`
}

// AeadDecrypt performs one-shot authenticated decryption.
type AeadDecrypt struct {
	KeyName        string `cbor:"1,keyasint"`
	Nonce          []byte `cbor:"2,keyasint"`
	AdditionalData []byte `cbor:"3,keyasint,omitempty"`
	Ciphertext     []byte `cbor:"4,keyasint"`
}

// RawKeyAgreement computes a raw shared secret.
type RawKeyAgreement struct {
	KeyName string `cbor:"1,keyasint"`
	PeerKey []byte `cbor:"2,keyasint"`
}

// ListKeys enumerates the caller's keys.
type ListKeys struct{}

// App-optional operations.

// HashCompute digests an input.
type HashCompute struct {
	Algorithm HashAlgorithm `cbor:"1,keyasint"`
	Input     []byte        `cbor:"2,keyasint"`
}

// HashCompare digests an input and compares against a reference hash.
type HashCompare struct {
	Algorithm HashAlgorithm `cbor:"1,keyasint"`
	Input     []byte        `cbor:"2,keyasint"`
	Hash      []byte        `cbor:"3,keyasint"`
}

// GenerateRandom draws bytes from the provider's generator.
type GenerateRandom struct {
	Size uint32 `cbor:"1,keyasint"`
}

func (Ping) Opcode() requests.Opcode               { return requests.OpPing }
func (ListProviders) Opcode() requests.Opcode      { return requests.OpListProviders }
func (ListOpcodes) Opcode() requests.Opcode        { return requests.OpListOpcodes }
func (ListAuthenticators) Opcode() requests.Opcode { return requests.OpListAuthenticators }
func (GenerateKey) Opcode() requests.Opcode        { return requests.OpGenerateKey }
func (ImportKey) Opcode() requests.Opcode          { return requests.OpImportKey }
func (ExportPublicKey) Opcode() requests.Opcode    { return requests.OpExportPublicKey }
func (ExportKey) Opcode() requests.Opcode          { return requests.OpExportKey }
func (DestroyKey) Opcode() requests.Opcode         { return requests.OpDestroyKey }
func (SignHash) Opcode() requests.Opcode           { return requests.OpSignHash }
func (VerifyHash) Opcode() requests.Opcode         { return requests.OpVerifyHash }
func (AsymmetricEncrypt) Opcode() requests.Opcode  { return requests.OpAsymmetricEncrypt }
func (AsymmetricDecrypt) Opcode() requests.Opcode  { return requests.OpAsymmetricDecrypt }
func (AeadEncrypt) Opcode() requests.Opcode        { return requests.OpAeadEncrypt }
func (AeadDecrypt) Opcode() requests.Opcode        { return requests.OpAeadDecrypt }
func (RawKeyAgreement) Opcode() requests.Opcode    { return requests.OpRawKeyAgreement }
func (ListKeys) Opcode() requests.Opcode           { return requests.OpListKeys }
func (HashCompute) Opcode() requests.Opcode        { return requests.OpHashCompute }
func (HashCompare) Opcode() requests.Opcode        { return requests.OpHashCompare }
func (GenerateRandom) Opcode() requests.Opcode     { return requests.OpGenerateRandom }

// RequiresApplication reports whether the opcode names a tenant-scoped
// operation that must carry an application name. The hash operations
// keep the check although they discard the name afterwards.
func RequiresApplication(op requests.Opcode) bool {
	switch op {
	case requests.OpGenerateKey, requests.OpImportKey, requests.OpExportPublicKey,
		requests.OpExportKey, requests.OpDestroyKey, requests.OpSignHash,
		requests.OpVerifyHash, requests.OpAsymmetricEncrypt, requests.OpAsymmetricDecrypt,
		requests.OpAeadEncrypt, requests.OpAeadDecrypt, requests.OpRawKeyAgreement,
		requests.OpListKeys, requests.OpHashCompute, requests.OpHashCompare:
		return true
	default:
		return false
	}
}
