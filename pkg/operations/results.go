package operations

import "github.com/systmms/keyops/pkg/requests"

// NativeResult is the tagged union of every operation result, mirroring
// NativeOperation variant for variant.
type NativeResult interface {
	Opcode() requests.Opcode
}

// PingResult carries the highest wire protocol version the service
// supports.
type PingResult struct {
	VersionMaj uint8 `cbor:"1,keyasint"`
	VersionMin uint8 `cbor:"2,keyasint"`
}

// ListProvidersResult carries the descriptions of all providers.
type ListProvidersResult struct {
	Providers []ProviderInfo `cbor:"1,keyasint"`
}

// ListOpcodesResult carries the opcodes a provider supports.
type ListOpcodesResult struct {
	Opcodes []requests.Opcode `cbor:"1,keyasint"`
}

// ListAuthenticatorsResult carries the accepted authenticators.
type ListAuthenticatorsResult struct {
	Authenticators []AuthenticatorInfo `cbor:"1,keyasint"`
}

// GenerateKeyResult is empty; success is the result.
type GenerateKeyResult struct{}

// ImportKeyResult is empty; success is the result.
type ImportKeyResult struct{}

// ExportPublicKeyResult carries the DER-encoded public key.
type ExportPublicKeyResult struct {
	Data []byte `cbor:"1,keyasint"`
}

// ExportKeyResult carries the exported key material.
type ExportKeyResult struct {
	Data []byte `cbor:"1,keyasint"`
}

// DestroyKeyResult is empty; success is the result.
type DestroyKeyResult struct{}

// SignHashResult carries the produced signature.
type SignHashResult struct {
	Signature []byte `cbor:"1,keyasint"`
}

// VerifyHashResult is empty; a failed verification surfaces as a
// status, not a result.
type VerifyHashResult struct{}

// AsymmetricEncryptResult carries the ciphertext.
type AsymmetricEncryptResult struct {
	Ciphertext []byte `cbor:"1,keyasint"`
}

// AsymmetricDecryptResult carries the plaintext.
type AsymmetricDecryptResult struct {
	Plaintext []byte `cbor:"1,keyasint"`
}

// AeadEncryptResult carries ciphertext with the authentication tag
// appended.
type AeadEncryptResult struct {
	Ciphertext []byte `cbor:"1,keyasint"`
}

// AeadDecryptResult carries the recovered plaintext.
type AeadDecryptResult struct {
	Plaintext []byte `cbor:"1,keyasint"`
}

// RawKeyAgreementResult carries the raw shared secret.
type RawKeyAgreementResult struct {
	SharedSecret []byte `cbor:"1,keyasint"`
}

// ListKeysResult carries the caller's keys.
type ListKeysResult struct {
	Keys []KeyDescription `cbor:"1,keyasint"`
}

// HashComputeResult carries the digest.
type HashComputeResult struct {
	Hash []byte `cbor:"1,keyasint"`
}

// HashCompareResult is empty; a mismatch surfaces as a status.
type HashCompareResult struct{}

// GenerateRandomResult carries the drawn bytes.
type GenerateRandomResult struct {
	RandomBytes []byte `cbor:"1,keyasint"`
}

func (PingResult) Opcode() requests.Opcode               { return requests.OpPing }
func (ListProvidersResult) Opcode() requests.Opcode      { return requests.OpListProviders }
func (ListOpcodesResult) Opcode() requests.Opcode        { return requests.OpListOpcodes }
func (ListAuthenticatorsResult) Opcode() requests.Opcode { return requests.OpListAuthenticators }
func (GenerateKeyResult) Opcode() requests.Opcode        { return requests.OpGenerateKey }
func (ImportKeyResult) Opcode() requests.Opcode          { return requests.OpImportKey }
func (ExportPublicKeyResult) Opcode() requests.Opcode    { return requests.OpExportPublicKey }
func (ExportKeyResult) Opcode() requests.Opcode          { return requests.OpExportKey }
func (DestroyKeyResult) Opcode() requests.Opcode         { return requests.OpDestroyKey }
func (SignHashResult) Opcode() requests.Opcode           { return requests.OpSignHash }
func (VerifyHashResult) Opcode() requests.Opcode         { return requests.OpVerifyHash }
func (AsymmetricEncryptResult) Opcode() requests.Opcode  { return requests.OpAsymmetricEncrypt }
func (AsymmetricDecryptResult) Opcode() requests.Opcode  { return requests.OpAsymmetricDecrypt }
func (AeadEncryptResult) Opcode() requests.Opcode        { return requests.OpAeadEncrypt }
func (AeadDecryptResult) Opcode() requests.Opcode        { return requests.OpAeadDecrypt }
func (RawKeyAgreementResult) Opcode() requests.Opcode    { return requests.OpRawKeyAgreement }
func (ListKeysResult) Opcode() requests.Opcode           { return requests.OpListKeys }
func (HashComputeResult) Opcode() requests.Opcode        { return requests.OpHashCompute }
func (HashCompareResult) Opcode() requests.Opcode        { return requests.OpHashCompare }
func (GenerateRandomResult) Opcode() requests.Opcode     { return requests.OpGenerateRandom }
