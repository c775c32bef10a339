// Package providers defines the capability every cryptographic back end
// implements, plus the in-process providers that ship with the service.
//
// A back end embeds Base and overrides the operations it supports; the
// rest answer PsaErrorNotSupported, meaning the primitive itself is
// absent from this back end. UnsupportedOperation is reserved for a
// supported primitive invoked with an attribute combination that is not
// implemented.
package providers

import (
	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// Provider is the full operation capability. One instance exists per
// provider id per process; every method must be safe under concurrent
// invocation.
type Provider interface {
	// Describe returns the provider's identity metadata.
	Describe() (operations.ProviderInfo, error)

	// Administrative operations.
	ListProviders(op operations.ListProviders) (operations.ListProvidersResult, error)
	ListOpcodes(op operations.ListOpcodes) (operations.ListOpcodesResult, error)
	ListAuthenticators(op operations.ListAuthenticators) (operations.ListAuthenticatorsResult, error)
	Ping(op operations.Ping) (operations.PingResult, error)

	// Tenant-scoped operations.
	GenerateKey(app auth.ApplicationName, op operations.GenerateKey) (operations.GenerateKeyResult, error)
	ImportKey(app auth.ApplicationName, op operations.ImportKey) (operations.ImportKeyResult, error)
	ExportPublicKey(app auth.ApplicationName, op operations.ExportPublicKey) (operations.ExportPublicKeyResult, error)
	ExportKey(app auth.ApplicationName, op operations.ExportKey) (operations.ExportKeyResult, error)
	DestroyKey(app auth.ApplicationName, op operations.DestroyKey) (operations.DestroyKeyResult, error)
	SignHash(app auth.ApplicationName, op operations.SignHash) (operations.SignHashResult, error)
	VerifyHash(app auth.ApplicationName, op operations.VerifyHash) (operations.VerifyHashResult, error)
	AsymmetricEncrypt(app auth.ApplicationName, op operations.AsymmetricEncrypt) (operations.AsymmetricEncryptResult, error)
	AsymmetricDecrypt(app auth.ApplicationName, op operations.AsymmetricDecrypt) (operations.AsymmetricDecryptResult, error)
	AeadEncrypt(app auth.ApplicationName, op operations.AeadEncrypt) (operations.AeadEncryptResult, error)
	AeadDecrypt(app auth.ApplicationName, op operations.AeadDecrypt) (operations.AeadDecryptResult, error)
	RawKeyAgreement(app auth.ApplicationName, op operations.RawKeyAgreement) (operations.RawKeyAgreementResult, error)
	ListKeys(app auth.ApplicationName, op operations.ListKeys) (operations.ListKeysResult, error)

	// App-optional operations.
	HashCompute(op operations.HashCompute) (operations.HashComputeResult, error)
	HashCompare(op operations.HashCompare) (operations.HashCompareResult, error)
	GenerateRandom(op operations.GenerateRandom) (operations.GenerateRandomResult, error)
}

// Base answers PsaErrorNotSupported for every operation. Concrete
// providers embed it and override what they actually offer, so adding
// an operation to the capability only requires touching the providers
// that support it.
type Base struct{}

func (Base) ListProviders(operations.ListProviders) (operations.ListProvidersResult, error) {
	return operations.ListProvidersResult{}, requests.PsaErrorNotSupported
}

func (Base) ListOpcodes(operations.ListOpcodes) (operations.ListOpcodesResult, error) {
	return operations.ListOpcodesResult{}, requests.PsaErrorNotSupported
}

func (Base) ListAuthenticators(operations.ListAuthenticators) (operations.ListAuthenticatorsResult, error) {
	return operations.ListAuthenticatorsResult{}, requests.PsaErrorNotSupported
}

func (Base) Ping(operations.Ping) (operations.PingResult, error) {
	return operations.PingResult{}, requests.PsaErrorNotSupported
}

func (Base) GenerateKey(auth.ApplicationName, operations.GenerateKey) (operations.GenerateKeyResult, error) {
	return operations.GenerateKeyResult{}, requests.PsaErrorNotSupported
}

func (Base) ImportKey(auth.ApplicationName, operations.ImportKey) (operations.ImportKeyResult, error) {
	return operations.ImportKeyResult{}, requests.PsaErrorNotSupported
}

func (Base) ExportPublicKey(auth.ApplicationName, operations.ExportPublicKey) (operations.ExportPublicKeyResult, error) {
	return operations.ExportPublicKeyResult{}, requests.PsaErrorNotSupported
}

func (Base) ExportKey(auth.ApplicationName, operations.ExportKey) (operations.ExportKeyResult, error) {
	return operations.ExportKeyResult{}, requests.PsaErrorNotSupported
}

func (Base) DestroyKey(auth.ApplicationName, operations.DestroyKey) (operations.DestroyKeyResult, error) {
	return operations.DestroyKeyResult{}, requests.PsaErrorNotSupported
}

func (Base) SignHash(auth.ApplicationName, operations.SignHash) (operations.SignHashResult, error) {
	return operations.SignHashResult{}, requests.PsaErrorNotSupported
}

func (Base) VerifyHash(auth.ApplicationName, operations.VerifyHash) (operations.VerifyHashResult, error) {
	return operations.VerifyHashResult{}, requests.PsaErrorNotSupported
}

func (Base) AsymmetricEncrypt(auth.ApplicationName, operations.AsymmetricEncrypt) (operations.AsymmetricEncryptResult, error) {
	return operations.AsymmetricEncryptResult{}, requests.PsaErrorNotSupported
}

func (Base) AsymmetricDecrypt(auth.ApplicationName, operations.AsymmetricDecrypt) (operations.AsymmetricDecryptResult, error) {
	return operations.AsymmetricDecryptResult{}, requests.PsaErrorNotSupported
}

func (Base) AeadEncrypt(auth.ApplicationName, operations.AeadEncrypt) (operations.AeadEncryptResult, error) {
	return operations.AeadEncryptResult{}, requests.PsaErrorNotSupported
}

func (Base) AeadDecrypt(auth.ApplicationName, operations.AeadDecrypt) (operations.AeadDecryptResult, error) {
	return operations.AeadDecryptResult{}, requests.PsaErrorNotSupported
}

func (Base) RawKeyAgreement(auth.ApplicationName, operations.RawKeyAgreement) (operations.RawKeyAgreementResult, error) {
	return operations.RawKeyAgreementResult{}, requests.PsaErrorNotSupported
}

func (Base) ListKeys(auth.ApplicationName, operations.ListKeys) (operations.ListKeysResult, error) {
	return operations.ListKeysResult{}, requests.PsaErrorNotSupported
}

func (Base) HashCompute(operations.HashCompute) (operations.HashComputeResult, error) {
	return operations.HashComputeResult{}, requests.PsaErrorNotSupported
}

func (Base) HashCompare(operations.HashCompare) (operations.HashCompareResult, error) {
	return operations.HashCompareResult{}, requests.PsaErrorNotSupported
}

func (Base) GenerateRandom(operations.GenerateRandom) (operations.GenerateRandomResult, error) {
	return operations.GenerateRandomResult{}, requests.PsaErrorNotSupported
}
