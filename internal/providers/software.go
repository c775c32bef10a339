package providers

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509"
	"errors"
	"hash"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/pkg/keyinfo"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

var softwareProviderUUID = uuid.MustParse("2a1a6b41-1d40-4f61-bd1a-dbec92b9bcee")

var softwareOpcodes = []requests.Opcode{
	requests.OpListOpcodes,
	requests.OpGenerateKey,
	requests.OpImportKey,
	requests.OpExportPublicKey,
	requests.OpExportKey,
	requests.OpDestroyKey,
	requests.OpSignHash,
	requests.OpVerifyHash,
	requests.OpAsymmetricEncrypt,
	requests.OpAsymmetricDecrypt,
	requests.OpListKeys,
	requests.OpHashCompute,
	requests.OpHashCompare,
	requests.OpGenerateRandom,
}

// SoftwareProvider implements RSA operations in process with the
// standard library. The opaque identifier it stores is the DER-encoded
// key material itself, so the key-info store is the only persistence it
// needs.
type SoftwareProvider struct {
	Base

	store   keyinfo.Manager
	storeMu sync.RWMutex
	logger  *zap.Logger
}

// SoftwareConfig configures the software provider.
type SoftwareConfig struct {
	// Store is the key-info manager this provider persists through. The
	// provider serialises all access behind its own lock.
	Store keyinfo.Manager
	// Logger receives operational logging. Required.
	Logger *zap.Logger
}

// NewSoftwareProvider validates the configuration and builds the
// provider.
func NewSoftwareProvider(cfg SoftwareConfig) (*SoftwareProvider, error) {
	if cfg.Store == nil {
		return nil, errors.New("software provider: key-info store is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("software provider: logger is required")
	}
	return &SoftwareProvider{
		store:  cfg.Store,
		logger: cfg.Logger.Named("software-provider"),
	}, nil
}

// Describe implements Provider.
func (p *SoftwareProvider) Describe() (operations.ProviderInfo, error) {
	return operations.ProviderInfo{
		UUID:        softwareProviderUUID,
		Description: "In-process software provider backed by the Go standard library",
		Vendor:      "SYSTMMS",
		VersionMaj:  0,
		VersionMin:  1,
		VersionRev:  0,
		ID:          requests.ProviderSoftware,
	}, nil
}

// ListOpcodes implements Provider.
func (p *SoftwareProvider) ListOpcodes(operations.ListOpcodes) (operations.ListOpcodesResult, error) {
	opcodes := make([]requests.Opcode, len(softwareOpcodes))
	copy(opcodes, softwareOpcodes)
	return operations.ListOpcodesResult{Opcodes: opcodes}, nil
}

func (p *SoftwareProvider) triple(app auth.ApplicationName, keyName string) keyinfo.KeyTriple {
	return keyinfo.KeyTriple{App: string(app), Provider: requests.ProviderSoftware, KeyName: keyName}
}

// GenerateKey implements Provider. Only RSA key pairs for PKCS#1 v1.5
// signing or encryption are implemented.
func (p *SoftwareProvider) GenerateKey(app auth.ApplicationName, op operations.GenerateKey) (operations.GenerateKeyResult, error) {
	attrs := op.Attributes
	supportedAlg := attrs.Algorithm == operations.AlgorithmRsaPkcs1v15Sign ||
		attrs.Algorithm == operations.AlgorithmRsaPkcs1v15Crypt
	if attrs.KeyType != operations.KeyTypeRsaKeyPair || !supportedAlg {
		p.logger.Error("only PKCS#1 v1.5 RSA key pairs can be generated",
			zap.Stringer("key_type", attrs.KeyType),
			zap.Stringer("algorithm", attrs.Algorithm))
		return operations.GenerateKeyResult{}, requests.UnsupportedOperation
	}
	bits := int(attrs.Bits)
	if bits < 1024 || bits > 4096 {
		return operations.GenerateKeyResult{}, requests.PsaErrorInvalidArgument
	}

	triple := p.triple(app, op.KeyName)

	p.storeMu.Lock()
	defer p.storeMu.Unlock()

	exists, err := p.store.Exists(triple)
	if err != nil {
		return operations.GenerateKeyResult{}, keyinfo.StatusFromError(err)
	}
	if exists {
		return operations.GenerateKeyResult{}, requests.KeyAlreadyExists
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		p.logger.Error("RSA key generation failed", zap.Error(err))
		return operations.GenerateKeyResult{}, requests.PsaErrorGenericError
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return operations.GenerateKeyResult{}, requests.PsaErrorGenericError
	}
	if _, err := p.store.Insert(triple, keyinfo.KeyInfo{ID: der, Attributes: attrs}); err != nil {
		return operations.GenerateKeyResult{}, keyinfo.StatusFromError(err)
	}
	return operations.GenerateKeyResult{}, nil
}

// ImportKey implements Provider. Only RSA public verification keys can
// be imported, as a DER RSAPublicKey sequence.
func (p *SoftwareProvider) ImportKey(app auth.ApplicationName, op operations.ImportKey) (operations.ImportKeyResult, error) {
	attrs := op.Attributes
	if attrs.KeyType != operations.KeyTypeRsaPublicKey || attrs.Algorithm != operations.AlgorithmRsaPkcs1v15Sign {
		p.logger.Error("only RSA public keys for verification can be imported",
			zap.Stringer("key_type", attrs.KeyType),
			zap.Stringer("algorithm", attrs.Algorithm))
		return operations.ImportKeyResult{}, requests.UnsupportedOperation
	}
	if _, err := x509.ParsePKCS1PublicKey(op.Data); err != nil {
		return operations.ImportKeyResult{}, requests.PsaErrorInvalidArgument
	}

	triple := p.triple(app, op.KeyName)

	p.storeMu.Lock()
	defer p.storeMu.Unlock()

	exists, err := p.store.Exists(triple)
	if err != nil {
		return operations.ImportKeyResult{}, keyinfo.StatusFromError(err)
	}
	if exists {
		return operations.ImportKeyResult{}, requests.KeyAlreadyExists
	}
	if _, err := p.store.Insert(triple, keyinfo.KeyInfo{ID: op.Data, Attributes: attrs}); err != nil {
		return operations.ImportKeyResult{}, keyinfo.StatusFromError(err)
	}
	return operations.ImportKeyResult{}, nil
}

// getInfo reads a key-info entry under the store read lock.
func (p *SoftwareProvider) getInfo(triple keyinfo.KeyTriple) (*keyinfo.KeyInfo, error) {
	p.storeMu.RLock()
	defer p.storeMu.RUnlock()

	info, err := p.store.Get(triple)
	if err != nil {
		return nil, keyinfo.StatusFromError(err)
	}
	if info == nil {
		return nil, requests.PsaErrorDoesNotExist
	}
	return info, nil
}

// privateKey decodes the stored PKCS#8 blob of a key pair.
func (p *SoftwareProvider) privateKey(info *keyinfo.KeyInfo) (*rsa.PrivateKey, error) {
	if info.Attributes.KeyType != operations.KeyTypeRsaKeyPair {
		return nil, requests.PsaErrorNotPermitted
	}
	parsed, err := x509.ParsePKCS8PrivateKey(info.ID)
	if err != nil {
		p.logger.Error("stored key material does not parse", zap.Error(err))
		return nil, requests.PsaErrorDataCorrupt
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, requests.PsaErrorDataCorrupt
	}
	return key, nil
}

// publicKey decodes the public half of either stored key shape.
func (p *SoftwareProvider) publicKey(info *keyinfo.KeyInfo) (*rsa.PublicKey, error) {
	switch info.Attributes.KeyType {
	case operations.KeyTypeRsaKeyPair:
		key, err := p.privateKey(info)
		if err != nil {
			return nil, err
		}
		return &key.PublicKey, nil
	case operations.KeyTypeRsaPublicKey:
		key, err := x509.ParsePKCS1PublicKey(info.ID)
		if err != nil {
			p.logger.Error("stored public key does not parse", zap.Error(err))
			return nil, requests.PsaErrorDataCorrupt
		}
		return key, nil
	default:
		return nil, requests.PsaErrorNotPermitted
	}
}

// ExportPublicKey implements Provider.
func (p *SoftwareProvider) ExportPublicKey(app auth.ApplicationName, op operations.ExportPublicKey) (operations.ExportPublicKeyResult, error) {
	info, err := p.getInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.ExportPublicKeyResult{}, err
	}
	key, err := p.publicKey(info)
	if err != nil {
		return operations.ExportPublicKeyResult{}, err
	}
	return operations.ExportPublicKeyResult{Data: x509.MarshalPKCS1PublicKey(key)}, nil
}

// ExportKey implements Provider. The key policy must permit export.
func (p *SoftwareProvider) ExportKey(app auth.ApplicationName, op operations.ExportKey) (operations.ExportKeyResult, error) {
	info, err := p.getInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.ExportKeyResult{}, err
	}
	if !info.Attributes.Usage.Export {
		return operations.ExportKeyResult{}, requests.PsaErrorNotPermitted
	}
	return operations.ExportKeyResult{Data: append([]byte(nil), info.ID...)}, nil
}

// DestroyKey implements Provider.
func (p *SoftwareProvider) DestroyKey(app auth.ApplicationName, op operations.DestroyKey) (operations.DestroyKeyResult, error) {
	triple := p.triple(app, op.KeyName)

	p.storeMu.Lock()
	defer p.storeMu.Unlock()

	removed, err := p.store.Remove(triple)
	if err != nil {
		return operations.DestroyKeyResult{}, keyinfo.StatusFromError(err)
	}
	if removed == nil {
		return operations.DestroyKeyResult{}, requests.PsaErrorDoesNotExist
	}
	return operations.DestroyKeyResult{}, nil
}

// SignHash implements Provider. The digest kind is inferred from the
// hash length.
func (p *SoftwareProvider) SignHash(app auth.ApplicationName, op operations.SignHash) (operations.SignHashResult, error) {
	info, err := p.getInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.SignHashResult{}, err
	}
	if !info.Attributes.Usage.Sign {
		return operations.SignHashResult{}, requests.PsaErrorNotPermitted
	}
	key, err := p.privateKey(info)
	if err != nil {
		return operations.SignHashResult{}, err
	}
	hashKind, err := hashKindForLength(len(op.Hash))
	if err != nil {
		return operations.SignHashResult{}, err
	}
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, hashKind, op.Hash)
	if err != nil {
		p.logger.Error("signing operation failed", zap.Error(err))
		return operations.SignHashResult{}, requests.PsaErrorGenericError
	}
	return operations.SignHashResult{Signature: signature}, nil
}

// VerifyHash implements Provider.
func (p *SoftwareProvider) VerifyHash(app auth.ApplicationName, op operations.VerifyHash) (operations.VerifyHashResult, error) {
	info, err := p.getInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.VerifyHashResult{}, err
	}
	if !info.Attributes.Usage.Verify {
		return operations.VerifyHashResult{}, requests.PsaErrorNotPermitted
	}
	key, err := p.publicKey(info)
	if err != nil {
		return operations.VerifyHashResult{}, err
	}
	hashKind, err := hashKindForLength(len(op.Hash))
	if err != nil {
		return operations.VerifyHashResult{}, err
	}
	if err := rsa.VerifyPKCS1v15(key, hashKind, op.Hash, op.Signature); err != nil {
		return operations.VerifyHashResult{}, requests.PsaErrorInvalidSignature
	}
	return operations.VerifyHashResult{}, nil
}

// AsymmetricEncrypt implements Provider for PKCS#1 v1.5 encryption.
func (p *SoftwareProvider) AsymmetricEncrypt(app auth.ApplicationName, op operations.AsymmetricEncrypt) (operations.AsymmetricEncryptResult, error) {
	info, err := p.getInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.AsymmetricEncryptResult{}, err
	}
	if info.Attributes.Algorithm != operations.AlgorithmRsaPkcs1v15Crypt {
		return operations.AsymmetricEncryptResult{}, requests.UnsupportedOperation
	}
	if !info.Attributes.Usage.Encrypt {
		return operations.AsymmetricEncryptResult{}, requests.PsaErrorNotPermitted
	}
	key, err := p.publicKey(info)
	if err != nil {
		return operations.AsymmetricEncryptResult{}, err
	}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, key, op.Plaintext)
	if err != nil {
		return operations.AsymmetricEncryptResult{}, requests.PsaErrorInvalidArgument
	}
	return operations.AsymmetricEncryptResult{Ciphertext: ciphertext}, nil
}

// AsymmetricDecrypt implements Provider for PKCS#1 v1.5 encryption.
func (p *SoftwareProvider) AsymmetricDecrypt(app auth.ApplicationName, op operations.AsymmetricDecrypt) (operations.AsymmetricDecryptResult, error) {
	info, err := p.getInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.AsymmetricDecryptResult{}, err
	}
	if info.Attributes.Algorithm != operations.AlgorithmRsaPkcs1v15Crypt {
		return operations.AsymmetricDecryptResult{}, requests.UnsupportedOperation
	}
	if !info.Attributes.Usage.Decrypt {
		return operations.AsymmetricDecryptResult{}, requests.PsaErrorNotPermitted
	}
	key, err := p.privateKey(info)
	if err != nil {
		return operations.AsymmetricDecryptResult{}, err
	}
	plaintext, err := rsa.DecryptPKCS1v15(rand.Reader, key, op.Ciphertext)
	if err != nil {
		return operations.AsymmetricDecryptResult{}, requests.PsaErrorInvalidArgument
	}
	return operations.AsymmetricDecryptResult{Plaintext: plaintext}, nil
}

// ListKeys implements Provider.
func (p *SoftwareProvider) ListKeys(app auth.ApplicationName, _ operations.ListKeys) (operations.ListKeysResult, error) {
	p.storeMu.RLock()
	defer p.storeMu.RUnlock()

	triples, err := p.store.List(requests.ProviderSoftware)
	if err != nil {
		return operations.ListKeysResult{}, keyinfo.StatusFromError(err)
	}
	var keys []operations.KeyDescription
	for _, triple := range triples {
		if triple.App != string(app) {
			continue
		}
		info, err := p.store.Get(triple)
		if err != nil {
			return operations.ListKeysResult{}, keyinfo.StatusFromError(err)
		}
		if info == nil {
			continue
		}
		keys = append(keys, operations.KeyDescription{
			Provider:   requests.ProviderSoftware,
			Name:       triple.KeyName,
			Attributes: info.Attributes,
		})
	}
	return operations.ListKeysResult{Keys: keys}, nil
}

// HashCompute implements Provider.
func (p *SoftwareProvider) HashCompute(op operations.HashCompute) (operations.HashComputeResult, error) {
	h, err := newDigest(op.Algorithm)
	if err != nil {
		return operations.HashComputeResult{}, err
	}
	h.Write(op.Input)
	return operations.HashComputeResult{Hash: h.Sum(nil)}, nil
}

// HashCompare implements Provider. The comparison is constant-time.
func (p *SoftwareProvider) HashCompare(op operations.HashCompare) (operations.HashCompareResult, error) {
	h, err := newDigest(op.Algorithm)
	if err != nil {
		return operations.HashCompareResult{}, err
	}
	h.Write(op.Input)
	if subtle.ConstantTimeCompare(h.Sum(nil), op.Hash) != 1 {
		return operations.HashCompareResult{}, requests.PsaErrorInvalidSignature
	}
	return operations.HashCompareResult{}, nil
}

// GenerateRandom implements Provider.
func (p *SoftwareProvider) GenerateRandom(op operations.GenerateRandom) (operations.GenerateRandomResult, error) {
	if op.Size == 0 || op.Size > requests.DefaultMaxBodySize {
		return operations.GenerateRandomResult{}, requests.PsaErrorInvalidArgument
	}
	buf := make([]byte, op.Size)
	if _, err := rand.Read(buf); err != nil {
		return operations.GenerateRandomResult{}, requests.PsaErrorInsufficientEntropy
	}
	return operations.GenerateRandomResult{RandomBytes: buf}, nil
}

func newDigest(alg operations.HashAlgorithm) (hash.Hash, error) {
	switch alg {
	case operations.HashSha256:
		return sha256.New(), nil
	case operations.HashSha384:
		return sha512.New384(), nil
	case operations.HashSha512:
		return sha512.New(), nil
	default:
		return nil, requests.PsaErrorNotSupported
	}
}

func hashKindForLength(n int) (crypto.Hash, error) {
	switch n {
	case sha256.Size:
		return crypto.SHA256, nil
	case sha512.Size384:
		return crypto.SHA384, nil
	case sha512.Size:
		return crypto.SHA512, nil
	default:
		return 0, requests.PsaErrorInvalidArgument
	}
}
