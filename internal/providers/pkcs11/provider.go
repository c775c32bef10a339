package pkcs11

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"github.com/miekg/pkcs11"
	"go.uber.org/zap"

	"github.com/systmms/keyops/internal/auth"
	"github.com/systmms/keyops/internal/providers"
	"github.com/systmms/keyops/internal/secure"
	"github.com/systmms/keyops/pkg/keyinfo"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

var providerUUID = uuid.MustParse("30e39502-eba6-4d60-a4af-c518b7f5e38f")

var supportedOpcodes = []requests.Opcode{
	requests.OpListOpcodes,
	requests.OpGenerateKey,
	requests.OpImportKey,
	requests.OpExportPublicKey,
	requests.OpDestroyKey,
	requests.OpSignHash,
	requests.OpVerifyHash,
	requests.OpListKeys,
	requests.OpGenerateRandom,
}

// publicExponent is the fixed public exponent of every generated RSA
// key pair, 0x010001.
var publicExponent = []byte{0x01, 0x00, 0x01}

// rsaPublicKey is the DER shape used for import and export:
//
//	RSAPublicKey ::= SEQUENCE {
//	    modulus            INTEGER,  -- n
//	    publicExponent     INTEGER   -- e
//	}
type rsaPublicKey struct {
	Modulus        *big.Int
	PublicExponent *big.Int
}

// keyPairHalf selects which half of a key pair an object search targets.
type keyPairHalf int

const (
	anyKey keyPairHalf = iota
	publicKey
	privateKey
)

// Provider is the PKCS #11 back end. It owns the token context bound to
// one slot, the shared key-info store behind a read-write lock, the
// local set of opaque identifiers in use, and the counter of sessions
// currently requiring authentication.
type Provider struct {
	providers.Base

	token      Token
	slotNumber uint
	userPin    *secure.Buffer

	store   keyinfo.Manager
	storeMu sync.RWMutex

	localIDs map[keyID]struct{}
	localMu  sync.RWMutex

	countMu        sync.Mutex
	loggedSessions uint64

	logger *zap.Logger
}

// Config configures the PKCS #11 provider.
type Config struct {
	// Token is the PKCS #11 binding, already initialised. Required.
	Token Token
	// SlotNumber designates the token socket the provider is bound to.
	SlotNumber uint
	// UserPin holds the CKU_USER PIN; nil for tokens that need none.
	UserPin *secure.Buffer
	// Store is the shared key-info manager. Required.
	Store keyinfo.Manager
	// Logger receives operational logging. Required.
	Logger *zap.Logger
}

// Load dynamically loads the PKCS #11 module at libraryPath, initialises
// it (the binding passes CKF_OS_LOCKING_OK with null mutex callbacks)
// and builds the provider against it.
func Load(libraryPath string, cfg Config) (*Provider, error) {
	ctx := pkcs11.New(libraryPath)
	if ctx == nil {
		return nil, fmt.Errorf("could not load PKCS #11 library %q", libraryPath)
	}
	if err := ctx.Initialize(); err != nil {
		return nil, fmt.Errorf("initialising PKCS #11 library %q: %w", libraryPath, err)
	}
	cfg.Token = ctx
	return New(cfg)
}

// New validates the configuration, builds the provider and reconciles
// the key-info store against the token: triples whose object is present
// seed the local ID set, triples whose object is gone are removed, and
// any other token error aborts construction.
func New(cfg Config) (*Provider, error) {
	if cfg.Token == nil {
		return nil, errors.New("pkcs11 provider: token binding is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("pkcs11 provider: key-info store is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("pkcs11 provider: logger is required")
	}

	p := &Provider{
		token:      cfg.Token,
		slotNumber: cfg.SlotNumber,
		userPin:    cfg.UserPin,
		store:      cfg.Store,
		localIDs:   make(map[keyID]struct{}),
		logger:     cfg.Logger.Named("pkcs11-provider"),
	}
	if err := p.reconcile(); err != nil {
		return nil, err
	}
	return p, nil
}

// reconcile walks every stored triple for this provider and checks it
// against the token. It holds both write locks for the whole scan;
// removals batch at the end to keep iteration stable.
func (p *Provider) reconcile() error {
	storeLock, localLock := p.orderedLocks()
	storeLock.Lock()
	defer storeLock.Unlock()
	localLock.Lock()
	defer localLock.Unlock()

	triples, err := p.store.List(requests.ProviderPkcs11)
	if err != nil {
		return fmt.Errorf("key info manager error: %w", err)
	}
	if len(triples) == 0 {
		return nil
	}

	session, err := p.openSession(readOnlySession)
	if err != nil {
		return fmt.Errorf("opening reconciliation session: %w", err)
	}
	defer session.close()

	var toRemove []keyinfo.KeyTriple
	for _, triple := range triples {
		id, _, err := p.getKeyInfoLocked(triple)
		if err != nil {
			p.logger.Error("error getting the key ID for triple, continuing",
				zap.Stringer("key", triple), zap.Error(err))
			continue
		}
		_, err = p.findKey(session, id, anyKey)
		switch {
		case err == nil:
			p.logger.Warn("key found in the PKCS #11 library, adding it",
				zap.Stringer("key", triple))
			p.localIDs[id] = struct{}{}
		case errors.Is(err, requests.PsaErrorDoesNotExist):
			p.logger.Warn("key not found in the PKCS #11 library, deleting it",
				zap.Stringer("key", triple))
			toRemove = append(toRemove, triple)
		default:
			p.logger.Error("error finding key objects", zap.Error(err))
			return fmt.Errorf("reconciling key %s: %w", triple, err)
		}
	}
	for _, triple := range toRemove {
		if _, err := p.store.Remove(triple); err != nil {
			return fmt.Errorf("key info manager error: %w", err)
		}
	}
	return nil
}

// findKey locates the object handle carrying the opaque identifier,
// optionally narrowed to one half of the key pair. It returns
// PsaErrorDoesNotExist for an empty result and PsaErrorHardwareFailure
// for transport errors.
func (p *Provider) findKey(s *session, id keyID, half keyPairHalf) (pkcs11.ObjectHandle, error) {
	handles, err := p.findKeys(s, id, half, 1)
	if err != nil {
		return 0, err
	}
	if len(handles) == 0 {
		return 0, requests.PsaErrorDoesNotExist
	}
	return handles[0], nil
}

// findKeys runs one find_objects_init / find_objects / find_objects_final
// cycle and returns up to max handles matching the template.
func (p *Provider) findKeys(s *session, id keyID, half keyPairHalf, max int) ([]pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_ID, id[:]),
	}
	switch half {
	case publicKey:
		template = append(template, pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY))
	case privateKey:
		template = append(template, pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY))
	case anyKey:
	}

	if err := p.token.FindObjectsInit(s.handle, template); err != nil {
		p.logger.Error("object enumeration init failed", zap.Error(err))
		return nil, requests.PsaErrorHardwareFailure
	}
	handles, _, err := p.token.FindObjects(s.handle, max)
	if err != nil {
		p.logger.Error("finding objects failed", zap.Error(err))
		// Best effort; the enumeration is already broken.
		_ = p.token.FindObjectsFinal(s.handle)
		return nil, requests.PsaErrorHardwareFailure
	}
	if err := p.token.FindObjectsFinal(s.handle); err != nil {
		p.logger.Error("object enumeration final failed", zap.Error(err))
		return nil, requests.PsaErrorHardwareFailure
	}
	return handles, nil
}

// Describe implements the provider capability.
func (p *Provider) Describe() (operations.ProviderInfo, error) {
	return operations.ProviderInfo{
		UUID:        providerUUID,
		Description: "PKCS #11 provider, interfacing with a PKCS #11 library",
		Vendor:      "OASIS Standard",
		VersionMaj:  0,
		VersionMin:  1,
		VersionRev:  0,
		ID:          requests.ProviderPkcs11,
	}, nil
}

// ListOpcodes implements the provider capability.
func (p *Provider) ListOpcodes(operations.ListOpcodes) (operations.ListOpcodesResult, error) {
	opcodes := make([]requests.Opcode, len(supportedOpcodes))
	copy(opcodes, supportedOpcodes)
	return operations.ListOpcodesResult{Opcodes: opcodes}, nil
}

func (p *Provider) triple(app auth.ApplicationName, keyName string) keyinfo.KeyTriple {
	return keyinfo.KeyTriple{App: string(app), Provider: requests.ProviderPkcs11, KeyName: keyName}
}

// GenerateKey implements the provider capability. Only RSA key pairs
// bound to PKCS#1 v1.5 signing are implemented.
func (p *Provider) GenerateKey(app auth.ApplicationName, op operations.GenerateKey) (operations.GenerateKeyResult, error) {
	attrs := op.Attributes
	if attrs.KeyType != operations.KeyTypeRsaKeyPair || attrs.Algorithm != operations.AlgorithmRsaPkcs1v15Sign {
		p.logger.Error("only RSA key pairs for signing and verifying can be generated",
			zap.Stringer("key_type", attrs.KeyType),
			zap.Stringer("algorithm", attrs.Algorithm))
		return operations.GenerateKeyResult{}, requests.UnsupportedOperation
	}

	triple := p.triple(app, op.KeyName)
	exists, err := p.keyInfoExists(triple)
	if err != nil {
		return operations.GenerateKeyResult{}, err
	}
	if exists {
		return operations.GenerateKeyResult{}, requests.KeyAlreadyExists
	}
	id, err := p.createKeyID(triple, attrs)
	if err != nil {
		return operations.GenerateKeyResult{}, err
	}

	privTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_SIGN, true),
		pkcs11.NewAttribute(pkcs11.CKA_ID, id[:]),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
	}
	pubTemplate := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_ID, id[:]),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, publicExponent),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS_BITS, uint(attrs.Bits)),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, false),
	}
	mechanism := []*pkcs11.Mechanism{
		pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS_KEY_PAIR_GEN, nil),
	}

	session, err := p.openSession(readWriteSession)
	if err != nil {
		p.logger.Error("error creating a new session", zap.Error(err))
		if _, rmErr := p.removeKeyID(triple); rmErr != nil {
			return operations.GenerateKeyResult{}, rmErr
		}
		return operations.GenerateKeyResult{}, err
	}
	defer session.close()

	p.logger.Debug("generating RSA key pair", zap.Uint("session", uint(session.handle)))

	if _, _, err := p.token.GenerateKeyPair(session.handle, mechanism, pubTemplate, privTemplate); err != nil {
		p.logger.Error("generate key pair operation failed", zap.Error(err))
		if _, rmErr := p.removeKeyID(triple); rmErr != nil {
			return operations.GenerateKeyResult{}, rmErr
		}
		return operations.GenerateKeyResult{}, requests.PsaErrorHardwareFailure
	}
	return operations.GenerateKeyResult{}, nil
}

// ImportKey implements the provider capability. Only RSA public keys
// for PKCS#1 v1.5 verification can be imported, as a DER RSAPublicKey
// sequence.
func (p *Provider) ImportKey(app auth.ApplicationName, op operations.ImportKey) (operations.ImportKeyResult, error) {
	attrs := op.Attributes
	if attrs.KeyType != operations.KeyTypeRsaPublicKey || attrs.Algorithm != operations.AlgorithmRsaPkcs1v15Sign {
		p.logger.Error("only RSA public keys for verifying can be imported",
			zap.Stringer("key_type", attrs.KeyType),
			zap.Stringer("algorithm", attrs.Algorithm))
		return operations.ImportKeyResult{}, requests.UnsupportedOperation
	}

	var pub rsaPublicKey
	if rest, err := asn1.Unmarshal(op.Data, &pub); err != nil || len(rest) != 0 {
		p.logger.Error("key data is not a DER RSAPublicKey sequence")
		return operations.ImportKeyResult{}, requests.PsaErrorInvalidArgument
	}

	triple := p.triple(app, op.KeyName)
	exists, err := p.keyInfoExists(triple)
	if err != nil {
		return operations.ImportKeyResult{}, err
	}
	if exists {
		return operations.ImportKeyResult{}, requests.KeyAlreadyExists
	}
	id, err := p.createKeyID(triple, attrs)
	if err != nil {
		return operations.ImportKeyResult{}, err
	}

	// Both integers go to the token as unsigned big-endian bytes with
	// no leading sign byte, which is what big.Int.Bytes produces.
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_RSA),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, true),
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, pub.Modulus.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, pub.PublicExponent.Bytes()),
		pkcs11.NewAttribute(pkcs11.CKA_VERIFY, true),
		pkcs11.NewAttribute(pkcs11.CKA_ID, id[:]),
	}

	session, err := p.openSession(readWriteSession)
	if err != nil {
		p.logger.Error("error creating a new session", zap.Error(err))
		if _, rmErr := p.removeKeyID(triple); rmErr != nil {
			return operations.ImportKeyResult{}, rmErr
		}
		return operations.ImportKeyResult{}, err
	}
	defer session.close()

	p.logger.Debug("importing RSA public key", zap.Uint("session", uint(session.handle)))

	if _, err := p.token.CreateObject(session.handle, template); err != nil {
		p.logger.Error("import operation failed", zap.Error(err))
		if _, rmErr := p.removeKeyID(triple); rmErr != nil {
			return operations.ImportKeyResult{}, rmErr
		}
		return operations.ImportKeyResult{}, requests.PsaErrorHardwareFailure
	}
	return operations.ImportKeyResult{}, nil
}

// ExportPublicKey implements the provider capability, serialising the
// token object's modulus and public exponent as a DER RSAPublicKey
// sequence.
func (p *Provider) ExportPublicKey(app auth.ApplicationName, op operations.ExportPublicKey) (operations.ExportPublicKeyResult, error) {
	id, _, err := p.getKeyInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.ExportPublicKeyResult{}, err
	}

	session, err := p.openSession(readOnlySession)
	if err != nil {
		return operations.ExportPublicKeyResult{}, err
	}
	defer session.close()

	p.logger.Debug("exporting RSA public key", zap.Uint("session", uint(session.handle)))

	key, err := p.findKey(session, id, publicKey)
	if err != nil {
		return operations.ExportPublicKeyResult{}, err
	}

	// The binding probes the attribute lengths and sizes the buffers
	// itself, so a single call retrieves both values.
	attrs, err := p.token.GetAttributeValue(session.handle, key, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_MODULUS, nil),
		pkcs11.NewAttribute(pkcs11.CKA_PUBLIC_EXPONENT, nil),
	})
	if err != nil || len(attrs) != 2 {
		p.logger.Error("failed to read attributes from public key", zap.Error(err))
		return operations.ExportPublicKeyResult{}, requests.PsaErrorCommunicationFailure
	}

	pub := rsaPublicKey{
		Modulus:        new(big.Int).SetBytes(attrs[0].Value),
		PublicExponent: new(big.Int).SetBytes(attrs[1].Value),
	}
	der, err := asn1.Marshal(pub)
	if err != nil {
		p.logger.Error("could not serialise key elements", zap.Error(err))
		return operations.ExportPublicKeyResult{}, requests.PsaErrorCommunicationFailure
	}
	return operations.ExportPublicKeyResult{Data: der}, nil
}

// DestroyKey implements the provider capability. Every object handle
// carrying the opaque identifier is enumerated and destroyed, so both
// halves of a key pair go in one pass. All-or-nothing is not
// guaranteed: a failure after the first destroy leaves the store and
// the token disagreeing until the next startup reconciliation.
func (p *Provider) DestroyKey(app auth.ApplicationName, op operations.DestroyKey) (operations.DestroyKeyResult, error) {
	triple := p.triple(app, op.KeyName)
	id, _, err := p.getKeyInfo(triple)
	if err != nil {
		return operations.DestroyKeyResult{}, err
	}

	session, err := p.openSession(readWriteSession)
	if err != nil {
		return operations.DestroyKeyResult{}, err
	}
	defer session.close()

	p.logger.Debug("destroying key objects", zap.Uint("session", uint(session.handle)))

	handles, err := p.findKeys(session, id, anyKey, 16)
	if err != nil {
		p.logger.Error("error enumerating key objects", zap.Error(err))
		return operations.DestroyKeyResult{}, err
	}
	if len(handles) == 0 {
		return operations.DestroyKeyResult{}, requests.PsaErrorDoesNotExist
	}
	for _, handle := range handles {
		if err := p.token.DestroyObject(session.handle, handle); err != nil {
			p.logger.Error("failed to destroy key object", zap.Error(err))
			return operations.DestroyKeyResult{}, requests.PsaErrorGenericError
		}
	}

	if _, err := p.removeKeyID(triple); err != nil {
		return operations.DestroyKeyResult{}, err
	}
	return operations.DestroyKeyResult{}, nil
}

// SignHash implements the provider capability with the CKM_RSA_PKCS
// mechanism.
func (p *Provider) SignHash(app auth.ApplicationName, op operations.SignHash) (operations.SignHashResult, error) {
	id, _, err := p.getKeyInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.SignHashResult{}, err
	}

	mechanism := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}

	session, err := p.openSession(readWriteSession)
	if err != nil {
		return operations.SignHashResult{}, err
	}
	defer session.close()

	p.logger.Debug("asymmetric sign", zap.Uint("session", uint(session.handle)))

	key, err := p.findKey(session, id, privateKey)
	if err != nil {
		return operations.SignHashResult{}, err
	}

	if err := p.token.SignInit(session.handle, mechanism, key); err != nil {
		p.logger.Error("failed to initialize signing operation", zap.Error(err))
		return operations.SignHashResult{}, requests.PsaErrorGenericError
	}
	signature, err := p.token.Sign(session.handle, op.Hash)
	if err != nil {
		p.logger.Error("failed to execute signing operation", zap.Error(err))
		return operations.SignHashResult{}, requests.PsaErrorGenericError
	}
	return operations.SignHashResult{Signature: signature}, nil
}

// VerifyHash implements the provider capability with the CKM_RSA_PKCS
// mechanism. A CKR_SIGNATURE_INVALID from the token maps to
// PsaErrorInvalidSignature; any other token error is generic.
func (p *Provider) VerifyHash(app auth.ApplicationName, op operations.VerifyHash) (operations.VerifyHashResult, error) {
	id, _, err := p.getKeyInfo(p.triple(app, op.KeyName))
	if err != nil {
		return operations.VerifyHashResult{}, err
	}

	mechanism := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)}

	session, err := p.openSession(readWriteSession)
	if err != nil {
		return operations.VerifyHashResult{}, err
	}
	defer session.close()

	p.logger.Debug("asymmetric verify", zap.Uint("session", uint(session.handle)))

	key, err := p.findKey(session, id, publicKey)
	if err != nil {
		return operations.VerifyHashResult{}, err
	}

	if err := p.token.VerifyInit(session.handle, mechanism, key); err != nil {
		p.logger.Error("failed to initialize verify operation", zap.Error(err))
		return operations.VerifyHashResult{}, requests.PsaErrorGenericError
	}
	if err := p.token.Verify(session.handle, op.Hash, op.Signature); err != nil {
		if isTokenError(err, pkcs11.CKR_SIGNATURE_INVALID) {
			p.logger.Debug("signature verification failed")
			return operations.VerifyHashResult{}, requests.PsaErrorInvalidSignature
		}
		p.logger.Error("failed to execute verify operation", zap.Error(err))
		return operations.VerifyHashResult{}, requests.PsaErrorGenericError
	}
	return operations.VerifyHashResult{}, nil
}

// ListKeys implements the provider capability from the key-info store
// alone; the token is not consulted.
func (p *Provider) ListKeys(app auth.ApplicationName, _ operations.ListKeys) (operations.ListKeysResult, error) {
	storeLock, _ := p.orderedLocks()
	storeLock.RLock()
	defer storeLock.RUnlock()

	triples, err := p.store.List(requests.ProviderPkcs11)
	if err != nil {
		p.logger.Error("key info manager error", zap.Error(err))
		return operations.ListKeysResult{}, requests.KeyInfoManagerError
	}
	var keys []operations.KeyDescription
	for _, triple := range triples {
		if triple.App != string(app) {
			continue
		}
		_, attrs, err := p.getKeyInfoLocked(triple)
		if err != nil {
			return operations.ListKeysResult{}, err
		}
		keys = append(keys, operations.KeyDescription{
			Provider:   requests.ProviderPkcs11,
			Name:       triple.KeyName,
			Attributes: attrs,
		})
	}
	return operations.ListKeysResult{Keys: keys}, nil
}

// GenerateRandom implements the provider capability through the token's
// random generator.
func (p *Provider) GenerateRandom(op operations.GenerateRandom) (operations.GenerateRandomResult, error) {
	if op.Size == 0 || op.Size > requests.DefaultMaxBodySize {
		return operations.GenerateRandomResult{}, requests.PsaErrorInvalidArgument
	}

	session, err := p.openSession(readOnlySession)
	if err != nil {
		return operations.GenerateRandomResult{}, err
	}
	defer session.close()

	buf, err := p.token.GenerateRandom(session.handle, int(op.Size))
	if err != nil {
		p.logger.Error("random generation failed", zap.Error(err))
		return operations.GenerateRandomResult{}, requests.PsaErrorHardwareFailure
	}
	return operations.GenerateRandomResult{RandomBytes: buf}, nil
}
