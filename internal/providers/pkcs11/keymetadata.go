package pkcs11

import (
	"crypto/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/systmms/keyops/pkg/keyinfo"
	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// keyIDSize is the length of the opaque identifier stored in the token
// object's CKA_ID attribute.
const keyIDSize = 4

type keyID [keyIDSize]byte

// orderedLocks returns the provider's two read-write locks in the order
// in which they must *always* be taken: key-info store first, local IDs
// second. Acquiring them any other way can deadlock; every method goes
// through this helper and never touches the lock fields directly.
func (p *Provider) orderedLocks() (*sync.RWMutex, *sync.RWMutex) {
	return &p.storeMu, &p.localMu
}

// getKeyInfo looks up the opaque identifier and attributes stored for a
// key triple, under the store read lock.
func (p *Provider) getKeyInfo(triple keyinfo.KeyTriple) (keyID, operations.KeyAttributes, error) {
	storeLock, _ := p.orderedLocks()
	storeLock.RLock()
	defer storeLock.RUnlock()

	return p.getKeyInfoLocked(triple)
}

// getKeyInfoLocked is getKeyInfo for callers already holding the store
// lock.
func (p *Provider) getKeyInfoLocked(triple keyinfo.KeyTriple) (keyID, operations.KeyAttributes, error) {
	var id keyID
	info, err := p.store.Get(triple)
	if err != nil {
		p.logger.Error("key info manager error", zap.Error(err))
		return id, operations.KeyAttributes{}, requests.KeyInfoManagerError
	}
	if info == nil {
		return id, operations.KeyAttributes{}, requests.PsaErrorDoesNotExist
	}
	if len(info.ID) != keyIDSize {
		p.logger.Error("stored key ID is not valid", zap.Int("length", len(info.ID)))
		return id, operations.KeyAttributes{}, requests.KeyInfoManagerError
	}
	copy(id[:], info.ID)
	return id, info.Attributes, nil
}

// createKeyID draws a fresh opaque identifier, distinct from every one
// in the local ID set, and records the new mapping in both the store
// and the set. Runs under both write locks.
func (p *Provider) createKeyID(triple keyinfo.KeyTriple, attrs operations.KeyAttributes) (keyID, error) {
	storeLock, localLock := p.orderedLocks()
	storeLock.Lock()
	defer storeLock.Unlock()
	localLock.Lock()
	defer localLock.Unlock()

	var id keyID
	for {
		if _, err := rand.Read(id[:]); err != nil {
			p.logger.Error("could not draw a key ID", zap.Error(err))
			return id, requests.PsaErrorInsufficientEntropy
		}
		if _, taken := p.localIDs[id]; !taken {
			break
		}
	}

	prev, err := p.store.Insert(triple, keyinfo.KeyInfo{ID: id[:], Attributes: attrs})
	if err != nil {
		p.logger.Error("key info manager error", zap.Error(err))
		return id, requests.KeyInfoManagerError
	}
	if prev != nil {
		p.logger.Warn("overwriting key triple mapping", zap.Stringer("key", triple))
	}
	p.localIDs[id] = struct{}{}
	return id, nil
}

// removeKeyID drops the triple from the store and its identifier from
// the local ID set. Runs under both write locks.
func (p *Provider) removeKeyID(triple keyinfo.KeyTriple) (keyID, error) {
	storeLock, localLock := p.orderedLocks()
	storeLock.Lock()
	defer storeLock.Unlock()
	localLock.Lock()
	defer localLock.Unlock()

	var id keyID
	removed, err := p.store.Remove(triple)
	if err != nil {
		p.logger.Error("key info manager error", zap.Error(err))
		return id, requests.KeyInfoManagerError
	}
	if removed == nil {
		p.logger.Error("did not find expected key info", zap.Stringer("key", triple))
		return id, requests.PsaErrorDoesNotExist
	}
	if len(removed.ID) != keyIDSize {
		p.logger.Error("key info contained invalid key ID", zap.Int("length", len(removed.ID)))
		return id, requests.PsaErrorDataCorrupt
	}
	copy(id[:], removed.ID)
	delete(p.localIDs, id)
	return id, nil
}

// keyInfoExists reports whether the triple is mapped, under the store
// read lock.
func (p *Provider) keyInfoExists(triple keyinfo.KeyTriple) (bool, error) {
	storeLock, _ := p.orderedLocks()
	storeLock.RLock()
	defer storeLock.RUnlock()

	exists, err := p.store.Exists(triple)
	if err != nil {
		p.logger.Error("key info manager error", zap.Error(err))
		return false, requests.KeyInfoManagerError
	}
	return exists, nil
}
