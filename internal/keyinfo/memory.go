// Package keyinfo provides the concrete key-info store back ends: an
// in-memory store for tests and ephemeral deployments, and a SQL store
// for durable ones.
package keyinfo

import (
	"github.com/systmms/keyops/pkg/keyinfo"
	"github.com/systmms/keyops/pkg/requests"
)

// MemoryStore is a map-backed Manager. It is not durable and, like
// every Manager, not thread-safe; the owning provider holds the lock.
type MemoryStore struct {
	entries map[keyinfo.KeyTriple]keyinfo.KeyInfo
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[keyinfo.KeyTriple]keyinfo.KeyInfo)}
}

// Get implements keyinfo.Manager.
func (s *MemoryStore) Get(triple keyinfo.KeyTriple) (*keyinfo.KeyInfo, error) {
	info, ok := s.entries[triple]
	if !ok {
		return nil, nil
	}
	return cloneInfo(info), nil
}

// Insert implements keyinfo.Manager.
func (s *MemoryStore) Insert(triple keyinfo.KeyTriple, info keyinfo.KeyInfo) (*keyinfo.KeyInfo, error) {
	prev, had := s.entries[triple]
	s.entries[triple] = *cloneInfo(info)
	if !had {
		return nil, nil
	}
	return cloneInfo(prev), nil
}

// Remove implements keyinfo.Manager.
func (s *MemoryStore) Remove(triple keyinfo.KeyTriple) (*keyinfo.KeyInfo, error) {
	prev, had := s.entries[triple]
	if !had {
		return nil, nil
	}
	delete(s.entries, triple)
	return cloneInfo(prev), nil
}

// Exists implements keyinfo.Manager.
func (s *MemoryStore) Exists(triple keyinfo.KeyTriple) (bool, error) {
	_, ok := s.entries[triple]
	return ok, nil
}

// List implements keyinfo.Manager.
func (s *MemoryStore) List(provider requests.ProviderID) ([]keyinfo.KeyTriple, error) {
	var triples []keyinfo.KeyTriple
	for triple := range s.entries {
		if triple.Provider == provider {
			triples = append(triples, triple)
		}
	}
	return triples, nil
}

func cloneInfo(info keyinfo.KeyInfo) *keyinfo.KeyInfo {
	out := keyinfo.KeyInfo{
		ID:         append([]byte(nil), info.ID...),
		Attributes: info.Attributes,
	}
	return &out
}
