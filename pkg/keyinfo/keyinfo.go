// Package keyinfo defines the durable mapping between tenant-scoped
// logical key names and opaque provider-local key identifiers.
//
// A Manager implementation is not required to be thread-safe: the
// owning provider wraps it in a read-write lock and is responsible for
// acquisition order.
package keyinfo

import (
	"fmt"

	"github.com/systmms/keyops/pkg/operations"
	"github.com/systmms/keyops/pkg/requests"
)

// KeyTriple is the primary key of the store. Two triples are equal iff
// all three components are equal; key names are only unique within one
// (application, provider) pair.
type KeyTriple struct {
	App      string
	Provider requests.ProviderID
	KeyName  string
}

func (t KeyTriple) String() string {
	return fmt.Sprintf("%s/%s/%s", t.App, t.Provider, t.KeyName)
}

// KeyInfo is the value stored under a key triple. ID is an opaque
// provider-local identifier; its shape and length are the owning
// provider's business.
type KeyInfo struct {
	ID         []byte
	Attributes operations.KeyAttributes
}

// Manager is the abstract key-info store. Implementations must be
// durable across process restarts; a crash between insert and commit
// leaves the insert either fully visible or fully absent.
type Manager interface {
	// Get returns the info stored under the triple, or nil if the triple
	// is unmapped.
	Get(triple KeyTriple) (*KeyInfo, error)
	// Insert stores info under the triple and returns the previously
	// stored value, if any.
	Insert(triple KeyTriple, info KeyInfo) (*KeyInfo, error)
	// Remove deletes the triple's mapping and returns the removed value,
	// if any.
	Remove(triple KeyTriple) (*KeyInfo, error)
	// Exists reports whether the triple is mapped.
	Exists(triple KeyTriple) (bool, error)
	// List enumerates every triple stored for the given provider.
	List(provider requests.ProviderID) ([]KeyTriple, error)
}

// StatusFromError folds a store backend failure into the response
// status taxonomy.
func StatusFromError(err error) requests.ResponseStatus {
	if err == nil {
		return requests.Success
	}
	return requests.KeyInfoManagerError
}
