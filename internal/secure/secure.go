// Package secure provides memory-safe handling of sensitive material,
// wrapping the memguard library. The service uses it for the PKCS#11
// user PIN: encrypted at rest in memory, protected from swapping via
// mlock, and wiped when destroyed.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds a secret in a memguard enclave. The zero value is not
// usable; build one with NewBuffer.
type Buffer struct {
	enclave   *memguard.Enclave
	mu        sync.RWMutex
	destroyed bool
}

// NewBuffer copies the secret into a protected memory region. The
// caller keeps ownership of the input slice and should zero it.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{enclave: memguard.NewEnclave(data)}
}

// NewBufferFromString copies a string secret into a protected region.
func NewBufferFromString(s string) *Buffer {
	return NewBuffer([]byte(s))
}

// Open decrypts the secret into a locked buffer. The caller must call
// Destroy on the returned buffer once done with the plaintext.
func (b *Buffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return b.enclave.Open()
}

// Destroy marks the buffer as destroyed. Idempotent; after Destroy,
// Open returns an empty buffer. Complete cleanup of all memguard state
// happens via memguard.Purge at process exit.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}
