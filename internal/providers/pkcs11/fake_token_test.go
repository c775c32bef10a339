package pkcs11

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"
)

// fakeToken is an in-memory PKCS #11 token. It stores objects as the
// attribute templates they were created with, tracks sessions and
// login/logout primitive calls, and lets tests inject failures.
type fakeToken struct {
	mu sync.Mutex

	nextObject  pkcs11.ObjectHandle
	objects     map[pkcs11.ObjectHandle]map[uint][]byte
	nextSession pkcs11.SessionHandle
	sessions    map[pkcs11.SessionHandle]bool
	findPending map[pkcs11.SessionHandle][]pkcs11.ObjectHandle

	loginCalls  int
	logoutCalls int
	loggedIn    bool

	openSessionErr error
	findInitErr    error
	generateErr    error
	createErr      error
	destroyErr     error
	signErr        error
	verifyErr      error
	loginErr       error

	signature []byte
}

func newFakeToken() *fakeToken {
	return &fakeToken{
		objects:     make(map[pkcs11.ObjectHandle]map[uint][]byte),
		sessions:    make(map[pkcs11.SessionHandle]bool),
		findPending: make(map[pkcs11.SessionHandle][]pkcs11.ObjectHandle),
		signature:   []byte("fake-signature"),
	}
}

// addObject seeds a token object from an attribute template and returns
// its handle.
func (f *fakeToken) addObject(temp []*pkcs11.Attribute) pkcs11.ObjectHandle {
	f.nextObject++
	attrs := make(map[uint][]byte, len(temp))
	for _, a := range temp {
		attrs[a.Type] = append([]byte(nil), a.Value...)
	}
	f.objects[f.nextObject] = attrs
	return f.nextObject
}

func (f *fakeToken) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeToken) openSessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, open := range f.sessions {
		if open {
			n++
		}
	}
	return n
}

func (f *fakeToken) OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openSessionErr != nil {
		return 0, f.openSessionErr
	}
	f.nextSession++
	f.sessions[f.nextSession] = true
	return f.nextSession, nil
}

func (f *fakeToken) CloseSession(sh pkcs11.SessionHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sessions[sh] {
		return pkcs11.Error(pkcs11.CKR_SESSION_HANDLE_INVALID)
	}
	f.sessions[sh] = false
	return nil
}

func (f *fakeToken) Login(sh pkcs11.SessionHandle, userType uint, pin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return f.loginErr
	}
	f.loginCalls++
	f.loggedIn = true
	return nil
}

func (f *fakeToken) Logout(sh pkcs11.SessionHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	f.loggedIn = false
	return nil
}

func (f *fakeToken) GenerateKeyPair(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, public, private []*pkcs11.Attribute) (pkcs11.ObjectHandle, pkcs11.ObjectHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.generateErr != nil {
		return 0, 0, f.generateErr
	}
	pub := f.addObject(append(public, pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PUBLIC_KEY)))
	priv := f.addObject(append(private, pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY)))
	return pub, priv, nil
}

func (f *fakeToken) CreateObject(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) (pkcs11.ObjectHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	return f.addObject(temp), nil
}

func (f *fakeToken) DestroyObject(sh pkcs11.SessionHandle, oh pkcs11.ObjectHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyErr != nil {
		return f.destroyErr
	}
	if _, ok := f.objects[oh]; !ok {
		return pkcs11.Error(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	delete(f.objects, oh)
	return nil
}

func (f *fakeToken) FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findInitErr != nil {
		return f.findInitErr
	}
	var matches []pkcs11.ObjectHandle
	for handle, attrs := range f.objects {
		ok := true
		for _, want := range temp {
			if !bytes.Equal(attrs[want.Type], want.Value) {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, handle)
		}
	}
	f.findPending[sh] = matches
	return nil
}

func (f *fakeToken) FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pending := f.findPending[sh]
	if len(pending) > max {
		f.findPending[sh] = pending[max:]
		return pending[:max], true, nil
	}
	f.findPending[sh] = nil
	return pending, false, nil
}

func (f *fakeToken) FindObjectsFinal(sh pkcs11.SessionHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.findPending, sh)
	return nil
}

func (f *fakeToken) GetAttributeValue(sh pkcs11.SessionHandle, o pkcs11.ObjectHandle, a []*pkcs11.Attribute) ([]*pkcs11.Attribute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attrs, ok := f.objects[o]
	if !ok {
		return nil, pkcs11.Error(pkcs11.CKR_OBJECT_HANDLE_INVALID)
	}
	out := make([]*pkcs11.Attribute, 0, len(a))
	for _, want := range a {
		value, ok := attrs[want.Type]
		if !ok {
			return nil, pkcs11.Error(pkcs11.CKR_ATTRIBUTE_TYPE_INVALID)
		}
		out = append(out, &pkcs11.Attribute{Type: want.Type, Value: append([]byte(nil), value...)})
	}
	return out, nil
}

func (f *fakeToken) SignInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, o pkcs11.ObjectHandle) error {
	return nil
}

func (f *fakeToken) Sign(sh pkcs11.SessionHandle, message []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signErr != nil {
		return nil, f.signErr
	}
	return append([]byte(nil), f.signature...), nil
}

func (f *fakeToken) VerifyInit(sh pkcs11.SessionHandle, m []*pkcs11.Mechanism, key pkcs11.ObjectHandle) error {
	return nil
}

func (f *fakeToken) Verify(sh pkcs11.SessionHandle, data []byte, signature []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyErr
}

func (f *fakeToken) GenerateRandom(sh pkcs11.SessionHandle, length int) ([]byte, error) {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = byte(i)
	}
	return buf, nil
}

// String helps failed assertions print something readable.
func (f *fakeToken) String() string {
	return fmt.Sprintf("fakeToken(%d objects)", len(f.objects))
}
