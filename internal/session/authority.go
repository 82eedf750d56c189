// Package session implements the credential-gated realtime side of docgate:
// issuing session credentials after a successful upload, admitting at most one
// live WebSocket per credential, and relaying question/answer messages.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Authority owns the set of authorized session credentials. A credential that
// was never issued here is never authorized.
//
// Policy: a credential stays authorized after its live channel closes, so the
// same client may reconnect later. Only Revoke removes authorization.
type Authority struct {
	mu         sync.Mutex
	authorized map[string]struct{}
}

// NewAuthority creates an empty credential registry.
func NewAuthority() *Authority {
	return &Authority{authorized: make(map[string]struct{})}
}

// Issue generates a fresh unguessable credential, records it as authorized
// and returns it. Safe for concurrent use; every call yields a distinct token.
func (a *Authority) Issue() string {
	token := uuid.NewString()
	a.mu.Lock()
	a.authorized[token] = struct{}{}
	a.mu.Unlock()
	return token
}

// Authorized atomically reports whether token was issued and not revoked.
func (a *Authority) Authorized(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.authorized[token]
	return ok
}

// Revoke removes a credential. The service never calls this on its own; it is
// the hook an external cleanup job would use.
func (a *Authority) Revoke(token string) {
	a.mu.Lock()
	delete(a.authorized, token)
	a.mu.Unlock()
}
