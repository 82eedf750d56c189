package session

import (
	"errors"
	"io"
	"sync"
)

// ErrUnauthorized refuses admission for a credential the Authority does not
// recognize.
var ErrUnauthorized = errors.New("session not authorized")

// ErrAlreadyAdmitted refuses a second concurrent admission for a credential
// whose live channel is still open. The first channel is left untouched.
var ErrAlreadyAdmitted = errors.New("session already connected")

// Registry maps session credentials to at most one live channel each. All
// check-then-insert sequences happen under one lock so two racing admissions
// for the same credential can never both succeed.
type Registry struct {
	authority *Authority

	mu   sync.Mutex
	live map[string]io.Closer
}

// NewRegistry creates a registry backed by the given credential authority.
func NewRegistry(authority *Authority) *Registry {
	return &Registry{
		authority: authority,
		live:      make(map[string]io.Closer),
	}
}

// Admit atomically verifies the credential and claims its live-channel slot.
// The closer is retained so the session can be torn down administratively.
// Returns ErrUnauthorized or ErrAlreadyAdmitted on refusal.
func (r *Registry) Admit(token string, channel io.Closer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.authority.Authorized(token) {
		return ErrUnauthorized
	}
	if _, ok := r.live[token]; ok {
		return ErrAlreadyAdmitted
	}
	r.live[token] = channel
	return nil
}

// Release frees the credential's live-channel slot so a later admission with
// the same credential can succeed. Releasing an unknown token is a no-op.
func (r *Registry) Release(token string) {
	r.mu.Lock()
	delete(r.live, token)
	r.mu.Unlock()
}

// Close tears down the live channel for token, if any. The session's own
// teardown path then releases the slot.
func (r *Registry) Close(token string) bool {
	r.mu.Lock()
	channel, ok := r.live[token]
	r.mu.Unlock()
	if !ok {
		return false
	}
	channel.Close() //nolint:errcheck
	return true
}

// CloseAll tears down every live channel; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	channels := make([]io.Closer, 0, len(r.live))
	for _, c := range r.live {
		channels = append(channels, c)
	}
	r.mu.Unlock()

	for _, c := range channels {
		c.Close() //nolint:errcheck
	}
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
