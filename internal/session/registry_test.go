package session

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	closed atomic.Bool
}

func (f *fakeChannel) Close() error {
	f.closed.Store(true)
	return nil
}

func TestAdmitUnauthorized(t *testing.T) {
	r := NewRegistry(NewAuthority())

	err := r.Admit("never-issued", &fakeChannel{})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, r.Count())
}

func TestAdmitOncePerCredential(t *testing.T) {
	a := NewAuthority()
	r := NewRegistry(a)
	tok := a.Issue()

	require.NoError(t, r.Admit(tok, &fakeChannel{}))
	assert.Equal(t, 1, r.Count())

	err := r.Admit(tok, &fakeChannel{})
	assert.ErrorIs(t, err, ErrAlreadyAdmitted)
	assert.Equal(t, 1, r.Count())
}

// Credential policy: a released credential stays authorized, so a later
// admission with the same token succeeds.
func TestReadmitAfterRelease(t *testing.T) {
	a := NewAuthority()
	r := NewRegistry(a)
	tok := a.Issue()

	require.NoError(t, r.Admit(tok, &fakeChannel{}))
	r.Release(tok)

	assert.True(t, a.Authorized(tok))
	assert.NoError(t, r.Admit(tok, &fakeChannel{}))
}

func TestConcurrentAdmissionsSingleWinner(t *testing.T) {
	a := NewAuthority()
	r := NewRegistry(a)
	tok := a.Issue()

	const attempts = 32
	var admitted atomic.Int32
	var refused atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := r.Admit(tok, &fakeChannel{}); err {
			case nil:
				admitted.Add(1)
			case ErrAlreadyAdmitted:
				refused.Add(1)
			default:
				t.Errorf("unexpected admit error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	assert.Equal(t, int32(attempts-1), refused.Load())
}

func TestCloseTearsDownLiveChannel(t *testing.T) {
	a := NewAuthority()
	r := NewRegistry(a)
	tok := a.Issue()

	ch := &fakeChannel{}
	require.NoError(t, r.Admit(tok, ch))

	assert.True(t, r.Close(tok))
	assert.True(t, ch.closed.Load())
	assert.False(t, r.Close("unknown"))
}

func TestCloseAll(t *testing.T) {
	a := NewAuthority()
	r := NewRegistry(a)

	channels := make([]*fakeChannel, 3)
	for i := range channels {
		channels[i] = &fakeChannel{}
		require.NoError(t, r.Admit(a.Issue(), channels[i]))
	}

	r.CloseAll()
	for i, ch := range channels {
		assert.True(t, ch.closed.Load(), "channel %d not closed", i)
	}
}
