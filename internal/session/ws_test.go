package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type echoAnswerer struct{}

func (echoAnswerer) Answer(ctx context.Context, sessionID, question string) (string, error) {
	return "echo: " + question, nil
}

func newWSServer(t *testing.T, answerer Answerer) (*httptest.Server, *Authority, *Registry) {
	t.Helper()
	authority := NewAuthority()
	registry := NewRegistry(authority)
	handler := NewHandler(registry, answerer, zap.NewNop(), Options{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeWS(w, r, strings.TrimPrefix(r.URL.Path, "/ws/"))
	}))
	t.Cleanup(srv.Close)
	return srv, authority, registry
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func requirePolicyClose(t *testing.T, conn *websocket.Conn, wantReason string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected close error, got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, wantReason, closeErr.Text)
}

func TestUnauthorizedCredentialRefused(t *testing.T) {
	srv, _, registry := newWSServer(t, PlaceholderAnswerer{})

	conn := dialWS(t, srv, "never-issued")
	requirePolicyClose(t, conn, "upload documents first")
	assert.Equal(t, 0, registry.Count())
}

func TestQuestionGetsPlaceholderAnswer(t *testing.T) {
	srv, authority, _ := newWSServer(t, PlaceholderAnswerer{})
	token := authority.Issue()

	conn := dialWS(t, srv, token)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("what is in my documents?")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	kind, answer, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, placeholderAnswer, string(answer))
}

func TestAnswersPreserveQuestionOrder(t *testing.T) {
	srv, authority, _ := newWSServer(t, echoAnswerer{})
	token := authority.Issue()

	conn := dialWS(t, srv, token)
	const questions = 5
	for i := 0; i < questions; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("q%d", i))))
	}

	for i := 0; i < questions; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
		_, answer, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("echo: q%d", i), string(answer))
	}
}

func TestSecondConnectionSameCredentialRefused(t *testing.T) {
	srv, authority, registry := newWSServer(t, PlaceholderAnswerer{})
	token := authority.Issue()

	first := dialWS(t, srv, token)

	// One round trip proves the first connection is admitted before the
	// second attempt races it.
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte("hello")))
	first.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := first.ReadMessage()
	require.NoError(t, err)

	second := dialWS(t, srv, token)
	requirePolicyClose(t, second, "session already connected elsewhere")
	assert.Equal(t, 1, registry.Count())
}

// Documents the credential policy: closing the channel does not revoke the
// credential, so the same token can open a fresh session afterwards.
func TestReconnectAfterDisconnect(t *testing.T) {
	srv, authority, registry := newWSServer(t, PlaceholderAnswerer{})
	token := authority.Issue()

	first := dialWS(t, srv, token)
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte("hello")))
	first.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := first.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, first.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	first.Close()

	require.Eventually(t, func() bool { return registry.Count() == 0 },
		2*time.Second, 10*time.Millisecond, "registry slot not released after disconnect")

	second := dialWS(t, srv, token)
	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte("back again")))
	second.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, answer, err := second.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, placeholderAnswer, string(answer))
}

type failingAnswerer struct{}

func (failingAnswerer) Answer(ctx context.Context, sessionID, question string) (string, error) {
	return "", fmt.Errorf("index unavailable")
}

// An answerer failure closes the session with an explicit 1011 close frame
// instead of an abnormal closure, and frees the credential's slot.
func TestAnswererFailureClosesWithReason(t *testing.T) {
	srv, authority, registry := newWSServer(t, failingAnswerer{})
	token := authority.Issue()

	conn := dialWS(t, srv, token)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("anything")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected close error, got %v", err)
	assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
	assert.Equal(t, "failed to answer question", closeErr.Text)

	require.Eventually(t, func() bool { return registry.Count() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestAdministrativeClose(t *testing.T) {
	srv, authority, registry := newWSServer(t, PlaceholderAnswerer{})
	token := authority.Issue()

	conn := dialWS(t, srv, token)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	require.True(t, registry.Close(token))
	require.Eventually(t, func() bool { return registry.Count() == 0 },
		2*time.Second, 10*time.Millisecond)
}
