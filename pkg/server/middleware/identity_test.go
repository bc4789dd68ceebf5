package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetguard/fleetguard/pkg/identity"
)

func captureIdentity(t *testing.T, got **identity.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity.Get(r.Context())
		require.True(t, ok)
		*got = id
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_MissingActor(t *testing.T) {
	auth := NewIdentityAuthenticator(nil)

	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/roles", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Actor identity missing")
	assert.NotEmpty(t, w.Header().Get(identity.HeaderRequestID))
}

func TestMiddleware_SetsIdentity(t *testing.T) {
	auth := NewIdentityAuthenticator(nil)

	var got *identity.Identity
	handler := auth.Middleware(captureIdentity(t, &got))

	req := httptest.NewRequest("GET", "/roles", nil)
	req.RemoteAddr = "10.0.0.5:4242"
	req.Header.Set(identity.HeaderActorID, "u-1")
	req.Header.Set(identity.HeaderActorEmail, "ops@fleet.local")
	req.Header.Set(identity.HeaderMFAVerified, "true")
	req.Header.Set(identity.HeaderRequestID, "req-123")
	req.Header.Set(identity.HeaderForwardedFor, "203.0.113.9, 10.0.0.5")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.ActorID)
	assert.Equal(t, "ops@fleet.local", got.Email)
	assert.True(t, got.MFAVerified)
	assert.Equal(t, "req-123", got.RequestID)
	assert.Equal(t, "203.0.113.9", got.IP())
	assert.Equal(t, "req-123", w.Header().Get(identity.HeaderRequestID))
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	auth := NewIdentityAuthenticator(nil)

	var got *identity.Identity
	handler := auth.Middleware(captureIdentity(t, &got))

	req := httptest.NewRequest("GET", "/roles", nil)
	req.Header.Set(identity.HeaderActorID, "u-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.NotNil(t, got)
	_, err := uuid.Parse(got.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, got.RequestID, w.Header().Get(identity.HeaderRequestID))
}

func TestMiddleware_UntrustedPeer(t *testing.T) {
	auth := NewIdentityAuthenticator(func(ip string) bool {
		return ip == "10.0.0.1"
	})

	tests := []struct {
		name       string
		remoteAddr string
		expected   int
	}{
		{name: "trusted proxy", remoteAddr: "10.0.0.1:1234", expected: http.StatusOK},
		{name: "other peer", remoteAddr: "192.0.2.7:1234", expected: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/roles", nil)
			req.RemoteAddr = tt.remoteAddr
			req.Header.Set(identity.HeaderActorID, "u-1")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestPeer_AllowsMissingActor(t *testing.T) {
	auth := NewIdentityAuthenticator(nil)

	var got *identity.Identity
	handler := auth.Peer(captureIdentity(t, &got))

	req := httptest.NewRequest("POST", "/authorize", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.True(t, got.Anonymous())
	assert.NotEmpty(t, got.RequestID)
}

func TestClientIP(t *testing.T) {
	peer := net.ParseIP("10.0.0.5")

	tests := []struct {
		name      string
		forwarded string
		expected  string
	}{
		{name: "no header", forwarded: "", expected: "10.0.0.5"},
		{name: "single hop", forwarded: "203.0.113.9", expected: "203.0.113.9"},
		{name: "multiple hops", forwarded: "203.0.113.9, 198.51.100.2", expected: "203.0.113.9"},
		{name: "garbage", forwarded: "not-an-ip", expected: "10.0.0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.forwarded != "" {
				req.Header.Set(identity.HeaderForwardedFor, tt.forwarded)
			}
			assert.Equal(t, tt.expected, ClientIP(req, peer).String())
		})
	}
}
