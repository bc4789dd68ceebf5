package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fleetguard/fleetguard/pkg/identity"
)

// TrustFunc reports whether the peer at ip may assert identity headers
type TrustFunc func(ip string) bool

// IdentityAuthenticator is middleware that reads the caller identity
// asserted by the dispatch layer
type IdentityAuthenticator struct {
	trusted TrustFunc
}

// NewIdentityAuthenticator creates the middleware. A nil trusted accepts
// identity headers from every peer.
func NewIdentityAuthenticator(trusted TrustFunc) *IdentityAuthenticator {
	return &IdentityAuthenticator{trusted: trusted}
}

// Peer admits requests from trusted peers and attaches a request ID and the
// client IP. It does not require an actor.
func (a *IdentityAuthenticator) Peer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.identify(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.Set(r.Context(), id)))
	})
}

// Middleware is Peer that also requires the X-Actor-ID header
func (a *IdentityAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := a.identify(w, r)
		if !ok {
			return
		}
		if id.Anonymous() {
			unauthorized(w, "Actor identity missing")
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.Set(r.Context(), id)))
	})
}

func (a *IdentityAuthenticator) identify(w http.ResponseWriter, r *http.Request) (*identity.Identity, bool) {
	peer := PeerIP(r)

	requestID := strings.TrimSpace(r.Header.Get(identity.HeaderRequestID))
	if requestID == "" || len(requestID) > 128 {
		requestID = uuid.NewString()
	}
	w.Header().Set(identity.HeaderRequestID, requestID)

	if a.trusted != nil && !a.trusted(peer.String()) {
		unauthorized(w, "Untrusted peer")
		return nil, false
	}

	id := identity.FromHeaders(r.Header).
		WithRequestID(requestID).
		WithRemoteIP(ClientIP(r, peer))
	return id, true
}

// PeerIP returns the address of the directly connected peer
func PeerIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

// ClientIP returns the originating client from X-Forwarded-For, falling
// back to peer. Only call it for trusted peers.
func ClientIP(r *http.Request, peer net.IP) net.IP {
	forwarded := r.Header.Get(identity.HeaderForwardedFor)
	if forwarded == "" {
		return peer
	}
	first, _, _ := strings.Cut(forwarded, ",")
	if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
		return ip
	}
	return peer
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
