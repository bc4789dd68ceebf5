package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Identity headers set by the dispatch layer
const (
	HeaderActorID       = "X-Actor-ID"
	HeaderActorEmail    = "X-Actor-Email"
	HeaderMFAVerified   = "X-MFA-Verified"
	HeaderApprovalToken = "X-Approval-Token"
	HeaderRequestID     = "X-Request-ID"
	HeaderForwardedFor  = "X-Forwarded-For"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// Key is the context key for Identity.
	Key ContextKey = "identity"
)

// Identity represents the caller of a request.
type Identity struct {
	// Asserted by the dispatch layer
	ActorID       string
	Email         string
	MFAVerified   bool
	ApprovalToken string

	// Request context
	RequestID string
	RemoteIP  net.IP
}

// FromHeaders reads the identity headers of h.
func FromHeaders(h http.Header) *Identity {
	return &Identity{
		ActorID:       strings.TrimSpace(h.Get(HeaderActorID)),
		Email:         strings.TrimSpace(h.Get(HeaderActorEmail)),
		MFAVerified:   parseBool(h.Get(HeaderMFAVerified)),
		ApprovalToken: strings.TrimSpace(h.Get(HeaderApprovalToken)),
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// WithRequestID sets the correlation ID.
func (i *Identity) WithRequestID(id string) *Identity {
	i.RequestID = id
	return i
}

// WithRemoteIP sets the client IP address.
func (i *Identity) WithRemoteIP(ip net.IP) *Identity {
	i.RemoteIP = ip
	return i
}

// Anonymous returns true if no actor was asserted.
func (i *Identity) Anonymous() bool {
	return i.ActorID == ""
}

// IP returns the client IP as text, empty when unknown.
func (i *Identity) IP() string {
	if i.RemoteIP == nil {
		return ""
	}
	return i.RemoteIP.String()
}

// Get retrieves Identity from context.
func Get(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(Key).(*Identity)
	return id, ok
}

// Set stores Identity in context.
func Set(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, Key, id)
}
