package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fleetguard/fleetguard/pkg/ids"
	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

const (
	// Issuer is the iss claim of approval tokens
	Issuer = "fleetguard"
	// DefaultTTL bounds how long a request and its token stay usable
	DefaultTTL = 30 * time.Minute
	// MinSigningKeyLength is the shortest accepted HS256 key
	MinSigningKeyLength = 32
)

var (
	ErrSelfApproval       = errors.New("approver must be distinct from the requestor")
	ErrNotHolder          = errors.New("actor does not hold the permission")
	ErrNotRequestor       = errors.New("only the requestor may cancel a request")
	ErrExpired            = errors.New("approval request expired")
	ErrNotPending         = errors.New("approval request is not pending")
	ErrInvalidToken       = errors.New("invalid approval token")
	ErrInvalidSigningKey  = fmt.Errorf("approval signing key must be at least %d bytes", MinSigningKeyLength)
	ErrInvalidApprovalTTL = errors.New("approval ttl must be positive")
	ErrInvalidRequest     = errors.New("requestor and permission are required")
)

// PermissionChecker answers whether an actor currently holds a permission
type PermissionChecker interface {
	HasPermission(ctx context.Context, actorID, key string) (bool, error)
}

// Claims are the JWT claims of an approval token
type Claims struct {
	jwt.RegisteredClaims
	Permission string `json:"perm"`
	Approver   string `json:"approver"`
}

// Grant is a verified approval
type Grant struct {
	RequestID   string
	RequestorID string
	ApproverID  string
	Permission  string
	ExpiresAt   time.Time
}

// Service runs the approval workflow
type Service struct {
	store store.ApprovalsStore
	perms PermissionChecker
	key   []byte
	ttl   time.Duration
	now   func() time.Time
}

// NewService returns a Service signing tokens with signingKey
func NewService(s store.ApprovalsStore, perms PermissionChecker, signingKey []byte, ttl time.Duration) (*Service, error) {
	if len(signingKey) < MinSigningKeyLength {
		return nil, ErrInvalidSigningKey
	}
	if ttl <= 0 {
		return nil, ErrInvalidApprovalTTL
	}
	key := make([]byte, len(signingKey))
	copy(key, signingKey)
	return &Service{store: s, perms: perms, key: key, ttl: ttl, now: time.Now}, nil
}

func (s *Service) requireHolder(ctx context.Context, actorID, key string) error {
	ok, err := s.perms.HasPermission(ctx, actorID, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrNotHolder, actorID, key)
	}
	return nil
}

// Request opens a pending approval for requestorID to exercise key
func (s *Service) Request(ctx context.Context, requestorID, key, reason string) (model.ApprovalRequest, error) {
	requestorID = strings.TrimSpace(requestorID)
	if requestorID == "" || key == "" {
		return model.ApprovalRequest{}, ErrInvalidRequest
	}
	if err := s.requireHolder(ctx, requestorID, key); err != nil {
		return model.ApprovalRequest{}, err
	}

	now := s.now().UTC()
	a := model.ApprovalRequest{
		ID:            ids.NewAt(now),
		RequestorID:   requestorID,
		PermissionKey: key,
		Reason:        reason,
		Status:        model.ApprovalPending,
		RequestedAt:   now,
		ExpiresAt:     now.Add(s.ttl),
	}
	if err := s.store.CreateApproval(ctx, a); err != nil {
		return model.ApprovalRequest{}, err
	}
	return a, nil
}

// Get returns a request by ID
func (s *Service) Get(ctx context.Context, id string) (model.ApprovalRequest, error) {
	return s.store.FetchApproval(ctx, id)
}

// List returns requests in status, all when status is empty
func (s *Service) List(ctx context.Context, status model.ApprovalStatus) ([]model.ApprovalRequest, error) {
	return s.store.ListApprovals(ctx, status)
}

// pending fetches a request that is still open, marking it expired when its
// window has passed
func (s *Service) pending(ctx context.Context, id string, now time.Time) (model.ApprovalRequest, error) {
	a, err := s.store.FetchApproval(ctx, id)
	if err != nil {
		return model.ApprovalRequest{}, err
	}
	if a.Status != model.ApprovalPending {
		return model.ApprovalRequest{}, fmt.Errorf("%w: %s is %s", ErrNotPending, id, a.Status)
	}
	if a.IsExpired(now) {
		err := s.store.DecideApproval(ctx, store.ApprovalDecision{
			ID:   id,
			From: model.ApprovalPending,
			To:   model.ApprovalExpired,
			At:   now,
		})
		if err != nil && !errors.Is(err, store.ErrStateConflict) {
			return model.ApprovalRequest{}, err
		}
		return model.ApprovalRequest{}, ErrExpired
	}
	return a, nil
}

func (s *Service) decide(ctx context.Context, a model.ApprovalRequest, to model.ApprovalStatus, approverID, notes string, at time.Time) (model.ApprovalRequest, error) {
	err := s.store.DecideApproval(ctx, store.ApprovalDecision{
		ID:         a.ID,
		From:       model.ApprovalPending,
		To:         to,
		ApproverID: approverID,
		Notes:      notes,
		At:         at,
	})
	if errors.Is(err, store.ErrStateConflict) {
		return model.ApprovalRequest{}, fmt.Errorf("%w: %s", ErrNotPending, a.ID)
	}
	if err != nil {
		return model.ApprovalRequest{}, err
	}
	a.Status = to
	a.ApproverID = approverID
	a.Notes = notes
	a.DecidedAt = &at
	return a, nil
}

// Approve confirms request id and returns the signed token the requestor
// presents with the elevated call
func (s *Service) Approve(ctx context.Context, id, approverID, notes string) (model.ApprovalRequest, string, error) {
	now := s.now().UTC()
	a, err := s.pending(ctx, id, now)
	if err != nil {
		return model.ApprovalRequest{}, "", err
	}
	if approverID == a.RequestorID {
		return model.ApprovalRequest{}, "", ErrSelfApproval
	}
	if err := s.requireHolder(ctx, approverID, a.PermissionKey); err != nil {
		return model.ApprovalRequest{}, "", err
	}

	a, err = s.decide(ctx, a, model.ApprovalApproved, approverID, notes, now)
	if err != nil {
		return model.ApprovalRequest{}, "", err
	}
	token, err := s.sign(a, now)
	if err != nil {
		return model.ApprovalRequest{}, "", err
	}
	return a, token, nil
}

// Deny rejects request id
func (s *Service) Deny(ctx context.Context, id, approverID, notes string) (model.ApprovalRequest, error) {
	now := s.now().UTC()
	a, err := s.pending(ctx, id, now)
	if err != nil {
		return model.ApprovalRequest{}, err
	}
	if approverID == a.RequestorID {
		return model.ApprovalRequest{}, ErrSelfApproval
	}
	if err := s.requireHolder(ctx, approverID, a.PermissionKey); err != nil {
		return model.ApprovalRequest{}, err
	}
	return s.decide(ctx, a, model.ApprovalDenied, approverID, notes, now)
}

// Cancel withdraws request id on behalf of its requestor
func (s *Service) Cancel(ctx context.Context, id, requestorID string) (model.ApprovalRequest, error) {
	now := s.now().UTC()
	a, err := s.pending(ctx, id, now)
	if err != nil {
		return model.ApprovalRequest{}, err
	}
	if requestorID != a.RequestorID {
		return model.ApprovalRequest{}, ErrNotRequestor
	}
	return s.decide(ctx, a, model.ApprovalCancelled, "", "", now)
}

func (s *Service) sign(a model.ApprovalRequest, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        a.ID,
			Issuer:    Issuer,
			Subject:   a.RequestorID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(a.ExpiresAt),
		},
		Permission: a.PermissionKey,
		Approver:   a.ApproverID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing approval token: %w", err)
	}
	return token, nil
}

// Verify checks that token approves actorID exercising key. Storage faults
// are returned wrapped in store.ErrStorageFailure; every other problem is
// ErrInvalidToken.
func (s *Service) Verify(ctx context.Context, token, actorID, key string) (Grant, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithSubject(actorID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	switch {
	case claims.Permission != key:
		return Grant{}, fmt.Errorf("%w: token is for %s", ErrInvalidToken, claims.Permission)
	case claims.Approver == "" || claims.Approver == claims.Subject:
		return Grant{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrSelfApproval)
	}

	a, err := s.store.FetchApproval(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return Grant{}, fmt.Errorf("%w: unknown request %s", ErrInvalidToken, claims.ID)
	}
	if err != nil {
		return Grant{}, err
	}
	if a.Status != model.ApprovalApproved || a.RequestorID != actorID ||
		a.ApproverID != claims.Approver || a.PermissionKey != key {
		return Grant{}, fmt.Errorf("%w: request %s is %s", ErrInvalidToken, a.ID, a.Status)
	}

	return Grant{
		RequestID:   a.ID,
		RequestorID: a.RequestorID,
		ApproverID:  a.ApproverID,
		Permission:  a.PermissionKey,
		ExpiresAt:   a.ExpiresAt,
	}, nil
}
