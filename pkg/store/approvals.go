package store

import (
	"context"
	"time"

	"github.com/fleetguard/fleetguard/pkg/model"
)

// ApprovalDecision is a conditional status transition of an approval request
type ApprovalDecision struct {
	ID         string
	From       model.ApprovalStatus
	To         model.ApprovalStatus
	ApproverID string
	Notes      string
	At         time.Time
}

// ApprovalsStore abstracts approval request storage
type ApprovalsStore interface {
	CreateApproval(ctx context.Context, a model.ApprovalRequest) error

	// FetchApproval returns ErrNotFound if the request doesn't exist
	FetchApproval(ctx context.Context, id string) (model.ApprovalRequest, error)

	// ListApprovals returns requests in status, newest first. An empty
	// status lists every request.
	ListApprovals(ctx context.Context, status model.ApprovalStatus) ([]model.ApprovalRequest, error)

	// DecideApproval applies d only if the request is still in d.From.
	// Returns ErrStateConflict otherwise.
	DecideApproval(ctx context.Context, d ApprovalDecision) error
}
