package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// Ensure ApprovalsStore implements store.ApprovalsStore
var _ store.ApprovalsStore = (*ApprovalsStore)(nil)

// ApprovalsStore implements store.ApprovalsStore using GORM
type ApprovalsStore struct {
	db *gorm.DB
}

// NewApprovalsStore creates a new ApprovalsStore
func NewApprovalsStore(db *gorm.DB) *ApprovalsStore {
	return &ApprovalsStore{db: db}
}

// CreateApproval inserts a request.
func (s *ApprovalsStore) CreateApproval(ctx context.Context, a model.ApprovalRequest) error {
	return translate(s.db.WithContext(ctx).Create(&a).Error)
}

// FetchApproval retrieves a request by ID.
func (s *ApprovalsStore) FetchApproval(ctx context.Context, id string) (model.ApprovalRequest, error) {
	var a model.ApprovalRequest
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return model.ApprovalRequest{}, translate(err)
	}
	return a, nil
}

// ListApprovals returns requests in status, newest first.
func (s *ApprovalsStore) ListApprovals(ctx context.Context, status model.ApprovalStatus) ([]model.ApprovalRequest, error) {
	tx := s.db.WithContext(ctx).Order("requested_at DESC, id DESC")
	if status != "" {
		tx = tx.Where("status = ?", status)
	}

	var approvals []model.ApprovalRequest
	if err := tx.Find(&approvals).Error; err != nil {
		return nil, translate(err)
	}
	return approvals, nil
}

// DecideApproval applies a transition only from the expected status.
func (s *ApprovalsStore) DecideApproval(ctx context.Context, d store.ApprovalDecision) error {
	tx := s.db.WithContext(ctx).Model(&model.ApprovalRequest{}).
		Where("id = ? AND status = ?", d.ID, d.From).
		Updates(map[string]interface{}{
			"status":      d.To,
			"approver_id": d.ApproverID,
			"notes":       d.Notes,
			"decided_at":  d.At,
		})
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 1 {
		return nil
	}

	if _, err := s.FetchApproval(ctx, d.ID); err != nil {
		return err
	}
	return store.ErrStateConflict
}
