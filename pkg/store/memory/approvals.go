package memory

import (
	"context"
	"sort"

	"github.com/hashicorp/go-memdb"

	"github.com/fleetguard/fleetguard/pkg/model"
	"github.com/fleetguard/fleetguard/pkg/store"
)

// CreateApproval inserts a request
func (s *Store) CreateApproval(_ context.Context, a model.ApprovalRequest) error {
	return s.update(func(txn *memdb.Txn) error {
		existing, err := txn.First(tableApprovals, "id", a.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return store.ErrAlreadyExists
		}
		return txn.Insert(tableApprovals, &a)
	})
}

// FetchApproval retrieves a request by ID
func (s *Store) FetchApproval(_ context.Context, id string) (model.ApprovalRequest, error) {
	var a model.ApprovalRequest
	err := s.view(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableApprovals, "id", id)
		if err != nil {
			return err
		}
		if raw == nil {
			return store.ErrNotFound
		}
		a = *raw.(*model.ApprovalRequest)
		return nil
	})
	return a, err
}

// ListApprovals returns requests in status, newest first
func (s *Store) ListApprovals(_ context.Context, status model.ApprovalStatus) ([]model.ApprovalRequest, error) {
	var approvals []model.ApprovalRequest
	err := s.view(func(txn *memdb.Txn) error {
		var (
			it  memdb.ResultIterator
			err error
		)
		if status == "" {
			it, err = txn.Get(tableApprovals, "id")
		} else {
			it, err = txn.Get(tableApprovals, "status", string(status))
		}
		if err != nil {
			return err
		}
		for raw := it.Next(); raw != nil; raw = it.Next() {
			approvals = append(approvals, *raw.(*model.ApprovalRequest))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(approvals, func(i, j int) bool {
		if !approvals[i].RequestedAt.Equal(approvals[j].RequestedAt) {
			return approvals[i].RequestedAt.After(approvals[j].RequestedAt)
		}
		return approvals[i].ID > approvals[j].ID
	})
	return approvals, nil
}

// DecideApproval applies a transition only from the expected status
func (s *Store) DecideApproval(_ context.Context, d store.ApprovalDecision) error {
	return s.update(func(txn *memdb.Txn) error {
		raw, err := txn.First(tableApprovals, "id", d.ID)
		if err != nil {
			return err
		}
		if raw == nil {
			return store.ErrNotFound
		}
		a := *raw.(*model.ApprovalRequest)
		if a.Status != d.From {
			return store.ErrStateConflict
		}

		at := d.At
		a.Status = d.To
		a.ApproverID = d.ApproverID
		a.Notes = d.Notes
		a.DecidedAt = &at
		return txn.Insert(tableApprovals, &a)
	})
}
