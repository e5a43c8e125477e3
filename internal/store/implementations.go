package store

import (
	"context"
	"time"
)

func (s *Store) CreateImplementation(ctx context.Context, impl *Implementation) error {
	return translateError(s.db.WithContext(ctx).Create(impl).Error)
}

func (s *Store) GetImplementationByID(ctx context.Context, id uint) (*Implementation, error) {
	var impl Implementation
	if err := s.db.WithContext(ctx).First(&impl, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &impl, nil
}

func (s *Store) ListImplementationsByClient(ctx context.Context, clientID string, limit, offset int) ([]Implementation, error) {
	var impls []Implementation
	err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&impls).Error
	if err != nil {
		return nil, translateError(err)
	}
	return impls, nil
}

// AcceptImplementation assigns a freelancer and moves pending to
// accepted. Any other starting state is a conflict.
func (s *Store) AcceptImplementation(ctx context.Context, id, freelancerID uint) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&Implementation{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Updates(map[string]any{
			"freelancer_id": freelancerID,
			"status":        StatusAccepted,
			"accepted_at":   &now,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// UpdateImplementationStatus applies a work-status transition guarded by
// the expected current status. The guard serializes concurrent updates
// through row-level atomicity: only one of two racing writers can win.
func (s *Store) UpdateImplementationStatus(ctx context.Context, id uint, from, to string) error {
	updates := map[string]any{"status": to}
	if to == StatusCompleted {
		now := time.Now().UTC()
		updates["completed_at"] = &now
	}

	res := s.db.WithContext(ctx).Model(&Implementation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkImplementationPaid transitions payment status pending -> paid and
// records the transaction and commission. The WHERE clause ensures a
// terminal payment state is never overwritten when two webhook
// deliveries race for the same implementation.
func (s *Store) MarkImplementationPaid(ctx context.Context, id uint, transactionID string, commission float64) error {
	res := s.db.WithContext(ctx).Model(&Implementation{}).
		Where("id = ? AND payment_status = ?", id, PaymentPending).
		Updates(map[string]any{
			"payment_status": PaymentPaid,
			"transaction_id": transactionID,
			"commission":     commission,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkImplementationPaymentFailed transitions pending -> failed.
func (s *Store) MarkImplementationPaymentFailed(ctx context.Context, id uint, transactionID string) error {
	res := s.db.WithContext(ctx).Model(&Implementation{}).
		Where("id = ? AND payment_status = ?", id, PaymentPending).
		Updates(map[string]any{
			"payment_status": PaymentFailed,
			"transaction_id": transactionID,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// MarkImplementationRefunded transitions paid -> refunded.
func (s *Store) MarkImplementationRefunded(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&Implementation{}).
		Where("id = ? AND payment_status = ?", id, PaymentPaid).
		Update("payment_status", PaymentRefunded)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) CountImplementations(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Implementation{}).Count(&n).Error
	return n, translateError(err)
}
