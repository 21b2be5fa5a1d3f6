package service

import (
	"context"

	"github.com/prowhq/billing/internal/domain"
)

// ListPaymentMethods returns the organization's stored payment methods,
// default first.
func (s *PaymentService) ListPaymentMethods(ctx context.Context, orgID string) ([]domain.PaymentMethod, error) {
	methods, err := s.billing.ListMethods(ctx, orgID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list payment methods", err)
	}
	return methods, nil
}

// SetDefaultPaymentMethod makes the given method the organization's default.
func (s *PaymentService) SetDefaultPaymentMethod(ctx context.Context, orgID, methodID string) error {
	err := s.billing.SetDefaultMethod(ctx, orgID, methodID)
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return err
		}
		return domain.ErrInternal("failed to set default payment method", err)
	}
	return nil
}

// DeletePaymentMethod removes a stored method. The store promotes a
// replacement default when the deleted method held that flag.
func (s *PaymentService) DeletePaymentMethod(ctx context.Context, orgID, methodID string) error {
	err := s.billing.DeleteMethod(ctx, orgID, methodID)
	if err != nil {
		if _, ok := domain.AsAppError(err); ok {
			return err
		}
		return domain.ErrInternal("failed to delete payment method", err)
	}
	return nil
}
