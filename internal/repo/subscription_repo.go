// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file reads the billing system's subscription rows
// during entitlement resolution.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// SubscriptionStore reads plans from the subscriptions table. It satisfies
// entitlement.SubscriptionStore.
type SubscriptionStore struct {
	DB *gorm.DB
}

// PlanFor returns the plan string of the caller's active subscription, or
// ErrNotFound when the caller has none. Inactive subscriptions are treated
// as absent.
func (s SubscriptionStore) PlanFor(ctx context.Context, userID string) (string, error) {
	var sub domain.Subscription
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, "active").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return sub.Plan, nil
}
