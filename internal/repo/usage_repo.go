// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists AI usage accounting rows.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// InsertUsage appends one ai_usage_tracking row. Rows are immutable once
// written; there are no update or delete paths.
func InsertUsage(ctx context.Context, db *gorm.DB, rec *domain.UsageRecord) error {
	return db.WithContext(ctx).Create(rec).Error
}

// SumUsageCost returns the total recorded spend for userID across all
// operations, in USD.
func SumUsageCost(ctx context.Context, db *gorm.DB, userID string) (float64, error) {
	var row struct {
		Total float64
	}
	err := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Select("COALESCE(SUM(cost_usd), 0) AS total").
		Where("user_id = ?", userID).
		Scan(&row).Error
	return row.Total, err
}
