// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds the aggregate query behind the listing
// endpoint's ETag.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// SummariesStats reports how many summaries userID owns and the newest
// UpdatedAt among them (nil when there are none). The pair changes whenever
// the user's listing would change, which is exactly what the ETag needs.
func SummariesStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Summary{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// ORDER BY + LIMIT instead of MAX(): sqlite types MAX(updated_at) as TEXT.
	var newest struct{ UpdatedAt time.Time }
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&newest).Error; err != nil {
		return 0, nil, err
	}
	return count, &newest.UpdatedAt, nil
}
