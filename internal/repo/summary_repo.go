// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Summary
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a summary is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// InsertSummary persists a fully populated Summary row. The caller is
// responsible for assigning the UUID and all metering fields.
func InsertSummary(ctx context.Context, db *gorm.DB, s *domain.Summary) error {
	return db.WithContext(ctx).Create(s).Error
}

// GetSummary fetches a single summary by its ID and owner (userID). If the
// record does not exist, it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetSummary(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Summary, error) {
	var s domain.Summary
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountSummaries returns the total number of summaries owned by userID.
// On DB error, it returns the error.
func CountSummaries(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Summary{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListSummariesPage returns a paginated slice of summaries for userID,
// ordered by creation time descending. Use CountSummaries to obtain the total
// for pagination metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListSummariesPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Summary, error) {
	var out []domain.Summary
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
