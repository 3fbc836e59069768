// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores extracted tag sets, one row per summary.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// UpsertTags inserts the tag set for its summary, replacing any previous
// extraction. The summary_id unique index drives the conflict resolution.
func UpsertTags(ctx context.Context, db *gorm.DB, tags *domain.SummaryTagSet) error {
	if tags.ID == "" {
		tags.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tags.CreatedAt.IsZero() {
		tags.CreatedAt = now
	}
	tags.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "summary_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"skills", "technologies", "roles", "action_items",
				"decisions", "sentiments", "emotions",
				"confidence_score", "updated_at",
			}),
		}).
		Create(tags).Error
}

// GetTags returns the tag set for summaryID, or ErrNotFound when the summary
// has never been tagged.
func GetTags(ctx context.Context, db *gorm.DB, summaryID string) (*domain.SummaryTagSet, error) {
	var out domain.SummaryTagSet
	err := db.WithContext(ctx).
		Where("summary_id = ?", summaryID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
