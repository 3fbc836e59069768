// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores and replays idempotency records for the
// summarize endpoint.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

// ErrDuplicate means a record already exists for (user_id, scope, key).
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation matches GORM's translated error plus the plain-text
// forms glebarez/sqlite emits for UNIQUE failures.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// GetIdempotency returns the unexpired record for (userID, scope, key), or
// ErrNotFound. A blank key never matches anything.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND scope = ? AND key = ? AND expires_at > ?", userID, scope, key, now).
		First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records a completed summarization under (userID, scope,
// key) with the given TTL. Concurrent duplicates surface as ErrDuplicate so
// the caller can treat the insert as already done.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, summaryID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		Scope:     scope,
		Key:       key,
		SummaryID: summaryID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
