package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayan319/slack-summary-scribe/internal/domain"
)

func TestIdempotency_CreateAndGet(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "summarize", "k-abc", "sum-1", 200, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.SummaryID != "sum-1" || rec.Status != 200 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "summarize", "k-abc", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.SummaryID != "sum-1" {
		t.Fatalf("replay points at %q; want sum-1", got.SummaryID)
	}
}

func TestIdempotency_DuplicateKeyRejected(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "summarize", "k-dup", "sum-1", 200, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateIdempotency(ctx, db, "u1", "summarize", "k-dup", "sum-2", 200, time.Hour)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestIdempotency_ScopesAreIndependent(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "summarize", "k1", "sum-1", 200, time.Hour); err != nil {
		t.Fatalf("summarize scope: %v", err)
	}
	// Same user+key under a different scope is a distinct record.
	if _, err := CreateIdempotency(ctx, db, "u1", "tagging", "k1", "sum-1", 200, time.Hour); err != nil {
		t.Fatalf("tagging scope: %v", err)
	}
	// Same key for a different user too.
	if _, err := CreateIdempotency(ctx, db, "u2", "summarize", "k1", "sum-9", 200, time.Hour); err != nil {
		t.Fatalf("other user: %v", err)
	}
}

func TestIdempotency_ExpiredRecordInvisible(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "summarize", "k-old", "sum-1", 200, time.Millisecond); err != nil {
		t.Fatalf("create: %v", err)
	}
	later := time.Now().UTC().Add(time.Second)
	if _, err := GetIdempotency(ctx, db, "u1", "summarize", "k-old", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}
}

func TestIdempotency_BlankKeyNeverMatches(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	if _, err := GetIdempotency(context.Background(), db, "u1", "summarize", "  ", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank key, got %v", err)
	}
}
