package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	if (Summary{}).TableName() != "summaries" {
		t.Fatalf("Summary.TableName() = %q; want %q", (Summary{}).TableName(), "summaries")
	}
	if (UsageRecord{}).TableName() != "ai_usage_tracking" {
		t.Fatalf("UsageRecord.TableName() = %q; want %q", (UsageRecord{}).TableName(), "ai_usage_tracking")
	}
	if (SummaryTagSet{}).TableName() != "summary_tags" {
		t.Fatalf("SummaryTagSet.TableName() = %q; want %q", (SummaryTagSet{}).TableName(), "summary_tags")
	}
	if (Subscription{}).TableName() != "subscriptions" {
		t.Fatalf("Subscription.TableName() = %q; want %q", (Subscription{}).TableName(), "subscriptions")
	}
}

func TestStringList_Value(t *testing.T) {
	// nil serializes as an empty JSON array, never SQL NULL.
	v, err := StringList(nil).Value()
	if err != nil {
		t.Fatalf("Value(nil): %v", err)
	}
	if v != "[]" {
		t.Fatalf("Value(nil) = %v; want %q", v, "[]")
	}

	v, err = StringList{"go", "sql"}.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != `["go","sql"]` {
		t.Fatalf("Value = %v; want %q", v, `["go","sql"]`)
	}
}

func TestStringList_Scan(t *testing.T) {
	var l StringList

	if err := l.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if l != nil {
		t.Fatalf("Scan(nil) left %v; want nil", l)
	}

	if err := l.Scan([]byte(`["a","b"]`)); err != nil {
		t.Fatalf("Scan([]byte): %v", err)
	}
	if len(l) != 2 || l[0] != "a" || l[1] != "b" {
		t.Fatalf("Scan([]byte) = %v", l)
	}

	if err := l.Scan(`["c"]`); err != nil {
		t.Fatalf("Scan(string): %v", err)
	}
	if len(l) != 1 || l[0] != "c" {
		t.Fatalf("Scan(string) = %v", l)
	}

	if err := l.Scan(42); err == nil {
		t.Fatalf("expected error scanning from int")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Summary{}, &UsageRecord{}, &SummaryTagSet{}, &Subscription{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	for _, tbl := range []any{&Summary{}, &UsageRecord{}, &SummaryTagSet{}, &Subscription{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Indexes from tags exist
	if !m.HasIndex(&Summary{}, "idx_user_summaries") {
		t.Fatalf("expected index idx_user_summaries on summaries")
	}
	if !m.HasIndex(&UsageRecord{}, "idx_usage_user_ts") {
		t.Fatalf("expected composite index idx_usage_user_ts on ai_usage_tracking")
	}
	if !m.HasIndex(&SummaryTagSet{}, "ux_tags_summary") {
		t.Fatalf("expected unique index ux_tags_summary on summary_tags")
	}
	if !m.HasIndex(&Subscription{}, "ux_sub_user") {
		t.Fatalf("expected unique index ux_sub_user on subscriptions")
	}

	now := time.Now().UTC()

	s := &Summary{
		ID: "s1", UserID: "u1", Title: "Standup", SourceType: "slack",
		Text: "Team shipped the importer.", ModelID: "gpt-4o-mini",
		TokensIn: 120, TokensOut: 40, CreatedAt: now, UpdatedAt: now,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert summary: %v", err)
	}

	tags := &SummaryTagSet{
		ID: "t1", SummaryID: "s1",
		Skills:          StringList{"planning"},
		Technologies:    StringList{"go"},
		ConfidenceScore: 0.9,
		CreatedAt:       now, UpdatedAt: now,
	}
	if err := db.Create(tags).Error; err != nil {
		t.Fatalf("insert tags: %v", err)
	}

	// Tag lists survive the TEXT-column round trip.
	var gotTags SummaryTagSet
	if err := db.First(&gotTags, "summary_id = ?", "s1").Error; err != nil {
		t.Fatalf("readback tags: %v", err)
	}
	if len(gotTags.Skills) != 1 || gotTags.Skills[0] != "planning" {
		t.Fatalf("unexpected skills after round trip: %v", gotTags.Skills)
	}

	// One tag set per summary.
	dup := &SummaryTagSet{ID: "t2", SummaryID: "s1", ConfidenceScore: 0.5, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected UNIQUE constraint violation on summary_id")
	}

	// CASCADE: hard-deleting a summary removes its tag set.
	if err := db.Unscoped().Delete(&Summary{}, "id = ?", "s1").Error; err != nil {
		t.Fatalf("delete summary: %v", err)
	}
	var cnt int64
	if err := db.Model(&SummaryTagSet{}).Where("summary_id = ?", "s1").Count(&cnt).Error; err != nil {
		t.Fatalf("count tags after summary delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected tags to cascade-delete when summary deleted, got count=%d", cnt)
	}
}

func TestSummary_SoftDelete(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Summary{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	now := time.Now().UTC()
	s := &Summary{
		ID: "soft1", UserID: "u1", Title: "T", SourceType: "api",
		Text: "body", ModelID: "m", CreatedAt: now, UpdatedAt: now,
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Default Delete is a soft delete: row hidden from queries, kept on disk.
	if err := db.Delete(&Summary{}, "id = ?", "soft1").Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	var cnt int64
	if err := db.Model(&Summary{}).Where("id = ?", "soft1").Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("soft-deleted row still visible, count=%d", cnt)
	}
	if err := db.Unscoped().Model(&Summary{}).Where("id = ?", "soft1").Count(&cnt).Error; err != nil {
		t.Fatalf("unscoped count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected soft-deleted row to remain on disk, count=%d", cnt)
	}
}
