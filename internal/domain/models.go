// Package domain defines the persistence models for summaries, usage
// tracking, extracted tags, and subscriptions. These types are mapped with
// GORM and form the core data layer of the summarization backend.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Summary is the primary artifact of the product: an AI-generated summary of
// a block of conversational text, together with the metering and quality
// metadata captured while producing it.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: caller that requested the summary; indexed for dashboard lists.
//   - TeamID: optional workspace/team identifier.
//   - Title: short human-readable title derived from the source text.
//   - SourceType: where the text came from ("slack", "upload", "api", ...).
//   - Text: the generated summary body.
//   - ModelID: catalog id of the model that produced the summary.
//   - TokensIn / TokensOut: token counts (exact or estimated).
//   - CostUSD: approximate cost derived from catalog pricing.
//   - ProcessingTimeMs: wall-clock backend latency.
//   - Coherence..Overall: quality dimensions, each in [0,1].
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Summary struct {
	ID               string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID           string         `json:"user_id"            gorm:"type:varchar(64);not null;index:idx_user_summaries"`
	TeamID           string         `json:"team_id,omitempty"  gorm:"type:varchar(64);index"`
	Title            string         `json:"title"              gorm:"type:varchar(255);not null;default:'Untitled summary'"`
	SourceType       string         `json:"source_type"        gorm:"type:varchar(32);not null;default:'api'"`
	Text             string         `json:"text"               gorm:"type:text;not null"`
	ModelID          string         `json:"model_id"           gorm:"type:varchar(64);not null"`
	TokensIn         int            `json:"tokens_in"          gorm:"not null"`
	TokensOut        int            `json:"tokens_out"         gorm:"not null"`
	CostUSD          float64        `json:"cost_usd"           gorm:"not null"`
	ProcessingTimeMs int64          `json:"processing_time_ms" gorm:"not null"`
	Coherence        float64        `json:"coherence"`
	Coverage         float64        `json:"coverage"`
	Style            float64        `json:"style"`
	Length           float64        `json:"length"`
	Overall          float64        `json:"overall"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string { return "summaries" }

// Operation types recorded in ai_usage_tracking rows.
const (
	OpSummarize = "summarize"
	OpTagging   = "tagging"
)

// UsageRecord is one append-only accounting row per AI invocation attempt.
// A row is written for successes and failures alike so that cost reporting
// is never silently incomplete for billing purposes.
type UsageRecord struct {
	ID               string    `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID           string    `json:"user_id"            gorm:"type:varchar(64);not null;index:idx_usage_user_ts,priority:1"`
	OrgID            string    `json:"org_id,omitempty"   gorm:"type:varchar(64);index"`
	ModelID          string    `json:"model_id"           gorm:"type:varchar(64);not null;index"`
	OperationType    string    `json:"operation_type"     gorm:"type:varchar(16);not null;check:operation_type IN ('summarize','tagging')"`
	TokensUsed       int       `json:"tokens_used"        gorm:"not null"`
	CostUSD          float64   `json:"cost_usd"           gorm:"not null"`
	ProcessingTimeMs int64     `json:"processing_time_ms" gorm:"not null"`
	Success          bool      `json:"success"            gorm:"not null"`
	ErrorMessage     string    `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt        time.Time `json:"created_at"         gorm:"index:idx_usage_user_ts,priority:2"`
}

// TableName returns the database table name for UsageRecord.
func (UsageRecord) TableName() string { return "ai_usage_tracking" }

// StringList stores a JSON-encoded list of strings in a single TEXT column.
// It keeps the capped tag lists readable as ordinary JSON without a join
// table per tag category.
type StringList []string

// Value implements driver.Valuer; nil serializes as an empty JSON array.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for TEXT/BLOB columns.
func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	default:
		return errors.New("domain: unsupported StringList source type")
	}
}

// SummaryTagSet holds the structured tags extracted from a summary by the
// premium tagging feature. One row per summary; re-extraction replaces the
// previous row. Every list is validated and size-capped before persistence.
type SummaryTagSet struct {
	ID              string     `json:"id"               gorm:"type:char(36);primaryKey"`
	SummaryID       string     `json:"summary_id"       gorm:"type:char(36);not null;uniqueIndex:ux_tags_summary"`
	Skills          StringList `json:"skills"           gorm:"type:text"`
	Technologies    StringList `json:"technologies"     gorm:"type:text"`
	Roles           StringList `json:"roles"            gorm:"type:text"`
	ActionItems     StringList `json:"action_items"     gorm:"type:text"`
	Decisions       StringList `json:"decisions"        gorm:"type:text"`
	Sentiments      StringList `json:"sentiments"       gorm:"type:text"`
	Emotions        StringList `json:"emotions"         gorm:"type:text"`
	ConfidenceScore float64    `json:"confidence_score" gorm:"not null"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Summary is the parent artifact. Tags are cascade-deleted with it.
	Summary Summary `json:"-" gorm:"foreignKey:SummaryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SummaryTagSet.
func (SummaryTagSet) TableName() string { return "summary_tags" }

// Subscription mirrors the external billing system's view of a caller. The
// core never mutates these rows; it only reads the plan during entitlement
// resolution.
type Subscription struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_sub_user"`
	Plan      string    `json:"plan"    gorm:"type:varchar(16);not null;default:'FREE'"`
	Status    string    `json:"status"  gorm:"type:varchar(16);not null;default:'active'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }
