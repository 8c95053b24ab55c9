package models

import (
	"time"

	"github.com/google/uuid"
)

// Per-tenant/user/day/feature usage row, written asynchronously by the usage
// ledger. Counters only grow; rows are an analytics projection, not a source
// of truth for budget enforcement.
type UsageRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_usage_key;not null" json:"tenant_id"`
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_usage_key;not null" json:"user_id"`
	Date         string    `gorm:"type:date;uniqueIndex:idx_usage_key;not null" json:"date"`
	Feature      string    `gorm:"uniqueIndex:idx_usage_key;not null" json:"feature"`
	TokensUsed   int64     `gorm:"not null;default:0" json:"tokens_used"`
	RequestCount int64     `gorm:"not null;default:0" json:"request_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
