package models

import (
	"time"

	"github.com/google/uuid"
)

// Write-once audit record created by the monthly reset job before zeroing a
// tenant's counter. The (tenant_id, month) unique index doubles as an
// idempotency guard against duplicate job triggers.
type ResetArchiveEntry struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	TenantID           uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_archive_key;not null" json:"tenant_id"`
	Month              string    `gorm:"uniqueIndex:idx_archive_key;not null" json:"month"` // "2025-08"
	TokensUsed         int64     `gorm:"not null" json:"tokens_used"`
	TokenBudget        int64     `gorm:"not null" json:"token_budget"`
	UtilizationPercent int       `gorm:"not null" json:"utilization_percent"`
	CreatedAt          time.Time `json:"created_at"`
}

func (ResetArchiveEntry) TableName() string {
	return "reset_archives"
}
