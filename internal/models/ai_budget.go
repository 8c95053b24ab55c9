package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const DefaultMonthlyTokenBudget int64 = 1_000_000

// Feature keys understood by the AI routes
const (
	FeatureChat              = "chat"
	FeatureContentGeneration = "content_generation"
	FeatureInsights          = "insights"
	FeatureAutomations       = "automations"
)

// Per-tenant AI token budget. One row per tenant, created lazily on first AI
// feature use. monthly_tokens_used is only ever mutated through atomic
// increments (debit) or the monthly reset job, never via read-modify-write.
type TenantAIBudget struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	TenantID           uuid.UUID          `gorm:"type:uuid;uniqueIndex;not null" json:"tenant_id"`
	MonthlyTokenBudget int64              `gorm:"not null" json:"monthly_token_budget"`
	MonthlyTokensUsed  int64              `gorm:"not null;default:0" json:"monthly_tokens_used"`
	FeaturesEnabled    datatypes.JSONMap  `gorm:"type:jsonb" json:"features_enabled"`
	LastResetAt        *time.Time         `json:"last_reset_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (b *TenantAIBudget) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (TenantAIBudget) TableName() string {
	return "tenant_ai_budgets"
}

func DefaultFeaturesEnabled() datatypes.JSONMap {
	return datatypes.JSONMap{
		FeatureChat:              true,
		FeatureContentGeneration: true,
		FeatureInsights:          true,
		FeatureAutomations:       false,
	}
}

// Treats missing keys as disabled
func (b *TenantAIBudget) FeatureEnabled(feature string) bool {
	v, ok := b.FeaturesEnabled[feature]
	if !ok {
		return false
	}
	enabled, ok := v.(bool)
	return ok && enabled
}

func (b *TenantAIBudget) Remaining() int64 {
	remaining := b.MonthlyTokenBudget - b.MonthlyTokensUsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}
