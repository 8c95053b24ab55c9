package repository

import (
	"context"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/coredesk/coredesk-gateway/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageRepository struct {
	db *storage.Postgres
}

func NewUsageRepository(db *storage.Postgres) *UsageRepository {
	return &UsageRepository{db: db}
}

// UpsertBatch inserts the day's usage rows, folding duplicates of the
// (tenant, user, date, feature) key into counter increments.
func (r *UsageRepository) UpsertBatch(ctx context.Context, records []models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "tenant_id"}, {Name: "user_id"}, {Name: "date"}, {Name: "feature"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"tokens_used":   gorm.Expr("usage_records.tokens_used + EXCLUDED.tokens_used"),
				"request_count": gorm.Expr("usage_records.request_count + EXCLUDED.request_count"),
				"updated_at":    gorm.Expr("EXCLUDED.updated_at"),
			}),
		}).
		Create(&records).Error
}

type UsageTotals struct {
	TotalTokens   int64 `json:"total_tokens"`
	TotalRequests int64 `json:"total_requests"`
}

func (r *UsageRepository) TotalsByTenant(ctx context.Context, tenantID uuid.UUID, from, to string) (UsageTotals, error) {
	var totals UsageTotals
	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("tenant_id = ? AND date BETWEEN ? AND ?", tenantID, from, to).
		Select("COALESCE(SUM(tokens_used), 0) as total_tokens, COALESCE(SUM(request_count), 0) as total_requests").
		Scan(&totals).Error

	return totals, err
}

type FeatureUsage struct {
	Feature      string `json:"feature"`
	TokensUsed   int64  `json:"tokens_used"`
	RequestCount int64  `json:"request_count"`
}

func (r *UsageRepository) FeatureBreakdown(ctx context.Context, tenantID uuid.UUID, from, to string) ([]FeatureUsage, error) {
	var breakdown []FeatureUsage
	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("tenant_id = ? AND date BETWEEN ? AND ?", tenantID, from, to).
		Select("feature, SUM(tokens_used) as tokens_used, SUM(request_count) as request_count").
		Group("feature").
		Order("tokens_used DESC").
		Scan(&breakdown).Error

	return breakdown, err
}

type DailyUsage struct {
	Date         string `json:"date"`
	TokensUsed   int64  `json:"tokens_used"`
	RequestCount int64  `json:"request_count"`
}

func (r *UsageRepository) DailySeries(ctx context.Context, tenantID uuid.UUID, from, to string) ([]DailyUsage, error) {
	var series []DailyUsage
	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("tenant_id = ? AND date BETWEEN ? AND ?", tenantID, from, to).
		Select("date, SUM(tokens_used) as tokens_used, SUM(request_count) as request_count").
		Group("date").
		Order("date ASC").
		Scan(&series).Error

	return series, err
}

type UserUsage struct {
	UserID       uuid.UUID `json:"user_id"`
	TokensUsed   int64     `json:"tokens_used"`
	RequestCount int64     `json:"request_count"`
}

func (r *UsageRepository) TopUsers(ctx context.Context, tenantID uuid.UUID, from, to string, limit int) ([]UserUsage, error) {
	var users []UserUsage
	err := r.db.DB.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Where("tenant_id = ? AND date BETWEEN ? AND ?", tenantID, from, to).
		Select("user_id, SUM(tokens_used) as tokens_used, SUM(request_count) as request_count").
		Group("user_id").
		Order("tokens_used DESC").
		Limit(limit).
		Scan(&users).Error

	return users, err
}

// DeleteOldRecords trims rows past the retention horizon
func (r *UsageRepository) DeleteOldRecords(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("date < ?", before.Format("2006-01-02")).
		Delete(&models.UsageRecord{})

	return result.RowsAffected, result.Error
}
