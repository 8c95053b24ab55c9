package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/coredesk/coredesk-gateway/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BudgetRepository struct {
	db *storage.Postgres
}

func NewBudgetRepository(db *storage.Postgres) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// GetOrCreate returns the tenant's budget row, inserting one with the given
// defaults on first use. The insert uses ON CONFLICT DO NOTHING so concurrent
// first requests cannot race into duplicate rows.
func (r *BudgetRepository) GetOrCreate(ctx context.Context, tenantID uuid.UUID, defaultBudget int64) (*models.TenantAIBudget, error) {
	row := models.TenantAIBudget{
		TenantID:           tenantID,
		MonthlyTokenBudget: defaultBudget,
		MonthlyTokensUsed:  0,
		FeaturesEnabled:    models.DefaultFeaturesEnabled(),
	}

	err := r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoNothing: true,
		}).
		Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert budget row for tenant %s: %w", tenantID, err)
	}

	// The struct is not populated when the row already existed, so re-fetch
	return r.FindByTenant(ctx, tenantID)
}

func (r *BudgetRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*models.TenantAIBudget, error) {
	var budget models.TenantAIBudget
	err := r.db.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&budget).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &budget, err
}

// AddTokensUsed applies a single atomic increment at the store. Never
// read-modify-write: concurrent debits for the same tenant must all land.
func (r *BudgetRepository) AddTokensUsed(ctx context.Context, tenantID uuid.UUID, tokens int64) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.TenantAIBudget{}).
		Where("tenant_id = ?", tenantID).
		Update("monthly_tokens_used", gorm.Expr("monthly_tokens_used + ?", tokens))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no budget row for tenant %s", tenantID)
	}

	return nil
}

func (r *BudgetRepository) ListAll(ctx context.Context) ([]models.TenantAIBudget, error) {
	var budgets []models.TenantAIBudget
	err := r.db.DB.WithContext(ctx).
		Order("created_at ASC").
		Find(&budgets).Error

	return budgets, err
}

// ResetUsage zeroes the monthly counter and stamps the reset time in one
// update.
func (r *BudgetRepository) ResetUsage(ctx context.Context, tenantID uuid.UUID, resetAt time.Time) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.TenantAIBudget{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"monthly_tokens_used": 0,
			"last_reset_at":       resetAt,
		}).Error
}

// UpdateSettings applies admin edits (budget amount, feature toggles)
func (r *BudgetRepository) UpdateSettings(ctx context.Context, tenantID uuid.UUID, updates map[string]interface{}) error {
	return r.db.DB.WithContext(ctx).
		Model(&models.TenantAIBudget{}).
		Where("tenant_id = ?", tenantID).
		Updates(updates).Error
}
