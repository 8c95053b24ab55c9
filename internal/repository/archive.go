package repository

import (
	"context"

	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/coredesk/coredesk-gateway/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

type ArchiveRepository struct {
	db *storage.Postgres
}

func NewArchiveRepository(db *storage.Postgres) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// CreateIfAbsent writes the archive entry unless one already exists for the
// (tenant, month) pair. Write-once: a re-run of the reset job must not
// produce a second entry or mutate the first.
func (r *ArchiveRepository) CreateIfAbsent(ctx context.Context, entry *models.ResetArchiveEntry) error {
	return r.db.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "month"}},
			DoNothing: true,
		}).
		Create(entry).Error
}

func (r *ArchiveRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]models.ResetArchiveEntry, error) {
	var entries []models.ResetArchiveEntry
	err := r.db.DB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("month DESC").
		Limit(limit).
		Find(&entries).Error

	return entries, err
}
