package reset

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/coredesk/coredesk-gateway/internal/models"
	"github.com/google/uuid"
)

type BudgetStore interface {
	ListAll(ctx context.Context) ([]models.TenantAIBudget, error)
	ResetUsage(ctx context.Context, tenantID uuid.UUID, resetAt time.Time) error
}

type ArchiveStore interface {
	CreateIfAbsent(ctx context.Context, entry *models.ResetArchiveEntry) error
}

type Report struct {
	Message       string   `json:"message"`
	Count         int      `json:"count"`
	Total         int      `json:"total"`
	MonthArchived string   `json:"month_archived"`
	Errors        []string `json:"errors,omitempty"`
}

// Job archives and zeroes every tenant's monthly token counter at the period
// boundary. Triggered by an external scheduler; safe to re-run: a tenant
// whose last_reset_at already falls in the current period is skipped, and the
// archive write is a no-op if the (tenant, month) entry exists.
type Job struct {
	budgets  BudgetStore
	archives ArchiveStore
	now      func() time.Time
}

func NewJob(budgets BudgetStore, archives ArchiveStore) *Job {
	return &Job{
		budgets:  budgets,
		archives: archives,
		now:      time.Now,
	}
}

// Run processes every tenant independently: one tenant's failure is recorded
// and skipped, never fatal to the batch.
func (j *Job) Run(ctx context.Context) (Report, error) {
	rows, err := j.budgets.ListAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list tenant budgets: %w", err)
	}

	now := j.now().UTC()
	lastMonth := now.AddDate(0, -1, 0).Format("2006-01")

	report := Report{
		Total:         len(rows),
		MonthArchived: lastMonth,
	}

	if len(rows) == 0 {
		report.Message = "No tenants with AI budgets"
		return report, nil
	}

	for _, row := range rows {
		if alreadyReset(row.LastResetAt, now) {
			continue
		}

		if err := j.resetTenant(ctx, row, lastMonth, now); err != nil {
			log.Printf("reset: tenant %s failed: %v", row.TenantID, err)
			report.Errors = append(report.Errors, fmt.Sprintf("tenant %s: %v", row.TenantID, err))
			continue
		}

		report.Count++
	}

	report.Message = fmt.Sprintf("Reset %d of %d tenant(s)", report.Count, report.Total)
	return report, nil
}

func (j *Job) resetTenant(ctx context.Context, row models.TenantAIBudget, month string, now time.Time) error {
	// Archive the closing period's totals before zeroing, so the audit
	// trail survives the reset. Zero-usage tenants get no archive entry.
	if row.MonthlyTokensUsed > 0 {
		entry := &models.ResetArchiveEntry{
			TenantID:           row.TenantID,
			Month:              month,
			TokensUsed:         row.MonthlyTokensUsed,
			TokenBudget:        row.MonthlyTokenBudget,
			UtilizationPercent: utilization(row.MonthlyTokensUsed, row.MonthlyTokenBudget),
		}

		if err := j.archives.CreateIfAbsent(ctx, entry); err != nil {
			return fmt.Errorf("archive write: %w", err)
		}
	}

	if err := j.budgets.ResetUsage(ctx, row.TenantID, now); err != nil {
		return fmt.Errorf("counter reset: %w", err)
	}

	return nil
}

// A reset stamped within the current calendar month means this period was
// already processed (scheduler retry or duplicate trigger)
func alreadyReset(lastResetAt *time.Time, now time.Time) bool {
	if lastResetAt == nil {
		return false
	}

	reset := lastResetAt.UTC()
	return reset.Year() == now.Year() && reset.Month() == now.Month()
}

func utilization(used, budget int64) int {
	if budget <= 0 {
		return 0
	}

	return int(math.Round(float64(used) / float64(budget) * 100))
}
