package postgres

import (
	"context"
	"fmt"

	"phishSentinel/domain"

	"gorm.io/gorm"
)

type VerdictRepository struct {
	DB *gorm.DB
}

func NewVerdictRepository(db *gorm.DB) *VerdictRepository {
	return &VerdictRepository{DB: db}
}

func (r *VerdictRepository) Migrate() error {
	if err := r.DB.AutoMigrate(&domain.VerdictRecord{}); err != nil {
		return fmt.Errorf("failed to migrate verdict_records: %w", err)
	}
	return nil
}

func (r *VerdictRepository) SaveVerdict(ctx context.Context, rec *domain.VerdictRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to save verdict: %w", err)
	}

	return nil
}

// FindByTab returns the newest verdicts of a tab first.
func (r *VerdictRepository) FindByTab(ctx context.Context, tabID, limit int) ([]domain.VerdictRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []domain.VerdictRecord
	err := r.DB.WithContext(ctx).
		Where("tab_id = ?", tabID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query verdict_records: %w", err)
	}

	return rows, nil
}
