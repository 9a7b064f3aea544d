package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"knockwise/internal/model"
)

const saveBatchSize = 100

// GridRepository persists grids, their blocks and detection runs.
type GridRepository struct {
	db *gorm.DB
}

func NewGridRepository(db *gorm.DB) *GridRepository {
	return &GridRepository{db: db}
}

// SaveGrid upserts grid metadata. Blocks are saved separately.
func (r *GridRepository) SaveGrid(ctx context.Context, g *model.GridPG) error {
	return r.db.WithContext(ctx).Omit("Blocks").Save(g).Error
}

// SaveBlocks upserts blocks in batched transactions.
func (r *GridRepository) SaveBlocks(ctx context.Context, blocks []*model.GridBlockPG) error {
	for start := 0; start < len(blocks); start += saveBatchSize {
		end := min(start+saveBatchSize, len(blocks))
		batch := blocks[start:end]

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, b := range batch {
				if err := tx.Save(b).Error; err != nil {
					return fmt.Errorf("saving block %s/%s: %w", b.GridID, b.BlockID, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteGrid removes a grid together with all of its blocks.
func (r *GridRepository) DeleteGrid(ctx context.Context, gridID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("grid_id = ?", gridID).Delete(&model.GridBlockPG{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("id = ?", gridID).Delete(&model.GridPG{}).Error
	})
}

// LoadGrids returns all stored grids with their blocks in row-major order.
func (r *GridRepository) LoadGrids(ctx context.Context) ([]model.GridPG, error) {
	var grids []model.GridPG
	err := r.db.WithContext(ctx).
		Preload("Blocks", func(db *gorm.DB) *gorm.DB {
			return db.Order("grid_row ASC, grid_col ASC")
		}).
		Order("created_at ASC").
		Find(&grids).Error
	return grids, err
}

func (r *GridRepository) SaveDetectionRun(ctx context.Context, run *model.DetectionRunPG) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// DetectionRuns returns the most recent runs first.
func (r *GridRepository) DetectionRuns(ctx context.Context, limit int) ([]model.DetectionRunPG, error) {
	var runs []model.DetectionRunPG
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
