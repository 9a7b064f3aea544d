package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"knockwise/internal/model"
	"knockwise/internal/service/storage"
)

// GridRepository is the persistence side of the grid store.
type GridRepository interface {
	SaveGrid(ctx context.Context, g *model.GridPG) error
	SaveBlocks(ctx context.Context, blocks []*model.GridBlockPG) error
	DeleteGrid(ctx context.Context, gridID string) error
	LoadGrids(ctx context.Context) ([]model.GridPG, error)
}

// Persister mirrors the in-memory grid store into the database.
type Persister struct {
	store *storage.GridStore
	repo  GridRepository
	log   *logrus.Entry
}

func NewPersister(store *storage.GridStore, repo GridRepository) *Persister {
	return &Persister{
		store: store,
		repo:  repo,
		log:   logrus.WithField("component", "persistence"),
	}
}

// Flush writes every dirty grid and block and removes deleted grids. Dirty
// flags are only cleared when the whole change set was written.
func (p *Persister) Flush(ctx context.Context) error {
	changes := p.store.PendingChanges()
	if changes.Empty() {
		return nil
	}
	start := time.Now()

	for id, g := range changes.Grids {
		if err := p.repo.SaveGrid(ctx, gridToPG(g)); err != nil {
			return fmt.Errorf("saving grid %s: %w", id, err)
		}
	}

	blocks := make([]*model.GridBlockPG, 0, len(changes.Blocks))
	for key, b := range changes.Blocks {
		// grid removed since the snapshot; its deletion is flushed next time
		if !p.gridExists(key.GridID) {
			continue
		}
		// loading is transient; persist the block as it was before the load
		b.IsLoading = false
		blocks = append(blocks, model.GridBlockToPG(key.GridID, &b))
	}
	if err := p.repo.SaveBlocks(ctx, blocks); err != nil {
		return fmt.Errorf("saving blocks: %w", err)
	}

	for _, id := range changes.DeletedGrids {
		if err := p.repo.DeleteGrid(ctx, id); err != nil {
			return fmt.Errorf("deleting grid %s: %w", id, err)
		}
	}

	p.store.Ack(changes)
	p.log.Printf("Flushed %d grids, %d blocks, %d deletions in %v",
		len(changes.Grids), len(blocks), len(changes.DeletedGrids), time.Since(start))
	return nil
}

func (p *Persister) gridExists(id string) bool {
	_, ok := p.store.Grid(id)
	return ok
}

// Restore loads stored grids into the store without marking them dirty.
func (p *Persister) Restore(ctx context.Context) (int, error) {
	grids, err := p.repo.LoadGrids(ctx)
	if err != nil {
		return 0, err
	}
	for i := range grids {
		g, blocks := gridFromPG(&grids[i])
		p.store.Restore(g, blocks)
	}
	p.log.Printf("Restored %d grids from database", len(grids))
	return len(grids), nil
}

// StartPersistenceWorker flushes on every tick until ctx is done, then runs a
// final flush bounded by finalTimeout.
func StartPersistenceWorker(ctx context.Context, p *Persister, interval, finalTimeout time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.Flush(ctx); err != nil {
					p.log.WithError(err).Error("Error saving to PostgreSQL")
				}
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), finalTimeout)
				if err := p.Flush(flushCtx); err != nil {
					p.log.WithError(err).Error("Final flush failed")
				}
				cancel()
				return
			}
		}
	}()

	p.log.Println("Persistence worker started with interval:", interval)
	return done
}

func gridToPG(g storage.Grid) *model.GridPG {
	return &model.GridPG{
		ID:          g.ID,
		Name:        g.Boundary.Name,
		Source:      string(g.Boundary.Source),
		CellSizeDeg: g.CellSizeDeg,
		Bounds:      g.Boundary.Bounds,
		Boundary:    g.Boundary.Coordinates,
		CreatedAt:   g.CreatedAt,
	}
}

func gridFromPG(pg *model.GridPG) (storage.Grid, []model.GridBlock) {
	g := storage.Grid{
		ID: pg.ID,
		Boundary: model.CommunityBoundary{
			Name:        pg.Name,
			Center:      pg.Bounds.Center(),
			Bounds:      pg.Bounds,
			Coordinates: pg.Boundary,
			Source:      model.BoundarySource(pg.Source),
		},
		CellSizeDeg: pg.CellSizeDeg,
		CreatedAt:   pg.CreatedAt,
	}
	blocks := make([]model.GridBlock, 0, len(pg.Blocks))
	for i := range pg.Blocks {
		blocks = append(blocks, *model.GridBlockFromPG(&pg.Blocks[i]))
	}
	return g, blocks
}
