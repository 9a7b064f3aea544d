package loader

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"knockwise/internal/geometry"
	"knockwise/internal/model"
	"knockwise/internal/service/enrichment"
)

var ErrBlockNotFound = errors.New("loader: block not found")

// UpdateFunc applies mutate to the caller's copy of a block. mutate returns
// false to leave the block unchanged. UpdateFunc reports whether the block
// exists. Implementations must run mutate atomically with respect to other
// updates of the same block.
type UpdateFunc func(blockID string, mutate func(b *model.GridBlock) bool) bool

type Enricher interface {
	Enrich(ctx context.Context, ring []model.LatLng, bbox model.BoundingBox) (*enrichment.Result, error)
}

type Outcome int

const (
	// OutcomeSkipped: the block was already loading or loaded.
	OutcomeSkipped Outcome = iota
	OutcomeLoaded
	OutcomeEmpty
	// OutcomeDiscarded: the block left the loading state (grid cleared or
	// reset) before the result arrived, so the result was dropped.
	OutcomeDiscarded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeLoaded:
		return "loaded"
	case OutcomeEmpty:
		return "empty"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "failed"
	}
}

// Loader moves blocks through unloaded -> loading -> loaded. It keeps no
// reference to the block collection; every state change goes through the
// caller's UpdateFunc.
type Loader struct {
	enricher Enricher
	log      *logrus.Entry
}

func NewLoader(enricher Enricher) *Loader {
	return &Loader{
		enricher: enricher,
		log:      logrus.WithField("component", "loader"),
	}
}

// Load enriches one block. It is a no-op when the block is already loading or
// loaded. On failure or cancellation the block goes back to unloaded so it can
// be retried.
func (l *Loader) Load(ctx context.Context, blockID string, update UpdateFunc) (Outcome, error) {
	var ring []model.LatLng
	started := false
	found := update(blockID, func(b *model.GridBlock) bool {
		if b.IsLoading || b.IsDataLoaded {
			return false
		}
		b.IsLoading = true
		ring = b.Coordinates
		started = true
		return true
	})
	if !found {
		return OutcomeFailed, ErrBlockNotFound
	}
	if !started {
		l.log.Debugf("Block %s already loading or loaded, skipping", blockID)
		return OutcomeSkipped, nil
	}

	start := time.Now()
	res, err := l.enrich(ctx, ring)
	if err != nil {
		update(blockID, func(b *model.GridBlock) bool {
			if !b.IsLoading {
				return false
			}
			b.IsLoading = false
			return true
		})
		l.log.WithError(err).Warnf("Loading block %s failed, reverted to unloaded", blockID)
		return OutcomeFailed, err
	}

	applied := false
	update(blockID, func(b *model.GridBlock) bool {
		if !b.IsLoading {
			return false
		}
		b.IsLoading = false
		b.IsDataLoaded = true
		b.Buildings = res.Buildings
		b.Streets = res.Streets
		applied = true
		return true
	})
	if !applied {
		l.log.Infof("Block %s changed while loading, result discarded", blockID)
		return OutcomeDiscarded, nil
	}

	outcome := OutcomeLoaded
	if len(res.Buildings) == 0 {
		outcome = OutcomeEmpty
	}
	l.log.Printf("Block %s %s in %v (%s)", blockID, outcome, time.Since(start), res)
	return outcome, nil
}

func (l *Loader) enrich(ctx context.Context, ring []model.LatLng) (*enrichment.Result, error) {
	bbox, err := geometry.BoundingBoxOf(ring)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.enricher.Enrich(ctx, ring, bbox)
}
