package resolve

import (
	"context"
	"strconv"
	"sync"

	"github.com/okian/earworms/internal/domain/model"
	"github.com/okian/earworms/pkg/logger"
)

type lookupJob struct {
	index int
	key   model.TrackKey
}

type lookupResult struct {
	id    string
	found bool
}

// lookupPool runs first-pass catalog lookups on a fixed set of workers.
// Results are stored by index so rank order survives any scheduling.
type lookupPool struct {
	catalog Catalog
	workers int
	log     logger.Logger
}

func (p *lookupPool) run(ctx context.Context, keys []model.TrackKey) ([]lookupResult, error) {
	results := make([]lookupResult, len(keys))
	if len(keys) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan lookupJob, len(keys))
	for i, k := range keys {
		jobs <- lookupJob{index: i, key: k}
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	workers := max(1, min(p.workers, len(keys)))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(log logger.Logger) {
			defer wg.Done()
			for job := range jobs {
				if ctx.Err() != nil {
					return
				}
				id, found, err := p.catalog.Lookup(ctx, job.key)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					log.Debug(ctx, "lookup failed", logger.String("track", job.key.String()), logger.Error(err))
					return
				}
				results[job.index] = lookupResult{id: id, found: found}
			}
		}(p.log.Named("worker-" + strconv.Itoa(i)))
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
