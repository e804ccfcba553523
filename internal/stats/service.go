// Package stats computes the administrator statistics and dashboard figures.
package stats

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-library/internal/stats/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/stats/repo"
)

const (
	TopCategories = 6
	TopItems      = 5
)

// Store is satisfied by *repo.StatsRepo.
type Store interface {
	Count(ctx context.Context, c repo.Counter) (int64, error)
	LoansByCategory(ctx context.Context, limit int) ([]entity.Tally, error)
	LoansByGender(ctx context.Context) ([]entity.Tally, error)
	TopItems(ctx context.Context, limit int) ([]entity.ItemTally, error)
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Snapshot issues every query concurrently and fails if any of them does.
func (s *Service) Snapshot(ctx context.Context) (*entity.Snapshot, error) {
	out := &entity.Snapshot{TakenAt: s.now()}
	g, gctx := errgroup.WithContext(ctx)

	count := func(c repo.Counter, dst *int64) {
		g.Go(func() error {
			n, err := s.store.Count(gctx, c)
			*dst = n
			return err
		})
	}
	count(repo.CountItems, &out.TotalItems)
	count(repo.CountPeople, &out.TotalPeople)
	count(repo.CountOpenLoans, &out.OpenLoans)
	count(repo.CountLoans, &out.TotalLoans)

	g.Go(func() error {
		var err error
		out.ByCategory, err = s.store.LoansByCategory(gctx, TopCategories)
		return err
	})
	g.Go(func() error {
		var err error
		out.ByGender, err = s.store.LoansByGender(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.TopItems, err = s.store.TopItems(gctx, TopItems)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Dashboard(ctx context.Context) (*entity.Dashboard, error) {
	out := &entity.Dashboard{}
	g, gctx := errgroup.WithContext(ctx)
	for c, dst := range map[repo.Counter]*int64{
		repo.CountItems:          &out.Items,
		repo.CountAvailableItems: &out.AvailableItems,
		repo.CountPeople:         &out.People,
		repo.CountOpenLoans:      &out.OpenLoans,
	} {
		g.Go(func() error {
			n, err := s.store.Count(gctx, c)
			*dst = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
