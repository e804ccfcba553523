// Package schema creates the library tables in dependency order.
package schema

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	accountrepo "github.com/ovaphlow/pitchfork/service-library/internal/account/repo"
	catalogrepo "github.com/ovaphlow/pitchfork/service-library/internal/catalog/repo"
	loanrepo "github.com/ovaphlow/pitchfork/service-library/internal/loan/repo"
	oidcrepo "github.com/ovaphlow/pitchfork/service-library/internal/oidc/repo"
	personrepo "github.com/ovaphlow/pitchfork/service-library/internal/person/repo"
)

// Step creates one table and its indexes.
type Step struct {
	Name   string
	Ensure func(ctx context.Context) error
}

// Steps lists the tables in creation order. people has a trigger on accounts
// and loans references people and catalog_items.
func Steps(db *sqlx.DB) []Step {
	return []Step{
		{"accounts", accountrepo.NewAccountRepo(db).EnsureTable},
		{"people", personrepo.NewPersonRepo(db).EnsureTable},
		{"catalog_items", catalogrepo.NewItemRepo(db).EnsureTable},
		{"loans", loanrepo.NewLoanRepo(db).EnsureTable},
		{"refresh_sessions", oidcrepo.NewRefreshRepo(db).EnsureTable},
	}
}

// Run executes steps in order and stops at the first failure.
func Run(ctx context.Context, logger *zap.SugaredLogger, steps []Step) error {
	for _, s := range steps {
		if err := s.Ensure(ctx); err != nil {
			return fmt.Errorf("ensure %s: %w", s.Name, err)
		}
		logger.Debugw("table ready", "table", s.Name)
	}
	return nil
}

// Ensure creates every table on db.
func Ensure(ctx context.Context, db *sqlx.DB, logger *zap.SugaredLogger) error {
	return Run(ctx, logger, Steps(db))
}
