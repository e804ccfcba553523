// Package app builds the services from configuration. The HTTP server and
// libraryctl share it.
package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/account"
	accountrepo "github.com/ovaphlow/pitchfork/service-library/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-library/internal/catalog"
	catalogrepo "github.com/ovaphlow/pitchfork/service-library/internal/catalog/repo"
	"github.com/ovaphlow/pitchfork/service-library/internal/config"
	"github.com/ovaphlow/pitchfork/service-library/internal/importer"
	"github.com/ovaphlow/pitchfork/service-library/internal/loan"
	loanrepo "github.com/ovaphlow/pitchfork/service-library/internal/loan/repo"
	"github.com/ovaphlow/pitchfork/service-library/internal/oidc"
	oidcrepo "github.com/ovaphlow/pitchfork/service-library/internal/oidc/repo"
	"github.com/ovaphlow/pitchfork/service-library/internal/person"
	personrepo "github.com/ovaphlow/pitchfork/service-library/internal/person/repo"
	"github.com/ovaphlow/pitchfork/service-library/internal/session"
	"github.com/ovaphlow/pitchfork/service-library/internal/stats"
	statsrepo "github.com/ovaphlow/pitchfork/service-library/internal/stats/repo"
	"github.com/ovaphlow/pitchfork/service-library/internal/storage"
	"github.com/ovaphlow/pitchfork/service-library/internal/translate"
)

// App holds the configured services.
type App struct {
	Config *config.Config
	DB     *sqlx.DB
	Logger *zap.SugaredLogger

	Accounts *account.Service
	People   *person.Service
	Tokens   *oidc.OIDCService
	Gate     *session.Gate
	Covers   storage.Bucket
	Catalog  *catalog.Service
	Loans    *loan.Service
	Importer *importer.Service
	Stats    *stats.Service
	// DeepL serves the translation proxy endpoint.
	DeepL *translate.DeepL
}

func New(cfg *config.Config, db *sqlx.DB, logger *zap.SugaredLogger) (*App, error) {
	a := &App{Config: cfg, DB: db, Logger: logger}

	a.Accounts = account.NewService(accountrepo.NewAccountRepo(db), account.BcryptHasher{Cost: cfg.Auth.BcryptCost})
	a.Accounts.MaxFailed = cfg.Auth.MaxFailed
	a.Accounts.LockMinutes = cfg.Auth.LockMinutes
	a.People = person.NewService(personrepo.NewPersonRepo(db))

	tokens, err := oidc.NewOIDCService(oidcrepo.NewRefreshRepo(db), oidc.Config{
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		KeyFile:    cfg.Auth.SigningKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}
	a.Tokens = tokens

	a.Gate = session.NewGate(a.Accounts, a.People, a.Tokens, logger)
	a.Gate.Retry = session.RetryPolicy{MaxAttempts: cfg.SSO.ProvisionAttempts, Delay: cfg.SSO.ProvisionDelay}
	if cfg.SSO.Enabled {
		a.Gate.SSO = session.NewSSO(session.SSOConfig{
			ClientID:     cfg.SSO.ClientID,
			ClientSecret: cfg.SSO.ClientSecret,
			AuthURL:      cfg.SSO.AuthURL,
			TokenURL:     cfg.SSO.TokenURL,
			UserinfoURL:  cfg.SSO.UserinfoURL,
			RedirectURL:  cfg.SSO.RedirectURL,
			Scopes:       cfg.SSO.Scopes,
		})
	}

	bucket, err := storage.NewFSBucket(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("cover bucket: %w", err)
	}
	a.Covers = bucket
	a.Catalog = catalog.NewService(catalogrepo.NewItemRepo(db), storage.NewUploader(bucket, cfg.Storage.MaxUpload))

	a.Loans = loan.NewService(loanrepo.NewLoanRepo(db), a.Catalog, logger)
	a.Loans.StrictAvailability = cfg.Loans.StrictAvailability

	a.DeepL = translate.NewDeepL(cfg.Translate.DeepLKey, cfg.Translate.DeepLURL, cfg.Translate.Timeout)
	var tr translate.Translator = a.DeepL
	if cfg.Translate.ProxyURL != "" {
		tr = translate.NewProxyClient(cfg.Translate.ProxyURL, cfg.Translate.ProxyKey, cfg.Translate.Timeout)
	}
	lang, err := importer.LookupLanguage(cfg.Import.Language)
	if err != nil {
		return nil, err
	}
	a.Importer = importer.NewService(
		importer.NewClient(cfg.Import.OpenLibraryURL, cfg.Import.CoversURL, cfg.Import.Timeout),
		a.Catalog, tr, lang,
		importer.Options{SearchLimit: cfg.Import.SearchLimit, DisplayLimit: cfg.Import.DisplayLimit},
		logger,
	)

	a.Stats = stats.NewService(statsrepo.NewStatsRepo(db))
	return a, nil
}
