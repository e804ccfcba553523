// Package importer searches Open Library and turns a chosen candidate into a
// catalog item.
package importer

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library/internal/catalog"
	catalogentity "github.com/ovaphlow/pitchfork/service-library/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/translate"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

var ErrUnknownCandidate = errors.New("candidate not in the current result set")

// Source is the external catalog; *Client satisfies it.
type Source interface {
	Search(ctx context.Context, f Filters, limit int) ([]Doc, error)
	Description(ctx context.Context, key string) (*string, error)
	CoverURL(id int, size string) *string
}

// Catalog persists composed drafts; *catalog.Service satisfies it.
type Catalog interface {
	Create(ctx context.Context, d catalog.Draft) (*catalogentity.Item, error)
}

// Candidate is a ranked search result as shown to the administrator.
type Candidate struct {
	Doc
	Thumbnail *string `json:"thumbnail,omitempty"`
	Preferred bool    `json:"preferred_language"`
}

type Options struct {
	SearchLimit  int
	DisplayLimit int
}

type Service struct {
	source     Source
	catalog    Catalog
	translator translate.Translator
	lang       *Language
	opts       Options
	results    *ResultSet
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewService(source Source, cat Catalog, tr translate.Translator, lang *Language, opts Options, logger *zap.SugaredLogger) *Service {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 50
	}
	if opts.DisplayLimit <= 0 {
		opts.DisplayLimit = 20
	}
	return &Service{
		source:     source,
		catalog:    cat,
		translator: tr,
		lang:       lang,
		opts:       opts,
		results:    NewResultSet(),
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) Language() *Language { return s.lang }

func (s *Service) Subjects() ([]Subject, error) { return Subjects() }

// Search queries the source, ranks and truncates the results and stores them
// as owner's current result set. On error the previous set is left alone.
func (s *Service) Search(ctx context.Context, owner string, f Filters) ([]Candidate, error) {
	if f.empty() {
		fe := utilities.FieldErrors{}
		fe.Add("filters", "at least one filter is required")
		return nil, fe
	}
	if f.Year < 0 || f.Year > 9999 {
		fe := utilities.FieldErrors{}
		fe.Add("year", "must be between 1 and 9999")
		return nil, fe
	}
	docs, err := s.source.Search(ctx, f, s.opts.SearchLimit)
	if err != nil {
		return nil, err
	}
	ranked := Rank(docs, s.lang)
	if len(ranked) > s.opts.DisplayLimit {
		ranked = ranked[:s.opts.DisplayLimit]
	}
	s.results.Put(owner, ranked)
	s.logger.Infow("import search", "owner", owner, "found", len(docs), "shown", len(ranked))
	return s.candidates(ranked), nil
}

// Candidates returns owner's current result set.
func (s *Service) Candidates(owner string) []Candidate {
	return s.candidates(s.results.Get(owner))
}

func (s *Service) candidates(docs []Doc) []Candidate {
	out := make([]Candidate, 0, len(docs))
	for _, d := range docs {
		out = append(out, Candidate{
			Doc:       d,
			Thumbnail: s.source.CoverURL(d.CoverI, "M"),
			Preferred: slices.Contains(d.Language, s.lang.Code),
		})
	}
	return out
}

// Import persists the candidate with workKey from owner's result set and
// removes it from the set. Description and translation problems degrade to
// the untranslated or missing description.
func (s *Service) Import(ctx context.Context, owner, workKey string) (*catalogentity.Item, error) {
	key, err := WorkKey(workKey)
	if err != nil {
		return nil, err
	}
	doc, ok := s.results.Find(owner, key)
	if !ok {
		return nil, ErrUnknownCandidate
	}

	desc, err := s.source.Description(ctx, key)
	if err != nil {
		s.logger.Warnw("description unavailable", "work", key, "err", err)
		desc = nil
	}
	if desc != nil && *desc != "" {
		desc = s.translate(ctx, key, *desc)
	}

	draft := Compose(doc, desc, s.source.CoverURL(doc.CoverI, "L"), s.now())
	it, err := s.catalog.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.results.Remove(owner, key)
	s.logger.Infow("imported work", "work", key, "item", it.ID, "title", it.Title)
	return it, nil
}

func (s *Service) translate(ctx context.Context, key, text string) *string {
	if s.translator == nil {
		return &text
	}
	res, err := s.translator.Translate(ctx, text, s.lang.Target)
	if err != nil {
		s.logger.Warnw("translation failed, keeping original text", "work", key, "err", err)
		return &text
	}
	if res.TranslatedText == "" {
		return &text
	}
	return &res.TranslatedText
}
