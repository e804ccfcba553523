package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ovaphlow/pitchfork/service-library/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-library/pkg/database"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

var (
	ErrNotFound = errors.New("item not found")
	// ErrInUse is returned when deleting an item that loans still reference.
	ErrInUse = errors.New("item has loans")
)

// Store is the persistence the catalog needs; *repo.ItemRepo satisfies it.
type Store interface {
	List(ctx context.Context) ([]*entity.Item, error)
	ListAvailable(ctx context.Context) ([]*entity.Item, error)
	Get(ctx context.Context, id int64) (*entity.Item, error)
	Categories(ctx context.Context) ([]string, error)
	Create(ctx context.Context, it *entity.Item) error
	Update(ctx context.Context, it *entity.Item) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	SetAvailable(ctx context.Context, id int64, available bool) (int64, error)
	Claim(ctx context.Context, id int64) (int64, error)
	SetCover(ctx context.Context, id int64, url string) (int64, error)
}

// CoverUploader validates and stores a cover image, returning its public URL.
type CoverUploader interface {
	Upload(ctx context.Context, contentType string, size int64, body io.Reader) (string, error)
}

// Draft is the editable part of an item.
type Draft struct {
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Year        int     `json:"year"`
	Category    string  `json:"category"`
	ISBN        string  `json:"isbn"`
	Available   *bool   `json:"available,omitempty"`
	CoverURL    *string `json:"cover_url,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Validate trims the text fields and checks the required ones.
func (d *Draft) Validate() error {
	fe := utilities.FieldErrors{}
	d.Title = strings.TrimSpace(d.Title)
	d.Author = strings.TrimSpace(d.Author)
	d.Category = strings.TrimSpace(d.Category)
	d.ISBN = strings.TrimSpace(d.ISBN)
	if d.Title == "" {
		fe.Add("title", "required")
	}
	if d.Author == "" {
		fe.Add("author", "required")
	}
	if d.Category == "" {
		fe.Add("category", "required")
	}
	if d.Year < 1 || d.Year > 9999 {
		fe.Add("year", "must be between 1 and 9999")
	}
	return fe.Err()
}

// Service implements catalog browsing and the administrator's books panel.
type Service struct {
	store  Store
	covers CoverUploader
}

func NewService(store Store, covers CoverUploader) *Service {
	return &Service{store: store, covers: covers}
}

// Browse lists items ordered by title whose title or author contains q and,
// when category is set, whose category equals it.
func (s *Service) Browse(ctx context.Context, q, category string) ([]*entity.Item, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return BrowseFilter(all, q, category), nil
}

func BrowseFilter(items []*entity.Item, q, category string) []*entity.Item {
	q = strings.ToLower(strings.TrimSpace(q))
	out := []*entity.Item{}
	for _, it := range items {
		if category != "" && it.Category != category {
			continue
		}
		if q != "" && !containsFold(q, it.Title, it.Author) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// AdminList lists items whose title, author or category contains q.
func (s *Service) AdminList(ctx context.Context, q string) ([]*entity.Item, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return AdminFilter(all, q), nil
}

func AdminFilter(items []*entity.Item, q string) []*entity.Item {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return items
	}
	out := []*entity.Item{}
	for _, it := range items {
		if containsFold(q, it.Title, it.Author, it.Category) {
			out = append(out, it)
		}
	}
	return out
}

func containsFold(lowerQ string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerQ) {
			return true
		}
	}
	return false
}

// Categories returns the distinct category names in order.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

// ListAvailable returns the items a new loan may reference.
func (s *Service) ListAvailable(ctx context.Context) ([]*entity.Item, error) {
	return s.store.ListAvailable(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Item, error) {
	it, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return it, nil
}

// Create validates d and stores a new item. Items are available unless d says otherwise.
func (s *Service) Create(ctx context.Context, d Draft) (*entity.Item, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	it := &entity.Item{ID: utilities.NextID(), Available: true}
	apply(it, d)
	if err := s.store.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return it, nil
}

func (s *Service) Update(ctx context.Context, id int64, d Draft) (*entity.Item, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(it, d)
	n, err := s.store.Update(ctx, it)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return it, nil
}

func apply(it *entity.Item, d Draft) {
	it.Title, it.Author, it.Year, it.Category, it.ISBN = d.Title, d.Author, d.Year, d.Category, d.ISBN
	if d.Available != nil {
		it.Available = *d.Available
	}
	if d.CoverURL != nil {
		it.CoverURL = nonEmpty(*d.CoverURL)
	}
	if d.Description != nil {
		it.Description = nonEmpty(*d.Description)
	}
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Delete removes an item. Items referenced by loans are rejected with ErrInUse.
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAvailable writes the availability flag without looking at its current value.
func (s *Service) SetAvailable(ctx context.Context, id int64, available bool) error {
	n, err := s.store.SetAvailable(ctx, id, available)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim marks an available item unavailable and reports whether it did.
func (s *Service) Claim(ctx context.Context, id int64) (bool, error) {
	n, err := s.store.Claim(ctx, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UploadCover stores an image in the cover bucket and points the item at it.
func (s *Service) UploadCover(ctx context.Context, id int64, contentType string, size int64, body io.Reader) (*entity.Item, error) {
	it, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.covers.Upload(ctx, contentType, size, body)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.SetCover(ctx, id, url); err != nil {
		return nil, fmt.Errorf("set cover: %w", err)
	}
	it.CoverURL = &url
	return it, nil
}
