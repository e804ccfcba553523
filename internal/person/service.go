package person

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

var ErrNotFound = errors.New("person not found")

// Store is the persistence the person service needs; *repo.PersonRepo satisfies it.
type Store interface {
	Get(ctx context.Context, id string) (*entity.Person, error)
	List(ctx context.Context) ([]*entity.Person, error)
	InsertIfAbsent(ctx context.Context, p *entity.Person) (bool, error)
	Upsert(ctx context.Context, p *entity.Person) error
	UpdateProfile(ctx context.Context, id, firstName, lastName, gender string, age int) (int64, error)
	Update(ctx context.Context, p *entity.Person) (int64, error)
	SetAdmin(ctx context.Context, id string, admin bool) (int64, error)
	SetAdminByEmail(ctx context.Context, email string, admin bool) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// Profile is the self-service part of a person record.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	Age       int    `json:"age"`
}

// Validate checks required fields and the age range.
func (p *Profile) Validate() error {
	fe := utilities.FieldErrors{}
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" {
		fe.Add("first_name", "required")
	}
	if p.LastName == "" {
		fe.Add("last_name", "required")
	}
	if p.Gender == "" {
		fe.Add("gender", "required")
	} else if !entity.ValidGender(p.Gender) {
		fe.Add("gender", "must be one of M, F, Other")
	}
	if p.Age < 1 || p.Age > 150 {
		fe.Add("age", "must be between 1 and 150")
	}
	return fe.Err()
}

// Service implements the people roster operations.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns one person.
func (s *Service) Get(ctx context.Context, id string) (*entity.Person, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List returns people ordered by last name, keeping those whose first name,
// last name or email contains q (case-insensitive).
func (s *Service) List(ctx context.Context, q string) ([]*entity.Person, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, q), nil
}

// Filter applies the roster substring search.
func Filter(people []*entity.Person, q string) []*entity.Person {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return people
	}
	out := []*entity.Person{}
	for _, p := range people {
		if strings.Contains(strings.ToLower(p.FirstName), q) ||
			strings.Contains(strings.ToLower(p.LastName), q) ||
			strings.Contains(strings.ToLower(p.Email), q) {
			out = append(out, p)
		}
	}
	return out
}

// Register writes the profile supplied at signup, overwriting a provisioned placeholder.
func (s *Service) Register(ctx context.Context, id, email string, prof Profile) (*entity.Person, error) {
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	p := &entity.Person{
		ID:        id,
		Email:     email,
		FirstName: prof.FirstName,
		LastName:  prof.LastName,
		Gender:    prof.Gender,
		Age:       prof.Age,
	}
	if err := s.store.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return s.Get(ctx, id)
}

// EnsurePlaceholder inserts a placeholder record when none exists and reports
// whether it wrote one.
func (s *Service) EnsurePlaceholder(ctx context.Context, id, email string) (*entity.Person, bool, error) {
	created, err := s.store.InsertIfAbsent(ctx, entity.Placeholder(id, email))
	if err != nil {
		return nil, false, fmt.Errorf("insert placeholder: %w", err)
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return p, created, nil
}

// CompleteProfile stores the owner's profile after validation.
func (s *Service) CompleteProfile(ctx context.Context, id string, prof Profile) (*entity.Person, error) {
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	n, err := s.store.UpdateProfile(ctx, id, prof.FirstName, prof.LastName, prof.Gender, prof.Age)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// AdminUpdate is the administrator's edit of a person record.
type AdminUpdate struct {
	Profile
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Update applies an administrator edit.
func (s *Service) Update(ctx context.Context, id string, in AdminUpdate) (*entity.Person, error) {
	if err := in.Profile.Validate(); err != nil {
		return nil, err
	}
	p := &entity.Person{
		ID:        id,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Gender:    in.Gender,
		Age:       in.Age,
		Email:     strings.TrimSpace(in.Email),
		IsAdmin:   in.IsAdmin,
	}
	n, err := s.store.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

// ToggleAdmin flips the role flag and returns the updated record.
func (s *Service) ToggleAdmin(ctx context.Context, id string) (*entity.Person, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.store.SetAdmin(ctx, id, !p.IsAdmin)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	p.IsAdmin = !p.IsAdmin
	return p, nil
}

// SetAdminByEmail grants or revokes the role for the person with email.
func (s *Service) SetAdminByEmail(ctx context.Context, email string, admin bool) error {
	n, err := s.store.SetAdminByEmail(ctx, strings.TrimSpace(email), admin)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the person and, through the foreign key, their loans.
func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
