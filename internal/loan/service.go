package loan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	catalogentity "github.com/ovaphlow/pitchfork/service-library/internal/catalog/entity"
	"github.com/ovaphlow/pitchfork/service-library/internal/loan/entity"
	"github.com/ovaphlow/pitchfork/service-library/pkg/database"
	"github.com/ovaphlow/pitchfork/service-library/pkg/utilities"
)

var (
	ErrNotFound        = errors.New("loan not found")
	ErrUnavailable     = errors.New("item is not available")
	ErrAlreadyReturned = errors.New("loan already returned")
	ErrBeforeStart     = errors.New("return date precedes the start date")
	ErrUnknownPerson   = errors.New("person does not exist")
)

// Store is the persistence loans need; *repo.LoanRepo satisfies it.
type Store interface {
	Create(ctx context.Context, l *entity.Loan) error
	Get(ctx context.Context, id int64) (*entity.Loan, error)
	List(ctx context.Context) ([]*entity.View, error)
	ListByPerson(ctx context.Context, personID string) ([]*entity.View, error)
	MarkReturned(ctx context.Context, id int64, endDate string) (int64, error)
}

// Items is the part of the catalog loans touch; *catalog.Service satisfies it.
type Items interface {
	Get(ctx context.Context, id int64) (*catalogentity.Item, error)
	ListAvailable(ctx context.Context) ([]*catalogentity.Item, error)
	SetAvailable(ctx context.Context, id int64, available bool) error
	Claim(ctx context.Context, id int64) (bool, error)
}

// Service implements the loan lifecycle.
type Service struct {
	store  Store
	items  Items
	logger *zap.SugaredLogger
	// StrictAvailability claims the item with a conditional update before the
	// loan is written. When false two concurrent requests may both succeed.
	StrictAvailability bool
	now                func() time.Time
}

func NewService(store Store, items Items, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, items: items, logger: logger, now: time.Now}
}

func (s *Service) today() string { return s.now().Format(entity.DateLayout) }

// Request lends an item to a patron starting today.
func (s *Service) Request(ctx context.Context, personID string, itemID int64) (*entity.Loan, error) {
	return s.open(ctx, personID, itemID, s.today())
}

// NewLoan is the administrator's loan form.
type NewLoan struct {
	PersonID  string `json:"person_id"`
	ItemID    int64  `json:"item_id,string"`
	StartDate string `json:"start_date"`
}

// Validate checks the form against today's date; a loan cannot start in the future.
func (n *NewLoan) Validate(today string) error {
	fe := utilities.FieldErrors{}
	n.PersonID = strings.TrimSpace(n.PersonID)
	n.StartDate = strings.TrimSpace(n.StartDate)
	if n.PersonID == "" {
		fe.Add("person_id", "required")
	}
	if n.ItemID == 0 {
		fe.Add("item_id", "required")
	}
	if n.StartDate == "" {
		fe.Add("start_date", "required")
	} else if _, err := time.Parse(entity.DateLayout, n.StartDate); err != nil {
		fe.Add("start_date", "must be a date formatted YYYY-MM-DD")
	} else if n.StartDate > today {
		fe.Add("start_date", "must not be after today")
	}
	return fe.Err()
}

// AdminCreate records a loan on behalf of a person. Only available items qualify.
func (s *Service) AdminCreate(ctx context.Context, in NewLoan) (*entity.Loan, error) {
	if err := in.Validate(s.today()); err != nil {
		return nil, err
	}
	return s.open(ctx, in.PersonID, in.ItemID, in.StartDate)
}

func (s *Service) open(ctx context.Context, personID string, itemID int64, start string) (*entity.Loan, error) {
	it, err := s.items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.Available {
		return nil, ErrUnavailable
	}
	if s.StrictAvailability {
		claimed, err := s.items.Claim(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, ErrUnavailable
		}
	}

	l := &entity.Loan{ID: utilities.NextID(), PersonID: personID, ItemID: itemID, StartDate: start}
	if err := s.store.Create(ctx, l); err != nil {
		if s.StrictAvailability {
			s.release(ctx, itemID)
		}
		if database.IsForeignKeyViolation(err) {
			return nil, ErrUnknownPerson
		}
		return nil, fmt.Errorf("create loan: %w", err)
	}

	if !s.StrictAvailability {
		if err := s.items.SetAvailable(ctx, itemID, false); err != nil {
			return nil, fmt.Errorf("mark item unavailable: %w", err)
		}
	}
	s.logger.Infow("loan opened", "loan", l.ID, "item", itemID, "person", personID)
	return l, nil
}

func (s *Service) release(ctx context.Context, itemID int64) {
	if err := s.items.SetAvailable(ctx, itemID, true); err != nil {
		s.logger.Warnw("release claimed item failed", "item", itemID, "err", err)
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Loan, error) {
	l, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// Return closes a loan today and puts the item back on the shelf.
func (s *Service) Return(ctx context.Context, id int64) (*entity.Loan, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.close(ctx, l)
}

// ReturnOwn is Return restricted to the loans of personID.
func (s *Service) ReturnOwn(ctx context.Context, personID string, id int64) (*entity.Loan, error) {
	l, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.PersonID != personID {
		return nil, ErrNotFound
	}
	return s.close(ctx, l)
}

func (s *Service) close(ctx context.Context, l *entity.Loan) (*entity.Loan, error) {
	if !l.Active() {
		return nil, ErrAlreadyReturned
	}
	end := s.today()
	// both sides are YYYY-MM-DD so string order is date order
	if end < l.StartDate {
		return nil, ErrBeforeStart
	}
	n, err := s.store.MarkReturned(ctx, l.ID, end)
	if err != nil {
		if database.IsCheckViolation(err) {
			return nil, ErrBeforeStart
		}
		return nil, err
	}
	if n == 0 {
		return nil, ErrAlreadyReturned
	}
	l.EndDate = &end
	if err := s.items.SetAvailable(ctx, l.ItemID, true); err != nil {
		s.logger.Warnw("mark item available failed", "item", l.ItemID, "loan", l.ID, "err", err)
	}
	s.logger.Infow("loan returned", "loan", l.ID, "item", l.ItemID)
	return l, nil
}

// ListAll returns every loan newest first, keeping those whose person or
// item text contains q.
func (s *Service) ListAll(ctx context.Context, q string) ([]*entity.View, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, q), nil
}

func Filter(views []*entity.View, q string) []*entity.View {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return views
	}
	out := []*entity.View{}
	for _, v := range views {
		for _, f := range []string{v.PersonFirstName, v.PersonLastName, v.PersonEmail, v.ItemTitle, v.ItemAuthor} {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// Mine is a person's loans split by state.
type Mine struct {
	Active    []*entity.View `json:"active"`
	Completed []*entity.View `json:"completed"`
}

func (s *Service) ListMine(ctx context.Context, personID string) (*Mine, error) {
	views, err := s.store.ListByPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	m := &Mine{Active: []*entity.View{}, Completed: []*entity.View{}}
	for _, v := range views {
		if v.Active() {
			m.Active = append(m.Active, v)
		} else {
			m.Completed = append(m.Completed, v)
		}
	}
	return m, nil
}

// AvailableItems lists the items the administrator's loan form may pick.
func (s *Service) AvailableItems(ctx context.Context) ([]*catalogentity.Item, error) {
	return s.items.ListAvailable(ctx)
}
