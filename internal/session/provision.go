package session

import (
	"context"
	"errors"
	"time"

	"github.com/ovaphlow/pitchfork/service-library/internal/person"
	personentity "github.com/ovaphlow/pitchfork/service-library/internal/person/entity"
)

// Outcome is the result of waiting for a person record.
type Outcome string

const (
	ProvisionFound   Outcome = "found"
	ProvisionCreated Outcome = "created"
	ProvisionFailed  Outcome = "failed"
)

// RetryPolicy bounds the provisioning poll.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Delay: time.Second}
}

type provisionStore interface {
	Get(ctx context.Context, id string) (*personentity.Person, error)
	EnsurePlaceholder(ctx context.Context, id, email string) (*personentity.Person, bool, error)
}

// AwaitPerson polls for the person record keyed by id, which a database
// trigger writes for accounts created outside the password flow. When the
// record is still missing after the last attempt a placeholder is inserted.
func AwaitPerson(ctx context.Context, store provisionStore, policy RetryPolicy, id, email string) (*personentity.Person, Outcome, error) {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		p, err := store.Get(ctx, id)
		if err == nil {
			return p, ProvisionFound, nil
		}
		if !errors.Is(err, person.ErrNotFound) {
			lastErr = err
		}
		if attempt == policy.MaxAttempts {
			break
		}
		t := time.NewTimer(policy.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ProvisionFailed, ctx.Err()
		case <-t.C:
		}
	}

	p, created, err := store.EnsurePlaceholder(ctx, id, email)
	if err != nil {
		return nil, ProvisionFailed, errors.Join(lastErr, err)
	}
	if created {
		return p, ProvisionCreated, nil
	}
	// the trigger won the race against our insert
	return p, ProvisionFound, nil
}
