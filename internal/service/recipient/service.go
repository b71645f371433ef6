package recipient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/openon-app/capsule-api/internal/model"
	"github.com/openon-app/capsule-api/internal/repository"
)

const (
	cacheDuration   = 5 * time.Minute
	cleanupInterval = 15 * time.Minute
)

// Service resolves recipients for the capsule core. The core only ever
// consumes the boolean answer from IsRecipient; matching by linked
// account or by email lives here.
type Service struct {
	repo  repository.RecipientRepository
	cache *cache.Cache
}

func NewService(repo repository.RecipientRepository) *Service {
	return &Service{
		repo:  repo,
		cache: cache.New(cacheDuration, cleanupInterval),
	}
}

// Get returns the recipient record, served from cache when possible.
// Resolution runs on every open attempt and on every inbox render, so
// the short TTL matters more than perfect freshness.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Recipient, error) {
	if cached, ok := s.cache.Get(id.String()); ok {
		return cached.(*model.Recipient), nil
	}

	recipient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipient: %w", err)
	}

	s.cache.Set(id.String(), recipient, cache.DefaultExpiration)
	return recipient, nil
}

// IsRecipient reports whether the caller may open capsules addressed
// to the given recipient: either their account is linked to it, or
// their verified email matches the recipient's email.
func (s *Service) IsRecipient(ctx context.Context, recipientID, userID uuid.UUID, email string) (bool, error) {
	recipient, err := s.Get(ctx, recipientID)
	if err != nil {
		return false, err
	}

	if recipient.LinkedUserID != nil && *recipient.LinkedUserID == userID {
		return true, nil
	}
	return email != "" && strings.EqualFold(recipient.Email, email), nil
}

// LinkedUserID returns the account linked to a recipient, nil when the
// recipient has not signed up yet.
func (s *Service) LinkedUserID(ctx context.Context, recipientID uuid.UUID) (*uuid.UUID, error) {
	recipient, err := s.Get(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	return recipient.LinkedUserID, nil
}

// Create adds an address-book entry for the owner.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateRecipientRequest) (*model.Recipient, error) {
	now := time.Now()
	recipient := &model.Recipient{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		OwnerUserID: ownerID,
		DisplayName: req.DisplayName,
		Email:       strings.ToLower(req.Email),
	}
	if err := s.repo.Create(ctx, recipient); err != nil {
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}
	return recipient, nil
}

// ListByOwner returns the owner's address book.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*model.Recipient, error) {
	recipients, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}

// Link attaches a freshly registered account to a recipient entry and
// invalidates the cached copy.
func (s *Service) Link(ctx context.Context, recipientID, userID uuid.UUID) error {
	if err := s.repo.LinkUser(ctx, recipientID, userID); err != nil {
		return fmt.Errorf("failed to link recipient: %w", err)
	}
	s.cache.Delete(recipientID.String())
	return nil
}
