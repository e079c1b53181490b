package customers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	pkgerrors "github.com/openmaraude/apitaxi/pkg/errors"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

// Store is the persistence surface the service needs.
type Store interface {
	GetOrCreate(ctx context.Context, id string, moteurID uuid.UUID) (*models.Customer, error)
	Save(ctx context.Context, customer *models.Customer) error
}

// ServiceParams configure the customers service.
type ServiceParams struct {
	Logger          *logger.Logger
	Repo            Store
	BanBaseDuration time.Duration
	Now             func() time.Time
}

// Service manages rider records and their ban windows. Bans are scoped
// to one moteur: the same rider reported through another application is
// unaffected.
type Service struct {
	logg    *logger.Logger
	repo    Store
	banBase time.Duration
	now     func() time.Time
}

// NewService builds a customers service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repo required")
	}
	banBase := params.BanBaseDuration
	if banBase <= 0 {
		banBase = 24 * time.Hour
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:    params.Logger,
		repo:    params.Repo,
		banBase: banBase,
		now:     now,
	}, nil
}

// EnsureCanHail returns the customer row, creating it on first contact,
// and rejects riders under an active ban.
func (s *Service) EnsureCanHail(ctx context.Context, id string, moteurID uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.GetOrCreate(ctx, id, moteurID)
	if err != nil {
		return nil, fmt.Errorf("get or create customer: %w", err)
	}
	if customer.BannedAt(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customer is banned")
	}
	return customer, nil
}

// Get returns the customer row without the ban check, creating it on
// first contact. Reporting flows need the row even for banned riders.
func (s *Service) Get(ctx context.Context, id string, moteurID uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.GetOrCreate(ctx, id, moteurID)
	if err != nil {
		return nil, fmt.Errorf("get or create customer: %w", err)
	}
	return customer, nil
}

// Ban opens a ban window for the rider. The first offence lasts the base
// duration; reporting a rider whose ban is still running doubles the
// previous window.
func (s *Service) Ban(ctx context.Context, customer *models.Customer) error {
	now := s.now()
	duration := s.banBase
	if customer.BanBegin != nil && customer.BanEnd != nil && customer.BanEnd.After(now) {
		duration = customer.BanEnd.Sub(*customer.BanBegin) * 2
	}
	begin := now
	end := now.Add(duration)
	customer.BanBegin = &begin
	customer.BanEnd = &end

	if err := s.repo.Save(ctx, customer); err != nil {
		return fmt.Errorf("save ban: %w", err)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"customer_id": customer.ID,
		"ban_end":     end,
	}), "customer banned")
	return nil
}

// Unban clears the ban window, typically when a moteur withdraws a
// report.
func (s *Service) Unban(ctx context.Context, customer *models.Customer) error {
	customer.BanBegin = nil
	customer.BanEnd = nil
	if err := s.repo.Save(ctx, customer); err != nil {
		return fmt.Errorf("save unban: %w", err)
	}
	s.logg.Info(s.logg.WithField(ctx, "customer_id", customer.ID), "customer unbanned")
	return nil
}
