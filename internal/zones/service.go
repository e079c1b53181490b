package zones

import (
	"context"
	"fmt"
	"sync"

	"github.com/openmaraude/apitaxi/pkg/db/models"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

// Loader is the subset of Repository used by the service.
type Loader interface {
	ListTowns(ctx context.Context) ([]models.Town, error)
	ListZUPCs(ctx context.Context) ([]models.ZUPC, error)
	ListExclusions(ctx context.Context) ([]models.Exclusion, error)
}

// ServiceParams configure the zones service.
type ServiceParams struct {
	Logger *logger.Logger
	Repo   Loader
}

// Service owns the in-memory zone indexes and keeps them in sync with
// the registry. The town index is loaded eagerly at startup; the
// exclusion index is loaded on first use.
type Service struct {
	logg *logger.Logger
	repo Loader

	index      *Index
	exclusions *ExclusionIndex

	exclusionsMtx    sync.Mutex
	exclusionsLoaded bool
}

// NewService builds a zones service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repo required")
	}
	return &Service{
		logg:       params.Logger,
		repo:       params.Repo,
		index:      NewIndex(),
		exclusions: NewExclusionIndex(),
	}, nil
}

// Load populates the town index from the registry.
func (s *Service) Load(ctx context.Context) error {
	towns, err := s.repo.ListTowns(ctx)
	if err != nil {
		return fmt.Errorf("list towns: %w", err)
	}
	zupcs, err := s.repo.ListZUPCs(ctx)
	if err != nil {
		return fmt.Errorf("list zupcs: %w", err)
	}
	if err := s.index.Rebuild(towns, zupcs); err != nil {
		return fmt.Errorf("rebuild zone index: %w", err)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"towns": len(towns),
		"zupcs": len(zupcs),
	}), "zone index loaded")
	return nil
}

// Reload refreshes both indexes from the registry.
func (s *Service) Reload(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	rows, err := s.repo.ListExclusions(ctx)
	if err != nil {
		return fmt.Errorf("list exclusions: %w", err)
	}
	if err := s.exclusions.Rebuild(rows); err != nil {
		return fmt.Errorf("rebuild exclusion index: %w", err)
	}
	s.exclusionsMtx.Lock()
	s.exclusionsLoaded = true
	s.exclusionsMtx.Unlock()
	return nil
}

// Authorized reports whether a taxi with an ADS under adsInsee may pick
// up at the point.
func (s *Service) Authorized(adsInsee string, lon, lat float64) bool {
	return s.index.Authorized(adsInsee, lon, lat)
}

// AllowedInsee returns the INSEE codes allowed to pick up at the point.
func (s *Service) AllowedInsee(lon, lat float64) map[string]struct{} {
	return s.index.AllowedInsee(lon, lat)
}

// InseeAt returns the INSEE code of a town containing the point, or ""
// when the point falls outside every known town.
func (s *Service) InseeAt(lon, lat float64) string {
	found := s.index.TownsAt(lon, lat)
	if len(found) == 0 {
		return ""
	}
	return found[0]
}

// Excluded reports whether hailing is forbidden at the point. The
// exclusion index loads lazily on the first call; a failed load is
// retried on the next call instead of being cached.
func (s *Service) Excluded(ctx context.Context, lon, lat float64) (bool, error) {
	if err := s.ensureExclusions(ctx); err != nil {
		return false, err
	}
	return s.exclusions.Excluded(lon, lat), nil
}

func (s *Service) ensureExclusions(ctx context.Context) error {
	s.exclusionsMtx.Lock()
	defer s.exclusionsMtx.Unlock()
	if s.exclusionsLoaded {
		return nil
	}
	rows, err := s.repo.ListExclusions(ctx)
	if err != nil {
		return fmt.Errorf("list exclusions: %w", err)
	}
	if err := s.exclusions.Rebuild(rows); err != nil {
		return fmt.Errorf("rebuild exclusion index: %w", err)
	}
	s.exclusionsLoaded = true
	s.logg.Info(s.logg.WithField(ctx, "exclusions", len(rows)), "exclusion index loaded")
	return nil
}
