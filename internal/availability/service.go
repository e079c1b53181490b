package availability

import (
	"context"
	"fmt"

	"github.com/openmaraude/apitaxi/pkg/enums"
	"github.com/openmaraude/apitaxi/pkg/geostore"
	"github.com/openmaraude/apitaxi/pkg/logger"
)

// GeoStore is the real-time index surface the service needs.
type GeoStore interface {
	SetTaxiAvailability(ctx context.Context, taxiID, operator string, available bool) error
	NotAvailableMembers(ctx context.Context, members []string) (map[string]bool, error)
}

// ServiceParams configure the availability service.
type ServiceParams struct {
	Logger *logger.Logger
	Geo    GeoStore
}

// Service mirrors vehicle statuses into the real-time not_available set
// so dispatch can skip busy taxis without touching the registry.
type Service struct {
	logg *logger.Logger
	geo  GeoStore
}

// NewService builds an availability service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Geo == nil {
		return nil, fmt.Errorf("geo store required")
	}
	return &Service{logg: params.Logger, geo: params.Geo}, nil
}

// SetStatus updates the availability flag for one (taxi, operator) pair.
// Only `free` makes a taxi dispatchable; every other status flags it.
func (s *Service) SetStatus(ctx context.Context, taxiID, operator string, status enums.VehicleStatus) error {
	available := status == enums.VehicleStatusFree
	if err := s.geo.SetTaxiAvailability(ctx, taxiID, operator, available); err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"taxi_id":   taxiID,
		"operator":  operator,
		"status":    status,
		"available": available,
	}), "availability updated")
	return nil
}

// FilterUnavailable returns the subset of (taxi, operator) pairs flagged
// as not available.
func (s *Service) FilterUnavailable(ctx context.Context, taxiID string, operators []string) (map[string]bool, error) {
	members := make([]string, 0, len(operators))
	for _, operator := range operators {
		members = append(members, geostore.OperatorMember(taxiID, operator))
	}
	flagged, err := s.geo.NotAvailableMembers(ctx, members)
	if err != nil {
		return nil, fmt.Errorf("read not_available: %w", err)
	}
	byOperator := make(map[string]bool, len(operators))
	for i, operator := range operators {
		byOperator[operator] = flagged[members[i]]
	}
	return byOperator, nil
}
