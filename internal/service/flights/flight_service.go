package flights

import (
	"context"
	"errors"

	"github.com/paveldemidov/flightbook/internal/domain"
	"github.com/paveldemidov/flightbook/internal/repository"
	"go.uber.org/zap"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Search(ctx context.Context, criteria repository.FlightSearch) ([]domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
}

type Cache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type FlightService struct {
	repo  repository.FlightRepository
	cache Cache
	log   *zap.Logger
}

func NewFlightService(repo repository.FlightRepository, cache Cache, log *zap.Logger) *FlightService {
	return &FlightService{repo: repo, cache: cache, log: log}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			s.log.Warn("failed to cache flight list", zap.Error(err))
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) Search(ctx context.Context, criteria repository.FlightSearch) ([]domain.Flight, error) {
	if criteria.RoundTrip && criteria.ReturnDate.Before(criteria.DepartureDate) {
		return nil, errors.New("return date must not precede departure date")
	}
	return s.repo.Search(ctx, criteria)
}

func (s *FlightService) Create(ctx context.Context, flight *domain.Flight) error {
	if flight.SeatsAvailable < 0 {
		return errors.New("seats available must not be negative")
	}
	if !flight.ArrivalTime.After(flight.DepartureTime) {
		return errors.New("arrival must be after departure")
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.log.Warn("failed to invalidate flight cache", zap.Error(err))
		}
	}
	return nil
}

var _ FlightUseCase = (*FlightService)(nil)
