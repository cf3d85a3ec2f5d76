package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paveldemidov/flightbook/internal/domain"
)

type CityRepository interface {
	List(ctx context.Context) ([]domain.City, error)
	Create(ctx context.Context, city *domain.City) error
}

type PGCityRepository struct {
	db *pgxpool.Pool
}

func NewCityRepository(db *pgxpool.Pool) CityRepository {
	return &PGCityRepository{db: db}
}

func (r *PGCityRepository) List(ctx context.Context) ([]domain.City, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM cities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cities := make([]domain.City, 0)
	for rows.Next() {
		var c domain.City
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (r *PGCityRepository) Create(ctx context.Context, city *domain.City) error {
	err := r.db.QueryRow(ctx, `INSERT INTO cities (name) VALUES ($1) RETURNING id`, city.Name).Scan(&city.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

var _ CityRepository = (*PGCityRepository)(nil)
