package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AvailabilityRepository - реестр исполнителей, доступных в категории.
type AvailabilityRepository interface {
	AvailableWorkers(ctx context.Context, categoryId string) ([]string, error)
}

// PostgresAvailabilityRepository читает таблицу доступности, которую ведёт внешний сервис.
type PostgresAvailabilityRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresAvailabilityRepository создает новый экземпляр PostgresAvailabilityRepository.
func NewPostgresAvailabilityRepository(db *pgxpool.Pool) *PostgresAvailabilityRepository {
	return &PostgresAvailabilityRepository{DB: db}
}

// AvailableWorkers возвращает доступных сейчас исполнителей категории.
func (r *PostgresAvailabilityRepository) AvailableWorkers(ctx context.Context, categoryId string) ([]string, error) {
	query := `SELECT worker_id FROM worker_availability WHERE category_id = $1 AND available ORDER BY worker_id`
	rows, err := conn(ctx, r.DB).Query(ctx, query, categoryId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []string
	for rows.Next() {
		var workerId string
		if err := rows.Scan(&workerId); err != nil {
			return nil, err
		}
		workers = append(workers, workerId)
	}
	return workers, rows.Err()
}
