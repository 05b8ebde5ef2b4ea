package repository

import (
	"context"
	"errors"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EstimateRepository - интерфейс для работы с ценовыми предложениями.
type EstimateRepository interface {
	UpsertEstimate(ctx context.Context, est models.Estimate) (*models.Estimate, error)
	GetActiveEstimate(ctx context.Context, requestId, workerId string) (*models.Estimate, error)
	ListEstimates(ctx context.Context, requestId string) ([]models.Estimate, error)
	MarkSelected(ctx context.Context, estimateId string) (*models.Estimate, error)
	RejectActiveEstimates(ctx context.Context, requestId string) (int64, error)
}

// PostgresEstimateRepository - реализация EstimateRepository для базы данных.
type PostgresEstimateRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresEstimateRepository создает новый экземпляр PostgresEstimateRepository.
func NewPostgresEstimateRepository(db *pgxpool.Pool) *PostgresEstimateRepository {
	return &PostgresEstimateRepository{DB: db}
}

const estimateColumns = `id, request_id, worker_id, price, note, status, submitted_at`

func scanEstimate(row pgx.Row) (*models.Estimate, error) {
	var est models.Estimate
	err := row.Scan(
		&est.ID,
		&est.RequestID,
		&est.WorkerID,
		&est.Price,
		&est.Note,
		&est.Status,
		&est.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrEstimateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &est, nil
}

// UpsertEstimate создаёт предложение или заменяет активное предложение того же исполнителя.
// ID замещённого предложения сохраняется.
func (r *PostgresEstimateRepository) UpsertEstimate(ctx context.Context, est models.Estimate) (*models.Estimate, error) {
	upsertQuery := `INSERT INTO estimate (id, request_id, worker_id, price, note, status, submitted_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7)
                   ON CONFLICT (request_id, worker_id) WHERE status IN ('ACTIVE', 'SELECTED')
                   DO UPDATE SET price = EXCLUDED.price, note = EXCLUDED.note, submitted_at = EXCLUDED.submitted_at
                   WHERE estimate.status = 'ACTIVE'
                   RETURNING ` + estimateColumns
	saved, err := scanEstimate(conn(ctx, r.DB).QueryRow(
		ctx,
		upsertQuery,
		est.ID,
		est.RequestID,
		est.WorkerID,
		est.Price,
		est.Note,
		models.ActiveEstimate,
		est.SubmittedAt))
	if errors.Is(err, models.ErrEstimateNotFound) {
		// конфликт с выбранным предложением: заявка уже закрыта
		return nil, models.ErrRequestNotOpen
	}
	return saved, err
}

// GetActiveEstimate возвращает активное предложение исполнителя по заявке.
func (r *PostgresEstimateRepository) GetActiveEstimate(ctx context.Context, requestId, workerId string) (*models.Estimate, error) {
	query := `SELECT ` + estimateColumns + ` FROM estimate WHERE request_id = $1 AND worker_id = $2 AND status = $3`
	return scanEstimate(conn(ctx, r.DB).QueryRow(ctx, query, requestId, workerId, models.ActiveEstimate))
}

// ListEstimates возвращает неотклонённые предложения по заявке в порядке подачи.
func (r *PostgresEstimateRepository) ListEstimates(ctx context.Context, requestId string) ([]models.Estimate, error) {
	query := `
		SELECT ` + estimateColumns + `
		FROM estimate
		WHERE request_id = $1 AND status <> $2
		ORDER BY submitted_at, id`
	rows, err := conn(ctx, r.DB).Query(ctx, query, requestId, models.RejectedEstimate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	estimates := []models.Estimate{}
	for rows.Next() {
		est, err := scanEstimate(rows)
		if err != nil {
			return nil, err
		}
		estimates = append(estimates, *est)
	}
	return estimates, rows.Err()
}

// MarkSelected переводит активное предложение в статус SELECTED.
func (r *PostgresEstimateRepository) MarkSelected(ctx context.Context, estimateId string) (*models.Estimate, error) {
	updateQuery := `UPDATE estimate SET status = $2 WHERE id = $1 AND status = $3 RETURNING ` + estimateColumns
	return scanEstimate(conn(ctx, r.DB).QueryRow(ctx, updateQuery, estimateId, models.SelectedEstimate, models.ActiveEstimate))
}

// RejectActiveEstimates отклоняет все активные предложения по заявке.
func (r *PostgresEstimateRepository) RejectActiveEstimates(ctx context.Context, requestId string) (int64, error) {
	updateQuery := `UPDATE estimate SET status = $2 WHERE request_id = $1 AND status = $3`
	tag, err := conn(ctx, r.DB).Exec(ctx, updateQuery, requestId, models.RejectedEstimate, models.ActiveEstimate)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
