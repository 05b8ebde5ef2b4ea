package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RequestRepository - интерфейс для работы с заявками.
type RequestRepository interface {
	CreateRequest(ctx context.Context, req models.Request, recipients []string) (*models.Request, error)
	GetRequest(ctx context.Context, requestId string) (*models.Request, error)
	LockRequest(ctx context.Context, requestId string) (*models.Request, error)
	CloseRequest(ctx context.Context, requestId string, status models.RequestStatus, winningEstimateId string, closedAt time.Time) (*models.Request, error)
	ListRecipients(ctx context.Context, requestId string) ([]string, error)
	IsRecipient(ctx context.Context, requestId, workerId string) (bool, error)
	ListStaleOpenRequests(ctx context.Context, createdBefore time.Time, limit int) ([]string, error)
}

// PostgresRequestRepository - реализация RequestRepository для базы данных.
type PostgresRequestRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresRequestRepository создаёт новый экземпляр PostgresRequestRepository.
func NewPostgresRequestRepository(db *pgxpool.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{DB: db}
}

const requestColumns = `id, seq, requester_id, category_id, description, lat, lng, address, media, settlement,
	status, notified_count, COALESCE(winning_estimate_id, ''), created_at, closed_at`

func scanRequest(row pgx.Row) (*models.Request, error) {
	var req models.Request
	err := row.Scan(
		&req.ID,
		&req.Seq,
		&req.RequesterID,
		&req.CategoryID,
		&req.Description,
		&req.Location.Lat,
		&req.Location.Lng,
		&req.Location.Address,
		&req.Media,
		&req.Settlement,
		&req.Status,
		&req.NotifiedCount,
		&req.WinningEstimateID,
		&req.CreatedAt,
		&req.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateRequest сохраняет заявку и зафиксированный набор оповещённых исполнителей.
func (r *PostgresRequestRepository) CreateRequest(ctx context.Context, req models.Request, recipients []string) (*models.Request, error) {
	var created *models.Request
	err := withinTx(ctx, r.DB, func(ctx context.Context) error {
		q := conn(ctx, r.DB)
		if req.Media == nil {
			req.Media = []string{}
		}

		insertQuery := `INSERT INTO call_request (id, requester_id, category_id, description, lat, lng, address, media,
                        settlement, status, notified_count, created_at)
                        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
                        RETURNING ` + requestColumns
		var err error
		created, err = scanRequest(q.QueryRow(
			ctx,
			insertQuery,
			req.ID,
			req.RequesterID,
			req.CategoryID,
			req.Description,
			req.Location.Lat,
			req.Location.Lng,
			req.Location.Address,
			req.Media,
			req.Settlement,
			req.Status,
			len(recipients),
			req.CreatedAt))
		if err != nil {
			return err
		}

		recipientQuery := `INSERT INTO call_request_recipient (request_id, worker_id) VALUES ($1, $2)`
		for _, workerId := range recipients {
			if _, err = q.Exec(ctx, recipientQuery, created.ID, workerId); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetRequest возвращает заявку по ID.
func (r *PostgresRequestRepository) GetRequest(ctx context.Context, requestId string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM call_request WHERE id = $1`
	return scanRequest(conn(ctx, r.DB).QueryRow(ctx, query, requestId))
}

// LockRequest читает заявку и блокирует её строку до конца транзакции.
func (r *PostgresRequestRepository) LockRequest(ctx context.Context, requestId string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM call_request WHERE id = $1 FOR UPDATE`
	return scanRequest(conn(ctx, r.DB).QueryRow(ctx, query, requestId))
}

// CloseRequest переводит открытую заявку в конечный статус.
func (r *PostgresRequestRepository) CloseRequest(ctx context.Context, requestId string, status models.RequestStatus, winningEstimateId string, closedAt time.Time) (*models.Request, error) {
	updateQuery := `UPDATE call_request SET status = $2, winning_estimate_id = NULLIF($3, ''), closed_at = $4
	                WHERE id = $1 AND status = $5
	                RETURNING ` + requestColumns
	req, err := scanRequest(conn(ctx, r.DB).QueryRow(ctx, updateQuery, requestId, status, winningEstimateId, closedAt, models.OpenRequest))
	if errors.Is(err, models.ErrRequestNotFound) {
		return nil, models.ErrRequestNotOpen
	}
	return req, err
}

// ListRecipients возвращает исполнителей, оповещённых о заявке.
func (r *PostgresRequestRepository) ListRecipients(ctx context.Context, requestId string) ([]string, error) {
	query := `SELECT worker_id FROM call_request_recipient WHERE request_id = $1 ORDER BY worker_id`
	rows, err := conn(ctx, r.DB).Query(ctx, query, requestId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []string
	for rows.Next() {
		var workerId string
		if err := rows.Scan(&workerId); err != nil {
			return nil, err
		}
		recipients = append(recipients, workerId)
	}
	return recipients, rows.Err()
}

// IsRecipient проверяет, входит ли исполнитель в набор оповещённых.
func (r *PostgresRequestRepository) IsRecipient(ctx context.Context, requestId, workerId string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM call_request_recipient WHERE request_id = $1 AND worker_id = $2)`
	err := conn(ctx, r.DB).QueryRow(ctx, query, requestId, workerId).Scan(&exists)
	return exists, err
}

// ListStaleOpenRequests возвращает открытые заявки, созданные раньше createdBefore.
func (r *PostgresRequestRepository) ListStaleOpenRequests(ctx context.Context, createdBefore time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM call_request WHERE status = $1 AND created_at < $2 ORDER BY created_at LIMIT $3`
	rows, err := conn(ctx, r.DB).Query(ctx, query, models.OpenRequest, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
