package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// NotificationRepository - интерфейс для работы с входящими уведомлениями.
type NotificationRepository interface {
	AppendNotification(ctx context.Context, n models.Notification) (*models.Notification, error)
	PullNotifications(ctx context.Context, recipientId string, after int64, limit int, kinds []string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, recipientId, notificationId string) error
}

// PostgresNotificationRepository - реализация NotificationRepository для базы данных.
type PostgresNotificationRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresNotificationRepository создает новый экземпляр PostgresNotificationRepository.
func NewPostgresNotificationRepository(db *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{DB: db}
}

// AppendNotification добавляет запись во входящие получателя.
// Seq выдаётся под транзакционной блокировкой получателя, поэтому порядок курсора совпадает с порядком коммитов.
func (r *PostgresNotificationRepository) AppendNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	err = withinTx(ctx, r.DB, func(ctx context.Context) error {
		q := conn(ctx, r.DB)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('notification:' || $1))`, n.RecipientID); err != nil {
			return err
		}

		insertQuery := `INSERT INTO notification (id, recipient_id, seq, kind, payload, read, created_at)
                       SELECT $1, $2, COALESCE(MAX(seq), 0) + 1, $3, $4, FALSE, $5
                       FROM notification WHERE recipient_id = $2
                       RETURNING seq`
		return q.QueryRow(ctx, insertQuery, n.ID, n.RecipientID, n.Kind, payload, n.CreatedAt).Scan(&n.Seq)
	})
	if err != nil {
		return nil, err
	}
	n.Read = false
	return &n, nil
}

// PullNotifications возвращает записи получателя с seq больше after.
func (r *PostgresNotificationRepository) PullNotifications(ctx context.Context, recipientId string, after int64, limit int, kinds []string) ([]models.Notification, error) {
	var filters []string
	args := []interface{}{recipientId, after}
	argIndex := 3

	if len(kinds) > 0 {
		filters = append(filters, fmt.Sprintf("kind = ANY($%d)", argIndex))
		args = append(args, pq.Array(kinds))
		argIndex++
	}

	query := `SELECT id, recipient_id, seq, kind, payload, read, created_at FROM notification WHERE recipient_id = $1 AND seq > $2`
	if len(filters) > 0 {
		query += " AND " + strings.Join(filters, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY seq LIMIT $%d", argIndex)
	args = append(args, limit)

	rows, err := conn(ctx, r.DB).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Seq, &n.Kind, &payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload of %s: %w", n.ID, err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead отмечает запись прочитанной. Это единственное допустимое изменение записи.
func (r *PostgresNotificationRepository) MarkNotificationRead(ctx context.Context, recipientId, notificationId string) error {
	updateQuery := `UPDATE notification SET read = TRUE WHERE id = $1 AND recipient_id = $2`
	tag, err := conn(ctx, r.DB).Exec(ctx, updateQuery, notificationId, recipientId)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotificationNotFound
	}
	return nil
}
