package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/instant-call-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSessionRepository проверяет токены, выпущенные внешним сервисом авторизации.
type PostgresSessionRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresSessionRepository создает новый экземпляр PostgresSessionRepository.
func NewPostgresSessionRepository(db *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{DB: db}
}

// LookupSession возвращает владельца токена и срок действия сессии.
func (r *PostgresSessionRepository) LookupSession(ctx context.Context, token string) (string, time.Time, error) {
	var userId string
	var expiresAt time.Time
	query := `SELECT user_id, expires_at FROM session_token WHERE token = $1 AND expires_at > now()`
	err := conn(ctx, r.DB).QueryRow(ctx, query, token).Scan(&userId, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", time.Time{}, models.ErrUnauthorized
	}
	if err != nil {
		return "", time.Time{}, err
	}
	return userId, expiresAt, nil
}
