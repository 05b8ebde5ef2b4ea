package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier - общее подмножество методов пула и транзакции.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transactor - граница атомарной операции над хранилищем.
// Вложенный вызов присоединяется к внешней транзакции.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type hooksKey struct{}

// CommitHooks накапливает действия, которые выполняются только после успешного коммита.
type CommitHooks struct {
	afterCommit []func()
}

// BeginHooks кладёт в контекст новый список отложенных действий.
func BeginHooks(ctx context.Context) (context.Context, *CommitHooks) {
	hooks := &CommitHooks{}
	return context.WithValue(ctx, hooksKey{}, hooks), hooks
}

// Run выполняет отложенные действия в порядке регистрации.
func (h *CommitHooks) Run() {
	for _, fn := range h.afterCommit {
		fn()
	}
	h.afterCommit = nil
}

// AfterCommit откладывает fn до коммита текущей транзакции.
// Вне транзакции fn выполняется сразу.
func AfterCommit(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(hooksKey{}).(*CommitHooks); ok {
		hooks.afterCommit = append(hooks.afterCommit, fn)
		return
	}
	fn()
}

type pgTxKey struct{}

// PostgresTransactor - реализация Transactor поверх пула соединений.
type PostgresTransactor struct {
	DB *pgxpool.Pool
}

// NewPostgresTransactor создает новый экземпляр PostgresTransactor.
func NewPostgresTransactor(db *pgxpool.Pool) *PostgresTransactor {
	return &PostgresTransactor{DB: db}
}

// WithinTx выполняет fn в транзакции READ COMMITTED.
func (t *PostgresTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withinTx(ctx, t.DB, fn)
}

func withinTx(ctx context.Context, db *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txCtx, hooks := BeginHooks(context.WithValue(ctx, pgTxKey{}, tx))
	if err = fn(txCtx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	hooks.Run()
	return nil
}

// conn возвращает транзакцию из контекста или пул.
func conn(ctx context.Context, db *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return db
}
