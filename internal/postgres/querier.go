package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// querier — общее у *pgxpool.Pool и pgx.Tx, репозитории работают с любым.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
)

var ErrDuplicateID = errors.New("postgres: duplicate message id")

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			// отправитель или получатель отсутствует в users
			return domain.ErrUserNotFound
		case codeUniqueViolation:
			return ErrDuplicateID
		}
	}
	return err
}
