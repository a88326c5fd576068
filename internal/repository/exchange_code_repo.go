package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sbguangha/tianyishenshu/internal/model"

	"github.com/jackc/pgx/v5"
)

// ErrDuplicateCode is returned when an inserted code collides with an existing one
var ErrDuplicateCode = errors.New("exchange code already exists")

// ExchangeCodeRepository is the store behind the exchange code registry. Redeem and
// DeleteIfPending are conditional writes so that the status check and the mutation
// happen in one statement.
type ExchangeCodeRepository interface {
	Insert(ctx context.Context, code *model.ExchangeCode) error
	FindByCode(ctx context.Context, code string) (*model.ExchangeCode, error)
	FindByID(ctx context.Context, id string) (*model.ExchangeCode, error)
	Redeem(ctx context.Context, code, usedBy string, usedAt time.Time) (bool, error)
	Release(ctx context.Context, code, usedBy string) (bool, error)
	DeleteIfPending(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filters model.ExchangeCodeFilters) ([]model.ExchangeCode, int, error)
	Stats(ctx context.Context) (*model.ExchangeCodeStats, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type exchangeCodeRepository struct {
	db DB
}

// NewExchangeCodeRepository creates a new ExchangeCodeRepository
func NewExchangeCodeRepository(db DB) ExchangeCodeRepository {
	return &exchangeCodeRepository{db: db}
}

const exchangeCodeColumns = `id, code, status, created_at, created_by, used_at, used_by`

// Insert stores a new pending code
func (r *exchangeCodeRepository) Insert(ctx context.Context, c *model.ExchangeCode) error {
	sql := `INSERT INTO exchange_codes (id, code, status, created_at, created_by)
            VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, sql, c.ID, c.Code, c.Status, c.CreatedAt, c.CreatedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to insert exchange code: %w", err)
	}
	return nil
}

// FindByCode looks up a code by exact match. A missing code yields (nil, nil).
func (r *exchangeCodeRepository) FindByCode(ctx context.Context, code string) (*model.ExchangeCode, error) {
	sql := `SELECT ` + exchangeCodeColumns + ` FROM exchange_codes WHERE code = $1`
	c, err := scanExchangeCode(r.db.QueryRow(ctx, sql, code))
	if err != nil {
		return nil, fmt.Errorf("failed to find exchange code: %w", err)
	}
	return c, nil
}

// FindByID looks up a code by its identifier. A missing code yields (nil, nil).
func (r *exchangeCodeRepository) FindByID(ctx context.Context, id string) (*model.ExchangeCode, error) {
	sql := `SELECT ` + exchangeCodeColumns + ` FROM exchange_codes WHERE id = $1`
	c, err := scanExchangeCode(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find exchange code by ID: %w", err)
	}
	return c, nil
}

// Redeem flips a pending code to used. It reports false when no pending row matched,
// which is also what every loser of a concurrent redemption sees.
func (r *exchangeCodeRepository) Redeem(ctx context.Context, code, usedBy string, usedAt time.Time) (bool, error) {
	sql := `UPDATE exchange_codes
            SET status = 'used', used_at = $1, used_by = $2
            WHERE code = $3 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, sql, usedAt, usedBy, code)
	if err != nil {
		return false, fmt.Errorf("failed to redeem exchange code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release returns a code redeemed by usedBy to pending. It undoes a redemption whose
// login could not be completed and never touches a code redeemed by someone else.
func (r *exchangeCodeRepository) Release(ctx context.Context, code, usedBy string) (bool, error) {
	sql := `UPDATE exchange_codes
            SET status = 'pending', used_at = NULL, used_by = NULL
            WHERE code = $1 AND status = 'used' AND used_by = $2`
	tag, err := r.db.Exec(ctx, sql, code, usedBy)
	if err != nil {
		return false, fmt.Errorf("failed to release exchange code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteIfPending removes a code only while it is still pending
func (r *exchangeCodeRepository) DeleteIfPending(ctx context.Context, id string) (bool, error) {
	sql := `DELETE FROM exchange_codes WHERE id = $1 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, sql, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete exchange code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns one page of codes, newest first, plus the total matching the filter
func (r *exchangeCodeRepository) List(ctx context.Context, filters model.ExchangeCodeFilters) ([]model.ExchangeCode, int, error) {
	var where strings.Builder
	args := []interface{}{}
	argCount := 1

	if filters.Status != "" && filters.Status != model.ExchangeCodeStatusAll {
		where.WriteString(fmt.Sprintf(" WHERE status = $%d", argCount))
		args = append(args, filters.Status)
		argCount++
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM exchange_codes` + where.String()
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count exchange codes: %w", err)
	}

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + exchangeCodeColumns + ` FROM exchange_codes`)
	queryBuilder.WriteString(where.String())
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", argCount, argCount+1))
	args = append(args, filters.Limit, filters.Offset())

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query exchange codes: %w", err)
	}
	defer rows.Close()

	codes := []model.ExchangeCode{}
	for rows.Next() {
		c, err := scanExchangeCode(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan exchange code row: %w", err)
		}
		codes = append(codes, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating exchange code rows: %w", err)
	}
	return codes, total, nil
}

// Stats counts codes per status
func (r *exchangeCodeRepository) Stats(ctx context.Context) (*model.ExchangeCodeStats, error) {
	sql := `SELECT COUNT(*),
                   COUNT(*) FILTER (WHERE status = 'pending'),
                   COUNT(*) FILTER (WHERE status = 'used'),
                   COUNT(*) FILTER (WHERE status = 'expired')
            FROM exchange_codes`
	stats := &model.ExchangeCodeStats{}
	if err := r.db.QueryRow(ctx, sql).Scan(&stats.Total, &stats.Pending, &stats.Used, &stats.Expired); err != nil {
		return nil, fmt.Errorf("failed to aggregate exchange code stats: %w", err)
	}
	return stats, nil
}

// ExpirePendingBefore moves pending codes created before cutoff to expired
func (r *exchangeCodeRepository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	sql := `UPDATE exchange_codes SET status = 'expired' WHERE status = 'pending' AND created_at < $1`
	tag, err := r.db.Exec(ctx, sql, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire exchange codes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanExchangeCode(row pgx.Row) (*model.ExchangeCode, error) {
	c := &model.ExchangeCode{}
	err := row.Scan(&c.ID, &c.Code, &c.Status, &c.CreatedAt, &c.CreatedBy, &c.UsedAt, &c.UsedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}
