package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sbguangha/tianyishenshu/internal/model"

	"github.com/jackc/pgx/v5"
)

// ErrPhoneTaken is returned when a user with the same phone already exists
var ErrPhoneTaken = errors.New("phone number already registered")

// UserRepository defines operations for identity records
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	UpdateLogin(ctx context.Context, user *model.User, redeemedCode string) error
}

type userRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, phone, password_hash, roles, redeemed_codes, last_login_at, created_at`

// Create inserts a new user into the database
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	sql := `INSERT INTO users (` + userColumns + `)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, sql, user.ID, user.Phone, user.PasswordHash, user.Roles, user.RedeemedCodes, user.LastLoginAt, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPhoneTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByPhone retrieves a user by their phone number. A missing user yields (nil, nil).
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	user, err := scanUser(r.db.QueryRow(ctx, sql, phone))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by phone: %w", err)
	}
	return user, nil
}

// UpdateLogin persists roles and last login time and, when redeemedCode is set, adds it to the
// identity's redeemed codes. The append happens in SQL so concurrent logins never drop a code.
// user.RedeemedCodes is refreshed from the stored row.
func (r *userRepository) UpdateLogin(ctx context.Context, user *model.User, redeemedCode string) error {
	sql := `UPDATE users
            SET roles = $1,
                last_login_at = $2,
                redeemed_codes = CASE
                    WHEN $3::text = '' OR $3::text = ANY(redeemed_codes) THEN redeemed_codes
                    ELSE array_append(redeemed_codes, $3::text)
                END
            WHERE id = $4
            RETURNING redeemed_codes`
	var codes []string
	err := r.db.QueryRow(ctx, sql, user.Roles, user.LastLoginAt, redeemedCode, user.ID).Scan(&codes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("user %s not found for login update", user.ID)
		}
		return fmt.Errorf("failed to update user login: %w", err)
	}
	if codes == nil {
		codes = []string{}
	}
	user.RedeemedCodes = codes
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	user := &model.User{}
	var lastLoginAt *time.Time
	err := row.Scan(&user.ID, &user.Phone, &user.PasswordHash, &user.Roles, &user.RedeemedCodes, &lastLoginAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.LastLoginAt = lastLoginAt
	return user, nil
}
