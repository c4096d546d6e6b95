package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// UserRepository reads accounts for authentication and notification delivery.
// Accounts are provisioned outside this service.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password_hash, full_name, role, active, last_login, created_at, updated_at`

func (r *UserRepository) getUser(ctx context.Context, op, where string, arg interface{}) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// FindByEmail matches email case-insensitively. It returns sql.ErrNoRows
// when no account exists.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "find user by email", `LOWER(email) = LOWER($1)`, email)
}

// FindByID returns an account or sql.ErrNoRows.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "find user by id", `id = $1`, id)
}

// FindContact returns the address of an active account. Deactivated accounts
// are reported as sql.ErrNoRows so nothing is delivered to them.
func (r *UserRepository) FindContact(ctx context.Context, id string) (*models.Contact, error) {
	const query = `SELECT id, email, full_name, role FROM users WHERE id = $1 AND active = TRUE`
	var contact models.Contact
	if err := r.db.GetContext(ctx, &contact, query, id); err != nil {
		if isNoRows(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find contact: %w", err)
	}
	return &contact, nil
}

// UpdateLastLogin stamps a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
