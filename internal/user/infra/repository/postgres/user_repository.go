package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayushpatel2508/auctions/internal/shared/db"
	"github.com/ayushpatel2508/auctions/internal/user/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository implements domain.UserRepository for PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByUsername returns domain.ErrUserNotFound when no row matches.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT username, email, created_at FROM users WHERE username = $1`

	user := &domain.User{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, query, username).Scan(&user.Username, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user repository: get %q: %w", username, err)
	}
	return user, nil
}
