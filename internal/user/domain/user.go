package domain

import (
	"context"
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is a registered participant. The username is the identity used in rooms.
type User struct {
	Username  string
	Email     string
	CreatedAt time.Time
}

//go:generate mockgen -source=user.go -destination=mock_user_repository.go -package=domain

// UserRepository looks participants up in the identity store.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}
