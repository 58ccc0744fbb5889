// Package account handles user registration behind the rate-limited
// endpoint.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken   = errors.New("username already taken")
	ErrInvalidUsername = errors.New("username must be 3-32 characters")
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
)

const uniqueViolation = "23505"

type Service struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewService(db *sql.DB, log zerolog.Logger) *Service {
	return &Service{db: db, log: log}
}

// Register creates a user with a bcrypt-hashed password and a random
// public id. Duplicate usernames surface as ErrUsernameTaken.
func (s *Service) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return ErrInvalidUsername
	}
	if len(password) < 8 {
		return ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, public_id) VALUES ($1, $2, $3)`,
		username, string(hash), uuid.NewString())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	s.log.Info().Str("username", username).Msg("user registered")
	return nil
}
