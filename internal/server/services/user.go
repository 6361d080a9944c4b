// Package services contains server-side business logic. This file implements
// UserService, which handles signup and login against the user repository.
package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/voicedrop/internal/common"
	"github.com/dmitrijs2005/voicedrop/internal/dbx"
	"github.com/dmitrijs2005/voicedrop/internal/server/config"
	"github.com/dmitrijs2005/voicedrop/internal/server/models"
	"github.com/dmitrijs2005/voicedrop/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/voicedrop/internal/server/validation"
)

// UserService provides account operations:
//   - Signup: validate credentials and create a user
//   - Login: verify an email/password pair
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hashCost    int
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	cost := cfg.PasswordHashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UserService{
		db:          db,
		repomanager: m,
		hashCost:    cost,
	}
}

// Signup validates the submitted credentials and stores a new user. Validation
// failures are returned as the sentinels from validation; an email that is
// already registered yields common.ErrorAlreadyExists.
func (s *UserService) Signup(ctx context.Context, email, password, retypePassword string) (*models.User, error) {
	if err := validation.ValidateSignup(email, password, retypePassword); err != nil {
		return nil, err
	}

	var created *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, err := repo.GetUserByEmail(ctx, email)
		if err == nil {
			return common.ErrorAlreadyExists
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error searching user: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword(passwordKey(password), s.hashCost)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}

		created, err = repo.Create(ctx, &models.User{Email: email, PasswordHash: string(hash)})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return err
			}
			return fmt.Errorf("error creating user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Login checks password against the stored hash for email. Unknown emails and
// wrong passwords both yield common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), passwordKey(password)); err != nil {
		return nil, common.ErrorUnauthorized
	}

	return user, nil
}

// maxBcryptInput is the longest password bcrypt accepts.
const maxBcryptInput = 72

// passwordKey returns the bytes fed to bcrypt. Passwords over bcrypt's input
// limit are replaced by their base64 SHA-256 digest so every byte counts.
func passwordKey(password string) []byte {
	if len(password) <= maxBcryptInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
