package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"p9e.in/siteprogress/models"
)

// CreateUser hashes password and inserts a user.
func (s *Store) CreateUser(ctx context.Context, username, password, role string) (*models.User, error) {
	var errs models.ValidationErrors
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "is required")
	}
	if password == "" {
		errs.Add("password", "is required")
	}
	normalized, ok := models.NormalizeRole(role)
	if !ok {
		errs.Add("role", "unknown role %q", role)
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	u := &models.User{Username: username, Role: normalized}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	return u, s.insertUser(ctx, u)
}

// ImportUser inserts a user whose password is already hashed.
func (s *Store) ImportUser(ctx context.Context, u *models.User) error {
	return s.insertUser(ctx, u)
}

func (s *Store) insertUser(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("user %q: %w", u.Username, models.ErrDuplicate)
	}
	return err
}

// GetUser loads one user.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByUsername loads one user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("username").Find(&users).Error
	return users, err
}
