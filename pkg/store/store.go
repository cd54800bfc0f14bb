// Package store persists sites, users and progress records.
package store

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"p9e.in/siteprogress/models"
)

// Store wraps the database handle shared by every repository method.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a Store.
func New(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

// DB exposes the handle for migrations and imports.
func (s *Store) DB() *gorm.DB { return s.db }

// notFound maps gorm's sentinel onto models.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}
