// Package store is the PostgreSQL persistence layer. Every method picks up
// the transaction started by Atomic from its context, so callers compose
// multi-step writes without handling *gorm.DB themselves.
package store

import (
	"context"
	"errors"

	"seguimiento/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type txKey struct{}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

// Atomic runs fn inside one transaction. Any error returned by fn rolls the
// whole unit back. Nested calls reuse the outer transaction via savepoints.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver errors onto the service error kinds. what names the
// entity for the client message.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(err, apperr.KindNotFound, "%s no encontrado", what)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Wrap(err, apperr.KindConflict, "%s ya existe", what)
		case pgForeignKeyViolation:
			return apperr.Wrap(err, apperr.KindConflict, "%s está referenciado por otros registros", what)
		}
	}

	return apperr.Internal(err, "error de base de datos (%s)", what)
}
