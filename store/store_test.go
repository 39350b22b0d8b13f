package store

import (
	"errors"
	"fmt"
	"testing"

	"seguimiento/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, apperr.KindNotFound},
		{"wrapped not found", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), apperr.KindNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, apperr.KindConflict},
		{"fk violation", &pgconn.PgError{Code: "23503"}, apperr.KindConflict},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, apperr.KindInternal},
		{"plain error", errors.New("conn refused"), apperr.KindInternal},
		{"already classified", apperr.Forbidden("no"), apperr.KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, "alumno")
			assert.Equal(t, tt.want, apperr.KindOf(got))
		})
	}
}

func TestTranslateNil(t *testing.T) {
	assert.NoError(t, translate(nil, "alumno"))
}

func TestTranslateMessage(t *testing.T) {
	err := translate(gorm.ErrRecordNotFound, "estado")
	assert.Equal(t, "estado no encontrado", apperr.Message(err))
}
