package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"fieldledger/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	t.Run("serialization failure", func(t *testing.T) {
		err := MapError(fmt.Errorf("commit transaction: %w", &pgconn.PgError{Code: "40001"}))
		assert.True(t, apperror.IsConcurrentModification(err))
	})

	t.Run("deadlock", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "40P01"})
		assert.True(t, apperror.IsConcurrentModification(err))
	})

	t.Run("unique violation", func(t *testing.T) {
		err := MapError(&pgconn.PgError{Code: "23505", TableName: "invoices", ConstraintName: "invoices_number_key"})
		assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	})

	t.Run("app error kept", func(t *testing.T) {
		in := apperror.NewNotFound("invoice", "x")
		assert.Same(t, in, MapError(in))
	})

	t.Run("other errors unchanged", func(t *testing.T) {
		in := errors.New("connection reset")
		assert.Equal(t, in, MapError(in))
		assert.NoError(t, MapError(nil))
	})
}
