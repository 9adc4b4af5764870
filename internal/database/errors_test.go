package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_external_id_key"})

	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsCheckViolation(err))
	assert.Equal(t, "users_external_id_key", ConstraintName(err))
}

func TestIsCheckViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23514", ConstraintName: "users_kind_external_id_check"}

	assert.True(t, IsCheckViolation(err))
	assert.False(t, IsUniqueViolation(err))
}

func TestPlainErrors(t *testing.T) {
	err := errors.New("boom")

	assert.False(t, IsUniqueViolation(err))
	assert.False(t, IsCheckViolation(err))
	assert.Empty(t, ConstraintName(err))
	assert.False(t, IsUniqueViolation(nil))
}
