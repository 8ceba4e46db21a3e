package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
		assert.NoError(t, MapError(nil))
	})

	t.Run("wrapped domain error is preserved", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", NewConflict("dup", nil))
		de := ToDomainError(err)
		require.NotNil(t, de)
		assert.Equal(t, "CONFLICT", de.Code)
		assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		de := ToDomainError(pgx.ErrNoRows)
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	})

	t.Run("unknown errors are hidden", func(t *testing.T) {
		de := ToDomainError(errors.New("dial tcp: secret-host refused"))
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
		assert.Equal(t, "internal server error", de.Message)
		assert.ErrorContains(t, de.Unwrap(), "secret-host")
	})
}

func TestConstructorsStatus(t *testing.T) {
	cases := map[int]error{
		http.StatusBadRequest:      NewBadRequest("x"),
		http.StatusUnauthorized:    NewUnauthorized("x"),
		http.StatusForbidden:       NewForbidden("x"),
		http.StatusNotFound:        NewNotFound("x"),
		http.StatusTooManyRequests: NewTooManyRequests("x"),
	}
	for status, err := range cases {
		assert.Equal(t, status, ToDomainError(err).HTTPStatus)
	}
}
