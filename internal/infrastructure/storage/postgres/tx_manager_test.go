package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"medcore/internal/core/apperror"
)

func TestMapTxError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"serialization failure", &pgconn.PgError{Code: pgSerializationFailure}, true},
		{"deadlock in commit", fmt.Errorf("commit transaction: %w", &pgconn.PgError{Code: pgDeadlockDetected}), true},
		{"lock not available", &pgconn.PgError{Code: pgLockNotAvailable}, true},
		{"unique violation", &pgconn.PgError{Code: pgUniqueViolation}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapTxError(tt.err)
			assert.Equal(t, tt.retryable, apperror.IsConcurrentModification(got))
			if !tt.retryable {
				assert.Same(t, tt.err, got)
			}
		})
	}
}
