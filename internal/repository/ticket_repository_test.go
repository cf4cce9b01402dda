package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
)

// substring mirrors Postgres SUBSTRING(s FROM pos) with 1-based pos.
func substring(s string, pos int) string {
	return s[pos-1:]
}

func TestSequenceOffset(t *testing.T) {
	const dayPrefix = "TKT-20251112"
	assert.Equal(t, 14, sequenceOffset(dayPrefix))

	for _, seq := range []int{1, 42, 9999, 10000, 123456} {
		number := ticketnumber.Format(dayPrefix, seq)
		assert.Equal(t, fmt.Sprintf("%04d", seq), substring(number, sequenceOffset(dayPrefix)), number)
	}
}

func TestMapTicketWriteError(t *testing.T) {
	dup := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: ticketNumberConstraint, Detail: "Key (ticket_number)=(TKT-20251112-0001) already exists."}
	assert.ErrorIs(t, mapTicketWriteError(dup), domain.ErrDuplicateTicketNumber)

	otherUnique := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "tickets_pkey"}
	err := mapTicketWriteError(otherUnique)
	assert.False(t, errors.Is(err, domain.ErrDuplicateTicketNumber))

	assert.NoError(t, mapTicketWriteError(nil))
}

func TestIsMalformedID(t *testing.T) {
	assert.True(t, isMalformedID(fmt.Errorf("query: %w", &pgconn.PgError{Code: pgInvalidText})))
	assert.False(t, isMalformedID(&pgconn.PgError{Code: pgUniqueViolation}))
	assert.False(t, isMalformedID(errors.New("boom")))
}

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 20, 0},
		{500, 10, 100, 10},
		{5, -3, 5, 0},
	}
	for _, tc := range cases {
		limit, offset := normalizePage(tc.limit, tc.offset)
		assert.Equal(t, tc.wantLimit, limit)
		assert.Equal(t, tc.wantOffset, offset)
	}
}
