package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"invalid transition", fmt.Errorf("apply: %w", domain.ErrInvalidTransition), "INVALID_TRANSITION", http.StatusConflict},
		{"unauthorized", fmt.Errorf("%w: nope", domain.ErrUnauthorized), "FORBIDDEN", http.StatusForbidden},
		{"not found", domain.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{"validation", domain.ErrValidation, "VALIDATION_FAILED", http.StatusBadRequest},
		{"exhausted number retries", fmt.Errorf("create ticket after 5 attempts: %w", domain.ErrDuplicateTicketNumber), "INTERNAL_ERROR", http.StatusInternalServerError},
		{"configuration", domain.ErrConfiguration, "INTERNAL_ERROR", http.StatusInternalServerError},
		{"fiber error", fiber.NewError(http.StatusForbidden, "insufficient role"), "FORBIDDEN", http.StatusForbidden},
		{"domain error passthrough", NewConflict("taken", nil), "CONFLICT", http.StatusConflict},
		{"unknown", errors.New("connection reset"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			assert.Equal(t, tc.wantCode, got.Code)
			assert.Equal(t, tc.wantStatus, got.HTTPStatus)
		})
	}
}

func TestToDomainError_InternalHidesCause(t *testing.T) {
	got := ToDomainError(errors.New("dial tcp 10.0.0.5:5432: refused"))
	assert.Equal(t, "internal server error", got.Message)
	assert.Nil(t, ToDomainError(nil))
}
