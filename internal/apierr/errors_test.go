package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    *Error
		status int
	}{
		{"validation", Validation("missing field"), http.StatusBadRequest},
		{"auth", Auth("invalid key"), http.StatusUnauthorized},
		{"not found", NotFound("customer %s not found", "c1"), http.StatusNotFound},
		{"conflict", Conflict("customer exists"), http.StatusConflict},
		{"rate limit", RateLimited("too many requests"), http.StatusTooManyRequests},
		{"upstream", Upstream(errors.New("boom"), "completion failed"), http.StatusInternalServerError},
		{"internal", Internal(errors.New("boom"), "unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status())
			assert.Equal(t, tt.status, StatusOf(tt.err))
		})
	}
}

func TestStatusOfWrapped(t *testing.T) {
	err := fmt.Errorf("retrieving records: %w", NotFound("customer c1 not found"))

	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "customer c1 not found", MessageOf(err))
}

func TestStatusOfUnclassified(t *testing.T) {
	err := errors.New("plain failure")

	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream(cause, "datastore unreachable")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "datastore unreachable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "rate_limit", KindRateLimit.String())
	assert.Equal(t, "internal", KindInternal.String())
}
