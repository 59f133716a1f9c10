package respond_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/transport/http/respond"
)

func TestError_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperr.Validationf("bad input"), http.StatusBadRequest},
		{apperr.Authorizationf("not yours"), http.StatusForbidden},
		{apperr.NotFoundf("no such order"), http.StatusNotFound},
		{apperr.Conflictf("already taken"), http.StatusConflict},
		{apperr.Unavailablef("routing down"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		respond.Error(rec, tt.err)

		assert.Equal(t, tt.status, rec.Code, "error %v", tt.err)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	respond.Error(rec, errors.New("pq: connection refused"))

	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestError_ExposesClientErrorMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	respond.Error(rec, apperr.Conflictf("order 5 already taken"))

	assert.Contains(t, rec.Body.String(), "order 5 already taken")
}
