package actorctx_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/transport/http/actorctx"
)

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/orders", nil)
	r.Header.Set("X-Actor-Role", "courier")
	r.Header.Set("X-Actor-ID", "42")

	a, err := actorctx.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, actor.Courier(42), a)
}

func TestFromRequest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		role string
		id   string
	}{
		{name: "missing headers"},
		{name: "unknown role", role: "admin", id: "42"},
		{name: "missing id", role: "customer"},
		{name: "non-numeric id", role: "customer", id: "abc"},
		{name: "zero id", role: "customer", id: "0"},
		{name: "negative id", role: "customer", id: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/orders", nil)
			if tt.role != "" {
				r.Header.Set("X-Actor-Role", tt.role)
			}
			if tt.id != "" {
				r.Header.Set("X-Actor-ID", tt.id)
			}

			_, err := actorctx.FromRequest(r)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}
