package actorctx

import (
	"net/http"
	"strconv"

	"github.com/karakol/delivery/internal/service/models/actor"
	"github.com/karakol/delivery/internal/service/models/apperr"
)

const (
	headerRole = "X-Actor-Role"
	headerID   = "X-Actor-ID"
)

// FromRequest resolves the acting principal from the gateway-set headers.
// Authentication happens upstream; these headers are trusted input here.
func FromRequest(r *http.Request) (actor.Actor, error) {
	role, err := actor.ParseRole(r.Header.Get(headerRole))
	if err != nil {
		return actor.Actor{}, apperr.Validationf("invalid or missing %s header", headerRole)
	}

	id, err := strconv.ParseInt(r.Header.Get(headerID), 10, 64)
	if err != nil || id <= 0 {
		return actor.Actor{}, apperr.Validationf("invalid or missing %s header", headerID)
	}

	return actor.Actor{Role: role, ID: id}, nil
}
