package izonerepo

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/service/models/zone"
)

// IZoneRepository defines delivery zone persistence.
type IZoneRepository interface {
	GetByID(ctx context.Context, id int64) (zone.Zone, error)
	UpdateAvgRating(ctx context.Context, id int64, avg decimal.Decimal) error
}
