package fees

import (
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/service/models/money"
	"github.com/karakol/delivery/internal/service/models/zone"
)

// Default tariff. The distance path mirrors the routing provider's pricing,
// the fallback path is used whenever no distance estimate is available.
var (
	baseRate       = decimal.NewFromInt(80)
	perKmRate      = decimal.NewFromInt(20)
	minCost        = decimal.NewFromInt(80)
	noZoneFee      = decimal.NewFromInt(100)
	subtotalShare  = decimal.NewFromFloat(0.10)
	serviceFeeRate = decimal.NewFromFloat(0.15)
	metersPerKm    = decimal.NewFromInt(1000)
)

// Fees is the delivery fee split between the platform and the courier.
type Fees struct {
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	ServiceFee  decimal.Decimal `json:"serviceFee"`
	CourierFee  decimal.Decimal `json:"courierFee"`
}

// Compute derives the delivery, service and courier fees for an order.
//
// With a distance estimate: deliveryFee = max(base + km*perKm, min).
// Without one: deliveryFee = max(zoneFee, 10% of subtotal, min), where the
// zone fee defaults to 100 when the order has no zone.
//
// Intermediate math runs at full precision; results are rounded half-up to
// 2 decimal places at the final step only. Pure and side-effect-free: a
// failed distance lookup is the caller's cue to pass nil, never an error
// path here.
func Compute(subtotal decimal.Decimal, z *zone.Zone, distanceMeters *float64) Fees {
	var deliveryFee decimal.Decimal

	if distanceMeters != nil {
		km := decimal.NewFromFloat(*distanceMeters).Div(metersPerKm)
		deliveryFee = decimal.Max(baseRate.Add(km.Mul(perKmRate)), minCost)
	} else {
		zoneFee := noZoneFee
		if z != nil {
			zoneFee = z.DeliveryFee
		}
		deliveryFee = decimal.Max(zoneFee, subtotal.Mul(subtotalShare), minCost)
	}

	serviceFee := deliveryFee.Mul(serviceFeeRate)
	courierFee := deliveryFee.Sub(serviceFee)

	return Fees{
		DeliveryFee: money.Round2(deliveryFee),
		ServiceFee:  money.Round2(serviceFee),
		CourierFee:  money.Round2(courierFee),
	}
}

// Recompute derives the split again from an already-final delivery fee, used
// after a free-delivery promo zeroes the fee.
func Recompute(deliveryFee decimal.Decimal) Fees {
	serviceFee := deliveryFee.Mul(serviceFeeRate)

	return Fees{
		DeliveryFee: money.Round2(deliveryFee),
		ServiceFee:  money.Round2(serviceFee),
		CourierFee:  money.Round2(deliveryFee.Sub(serviceFee)),
	}
}
