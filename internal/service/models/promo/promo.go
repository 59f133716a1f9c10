package promo

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/service/models/money"
)

// DiscountType is how a promo code reduces the order cost.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixedAmount  DiscountType = "fixed_amount"
	DiscountFreeDelivery DiscountType = "free_delivery"
)

var validDiscountTypes = map[DiscountType]struct{}{
	DiscountPercentage:   {},
	DiscountFixedAmount:  {},
	DiscountFreeDelivery: {},
}

var ErrInvalidDiscountType = errors.New("invalid discount type")

func ParseDiscountType(s string) (DiscountType, error) {
	t := DiscountType(s)
	if _, ok := validDiscountTypes[t]; ok {
		return t, nil
	}

	return "", ErrInvalidDiscountType
}

// PromoCode is a redeemable discount rule with validity constraints.
// UsedCount is incremented by the caller only after the order using the code
// is durably committed, inside the same transaction.
type PromoCode struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discountType"`
	Value          decimal.Decimal `json:"value"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
	UsageLimit     *int            `json:"usageLimit,omitempty"`
	UsedCount      int             `json:"usedCount"`
	IsActive       bool            `json:"isActive"`
}

// IsValid reports whether the promo can be applied to an order of the given
// amount at the given moment. An amount exactly equal to MinOrderAmount is
// valid.
func (p *PromoCode) IsValid(orderAmount decimal.Decimal, now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return false
	}
	if orderAmount.LessThan(p.MinOrderAmount) {
		return false
	}
	if p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit {
		return false
	}

	return true
}

// ApplyDiscount computes the discount for the given order amount and delivery
// fee. It is a pure decision function: persistence of the usage counter is the
// caller's responsibility.
func (p *PromoCode) ApplyDiscount(
	orderAmount decimal.Decimal,
	deliveryFee decimal.Decimal,
	now time.Time,
) (discount decimal.Decimal, newDeliveryFee decimal.Decimal, applied bool) {
	if !p.IsValid(orderAmount, now) {
		return money.Zero, deliveryFee, false
	}

	switch p.DiscountType {
	case DiscountPercentage:
		discount = money.Round2(orderAmount.Mul(p.Value).Div(decimal.NewFromInt(100)))
		return discount, deliveryFee, true
	case DiscountFixedAmount:
		return money.Round2(p.Value), deliveryFee, true
	case DiscountFreeDelivery:
		return money.Zero, money.Zero, true
	default:
		return money.Zero, deliveryFee, false
	}
}
