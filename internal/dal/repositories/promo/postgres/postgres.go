package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/karakol/delivery/internal/dal/postgres"
	"github.com/karakol/delivery/internal/service/models/apperr"
	"github.com/karakol/delivery/internal/service/models/promo"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PromoCodeDal represents the promo code data access layer model.
type PromoCodeDal struct {
	ID             int64
	Code           string
	DiscountType   string
	Value          string
	StartDate      time.Time
	EndDate        time.Time
	MinOrderAmount string
	UsageLimit     *int
	UsedCount      int
	IsActive       bool
}

// ToModel converts PromoCodeDal to the service layer PromoCode model.
func (d *PromoCodeDal) ToModel() (*promo.PromoCode, error) {
	discountType, err := promo.ParseDiscountType(d.DiscountType)
	if err != nil {
		return nil, fmt.Errorf("failed to parse discount type %q: %w", d.DiscountType, err)
	}

	value, err := decimal.NewFromString(d.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse promo value: %w", err)
	}

	minAmount, err := decimal.NewFromString(d.MinOrderAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse promo min order amount: %w", err)
	}

	return &promo.PromoCode{
		ID:             d.ID,
		Code:           d.Code,
		DiscountType:   discountType,
		Value:          value,
		StartDate:      d.StartDate,
		EndDate:        d.EndDate,
		MinOrderAmount: minAmount,
		UsageLimit:     d.UsageLimit,
		UsedCount:      d.UsedCount,
		IsActive:       d.IsActive,
	}, nil
}

var promoColumns = []string{
	"id",
	"code",
	"discount_type",
	"value::text",
	"start_date",
	"end_date",
	"min_order_amount::text",
	"usage_limit",
	"used_count",
	"is_active",
}

// PostgresPromoRepository persists promo codes.
type PostgresPromoRepository struct {
	conn postgres.Querier
}

func NewPostgresPromoRepository(conn postgres.Querier) *PostgresPromoRepository {
	return &PostgresPromoRepository{conn: conn}
}

func (r *PostgresPromoRepository) getBy(ctx context.Context, code string, suffix string) (promo.PromoCode, error) {
	builder := qb.Select(promoColumns...).From("promo_codes").Where(sq.Eq{"code": code})
	if suffix != "" {
		builder = builder.Suffix(suffix)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return promo.PromoCode{}, fmt.Errorf("failed to build promo select query: %w", err)
	}

	var d PromoCodeDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&d.ID,
		&d.Code,
		&d.DiscountType,
		&d.Value,
		&d.StartDate,
		&d.EndDate,
		&d.MinOrderAmount,
		&d.UsageLimit,
		&d.UsedCount,
		&d.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return promo.PromoCode{}, apperr.NotFoundf("promo code %q not found", code)
		}

		return promo.PromoCode{}, fmt.Errorf("failed to scan promo code: %w", err)
	}

	p, err := d.ToModel()
	if err != nil {
		return promo.PromoCode{}, fmt.Errorf("failed to convert promo dal to model: %w", err)
	}

	return *p, nil
}

// GetByCode fetches one promo code without locking it.
func (r *PostgresPromoRepository) GetByCode(ctx context.Context, code string) (promo.PromoCode, error) {
	return r.getBy(ctx, code, "")
}

// GetForUpdate fetches one promo code holding its exclusive row lock, so the
// usage counter check and increment are atomic with the order commit.
func (r *PostgresPromoRepository) GetForUpdate(ctx context.Context, code string) (promo.PromoCode, error) {
	return r.getBy(ctx, code, "FOR UPDATE")
}

// IncrementUsage bumps the redemption counter.
func (r *PostgresPromoRepository) IncrementUsage(ctx context.Context, id int64) error {
	query, args, err := qb.Update("promo_codes").
		Set("used_count", sq.Expr("used_count + 1")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build promo usage update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to increment promo usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFoundf("promo code %d not found", id)
	}

	return nil
}
