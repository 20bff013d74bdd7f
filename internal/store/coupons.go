package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CouponRepo persists coupons and their redemptions.
type CouponRepo struct {
	Pool *pgxpool.Pool
}

const couponColumns = `id, code, kind, value, percent_bps, min_spend, usage_limit, used_count,
	per_user_limit, valid_from, valid_to, item_ids, category_ids, active, created_at, updated_at`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.Code, &c.Kind, &c.Value, &c.PercentBps, &c.MinSpend,
		&c.UsageLimit, &c.UsedCount, &c.PerUserLimit, &c.ValidFrom, &c.ValidTo,
		&c.ItemIDs, &c.CategoryIDs, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetByCode loads one coupon by its case-insensitive code.
func (r *CouponRepo) GetByCode(ctx context.Context, code string) (Coupon, error) {
	c, err := scanCoupon(r.Pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE upper(code) = upper($1)`,
		strings.TrimSpace(code)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	return c, err
}

// List returns all coupons for the admin console.
func (r *CouponRepo) List(ctx context.Context) ([]Coupon, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a coupon.
func (r *CouponRepo) Create(ctx context.Context, c Coupon) (Coupon, error) {
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO coupons (code, kind, value, percent_bps, min_spend, usage_limit,
			per_user_limit, valid_from, valid_to, item_ids, category_ids, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, used_count, created_at, updated_at`,
		c.Code, c.Kind, c.Value, c.PercentBps, c.MinSpend, c.UsageLimit,
		c.PerUserLimit, c.ValidFrom, c.ValidTo, c.ItemIDs, c.CategoryIDs, c.Active).
		Scan(&c.ID, &c.UsedCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Update updates a coupon in place.
func (r *CouponRepo) Update(ctx context.Context, c Coupon) (Coupon, error) {
	err := r.Pool.QueryRow(ctx, `
		UPDATE coupons
		SET code = $2, kind = $3, value = $4, percent_bps = $5, min_spend = $6,
			usage_limit = $7, per_user_limit = $8, valid_from = $9, valid_to = $10,
			item_ids = $11, category_ids = $12, active = $13, updated_at = now()
		WHERE id = $1
		RETURNING used_count, created_at, updated_at`,
		c.ID, c.Code, c.Kind, c.Value, c.PercentBps, c.MinSpend,
		c.UsageLimit, c.PerUserLimit, c.ValidFrom, c.ValidTo,
		c.ItemIDs, c.CategoryIDs, c.Active).
		Scan(&c.UsedCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	return c, err
}

// Delete removes a coupon.
func (r *CouponRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRedemptionsByUser reports how many times the user redeemed a coupon.
func (r *CouponRepo) CountRedemptionsByUser(ctx context.Context, couponID, userID string) (int64, error) {
	var count int64
	err := r.Pool.QueryRow(ctx,
		`SELECT count(*) FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2`,
		couponID, userID).Scan(&count)
	return count, err
}

// RecordRedemption stores a redemption at checkout time. It is idempotent
// per (coupon, order) and bumps the coupon usage counter on first insert.
func (r *CouponRepo) RecordRedemption(ctx context.Context, tx pgx.Tx, couponID, orderID, userID string, amount int64) error {
	var uid any
	if userID != "" {
		uid = userID
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO coupon_redemptions (coupon_id, order_id, user_id, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (coupon_id, order_id) DO NOTHING`,
		couponID, orderID, uid, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	_, err = tx.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`, couponID)
	return err
}
