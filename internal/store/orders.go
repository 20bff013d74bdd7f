package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepo persists orders and their lines.
type OrderRepo struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id, number, user_id, channel, status, subtotal, discount, shipping, tax, total,
	coupon_code, note, delivery_method, address_id, slot_date::text, slot_window, payment_method, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var userID, couponCode, note, addressID, slotDate, slotWindow *string
	err := row.Scan(&o.ID, &o.Number, &userID, &o.Channel, &o.Status, &o.Subtotal, &o.Discount,
		&o.Shipping, &o.Tax, &o.Total, &couponCode, &note, &o.DeliveryMethod,
		&addressID, &slotDate, &slotWindow, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.UserID = deref(userID)
	o.CouponCode = deref(couponCode)
	o.Note = deref(note)
	o.AddressID = deref(addressID)
	o.SlotDate = deref(slotDate)
	o.SlotWindow = deref(slotWindow)
	return o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// Create inserts the order header and lines inside the provided transaction.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o Order) (Order, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO orders (number, user_id, channel, status, subtotal, discount, shipping, tax, total,
			coupon_code, note, delivery_method, address_id, slot_date, slot_window, payment_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, nullif($14, '')::date, $15, $16)
		RETURNING id, created_at, updated_at`,
		o.Number, nullable(o.UserID), o.Channel, o.Status, o.Subtotal, o.Discount, o.Shipping,
		o.Tax, o.Total, nullable(o.CouponCode), nullable(o.Note), o.DeliveryMethod,
		nullable(o.AddressID), o.SlotDate, nullable(o.SlotWindow), o.PaymentMethod).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	for i := range o.Items {
		line := &o.Items[i]
		line.OrderID = o.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, item_id, name, variant, unit_price, qty, subtotal, addons, note)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			o.ID, line.ItemID, line.Name, nullable(line.Variant), line.UnitPrice,
			line.Qty, line.Subtotal, line.AddOns, nullable(line.Note)).
			Scan(&line.ID)
		if err != nil {
			return Order{}, fmt.Errorf("insert order line: %w", err)
		}
	}
	return o, nil
}

// Get loads one order with its lines.
func (r *OrderRepo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = r.listItems(ctx, o.ID)
	return o, err
}

// GetByNumber loads one order by its public number.
func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (Order, error) {
	o, err := scanOrder(r.Pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE number = $1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = r.listItems(ctx, o.ID)
	return o, err
}

func (r *OrderRepo) listItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, order_id, item_id, name, coalesce(variant, ''), unit_price, qty, subtotal, addons, coalesce(note, '')
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.Name, &it.Variant,
			&it.UnitPrice, &it.Qty, &it.Subtotal, &it.AddOns, &it.Note); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID  string
	Status  string
	Page    int
	PerPage int
}

// List returns order headers matching the filter plus the total count.
func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]Order, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page <= 0 {
		page = 1
	}
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args))
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// UpdateStatus transitions an order to the provided status.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id, status string) (Order, error) {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return Order{}, err
	}
	if tag.RowsAffected() == 0 {
		return Order{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// NextNumber allocates a human-readable order number. The suffix is the
// raw sequence value, padded to four digits but never truncated, so the
// UNIQUE constraint on number cannot trip no matter the daily volume.
func (r *OrderRepo) NextNumber(ctx context.Context, tx pgx.Tx, now time.Time) (string, error) {
	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return FormatOrderNumber(now, seq), nil
}

// FormatOrderNumber renders "SO-YYYYMMDD-NNNN" with the sequence printed
// in full.
func FormatOrderNumber(now time.Time, seq int64) string {
	return fmt.Sprintf("SO-%s-%04d", now.Format("20060102"), seq)
}
