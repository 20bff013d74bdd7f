package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSlotFull indicates the delivery window has no remaining capacity.
var ErrSlotFull = errors.New("slot full")

// ZoneRepo persists delivery zones and their slot capacity.
type ZoneRepo struct {
	Pool *pgxpool.Pool
}

const zoneColumns = `id, name, description, delivery_fee, min_order, sort_order, active, created_at, updated_at`

func scanZone(row pgx.Row) (Zone, error) {
	var z Zone
	err := row.Scan(&z.ID, &z.Name, &z.Description, &z.DeliveryFee, &z.MinOrder, &z.SortOrder, &z.Active, &z.CreatedAt, &z.UpdatedAt)
	return z, err
}

// List returns delivery zones, optionally only active ones.
func (r *ZoneRepo) List(ctx context.Context, onlyActive bool) ([]Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones`
	if onlyActive {
		query += ` WHERE active`
	}
	query += ` ORDER BY sort_order, name`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// Get loads one zone by id.
func (r *ZoneRepo) Get(ctx context.Context, id string) (Zone, error) {
	z, err := scanZone(r.Pool.QueryRow(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Zone{}, ErrNotFound
	}
	return z, err
}

// Create inserts a zone.
func (r *ZoneRepo) Create(ctx context.Context, z Zone) (Zone, error) {
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO zones (name, description, delivery_fee, min_order, sort_order, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		z.Name, z.Description, z.DeliveryFee, z.MinOrder, z.SortOrder, z.Active).
		Scan(&z.ID, &z.CreatedAt, &z.UpdatedAt)
	return z, err
}

// Update updates a zone in place.
func (r *ZoneRepo) Update(ctx context.Context, z Zone) (Zone, error) {
	err := r.Pool.QueryRow(ctx, `
		UPDATE zones
		SET name = $2, description = $3, delivery_fee = $4, min_order = $5,
		    sort_order = $6, active = $7, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		z.ID, z.Name, z.Description, z.DeliveryFee, z.MinOrder, z.SortOrder, z.Active).
		Scan(&z.CreatedAt, &z.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Zone{}, ErrNotFound
	}
	return z, err
}

// Delete removes a zone.
func (r *ZoneRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM zones WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSlots returns the slots for one zone and date.
func (r *ZoneRepo) ListSlots(ctx context.Context, zoneID, date string) ([]Slot, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, zone_id, date::text, slot_window, capacity, reserved
		FROM slots
		WHERE zone_id = $1 AND date = $2::date
		ORDER BY slot_window`, zoneID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.ZoneID, &s.Date, &s.Window, &s.Capacity, &s.Reserved); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSlot creates or adjusts one slot's capacity.
func (r *ZoneRepo) UpsertSlot(ctx context.Context, s Slot) (Slot, error) {
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO slots (zone_id, date, slot_window, capacity, reserved)
		VALUES ($1, $2::date, $3, $4, 0)
		ON CONFLICT (zone_id, date, slot_window)
		DO UPDATE SET capacity = EXCLUDED.capacity
		RETURNING id, reserved`,
		s.ZoneID, s.Date, s.Window, s.Capacity).
		Scan(&s.ID, &s.Reserved)
	return s, err
}

// ReserveSlot increments the reservation count for a window, guarded so
// reservations never exceed capacity. Runs inside the checkout transaction.
func (r *ZoneRepo) ReserveSlot(ctx context.Context, tx pgx.Tx, zoneID, date, window string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE slots
		SET reserved = reserved + 1
		WHERE zone_id = $1 AND date = $2::date AND slot_window = $3 AND reserved < capacity`,
		zoneID, date, window)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotFull
	}
	return nil
}

// ReleaseSlot decrements the reservation count, used when an order is
// canceled before fulfilment.
func (r *ZoneRepo) ReleaseSlot(ctx context.Context, zoneID, date, window string) error {
	_, err := r.Pool.Exec(ctx, `
		UPDATE slots
		SET reserved = greatest(reserved - 1, 0)
		WHERE zone_id = $1 AND date = $2::date AND slot_window = $3`,
		zoneID, date, window)
	return err
}
