package store

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo persists accounts and address books.
type UserRepo struct {
	Pool *pgxpool.Pool
}

const userColumns = `id, phone, coalesce(name, ''), role, coalesce(email, ''), coalesce(password_hash, ''), created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Role, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByPhone loads a user by normalized phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (User, error) {
	u, err := scanUser(r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetByEmail loads an admin account by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Get loads a user by id.
func (r *UserRepo) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// EnsureByPhone loads or creates a customer account for the phone number.
func (r *UserRepo) EnsureByPhone(ctx context.Context, phone string) (User, error) {
	u, err := scanUser(r.Pool.QueryRow(ctx, `
		INSERT INTO users (phone, role)
		VALUES ($1, 'customer')
		ON CONFLICT (phone) DO UPDATE SET updated_at = now()
		RETURNING `+userColumns, phone))
	return u, err
}

// UpdateProfile updates mutable account fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, name string) (User, error) {
	u, err := scanUser(r.Pool.QueryRow(ctx, `
		UPDATE users SET name = $2, updated_at = now() WHERE id = $1
		RETURNING `+userColumns, id, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

const addressColumns = `id, user_id, coalesce(label, ''), receiver_name, phone, line1, coalesce(line2, ''),
	coalesce(zone_id::text, ''), is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.Label, &a.ReceiverName, &a.Phone, &a.Line1,
		&a.Line2, &a.ZoneID, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// ListAddresses returns the user's saved addresses.
func (r *UserRepo) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAddresses reports how many addresses the user has saved.
func (r *UserRepo) CountAddresses(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM addresses WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// GetAddress loads one address owned by the user.
func (r *UserRepo) GetAddress(ctx context.Context, userID, id string) (Address, error) {
	a, err := scanAddress(r.Pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return a, err
}

// CreateAddress inserts an address, clearing other defaults when needed.
func (r *UserRepo) CreateAddress(ctx context.Context, a Address) (Address, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Address{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if a.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = false WHERE user_id = $1`, a.UserID); err != nil {
			return Address{}, err
		}
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO addresses (user_id, label, receiver_name, phone, line1, line2, zone_id, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, nullif($7, '')::uuid, $8)
		RETURNING id, created_at, updated_at`,
		a.UserID, a.Label, a.ReceiverName, a.Phone, a.Line1, a.Line2, a.ZoneID, a.IsDefault).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Address{}, err
	}
	return a, tx.Commit(ctx)
}

// UpdateAddress updates an address owned by the user.
func (r *UserRepo) UpdateAddress(ctx context.Context, a Address) (Address, error) {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Address{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if a.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE addresses SET is_default = false WHERE user_id = $1`, a.UserID); err != nil {
			return Address{}, err
		}
	}
	err = tx.QueryRow(ctx, `
		UPDATE addresses
		SET label = $3, receiver_name = $4, phone = $5, line1 = $6, line2 = $7,
			zone_id = nullif($8, '')::uuid, is_default = $9, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.Label, a.ReceiverName, a.Phone, a.Line1, a.Line2, a.ZoneID, a.IsDefault).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	if err != nil {
		return Address{}, err
	}
	return a, tx.Commit(ctx)
}

// DeleteAddress removes an address owned by the user.
func (r *UserRepo) DeleteAddress(ctx context.Context, userID, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
