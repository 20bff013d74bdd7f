package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// CatalogRepo persists categories, add-ons and menu items.
type CatalogRepo struct {
	Pool *pgxpool.Pool
}

// ListCategories returns all categories ordered for display.
func (r *CatalogRepo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT id, slug, name, name_fa, sort_order, created_at, updated_at
		FROM categories
		ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.NameFa, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory loads one category by id.
func (r *CatalogRepo) GetCategory(ctx context.Context, id string) (Category, error) {
	var c Category
	err := r.Pool.QueryRow(ctx, `
		SELECT id, slug, name, name_fa, sort_order, created_at, updated_at
		FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Slug, &c.Name, &c.NameFa, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

// CreateCategory inserts a category and returns the stored row.
func (r *CatalogRepo) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO categories (slug, name, name_fa, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		c.Slug, c.Name, c.NameFa, c.SortOrder).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// UpdateCategory updates a category in place.
func (r *CatalogRepo) UpdateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.Pool.QueryRow(ctx, `
		UPDATE categories
		SET slug = $2, name = $3, name_fa = $4, sort_order = $5, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		c.ID, c.Slug, c.Name, c.NameFa, c.SortOrder).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

// DeleteCategory removes a category.
func (r *CatalogRepo) DeleteCategory(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAddOns returns all add-ons, optionally only active ones.
func (r *CatalogRepo) ListAddOns(ctx context.Context, onlyActive bool) ([]AddOn, error) {
	query := `
		SELECT id, name, name_fa, price, active, created_at, updated_at
		FROM addons`
	if onlyActive {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AddOn
	for rows.Next() {
		var a AddOn
		if err := rows.Scan(&a.ID, &a.Name, &a.NameFa, &a.Price, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAddOns loads the add-ons matching the provided ids.
func (r *CatalogRepo) GetAddOns(ctx context.Context, ids []string) ([]AddOn, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.Pool.Query(ctx, `
		SELECT id, name, name_fa, price, active, created_at, updated_at
		FROM addons WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AddOn
	for rows.Next() {
		var a AddOn
		if err := rows.Scan(&a.ID, &a.Name, &a.NameFa, &a.Price, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateAddOn inserts an add-on.
func (r *CatalogRepo) CreateAddOn(ctx context.Context, a AddOn) (AddOn, error) {
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO addons (name, name_fa, price, active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		a.Name, a.NameFa, a.Price, a.Active).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// UpdateAddOn updates an add-on in place.
func (r *CatalogRepo) UpdateAddOn(ctx context.Context, a AddOn) (AddOn, error) {
	err := r.Pool.QueryRow(ctx, `
		UPDATE addons
		SET name = $2, name_fa = $3, price = $4, active = $5, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		a.ID, a.Name, a.NameFa, a.Price, a.Active).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AddOn{}, ErrNotFound
	}
	return a, err
}

// DeleteAddOn removes an add-on.
func (r *CatalogRepo) DeleteAddOn(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM addons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ItemFilter narrows menu item listings.
type ItemFilter struct {
	CategoryID    string
	Search        string
	OnlyAvailable bool
	Page          int
	PerPage       int
}

const itemColumns = `id, slug, name, name_fa, description, image, price, category_ids, variants, addon_ids, available, created_at, updated_at`

func scanItem(row pgx.Row) (MenuItem, error) {
	var it MenuItem
	err := row.Scan(&it.ID, &it.Slug, &it.Name, &it.NameFa, &it.Description, &it.Image,
		&it.Price, &it.CategoryIDs, &it.Variants, &it.AddOnIDs, &it.Available, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// ListItems returns menu items matching the filter plus the total count.
func (r *CatalogRepo) ListItems(ctx context.Context, f ItemFilter) ([]MenuItem, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	if f.OnlyAvailable {
		where = append(where, "available")
	}
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		where = append(where, "$"+itoa(len(args))+" = ANY(category_ids)")
	}
	if strings.TrimSpace(f.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(f.Search)+"%")
		n := itoa(len(args))
		where = append(where, "(name ILIKE $"+n+" OR name_fa ILIKE $"+n+")")
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.Pool.QueryRow(ctx, `SELECT count(*) FROM items WHERE `+cond, args...).Scan(&total); err != nil {
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
	query := `SELECT ` + itemColumns + ` FROM items WHERE ` + cond +
		` ORDER BY name LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []MenuItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

// GetItem loads one menu item by id.
func (r *CatalogRepo) GetItem(ctx context.Context, id string) (MenuItem, error) {
	it, err := scanItem(r.Pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return MenuItem{}, ErrNotFound
	}
	return it, err
}

// GetItemBySlug loads one menu item by slug.
func (r *CatalogRepo) GetItemBySlug(ctx context.Context, slug string) (MenuItem, error) {
	it, err := scanItem(r.Pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return MenuItem{}, ErrNotFound
	}
	return it, err
}

// GetItems loads the menu items matching the provided ids.
func (r *CatalogRepo) GetItems(ctx context.Context, ids []string) ([]MenuItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.Pool.Query(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MenuItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CreateItem inserts a menu item.
func (r *CatalogRepo) CreateItem(ctx context.Context, it MenuItem) (MenuItem, error) {
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO items (slug, name, name_fa, description, image, price, category_ids, variants, addon_ids, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		it.Slug, it.Name, it.NameFa, it.Description, it.Image, it.Price,
		it.CategoryIDs, it.Variants, it.AddOnIDs, it.Available).
		Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// UpdateItem updates a menu item in place.
func (r *CatalogRepo) UpdateItem(ctx context.Context, it MenuItem) (MenuItem, error) {
	err := r.Pool.QueryRow(ctx, `
		UPDATE items
		SET slug = $2, name = $3, name_fa = $4, description = $5, image = $6, price = $7,
		    category_ids = $8, variants = $9, addon_ids = $10, available = $11, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		it.ID, it.Slug, it.Name, it.NameFa, it.Description, it.Image, it.Price,
		it.CategoryIDs, it.Variants, it.AddOnIDs, it.Available).
		Scan(&it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return MenuItem{}, ErrNotFound
	}
	return it, err
}

// DeleteItem removes a menu item.
func (r *CatalogRepo) DeleteItem(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
