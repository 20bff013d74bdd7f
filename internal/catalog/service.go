package catalog

import (
	"context"
	"errors"

	"github.com/sofreh/backend-resto/internal/store"
)

// ErrNotFound indicates the requested entry does not exist.
var ErrNotFound = errors.New("catalog entry not found")

// Querier captures the persistence methods the public catalog needs.
type Querier interface {
	ListCategories(ctx context.Context) ([]store.Category, error)
	ListItems(ctx context.Context, f store.ItemFilter) ([]store.MenuItem, int, error)
	GetItemBySlug(ctx context.Context, slug string) (store.MenuItem, error)
	ListAddOns(ctx context.Context, onlyActive bool) ([]store.AddOn, error)
	GetAddOns(ctx context.Context, ids []string) ([]store.AddOn, error)
}

// ItemDetail is a menu item with its add-ons resolved for display.
type ItemDetail struct {
	store.MenuItem
	AddOns []store.AddOn `json:"addOns,omitempty"`
}

// Service serves the public menu.
type Service struct {
	Q     Querier
	Cache *Cache
}

const (
	cacheKeyCategories = "catalog:categories"
	cacheKeyAddOns     = "catalog:addons"
)

// Categories lists categories, served from cache when possible.
func (s *Service) Categories(ctx context.Context) ([]store.Category, error) {
	var cached []store.Category
	if ok, err := s.Cache.GetJSON(ctx, cacheKeyCategories, &cached); err == nil && ok {
		return cached, nil
	}
	categories, err := s.Q.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, cacheKeyCategories, categories)
	return categories, nil
}

// Items lists available menu items matching the filter.
func (s *Service) Items(ctx context.Context, f store.ItemFilter) ([]store.MenuItem, int, error) {
	f.OnlyAvailable = true
	return s.Q.ListItems(ctx, f)
}

// ItemBySlug loads one available item with resolved add-ons.
func (s *Service) ItemBySlug(ctx context.Context, slug string) (ItemDetail, error) {
	item, err := s.Q.GetItemBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ItemDetail{}, ErrNotFound
		}
		return ItemDetail{}, err
	}
	if !item.Available {
		return ItemDetail{}, ErrNotFound
	}
	detail := ItemDetail{MenuItem: item}
	if len(item.AddOnIDs) > 0 {
		addOns, err := s.Q.GetAddOns(ctx, item.AddOnIDs)
		if err != nil {
			return ItemDetail{}, err
		}
		for _, a := range addOns {
			if a.Active {
				detail.AddOns = append(detail.AddOns, a)
			}
		}
	}
	return detail, nil
}

// AddOns lists active add-ons, served from cache when possible.
func (s *Service) AddOns(ctx context.Context) ([]store.AddOn, error) {
	var cached []store.AddOn
	if ok, err := s.Cache.GetJSON(ctx, cacheKeyAddOns, &cached); err == nil && ok {
		return cached, nil
	}
	addOns, err := s.Q.ListAddOns(ctx, true)
	if err != nil {
		return nil, err
	}
	_ = s.Cache.SetJSON(ctx, cacheKeyAddOns, addOns)
	return addOns, nil
}

// InvalidateCaches drops list caches after an admin mutation.
func (s *Service) InvalidateCaches(ctx context.Context) {
	s.Cache.Invalidate(ctx, cacheKeyCategories, cacheKeyAddOns)
}
