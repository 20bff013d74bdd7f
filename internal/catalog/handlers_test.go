package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sofreh/backend-resto/internal/catalog"
	"github.com/sofreh/backend-resto/internal/store"
)

type fakeQuerier struct {
	categories    []store.Category
	items         []store.MenuItem
	addOns        []store.AddOn
	categoryCalls int
}

func (f *fakeQuerier) ListCategories(context.Context) ([]store.Category, error) {
	f.categoryCalls++
	return f.categories, nil
}

func (f *fakeQuerier) ListItems(_ context.Context, filter store.ItemFilter) ([]store.MenuItem, int, error) {
	var out []store.MenuItem
	for _, it := range f.items {
		if filter.OnlyAvailable && !it.Available {
			continue
		}
		out = append(out, it)
	}
	return out, len(out), nil
}

func (f *fakeQuerier) GetItemBySlug(_ context.Context, slug string) (store.MenuItem, error) {
	for _, it := range f.items {
		if it.Slug == slug {
			return it, nil
		}
	}
	return store.MenuItem{}, store.ErrNotFound
}

func (f *fakeQuerier) ListAddOns(context.Context, bool) ([]store.AddOn, error) {
	return f.addOns, nil
}

func (f *fakeQuerier) GetAddOns(_ context.Context, ids []string) ([]store.AddOn, error) {
	var out []store.AddOn
	for _, a := range f.addOns {
		for _, id := range ids {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func newFixture(t *testing.T) (*fakeQuerier, *catalog.Handler) {
	t.Helper()
	q := &fakeQuerier{
		categories: []store.Category{{ID: "cat-1", Slug: "pizza", Name: "Pizza"}},
		items: []store.MenuItem{
			{ID: "item-1", Slug: "pepperoni", Name: "Pepperoni", Price: 120000, Available: true,
				AddOnIDs: []string{"addon-1", "addon-2"}},
			{ID: "item-2", Slug: "hidden", Name: "Hidden", Price: 99999, Available: false},
		},
		addOns: []store.AddOn{
			{ID: "addon-1", Name: "Extra cheese", Price: 20000, Active: true},
			{ID: "addon-2", Name: "Retired", Price: 5000, Active: false},
		},
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := &catalog.Service{Q: q, Cache: catalog.NewCache(client, time.Minute)}
	return q, &catalog.Handler{Svc: svc}
}

func TestCategoriesCached(t *testing.T) {
	q, handler := newFixture(t)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/catalog/categories", nil)
		rec := httptest.NewRecorder()
		handler.Categories(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 1, q.categoryCalls, "subsequent reads come from cache")
}

func TestItemsHidesUnavailable(t *testing.T) {
	_, handler := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/catalog/items", nil)
	rec := httptest.NewRecorder()
	handler.Items(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []store.MenuItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, "pepperoni", envelope.Data[0].Slug)
}

func TestItemDetailResolvesActiveAddOns(t *testing.T) {
	_, handler := newFixture(t)
	router := chi.NewRouter()
	router.Get("/catalog/items/{slug}", handler.Item)

	req := httptest.NewRequest(http.MethodGet, "/catalog/items/pepperoni", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data catalog.ItemDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.AddOns, 1, "inactive add-ons are filtered out")
	require.Equal(t, "Extra cheese", envelope.Data.AddOns[0].Name)
}

func TestItemDetailNotFound(t *testing.T) {
	_, handler := newFixture(t)
	router := chi.NewRouter()
	router.Get("/catalog/items/{slug}", handler.Item)

	for _, slug := range []string{"missing", "hidden"} {
		req := httptest.NewRequest(http.MethodGet, "/catalog/items/"+slug, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNotFound, rec.Code, "slug %q", slug)
	}
}
