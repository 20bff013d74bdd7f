package delivery_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sofreh/backend-resto/internal/delivery"
	"github.com/sofreh/backend-resto/internal/store"
)

type fakeZones struct {
	zones []store.Zone
	slots map[string][]store.Slot
}

func (f *fakeZones) List(_ context.Context, onlyActive bool) ([]store.Zone, error) {
	var out []store.Zone
	for _, z := range f.zones {
		if onlyActive && !z.Active {
			continue
		}
		out = append(out, z)
	}
	return out, nil
}

func (f *fakeZones) Get(_ context.Context, id string) (store.Zone, error) {
	for _, z := range f.zones {
		if z.ID == id {
			return z, nil
		}
	}
	return store.Zone{}, store.ErrNotFound
}

func (f *fakeZones) ListSlots(_ context.Context, zoneID, date string) ([]store.Slot, error) {
	var out []store.Slot
	for _, s := range f.slots[zoneID] {
		if s.Date == date {
			out = append(out, s)
		}
	}
	return out, nil
}

func newServer(t *testing.T, repo *fakeZones) *httptest.Server {
	t.Helper()
	handler := &delivery.Handler{
		Repo: repo,
		Now:  func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
	r := chi.NewRouter()
	r.Get("/delivery/zones", handler.Zones)
	r.Get("/delivery/slots", handler.Slots)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (int, map[string]json.RawMessage) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestZonesHidesInactive(t *testing.T) {
	repo := &fakeZones{zones: []store.Zone{
		{ID: "z1", Name: "Downtown", Description: "Valiasr, Enghelab", DeliveryFee: 30000, SortOrder: 1, Active: true},
		{ID: "z2", Name: "Suburbs", DeliveryFee: 55000, Active: false},
	}}
	srv := newServer(t, repo)

	status, body := getJSON(t, srv.URL+"/delivery/zones")
	require.Equal(t, http.StatusOK, status)

	var zones []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		ShippingFee int64  `json:"shippingFee"`
		SortOrder   int    `json:"sortOrder"`
	}
	require.NoError(t, json.Unmarshal(body["data"], &zones))
	require.Len(t, zones, 1)
	require.Equal(t, "Downtown", zones[0].Name)
	require.Equal(t, "Valiasr, Enghelab", zones[0].Description)
	require.EqualValues(t, 30000, zones[0].ShippingFee, "fee must be serialized under the shippingFee key")
	require.Equal(t, 1, zones[0].SortOrder)
}

func TestSlotsReportsAvailability(t *testing.T) {
	repo := &fakeZones{
		zones: []store.Zone{{ID: "z1", Name: "Downtown", Active: true}},
		slots: map[string][]store.Slot{
			"z1": {
				{ID: "s1", ZoneID: "z1", Date: "2026-03-11", Window: "12:00-14:00", Capacity: 10, Reserved: 4},
				{ID: "s2", ZoneID: "z1", Date: "2026-03-11", Window: "18:00-20:00", Capacity: 8, Reserved: 8},
			},
		},
	}
	srv := newServer(t, repo)

	status, body := getJSON(t, srv.URL+"/delivery/slots?zone=z1&date=2026-03-11")
	require.Equal(t, http.StatusOK, status)

	var board struct {
		Date    string `json:"date"`
		Windows []struct {
			Window    string `json:"window"`
			Available int    `json:"available"`
		} `json:"windows"`
	}
	require.NoError(t, json.Unmarshal(body["data"], &board))
	require.Equal(t, "2026-03-11", board.Date)
	require.Len(t, board.Windows, 2)
	require.Equal(t, 6, board.Windows[0].Available)
	require.Equal(t, 0, board.Windows[1].Available)
}

func TestSlotsRejectsPastDate(t *testing.T) {
	repo := &fakeZones{zones: []store.Zone{{ID: "z1", Active: true}}}
	srv := newServer(t, repo)

	status, _ := getJSON(t, srv.URL+"/delivery/slots?zone=z1&date=2026-03-09")
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestSlotsUnknownZone(t *testing.T) {
	srv := newServer(t, &fakeZones{})

	status, _ := getJSON(t, srv.URL+"/delivery/slots?zone=missing&date=2026-03-11")
	require.Equal(t, http.StatusNotFound, status)
}

func TestSlotsWithoutZoneAggregatesActiveZones(t *testing.T) {
	repo := &fakeZones{
		zones: []store.Zone{
			{ID: "z1", Name: "Downtown", Active: true},
			{ID: "z2", Name: "Uptown", Active: true},
			{ID: "z3", Name: "Closed", Active: false},
		},
		slots: map[string][]store.Slot{
			"z1": {
				{ID: "s1", ZoneID: "z1", Date: "2026-03-11", Window: "12:00-14:00", Capacity: 10, Reserved: 4},
				{ID: "s2", ZoneID: "z1", Date: "2026-03-11", Window: "18:00-20:00", Capacity: 8, Reserved: 2},
			},
			"z2": {
				{ID: "s3", ZoneID: "z2", Date: "2026-03-11", Window: "12:00-14:00", Capacity: 6, Reserved: 6},
			},
			"z3": {
				{ID: "s4", ZoneID: "z3", Date: "2026-03-11", Window: "12:00-14:00", Capacity: 99, Reserved: 0},
			},
		},
	}
	srv := newServer(t, repo)

	status, body := getJSON(t, srv.URL+"/delivery/slots?date=2026-03-11")
	require.Equal(t, http.StatusOK, status)

	var board struct {
		Date    string `json:"date"`
		Windows []struct {
			Window    string `json:"window"`
			Capacity  int    `json:"capacity"`
			Available int    `json:"available"`
		} `json:"windows"`
	}
	require.NoError(t, json.Unmarshal(body["data"], &board))
	require.Equal(t, "2026-03-11", board.Date)
	require.Len(t, board.Windows, 2)

	// Shared windows sum across active zones; the inactive zone is excluded.
	require.Equal(t, "12:00-14:00", board.Windows[0].Window)
	require.Equal(t, 16, board.Windows[0].Capacity)
	require.Equal(t, 6, board.Windows[0].Available)
	require.Equal(t, "18:00-20:00", board.Windows[1].Window)
	require.Equal(t, 6, board.Windows[1].Available)
}
