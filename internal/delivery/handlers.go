package delivery

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/store"
)

// Querier is the read surface the public endpoints need.
type Querier interface {
	List(ctx context.Context, onlyActive bool) ([]store.Zone, error)
	Get(ctx context.Context, id string) (store.Zone, error)
	ListSlots(ctx context.Context, zoneID, date string) ([]store.Slot, error)
}

// Handler exposes the public delivery endpoints: service areas and the
// slot availability board the checkout page renders.
type Handler struct {
	Repo Querier
	Now  func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

var windowPattern = regexp.MustCompile(`^\d{2}:\d{2}-\d{2}:\d{2}$`)

type slotWindow struct {
	Window    string `json:"window"`
	Capacity  int    `json:"capacity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

type slotBoard struct {
	Date    string       `json:"date"`
	Windows []slotWindow `json:"windows"`
}

// Zones lists active service areas with their fees and minimums.
func (h *Handler) Zones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.Repo.List(r.Context(), true)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load zones", nil)
		return
	}
	if zones == nil {
		zones = []store.Zone{}
	}
	common.JSON(w, http.StatusOK, zones)
}

// Slots returns the delivery window board for a date. With a zone query
// parameter the board covers that zone only; without one it aggregates
// every active zone, which is what the checkout page requests before an
// address is chosen. Dates default to today and must not be in the past.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	zoneID := strings.TrimSpace(r.URL.Query().Get("zone"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	today := h.now().Format("2006-01-02")
	if date == "" {
		date = today
	}
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "date must be YYYY-MM-DD", nil)
		return
	}
	if parsed.Format("2006-01-02") < today {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "date is in the past", nil)
		return
	}
	var slots []store.Slot
	if zoneID != "" {
		if _, err := h.Repo.Get(r.Context(), zoneID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "zone not found", nil)
				return
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load zone", nil)
			return
		}
		slots, err = h.Repo.ListSlots(r.Context(), zoneID, date)
	} else {
		slots, err = h.allZoneSlots(r.Context(), date)
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load slots", nil)
		return
	}
	common.JSON(w, http.StatusOK, buildBoard(date, slots))
}

func (h *Handler) allZoneSlots(ctx context.Context, date string) ([]store.Slot, error) {
	zones, err := h.Repo.List(ctx, true)
	if err != nil {
		return nil, err
	}
	var slots []store.Slot
	for _, z := range zones {
		zs, err := h.Repo.ListSlots(ctx, z.ID, date)
		if err != nil {
			return nil, err
		}
		slots = append(slots, zs...)
	}
	return slots, nil
}

// buildBoard folds slots into per-window rows. Slots from different zones
// sharing a window add up, so the zoneless board shows citywide capacity.
func buildBoard(date string, slots []store.Slot) slotBoard {
	byWindow := make(map[string]*slotWindow)
	order := make([]string, 0, len(slots))
	for _, s := range slots {
		row, ok := byWindow[s.Window]
		if !ok {
			row = &slotWindow{Window: s.Window}
			byWindow[s.Window] = row
			order = append(order, s.Window)
		}
		row.Capacity += s.Capacity
		row.Reserved += s.Reserved
	}
	sort.Strings(order)

	board := slotBoard{Date: date, Windows: make([]slotWindow, 0, len(order))}
	for _, w := range order {
		row := byWindow[w]
		row.Available = row.Capacity - row.Reserved
		board.Windows = append(board.Windows, *row)
	}
	return board
}
