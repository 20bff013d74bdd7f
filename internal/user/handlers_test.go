package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/store"
	"github.com/sofreh/backend-resto/internal/user"
)

type fakeRepo struct {
	users     map[string]store.User
	addresses []store.Address
	nextID    int
}

func (f *fakeRepo) Get(_ context.Context, id string) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) UpdateProfile(_ context.Context, id, name string) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	u.Name = name
	f.users[id] = u
	return u, nil
}

func (f *fakeRepo) ListAddresses(_ context.Context, userID string) ([]store.Address, error) {
	var out []store.Address
	for _, a := range f.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountAddresses(_ context.Context, userID string) (int, error) {
	n := 0
	for _, a := range f.addresses {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) GetAddress(_ context.Context, userID, id string) (store.Address, error) {
	for _, a := range f.addresses {
		if a.UserID == userID && a.ID == id {
			return a, nil
		}
	}
	return store.Address{}, store.ErrNotFound
}

func (f *fakeRepo) CreateAddress(_ context.Context, a store.Address) (store.Address, error) {
	f.nextID++
	a.ID = fmt.Sprintf("addr-%d", f.nextID)
	f.addresses = append(f.addresses, a)
	return a, nil
}

func (f *fakeRepo) UpdateAddress(_ context.Context, a store.Address) (store.Address, error) {
	for i, existing := range f.addresses {
		if existing.UserID == a.UserID && existing.ID == a.ID {
			f.addresses[i] = a
			return a, nil
		}
	}
	return store.Address{}, store.ErrNotFound
}

func (f *fakeRepo) DeleteAddress(_ context.Context, userID, id string) error {
	for i, a := range f.addresses {
		if a.UserID == userID && a.ID == id {
			f.addresses = append(f.addresses[:i], f.addresses[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func authAs(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
		})
	}
}

func newServer(t *testing.T, repo *fakeRepo) *httptest.Server {
	t.Helper()
	handler := &user.Handler{Repo: repo, Validate: validator.New()}
	r := chi.NewRouter()
	r.Use(authAs("u-1"))
	r.Get("/me", handler.Me)
	r.Patch("/me", handler.UpdateMe)
	r.Get("/me/addresses", handler.ListAddresses)
	r.Post("/me/addresses", handler.CreateAddress)
	r.Put("/me/addresses/{id}", handler.UpdateAddress)
	r.Delete("/me/addresses/{id}", handler.DeleteAddress)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, payload any) (int, map[string]json.RawMessage) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, url, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func validAddress() map[string]any {
	return map[string]any{
		"label":        "home",
		"receiverName": "Sara",
		"phone":        "09123456789",
		"line1":        "12 Azadi St",
	}
}

func TestProfileRoundTrip(t *testing.T) {
	repo := &fakeRepo{users: map[string]store.User{"u-1": {ID: "u-1", Phone: "+989123456789", Role: "customer"}}}
	srv := newServer(t, repo)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/me", nil)
	require.Equal(t, http.StatusOK, status)
	var me store.User
	require.NoError(t, json.Unmarshal(body["data"], &me))
	require.Equal(t, "u-1", me.ID)

	status, body = doJSON(t, http.MethodPatch, srv.URL+"/me", map[string]any{"name": "Sara"})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body["data"], &me))
	require.Equal(t, "Sara", me.Name)
}

func TestAddressBookCap(t *testing.T) {
	repo := &fakeRepo{users: map[string]store.User{"u-1": {ID: "u-1"}}}
	srv := newServer(t, repo)

	for i := 0; i < user.MaxAddresses; i++ {
		status, _ := doJSON(t, http.MethodPost, srv.URL+"/me/addresses", validAddress())
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := doJSON(t, http.MethodPost, srv.URL+"/me/addresses", validAddress())
	require.Equal(t, http.StatusUnprocessableEntity, status)
	var errBody struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(body["error"], &errBody))
	require.Equal(t, "ADDRESS_LIMIT", errBody.Code)
}

func TestAddressValidation(t *testing.T) {
	repo := &fakeRepo{users: map[string]store.User{"u-1": {ID: "u-1"}}}
	srv := newServer(t, repo)

	payload := validAddress()
	payload["phone"] = "12345"
	status, _ := doJSON(t, http.MethodPost, srv.URL+"/me/addresses", payload)
	require.Equal(t, http.StatusUnprocessableEntity, status)

	payload = validAddress()
	delete(payload, "line1")
	status, _ = doJSON(t, http.MethodPost, srv.URL+"/me/addresses", payload)
	require.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestAddressUpdateAndDelete(t *testing.T) {
	repo := &fakeRepo{users: map[string]store.User{"u-1": {ID: "u-1"}}}
	srv := newServer(t, repo)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/me/addresses", validAddress())
	require.Equal(t, http.StatusCreated, status)
	var created store.Address
	require.NoError(t, json.Unmarshal(body["data"], &created))

	payload := validAddress()
	payload["label"] = "office"
	status, body = doJSON(t, http.MethodPut, srv.URL+"/me/addresses/"+created.ID, payload)
	require.Equal(t, http.StatusOK, status)
	var updated store.Address
	require.NoError(t, json.Unmarshal(body["data"], &updated))
	require.Equal(t, "office", updated.Label)

	status, _ = doJSON(t, http.MethodDelete, srv.URL+"/me/addresses/"+created.ID, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, http.MethodDelete, srv.URL+"/me/addresses/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, status)
}
