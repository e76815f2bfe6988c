package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/catalog"
	"petit-storefront/internal/chat"
	"petit-storefront/internal/checkout"
	"petit-storefront/internal/events"
	"petit-storefront/internal/management"
	"petit-storefront/internal/reconcile"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

// --- Fake management API ---

type fakeItem struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
	PageID   string  `json:"pageId"`
}

type fakePage struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	BusinessID int64      `json:"businessId"`
	Carts      []fakeItem `json:"carts"`
}

type fakeBusiness struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Country  string      `json:"country"`
	City     string      `json:"city"`
	Pages    []*fakePage `json:"pages"`
}

type fakeManagement struct {
	mu         sync.Mutex
	nextID     int64
	businesses []*fakeBusiness
	orders     []backend.OrderRequest
	captures   []backend.PayPalCapture
}

func newFakeManagement() *fakeManagement {
	return &fakeManagement{nextID: 1}
}

// seed adds a business with one page holding items.
func (f *fakeManagement) seed(name, pageID string, items ...fakeItem) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	for i := range items {
		items[i].PageID = pageID
	}
	f.businesses = append(f.businesses, &fakeBusiness{
		ID: id, Name: name, Category: "Shop", City: "Oslo",
		Pages: []*fakePage{{ID: pageID, Title: "Page 1", BusinessID: id, Carts: items}},
	})
	return id
}

func (f *fakeManagement) business(id string) *fakeBusiness {
	for _, b := range f.businesses {
		if strconv.FormatInt(b.ID, 10) == id {
			return b
		}
	}
	return nil
}

func (f *fakeManagement) page(id string) *fakePage {
	for _, b := range f.businesses {
		for _, p := range b.Pages {
			if p.ID == id {
				return p
			}
		}
	}
	return nil
}

func writeFake(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func requireSeller(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-seller" {
			writeFake(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

func (f *fakeManagement) router() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/auth/{role}/login", func(w http.ResponseWriter, r *http.Request) {
		var in backend.Credentials
		json.NewDecoder(r.Body).Decode(&in)
		if in.Password == "wrong" {
			writeFake(w, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
			return
		}
		role := chi.URLParam(r, "role")
		writeFake(w, http.StatusOK, map[string]interface{}{
			"token": "tok-" + role,
			"user":  map[string]interface{}{"id": 12, "name": "Ann", "email": in.Email},
		})
	})

	r.Get("/api/businesses", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeFake(w, http.StatusOK, f.businesses)
	})
	r.Get("/api/businesses/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		b := f.business(chi.URLParam(r, "id"))
		if b == nil {
			writeFake(w, http.StatusNotFound, map[string]string{"message": "Business not found"})
			return
		}
		writeFake(w, http.StatusOK, b)
	})
	r.Post("/api/businesses", requireSeller(func(w http.ResponseWriter, r *http.Request) {
		var in backend.BusinessInput
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		b := &fakeBusiness{ID: f.nextID, Name: in.Name, Category: in.Category, Country: in.Country, City: in.City, Pages: []*fakePage{}}
		f.nextID++
		f.businesses = append(f.businesses, b)
		writeFake(w, http.StatusCreated, b)
	}))
	r.Get("/api/management/businesses", requireSeller(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeFake(w, http.StatusOK, f.businesses)
	}))
	r.Post("/api/pages", requireSeller(func(w http.ResponseWriter, r *http.Request) {
		var in backend.PageInput
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		b := f.business(strconv.FormatInt(in.BusinessID, 10))
		if b == nil {
			writeFake(w, http.StatusNotFound, map[string]string{"message": "Business not found"})
			return
		}
		if f.page(in.ID) != nil {
			writeFake(w, http.StatusConflict, map[string]string{"message": "Page exists"})
			return
		}
		p := &fakePage{ID: in.ID, Title: in.Title, BusinessID: in.BusinessID, Carts: []fakeItem{}}
		b.Pages = append(b.Pages, p)
		writeFake(w, http.StatusCreated, p)
	}))
	r.Post("/api/cartitems", requireSeller(func(w http.ResponseWriter, r *http.Request) {
		var in backend.CatalogItemInput
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		defer f.mu.Unlock()
		p := f.page(in.PageID)
		if p == nil {
			writeFake(w, http.StatusNotFound, map[string]string{"message": "Page not found"})
			return
		}
		item := fakeItem{ID: in.ID, Title: in.Title, Price: in.Price, Category: in.Category, PageID: in.PageID}
		p.Carts = append(p.Carts, item)
		writeFake(w, http.StatusCreated, item)
	}))
	r.Get("/api/products", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var out []map[string]interface{}
		for _, b := range f.businesses {
			for _, p := range b.Pages {
				for _, it := range p.Carts {
					out = append(out, map[string]interface{}{
						"id": it.ID, "title": it.Title, "price": it.Price, "category": it.Category, "businessId": b.ID,
					})
				}
			}
		}
		writeFake(w, http.StatusOK, out)
	})

	r.Post("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		var in backend.OrderRequest
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.orders = append(f.orders, in)
		f.mu.Unlock()
		writeFake(w, http.StatusCreated, map[string]int{"id": 55})
	})
	r.Post("/api/orders/paypal/create", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, http.StatusOK, map[string]int{"orderId": 7})
	})
	r.Post("/api/orders/paypal/capture", func(w http.ResponseWriter, r *http.Request) {
		var in backend.PayPalCapture
		json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.captures = append(f.captures, in)
		f.mu.Unlock()
		writeFake(w, http.StatusOK, map[string]bool{"success": true})
	})
	return r
}

// --- Fake seller service ---

func fakeSellerRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/seller/businesses", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, http.StatusOK, []interface{}{})
	})
	r.Delete("/seller/businesses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/seller/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, http.StatusOK, map[string]string{"reply": "Try a bundle"})
	})
	r.Post("/diff/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, http.StatusOK, map[string]string{"reply": "Hello buyer"})
	})
	return r
}

// --- Fake PayPal ---

type fakeGateway struct {
	mu          sync.Mutex
	amount      string
	description string
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount, description string) (*checkout.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.amount, g.description = amount, description
	return &checkout.GatewayOrder{ID: "PP-1", ApproveURL: "https://www.sandbox.paypal.com/checkoutnow?token=PP-1"}, nil
}

func (g *fakeGateway) created() (amount, description string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.amount, g.description
}

func (g *fakeGateway) CaptureOrder(_ context.Context, id string) (*checkout.Capture, error) {
	return &checkout.Capture{OrderID: id, PayerID: "PAYER", CaptureID: "CAP-9", Status: "COMPLETED"}, nil
}

// --- Test environment ---

type testEnv struct {
	t        *testing.T
	server   *httptest.Server
	mgmt     *fakeManagement
	gateway  *fakeGateway
	storage  *store.MemoryStore
	bus      *events.Bus
	clientID string
}

func newTestEnv(t *testing.T) *testEnv {
	mgmt := newFakeManagement()
	mgmtSrv := httptest.NewServer(mgmt.router())
	t.Cleanup(mgmtSrv.Close)
	sellerSrv := httptest.NewServer(fakeSellerRouter())
	t.Cleanup(sellerSrv.Close)

	mc := backend.NewManagementClient(mgmtSrv.URL, 5*time.Second)
	sc := backend.NewSellerClient(sellerSrv.URL, 5*time.Second)
	gw := &fakeGateway{}
	storage := store.NewMemoryStore()
	bus := events.NewBus()

	h := NewHTTPHandler(Deps{
		Storage:    storage,
		Bus:        bus,
		Session:    session.NewService(mc, nil),
		Management: management.NewService(mc, sc, reconcile.New(mc), nil),
		Catalog:    catalog.NewService(mc),
		Checkout:   checkout.NewService(mc, gw, checkout.NoticeHooks()),
		Chat:       chat.NewService(sc),
	})
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{
		t: t, server: srv, mgmt: mgmt, gateway: gw,
		storage: storage, bus: bus, clientID: uuid.NewString(),
	}
}

// do sends a request as the env's client and returns the response with
// its body read.
func (e *testEnv) do(method, path string, body interface{}) (*http.Response, []byte) {
	e.t.Helper()
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, e.server.URL+"/api/v1"+path, rdr)
	require.NoError(e.t, err)
	req.Header.Set(ClientHeader, e.clientID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(e.t, err)
	return res, data
}

func (e *testEnv) login(role string) {
	e.t.Helper()
	res, body := e.do(http.MethodPost, "/auth/"+role+"/login", map[string]string{"email": "ann@example.com", "password": "secret1"})
	require.Equal(e.t, http.StatusOK, res.StatusCode, string(body))
}

func decodeBody[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}
