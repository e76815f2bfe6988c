package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petit-storefront/internal/domain"
)

func newTestManagement(t *testing.T, r chi.Router) *ManagementClient {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewManagementClient(srv.URL, 5*time.Second)
}

func TestManagementBusinesses_NormalizesMixedCase(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/management/businesses", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"Id": 12, "Name": "Acme", "Category": "Shop", "City": "Oslo",
			 "Pages": [{"Id": "p-1", "Title": "Page 1",
			   "Carts": [{"Id": 5, "Title": "Widget", "Price": 9.99, "Category": "Tools"}]}]},
			{"id": "13", "name": "Beta", "pages": []}
		]`)
	})
	m := newTestManagement(t, r)

	list, err := m.ManagementBusinesses(context.Background(), "s3cret")
	require.NoError(t, err)
	require.Len(t, list, 2)

	acme := list[0]
	assert.Equal(t, "12", acme.ID)
	assert.Equal(t, "Acme", acme.Name)
	require.Len(t, acme.Pages, 1)
	assert.Equal(t, "p-1", acme.Pages[0].ID)
	assert.Equal(t, "12", acme.Pages[0].BusinessID)
	require.Len(t, acme.Pages[0].Items, 1)
	item := acme.Pages[0].Items[0]
	assert.Equal(t, "5", item.ID)
	assert.Equal(t, 9.99, item.Price)
	assert.Equal(t, "p-1", item.PageID)

	assert.Equal(t, "13", list[1].ID)
	assert.Empty(t, list[1].Pages)
}

func TestGetBusiness_NotFound(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/businesses/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"title":"Not Found","status":404}`)
	})
	m := newTestManagement(t, r)

	_, err := m.GetBusiness(context.Background(), "", "77")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "Not Found", UserMessage(err, "fallback"))
}

func TestAPIError_MessagePrecedence(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error field", `{"error":"boom","message":"ignored"}`, "boom"},
		{"message field", `{"message":"bad input"}`, "bad input"},
		{"title field", `{"title":"One or more validation errors occurred."}`, "One or more validation errors occurred."},
		{"plain text", `service unavailable`, "service unavailable"},
		{"empty body", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newAPIError(http.StatusBadRequest, []byte(tt.body))
			assert.Equal(t, tt.want, e.Message)
		})
	}
}

func TestUserMessage_FallsBackForTransportErrors(t *testing.T) {
	assert.Equal(t, "Checkout failed", UserMessage(errors.New("dial tcp: refused"), "Checkout failed"))
	assert.Equal(t, "Checkout failed", UserMessage(&APIError{StatusCode: 500}, "Checkout failed"))
}

func TestCreatePage_FillsMissingFields(t *testing.T) {
	var got PageInput
	r := chi.NewRouter()
	r.Post("/api/pages", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"Id":"abc"}`)
	})
	m := newTestManagement(t, r)

	page, err := m.CreatePage(context.Background(), "tok", PageInput{ID: "abc", Title: "Page 1", BusinessID: 12})
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.BusinessID)
	assert.Equal(t, "abc", page.ID)
	assert.Equal(t, "Page 1", page.Title)
	assert.Equal(t, "12", page.BusinessID)
}

func TestListProducts_TitleFallsBackToName(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/products", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"name":"Mug","price":"4.50","category":"Kitchen","businessId":3}]`)
	})
	m := newTestManagement(t, r)

	products, err := m.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, domain.Product{ID: "1", Title: "Mug", Price: 4.5, Category: "Kitchen", BusinessID: "3"}, products[0])
}

func TestLogin_DecodesTokenAndUser(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/auth/{role}/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "seller", chi.URLParam(r, "role"))
		var in Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "sam@example.com", in.Email)
		io.WriteString(w, `{"token":"t-1","user":{"id":4,"email":"sam@example.com"}}`)
	})
	m := newTestManagement(t, r)

	res, err := m.Login(context.Background(), domain.RoleSeller, Credentials{Email: "sam@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "t-1", res.Token)
	require.NotNil(t, res.User)
	assert.Equal(t, "sam@example.com", res.User.Field("email"))
}

func TestCreatePayPalOrder_ReadsOrderID(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/orders/paypal/create", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Ada", in["shippingFullName"])
		io.WriteString(w, `{"orderId": 7}`)
	})
	m := newTestManagement(t, r)

	id, err := m.CreatePayPalOrder(context.Background(), "", PayPalOrderRequest{
		ItemsJSON:     "[]",
		Total:         15,
		OrderShipping: FlattenShipping(domain.ShippingInfo{FullName: "Ada"}),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestSellerClient_BuyerChatSendsNullBuyer(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/diff/ai/chat", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.JSONEq(t, `null`, string(in["buyer"]))
		assert.JSONEq(t, `[]`, string(in["history"]))
		io.WriteString(w, `{"reply":"hi"}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	s := NewSellerClient(srv.URL, time.Second)
	body, err := s.BuyerChat(context.Background(), BuyerChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reply":"hi"}`, string(body))
}

func TestLooseID(t *testing.T) {
	var v struct {
		A looseID `json:"a"`
		B looseID `json:"b"`
		C looseID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 42, "b": "x-1", "c": null}`), &v))
	assert.Equal(t, looseID("42"), v.A)
	assert.Equal(t, looseID("x-1"), v.B)
	assert.Equal(t, looseID(""), v.C)
}

func TestUserMessage_PrefersUserError(t *testing.T) {
	cause := &APIError{StatusCode: 401, Message: "Unauthorized"}
	err := Failf(http.StatusUnauthorized, cause, "Invalid email or password")

	assert.Equal(t, "Invalid email or password", UserMessage(err, "Login failed"))
	assert.True(t, errors.Is(err, cause))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(Failf(http.StatusBadRequest, nil, "bad")))
	assert.Equal(t, http.StatusConflict, StatusOf(&APIError{StatusCode: 409}))
	assert.Equal(t, http.StatusBadGateway, StatusOf(&APIError{StatusCode: 500}))
	assert.Equal(t, http.StatusBadGateway, StatusOf(errors.New("dial tcp")))
}
