package catalog

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/cart"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/events"
	"petit-storefront/internal/store"
)

type MockListingAPI struct {
	mock.Mock
}

func (m *MockListingAPI) ListProducts(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]domain.Product)
	return list, args.Error(1)
}

func (m *MockListingAPI) ListBusinesses(ctx context.Context) ([]domain.Business, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]domain.Business)
	return list, args.Error(1)
}

func (m *MockListingAPI) GetBusiness(ctx context.Context, token, id string) (*domain.Business, error) {
	args := m.Called(ctx, token, id)
	b, _ := args.Get(0).(*domain.Business)
	return b, args.Error(1)
}

var products = []domain.Product{
	{ID: "1", Title: "Blue Mug", Price: 5, Category: "Kitchen"},
	{ID: "2", Title: "Red Mug", Price: 6, Category: "kitchen"},
	{ID: "3", Title: "Scarf", Price: 20, Category: "Clothing"},
	{ID: "4", Title: "Mystery Box", Price: 9.99},
}

func newLocal(rec *events.Recorder) *store.Local {
	if rec == nil {
		return store.NewLocal(store.NewMemoryStore(), "client-1", nil)
	}
	return store.NewLocal(store.NewMemoryStore(), "client-1", rec)
}

func titles(list []domain.Product) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Title)
	}
	return out
}

func TestFilterProducts(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		category string
		want     []string
	}{
		{"all categories", "", "All", []string{"Blue Mug", "Red Mug", "Scarf", "Mystery Box"}},
		{"empty selector", "mug", "", []string{"Blue Mug", "Red Mug"}},
		{"category ignores case", "", "KITCHEN", []string{"Blue Mug", "Red Mug"}},
		{"query ignores case", "SCA", "All", []string{"Scarf"}},
		{"category is exact", "", "Kitch", []string{}},
		{"query and category", "blue", "kitchen", []string{"Blue Mug"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, titles(FilterProducts(products, tc.query, tc.category)))
		})
	}
}

func TestCategoriesAndGroup(t *testing.T) {
	assert.Equal(t, []string{"Clothing", "Kitchen", "kitchen"},
		Categories([]string{"Kitchen", "kitchen", "Clothing", "", "Kitchen"}))

	groups := Group(products)
	require.Len(t, groups, 4)
	assert.Equal(t, "Kitchen", groups[0].Category)
	assert.Equal(t, Uncategorized, groups[3].Category)
	assert.Equal(t, "Mystery Box", groups[3].Products[0].Title)
}

func TestShop_EmptyStatesAndControls(t *testing.T) {
	ctx := context.Background()
	api := new(MockListingAPI)
	api.On("ListProducts", mock.Anything).Return(products, nil)
	svc := NewService(api)
	local := newLocal(nil)
	cart.Load(ctx, local).Add(ctx, products[0].LineItem(), 2)

	view, err := svc.Shop(ctx, local, "", "")
	require.NoError(t, err)
	assert.Equal(t, AllCategories, view.Selected)
	assert.Empty(t, view.Empty)
	assert.Equal(t, []string{"Clothing", "Kitchen", "kitchen"}, view.Categories)
	first := view.Groups[0].Products[0]
	assert.Equal(t, Control{Kind: "stepper", Quantity: 2}, first.Control)
	assert.Equal(t, "$5.00", first.Display)
	assert.Equal(t, LabelAddToCart, view.Groups[1].Products[0].Control.Label)

	view, err = svc.Shop(ctx, local, "nothing", "")
	require.NoError(t, err)
	assert.Equal(t, "No products match your search.", view.Empty)
	assert.Empty(t, view.Groups)

	empty := new(MockListingAPI)
	empty.On("ListProducts", mock.Anything).Return([]domain.Product{}, nil)
	view, err = NewService(empty).Shop(ctx, local, "", "")
	require.NoError(t, err)
	assert.Equal(t, "No products available.", view.Empty)
}

func TestShop_SellerViewDisablesCart(t *testing.T) {
	ctx := context.Background()
	api := new(MockListingAPI)
	api.On("ListProducts", mock.Anything).Return(products, nil)
	local := newLocal(nil)
	local.SetString(ctx, domain.RoleSeller.UserKey(), `{"name":"Ann"}`)

	view, err := NewService(api).Shop(ctx, local, "", "All")
	require.NoError(t, err)
	assert.True(t, view.SellerView)
	assert.Equal(t, Control{Kind: "disabled", Label: LabelSellerView}, view.Groups[0].Products[0].Control)
}

func TestShop_UpstreamFailure(t *testing.T) {
	api := new(MockListingAPI)
	api.On("ListProducts", mock.Anything).Return(nil, errors.New("dial tcp: refused"))

	_, err := NewService(api).Shop(context.Background(), newLocal(nil), "", "")
	require.Error(t, err)
	assert.Equal(t, "Failed to load products", backend.UserMessage(err, ""))
	assert.Equal(t, http.StatusBadGateway, backend.StatusOf(err))
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	api := new(MockListingAPI)
	api.On("ListBusinesses", mock.Anything).Return([]domain.Business{
		{ID: "7", Name: "Acme", Category: "Shop", City: "Oslo", Pages: []domain.Page{
			{ID: "p1", Items: []domain.CatalogItem{{ID: "i1", Title: "Widget", Price: 9.99}}},
		}},
		{ID: "8", Name: "Bakery", Category: "Restaurant"},
	}, nil)
	local := newLocal(nil)
	AddFavoriteBusiness(ctx, local, domain.FavoriteBusiness{ID: "8", Name: "Bakery"})

	view, err := NewService(api).Directory(ctx, local, "", "")
	require.NoError(t, err)
	require.Len(t, view.Businesses, 2)
	assert.Equal(t, "Widget — $9.99", view.Businesses[0].FirstItem)
	assert.Equal(t, 1, view.Businesses[0].PageCount)
	assert.True(t, view.Businesses[1].Favorite)
	assert.Equal(t, []string{"Restaurant", "Shop"}, view.Categories)

	view, err = NewService(api).Directory(ctx, local, "zzz", "shop")
	require.NoError(t, err)
	assert.Equal(t, "No businesses match your search.", view.Empty)
}

func acmeBusiness() *domain.Business {
	return &domain.Business{ID: "7", Name: "Acme", Category: "Shop", City: "Oslo", Country: "NO", Pages: []domain.Page{
		{ID: "p1", Title: "Page 1", Items: []domain.CatalogItem{{ID: "i1", Title: "Widget", Price: 9.99, Category: "Gadgets"}}},
		{ID: "p2", Title: "Page 2"},
	}}
}

func TestBusiness_BuyerView(t *testing.T) {
	ctx := context.Background()
	api := new(MockListingAPI)
	api.On("GetBusiness", mock.Anything, "", "7").Return(acmeBusiness(), nil)
	local := newLocal(nil)

	view, err := NewService(api).Business(ctx, local, "7")
	require.NoError(t, err)
	require.Len(t, view.Pages, 2)
	require.Len(t, view.Pages[0].Items, 1)
	item := view.Pages[0].Items[0]
	assert.Equal(t, "$9.99", item.Display)
	assert.Equal(t, LabelAddToCart, item.Control.Label)
	assert.Equal(t, "7", item.BusinessID)
	assert.Equal(t, "No items on this page.", view.Pages[1].Empty)
	require.NotNil(t, view.CartCount)
	assert.Equal(t, 0, *view.CartCount)
}

func TestBusiness_SellerViewHidesCartCount(t *testing.T) {
	ctx := context.Background()
	api := new(MockListingAPI)
	api.On("GetBusiness", mock.Anything, "", "7").Return(acmeBusiness(), nil)
	local := newLocal(nil)
	local.SetString(ctx, domain.RoleSeller.UserKey(), `{}`)

	view, err := NewService(api).Business(ctx, local, "7")
	require.NoError(t, err)
	assert.True(t, view.SellerView)
	assert.Nil(t, view.CartCount)
	assert.Equal(t, "disabled", view.Pages[0].Items[0].Control.Kind)
}

func TestBusiness_NotFound(t *testing.T) {
	api := new(MockListingAPI)
	api.On("GetBusiness", mock.Anything, "", "99").Return(nil, &backend.APIError{StatusCode: 404})

	_, err := NewService(api).Business(context.Background(), newLocal(nil), "99")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
	assert.Equal(t, "Business not found.", backend.UserMessage(err, ""))
}

func TestItem(t *testing.T) {
	api := new(MockListingAPI)
	api.On("GetBusiness", mock.Anything, "", "7").Return(acmeBusiness(), nil)
	svc := NewService(api)

	it, err := svc.Item(context.Background(), "7", "i1")
	require.NoError(t, err)
	assert.Equal(t, "Widget", it.Title)
	assert.Equal(t, "7", it.BusinessID)

	_, err = svc.Item(context.Background(), "7", "nope")
	assert.Equal(t, http.StatusNotFound, backend.StatusOf(err))
}
