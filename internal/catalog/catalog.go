// Package catalog builds the buyer's read views: the shop, the business
// directory and a single business's storefront.
package catalog

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/cart"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

const (
	// AllCategories is the category selector value that disables filtering.
	AllCategories = "All"
	// Uncategorized groups products without a category.
	Uncategorized = "Uncategorized"

	LabelAddToCart  = "Add to cart"
	LabelSellerView = "Seller view — cart disabled"
)

// ErrBusinessNotFound is returned when the business view cannot be loaded.
var ErrBusinessNotFound = errors.New("catalog: business not found")

// ListingAPI is the public part of the management API.
type ListingAPI interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListBusinesses(ctx context.Context) ([]domain.Business, error)
	GetBusiness(ctx context.Context, token, id string) (*domain.Business, error)
}

// Service builds buyer views.
type Service struct {
	api ListingAPI
}

// NewService creates a Service.
func NewService(api ListingAPI) *Service {
	return &Service{api: api}
}

// --- Filtering ---

// Categories returns the distinct non-empty categories, sorted.
func Categories(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Matches reports whether name contains query and category equals
// selected, both ignoring case. An empty or "All" selection matches
// every category.
func Matches(name, category, query, selected string) bool {
	if !strings.Contains(strings.ToLower(name), strings.ToLower(query)) {
		return false
	}
	if selected == "" || selected == AllCategories {
		return true
	}
	return strings.EqualFold(category, selected)
}

// FilterProducts applies the shop's search box and category selector.
func FilterProducts(products []domain.Product, query, category string) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if Matches(p.Title, p.Category, query, category) {
			out = append(out, p)
		}
	}
	return out
}

// FilterBusinesses applies the directory's search box and category selector.
func FilterBusinesses(list []domain.Business, query, category string) []domain.Business {
	out := make([]domain.Business, 0, len(list))
	for _, b := range list {
		if Matches(b.Name, b.Category, query, category) {
			out = append(out, b)
		}
	}
	return out
}

// ProductGroup is one category section of the shop.
type ProductGroup struct {
	Category string `json:"category"`
	Products []Card `json:"products"`
}

// Bucket is the products of one category.
type Bucket struct {
	Category string
	Products []domain.Product
}

// Group buckets products by category in first-seen order. Products without
// a category land in Uncategorized.
func Group(products []domain.Product) []Bucket {
	var out []Bucket
	index := make(map[string]int)
	for _, p := range products {
		key := p.Category
		if key == "" {
			key = Uncategorized
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Bucket{Category: key})
		}
		out[i].Products = append(out[i].Products, p)
	}
	return out
}

// --- Cart controls ---

// Control is the cart widget shown under a product.
type Control struct {
	Kind     string `json:"kind"` // add, stepper, disabled
	Label    string `json:"label,omitempty"`
	Quantity int    `json:"quantity,omitempty"`
}

func control(sellerView bool, qty int) Control {
	switch {
	case sellerView:
		return Control{Kind: "disabled", Label: LabelSellerView}
	case qty > 0:
		return Control{Kind: "stepper", Quantity: qty}
	default:
		return Control{Kind: "add", Label: LabelAddToCart}
	}
}

// Card is a product as the buyer views render it.
type Card struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Price      float64 `json:"price"`
	Display    string  `json:"display"` // e.g. "$9.99"
	Image      string  `json:"image,omitempty"`
	BusinessID string  `json:"businessId,omitempty"`
	Favorite   bool    `json:"favorite"`
	Control    Control `json:"control"`
}

type viewer struct {
	seller    bool
	cart      *cart.Cart
	favorites map[string]bool
}

func newViewer(ctx context.Context, local *store.Local) viewer {
	v := viewer{
		seller:    session.HasUser(ctx, local, domain.RoleSeller),
		cart:      cart.Load(ctx, local),
		favorites: make(map[string]bool),
	}
	for _, f := range Favorites(ctx, local) {
		v.favorites[f.ID] = true
	}
	return v
}

func (v viewer) card(item domain.LineItem) Card {
	return Card{
		ID:         item.ID,
		Title:      item.Title,
		Category:   item.Category,
		Price:      item.Price,
		Display:    domain.FormatUSD(domain.Money(item.Price)),
		Image:      item.Image,
		BusinessID: item.BusinessID,
		Favorite:   v.favorites[item.ID],
		Control:    control(v.seller, v.cart.Quantity(item.ID)),
	}
}

// --- Shop ---

// ShopView is the product listing screen.
type ShopView struct {
	Categories []string       `json:"categories"`
	Selected   string         `json:"selected"`
	Query      string         `json:"query"`
	Groups     []ProductGroup `json:"groups"`
	Empty      string         `json:"empty,omitempty"`
	SellerView bool           `json:"sellerView"`
}

// Shop loads the product listing and applies query and category.
func (s *Service) Shop(ctx context.Context, local *store.Local, query, category string) (*ShopView, error) {
	products, err := s.api.ListProducts(ctx)
	if err != nil {
		log.Printf("ERROR: Failed to load products: %v", err)
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to load products")
	}
	if category == "" {
		category = AllCategories
	}

	cats := make([]string, 0, len(products))
	for _, p := range products {
		cats = append(cats, p.Category)
	}
	v := newViewer(ctx, local)
	view := &ShopView{
		Categories: Categories(cats),
		Selected:   category,
		Query:      query,
		Groups:     []ProductGroup{},
		SellerView: v.seller,
	}

	filtered := FilterProducts(products, query, category)
	switch {
	case len(products) == 0:
		view.Empty = "No products available."
	case len(filtered) == 0:
		view.Empty = "No products match your search."
	}
	for _, bucket := range Group(filtered) {
		g := ProductGroup{Category: bucket.Category}
		for _, p := range bucket.Products {
			g.Products = append(g.Products, v.card(p.LineItem()))
		}
		view.Groups = append(view.Groups, g)
	}
	return view, nil
}

// --- Directory ---

// DirectoryEntry is one business card of the directory.
type DirectoryEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	City      string `json:"city"`
	PageCount int    `json:"pageCount"`
	FirstItem string `json:"firstItem,omitempty"` // title and price of the first listing
	Favorite  bool   `json:"favorite"`
}

// DirectoryView is the business directory screen. It has no cart controls.
type DirectoryView struct {
	Categories []string         `json:"categories"`
	Selected   string           `json:"selected"`
	Query      string           `json:"query"`
	Businesses []DirectoryEntry `json:"businesses"`
	Empty      string           `json:"empty,omitempty"`
}

// Directory loads the public business listing and applies query and category.
func (s *Service) Directory(ctx context.Context, local *store.Local, query, category string) (*DirectoryView, error) {
	list, err := s.api.ListBusinesses(ctx)
	if err != nil {
		log.Printf("ERROR: Failed to load businesses: %v", err)
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to load businesses")
	}
	if category == "" {
		category = AllCategories
	}

	cats := make([]string, 0, len(list))
	for _, b := range list {
		cats = append(cats, b.Category)
	}
	favs := make(map[string]bool)
	for _, f := range FavoriteBusinesses(ctx, local) {
		favs[f.ID] = true
	}

	view := &DirectoryView{
		Categories: Categories(cats),
		Selected:   category,
		Query:      query,
		Businesses: []DirectoryEntry{},
	}
	for _, b := range FilterBusinesses(list, query, category) {
		e := DirectoryEntry{
			ID: b.ID, Name: b.Name, Category: b.Category, City: b.City,
			PageCount: len(b.Pages), Favorite: favs[b.ID],
		}
		if len(b.Pages) > 0 && len(b.Pages[0].Items) > 0 {
			first := b.Pages[0].Items[0]
			e.FirstItem = first.Title + " — " + domain.FormatUSD(domain.Money(first.Price))
		}
		view.Businesses = append(view.Businesses, e)
	}
	if len(view.Businesses) == 0 {
		view.Empty = "No businesses match your search."
	}
	return view, nil
}

// --- Business storefront ---

// PageSection is one page of a storefront.
type PageSection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Card `json:"items"`
	Empty string `json:"empty,omitempty"`
}

// BusinessView is a single business's storefront.
type BusinessView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Category   string        `json:"category"`
	City       string        `json:"city"`
	Country    string        `json:"country"`
	Theme      *domain.Theme `json:"theme,omitempty"`
	SellerView bool          `json:"sellerView"`
	CartCount  *int          `json:"cartCount,omitempty"` // hidden in seller view
	Pages      []PageSection `json:"pages"`
	Empty      string        `json:"empty,omitempty"`
}

// Business loads the storefront of business id.
func (s *Service) Business(ctx context.Context, local *store.Local, id string) (*BusinessView, error) {
	b, err := s.api.GetBusiness(ctx, "", id)
	if err != nil {
		log.Printf("ERROR: Failed to load business %s: %v", id, err)
		if errors.Is(err, backend.ErrNotFound) {
			return nil, backend.Failf(http.StatusNotFound, ErrBusinessNotFound, "Business not found.")
		}
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to load business")
	}

	v := newViewer(ctx, local)
	view := &BusinessView{
		ID: b.ID, Name: b.Name, Category: b.Category, City: b.City, Country: b.Country,
		Theme:      b.Theme,
		SellerView: v.seller,
		Pages:      []PageSection{},
	}
	if !v.seller {
		n := v.cart.TotalItems()
		view.CartCount = &n
	}
	for _, p := range b.Pages {
		sec := PageSection{ID: p.ID, Title: p.Title, Items: []Card{}}
		for _, it := range p.Items {
			if it.BusinessID == "" {
				it.BusinessID = b.ID
			}
			sec.Items = append(sec.Items, v.card(it.LineItem()))
		}
		if len(sec.Items) == 0 {
			sec.Empty = "No items on this page."
		}
		view.Pages = append(view.Pages, sec)
	}
	if len(view.Pages) == 0 {
		view.Empty = "This shop has no pages yet."
	}
	return view, nil
}

// Item finds catalog item itemID of business businessID, for adding it to
// the cart from the storefront.
func (s *Service) Item(ctx context.Context, businessID, itemID string) (*domain.CatalogItem, error) {
	b, err := s.api.GetBusiness(ctx, "", businessID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, backend.Failf(http.StatusNotFound, ErrBusinessNotFound, "Business not found.")
		}
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to load business")
	}
	for _, p := range b.Pages {
		if it := p.ItemByID(itemID); it != nil {
			item := *it
			if item.BusinessID == "" {
				item.BusinessID = b.ID
			}
			return &item, nil
		}
	}
	return nil, backend.Failf(http.StatusNotFound, backend.ErrNotFound, "Item not found.")
}
