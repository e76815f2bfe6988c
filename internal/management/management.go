// Package management implements the seller's business, page and catalog
// item screens. Every write first runs ensure-sync so the management API
// knows the business and page it targets.
package management

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"petit-storefront/internal/backend"
	"petit-storefront/internal/domain"
	"petit-storefront/internal/media"
	"petit-storefront/internal/reconcile"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

// ErrBusinessNotFound is returned for a business id the seller does not have.
var ErrBusinessNotFound = errors.New("management: business not found")

// ErrPageNotFound is returned for a page id the business does not have.
var ErrPageNotFound = errors.New("management: page not found")

// Categories are the business categories the create form offers.
var Categories = []string{
	"Restaurant", "Shop", "Service", "Handmade", "Digital", "E-commerce", "Freelancer", "Other",
}

// ManagementAPI is the part of the management API this package calls.
type ManagementAPI interface {
	reconcile.BusinessAPI
	UpdateBusiness(ctx context.Context, token string, id int64, in backend.BusinessInput) error
	DeleteBusiness(ctx context.Context, token string, id int64) error
	UpdatePage(ctx context.Context, token string, in backend.PageInput) error
	DeletePage(ctx context.Context, token, id string) error
	CreateCatalogItem(ctx context.Context, token string, in backend.CatalogItemInput) (*domain.CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, token string, in backend.CatalogItemInput) error
	DeleteCatalogItem(ctx context.Context, token, id string) error
}

// SellerAPI is the part of the seller service this package calls.
type SellerAPI interface {
	ListBusinesses(ctx context.Context, token string) ([]domain.Business, error)
	DeleteBusiness(ctx context.Context, token, id string) error
}

// Service runs the seller workflows.
type Service struct {
	api      ManagementAPI
	seller   SellerAPI
	rec      *reconcile.Reconciler
	media    *media.Hoster
	validate *validator.Validate
}

// NewService creates a Service. hoster may be nil.
func NewService(api ManagementAPI, seller SellerAPI, rec *reconcile.Reconciler, hoster *media.Hoster) *Service {
	return &Service{api: api, seller: seller, rec: rec, media: hoster, validate: validator.New()}
}

// BusinessView is a business with its reconciliation state.
type BusinessView struct {
	domain.Business
	Sync reconcile.State `json:"sync"`
}

// BusinessForm is the create and edit form.
type BusinessForm struct {
	Name     string `json:"name" validate:"required,max=200"`
	Category string `json:"category" validate:"required,max=100"`
	Country  string `json:"country" validate:"max=100"`
	City     string `json:"city" validate:"max=100"`
}

func (f BusinessForm) input() backend.BusinessInput {
	return backend.BusinessInput{Name: f.Name, Category: f.Category, Country: f.Country, City: f.City}
}

// ItemForm is the catalog item form. Image may be a data URI.
type ItemForm struct {
	Title    string  `json:"title" validate:"required,max=200"`
	Price    float64 `json:"price" validate:"gt=0"`
	Category string  `json:"category" validate:"required,max=100"`
	Image    string  `json:"image"`
}

func (s *Service) token(ctx context.Context, local *store.Local) (string, error) {
	return session.RequireToken(ctx, local, domain.RoleSeller)
}

// --- Cache ---

func loadCache(ctx context.Context, local *store.Local) ([]domain.Business, bool) {
	var list []domain.Business
	ok := local.GetJSON(ctx, domain.KeySellerBusinesses, &list)
	return list, ok
}

func saveCache(ctx context.Context, local *store.Local, list []domain.Business) {
	if list == nil {
		list = []domain.Business{}
	}
	local.SetJSON(ctx, domain.KeySellerBusinesses, list)
}

func matches(b domain.Business, id string) bool {
	return b.ID == id || (b.RemoteID != 0 && strconv.FormatInt(b.RemoteID, 10) == id)
}

// editCache applies fn to the cached business id and saves the list.
func editCache(ctx context.Context, local *store.Local, id string, fn func(*domain.Business)) {
	local.Update(func() {
		list, _ := loadCache(ctx, local)
		for i := range list {
			if matches(list[i], id) {
				fn(&list[i])
				saveCache(ctx, local, list)
				return
			}
		}
	})
}

// --- Businesses ---

// ListBusinesses loads the management listing and the seller service
// listing side by side, merges them with management precedence and caches
// the result. A failing source counts as empty.
func (s *Service) ListBusinesses(ctx context.Context, local *store.Local) ([]BusinessView, error) {
	tok, err := s.token(ctx, local)
	if err != nil {
		return nil, err
	}

	var (
		wg              sync.WaitGroup
		primary, second []domain.Business
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		list, err := s.api.ManagementBusinesses(ctx, tok)
		if err != nil {
			log.Printf("ERROR: Management businesses fetch failed: %v", err)
			return
		}
		primary = list
	}()
	go func() {
		defer wg.Done()
		list, err := s.seller.ListBusinesses(ctx, tok)
		if err != nil {
			log.Printf("WARN: Seller service businesses fetch failed: %v", err)
			return
		}
		second = list
	}()
	wg.Wait()

	merged := reconcile.Merge(primary, second)
	local.Update(func() {
		// ids adopted earlier survive the refresh
		if cached, ok := loadCache(ctx, local); ok {
			for i := range merged {
				for _, c := range cached {
					if c.ID == merged[i].ID && c.RemoteID != 0 {
						merged[i].RemoteID = c.RemoteID
					}
				}
			}
		}
		saveCache(ctx, local, merged)
	})
	return s.views(ctx, local, merged), nil
}

func (s *Service) views(ctx context.Context, local *store.Local, list []domain.Business) []BusinessView {
	out := make([]BusinessView, 0, len(list))
	for _, b := range list {
		st, _ := s.rec.State(ctx, local, b)
		out = append(out, BusinessView{Business: b, Sync: st})
	}
	return out
}

// Business returns one of the seller's businesses from the cached listing,
// falling back to the management API.
func (s *Service) Business(ctx context.Context, local *store.Local, id string) (*domain.Business, error) {
	tok, err := s.token(ctx, local)
	if err != nil {
		return nil, err
	}
	if b, ok := s.cached(ctx, local, id); ok {
		return b, nil
	}
	if _, err := s.ListBusinesses(ctx, local); err == nil {
		if b, ok := s.cached(ctx, local, id); ok {
			return b, nil
		}
	}
	b, err := s.api.GetBusiness(ctx, tok, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return nil, backend.Failf(http.StatusNotFound, ErrBusinessNotFound, "Business not found")
		}
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to load business")
	}
	return b, nil
}

func (s *Service) cached(ctx context.Context, local *store.Local, id string) (*domain.Business, bool) {
	list, _ := loadCache(ctx, local)
	for i := range list {
		if matches(list[i], id) {
			b := list[i]
			return &b, true
		}
	}
	return nil, false
}

// CreateBusiness creates a business on the management API.
func (s *Service) CreateBusiness(ctx context.Context, local *store.Local, form BusinessForm) (*domain.Business, error) {
	if err := s.validate.Struct(form); err != nil {
		return nil, backend.Failf(http.StatusBadRequest, err, "Validation failed: %s", err.Error())
	}
	tok, ok := session.Token(ctx, local, domain.RoleSeller)
	if !ok {
		return nil, backend.Failf(http.StatusUnauthorized, session.ErrNotSignedIn,
			"You must be logged in as a seller to create a business. Please log in first.")
	}

	saved, err := s.api.CreateBusiness(ctx, tok, form.input())
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return nil, backend.Failf(http.StatusUnauthorized, err, "Unauthorized: Your session may have expired. Please log in again.")
		}
		return nil, backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, "Failed to save business"))
	}
	if saved.Name == "" {
		saved.Name, saved.Category, saved.Country, saved.City = form.Name, form.Category, form.Country, form.City
	}
	if saved.Pages == nil {
		saved.Pages = []domain.Page{}
	}
	if id, err := strconv.ParseInt(saved.ID, 10, 64); err == nil {
		s.rec.MarkBusiness(ctx, local, saved, id)
	}

	local.Update(func() {
		list, _ := loadCache(ctx, local)
		saveCache(ctx, local, append(list, *saved))
	})
	log.Printf("INFO: Seller client %s created business %s (%s)", local.ClientID(), saved.ID, saved.Name)
	return saved, nil
}

// UpdateBusiness saves the edit form.
func (s *Service) UpdateBusiness(ctx context.Context, local *store.Local, id string, form BusinessForm) (*domain.Business, error) {
	if err := s.validate.Struct(form); err != nil {
		return nil, backend.Failf(http.StatusBadRequest, err, "Validation failed: %s", err.Error())
	}
	tok, err := s.token(ctx, local)
	if err != nil {
		return nil, err
	}
	b, err := s.Business(ctx, local, id)
	if err != nil {
		return nil, err
	}

	remote, err := s.rec.EnsureBusiness(ctx, local, tok, b)
	if err != nil {
		return nil, err
	}
	if err := s.api.UpdateBusiness(ctx, tok, remote, form.input()); err != nil {
		return nil, backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, "Update failed"))
	}

	b.Name, b.Category, b.Country, b.City = form.Name, form.Category, form.Country, form.City
	editCache(ctx, local, id, func(c *domain.Business) { *c = *b })
	return b, nil
}

// DeleteBusiness deletes the business upstream and, best-effort, the
// seller service copy.
func (s *Service) DeleteBusiness(ctx context.Context, local *store.Local, id string) error {
	tok, err := s.token(ctx, local)
	if err != nil {
		return err
	}
	b, err := s.Business(ctx, local, id)
	if err != nil {
		return err
	}

	remote, err := s.rec.EnsureBusiness(ctx, local, tok, b)
	if err != nil {
		return err
	}
	if err := s.api.DeleteBusiness(ctx, tok, remote); err != nil {
		return backend.Failf(backend.StatusOf(err), err, "%s", backend.UserMessage(err, "Delete failed"))
	}
	if err := s.seller.DeleteBusiness(ctx, tok, b.ID); err != nil {
		log.Printf("WARN: Failed to remove seller service copy of business %s: %v", b.ID, err)
	}

	s.rec.ForgetBusiness(ctx, local, *b)
	local.Update(func() {
		list, _ := loadCache(ctx, local)
		kept := list[:0]
		for _, c := range list {
			if !matches(c, id) && c.ID != b.ID {
				kept = append(kept, c)
			}
		}
		saveCache(ctx, local, kept)
	})
	log.Printf("INFO: Seller client %s deleted business %s (upstream %d)", local.ClientID(), b.ID, remote)
	return nil
}

// --- Pages ---

// AddPage creates a page titled "Page N" where N is one past the current
// page count, unless title is given.
func (s *Service) AddPage(ctx context.Context, local *store.Local, businessID, title string) (*domain.Page, error) {
	tok, err := s.token(ctx, local)
	if err != nil {
		return nil, err
	}
	b, err := s.Business(ctx, local, businessID)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = fmt.Sprintf("Page %d", len(b.Pages)+1)
	}

	pid, err := s.rec.EnsurePage(ctx, local, tok, uuid.NewString(), title, b)
	if err != nil {
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to add page")
	}
	page := domain.Page{ID: pid, Title: title, BusinessID: strconv.FormatInt(b.RemoteID, 10), Items: []domain.CatalogItem{}}
	editCache(ctx, local, businessID, func(c *domain.Business) {
		c.RemoteID = b.RemoteID
		c.Pages = append(c.Pages, page)
	})
	return &page, nil
}

// RenamePage changes a page title, creating the page upstream if it was
// never saved there.
func (s *Service) RenamePage(ctx context.Context, local *store.Local, businessID, pageID, title string) (*domain.Page, error) {
	tok, err := s.token(ctx, local)
	if err != nil {
		return nil, err
	}
	b, err := s.Business(ctx, local, businessID)
	if err != nil {
		return nil, err
	}
	if _, err := s.rec.EnsurePage(ctx, local, tok, pageID, title, b); err != nil {
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to update page")
	}
	if err := s.api.UpdatePage(ctx, tok, backend.PageInput{ID: pageID, Title: title, BusinessID: b.RemoteID}); err != nil {
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to update page")
	}

	var page domain.Page
	editCache(ctx, local, businessID, func(c *domain.Business) {
		c.RemoteID = b.RemoteID
		if p := c.PageByID(pageID); p != nil {
			p.Title = title
			page = *p
			return
		}
		page = domain.Page{ID: pageID, Title: title, Items: []domain.CatalogItem{}}
		c.Pages = append(c.Pages, page)
	})
	if page.ID == "" {
		page = domain.Page{ID: pageID, Title: title}
	}
	return &page, nil
}

// DeletePage removes a page and its items.
func (s *Service) DeletePage(ctx context.Context, local *store.Local, businessID, pageID string) error {
	tok, err := s.token(ctx, local)
	if err != nil {
		return err
	}
	if err := s.api.DeletePage(ctx, tok, pageID); err != nil {
		return backend.Failf(backend.StatusOf(err), err, "Failed to delete page")
	}
	s.rec.ForgetPage(ctx, local, pageID)
	editCache(ctx, local, businessID, func(c *domain.Business) {
		kept := c.Pages[:0]
		for _, p := range c.Pages {
			if p.ID != pageID {
				kept = append(kept, p)
			}
		}
		c.Pages = kept
	})
	return nil
}

// --- Catalog items ---

func (s *Service) itemInput(ctx context.Context, id, pageID string, form ItemForm) (backend.CatalogItemInput, error) {
	if err := s.validate.Struct(form); err != nil {
		return backend.CatalogItemInput{}, backend.Failf(http.StatusBadRequest, err, "Validation failed: %s", err.Error())
	}
	image, err := s.media.Host(ctx, form.Image)
	if err != nil {
		return backend.CatalogItemInput{}, backend.Failf(http.StatusBadRequest, err, "Failed to upload image")
	}
	return backend.CatalogItemInput{
		ID: id, Title: form.Title, Price: form.Price, Category: form.Category, Image: image, PageID: pageID,
	}, nil
}

// AddItem lists a product on a page, creating the page and business
// upstream first when needed.
func (s *Service) AddItem(ctx context.Context, local *store.Local, businessID, pageID string, form ItemForm) (*domain.CatalogItem, error) {
	tok, err := s.token(ctx, local)
	if err != nil {
		return nil, err
	}
	b, err := s.Business(ctx, local, businessID)
	if err != nil {
		return nil, err
	}
	in, err := s.itemInput(ctx, uuid.NewString(), pageID, form)
	if err != nil {
		return nil, err
	}

	title := ""
	if p := b.PageByID(pageID); p != nil {
		title = p.Title
	}
	ensured, err := s.rec.EnsurePage(ctx, local, tok, pageID, title, b)
	if err != nil {
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to save cart item")
	}
	in.PageID = ensured

	saved, err := s.api.CreateCatalogItem(ctx, tok, in)
	if err != nil {
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to save cart item")
	}
	s.cacheItem(ctx, local, businessID, b.RemoteID, ensured, *saved)
	return saved, nil
}

// UpdateItem saves an edited item. When the management API has never
// seen the item it is created under the same id instead.
func (s *Service) UpdateItem(ctx context.Context, local *store.Local, businessID, pageID, itemID string, form ItemForm) (*domain.CatalogItem, error) {
	tok, err := s.token(ctx, local)
	if err != nil {
		return nil, err
	}
	in, err := s.itemInput(ctx, itemID, pageID, form)
	if err != nil {
		return nil, err
	}

	item := domain.CatalogItem{ID: itemID, Title: in.Title, Price: in.Price, Category: in.Category, Image: in.Image, PageID: pageID}
	var remote int64
	err = s.api.UpdateCatalogItem(ctx, tok, in)
	switch {
	case err == nil:
	case errors.Is(err, backend.ErrNotFound):
		b, berr := s.Business(ctx, local, businessID)
		if berr != nil {
			return nil, berr
		}
		title := ""
		if p := b.PageByID(pageID); p != nil {
			title = p.Title
		}
		ensured, perr := s.rec.EnsurePage(ctx, local, tok, pageID, title, b)
		if perr != nil {
			return nil, backend.Failf(backend.StatusOf(perr), perr, "Failed to update cart item")
		}
		in.PageID = ensured
		saved, cerr := s.api.CreateCatalogItem(ctx, tok, in)
		if cerr != nil {
			return nil, backend.Failf(backend.StatusOf(cerr), cerr, "Failed to create cart item on server")
		}
		item = *saved
		pageID = ensured
		remote = b.RemoteID
	default:
		return nil, backend.Failf(backend.StatusOf(err), err, "Failed to update cart item")
	}

	s.cacheItem(ctx, local, businessID, remote, pageID, item)
	return &item, nil
}

// DeleteItem removes a catalog item.
func (s *Service) DeleteItem(ctx context.Context, local *store.Local, businessID, pageID, itemID string) error {
	tok, err := s.token(ctx, local)
	if err != nil {
		return err
	}
	if err := s.api.DeleteCatalogItem(ctx, tok, itemID); err != nil {
		return backend.Failf(backend.StatusOf(err), err, "Failed to delete cart item")
	}
	editCache(ctx, local, businessID, func(c *domain.Business) {
		p := c.PageByID(pageID)
		if p == nil {
			return
		}
		kept := p.Items[:0]
		for _, it := range p.Items {
			if it.ID != itemID {
				kept = append(kept, it)
			}
		}
		p.Items = kept
	})
	return nil
}

// cacheItem inserts or replaces item on its page in the cached listing.
func (s *Service) cacheItem(ctx context.Context, local *store.Local, businessID string, remote int64, pageID string, item domain.CatalogItem) {
	editCache(ctx, local, businessID, func(c *domain.Business) {
		if remote != 0 {
			c.RemoteID = remote
		}
		p := c.PageByID(pageID)
		if p == nil {
			c.Pages = append(c.Pages, domain.Page{ID: pageID, BusinessID: c.ID})
			p = &c.Pages[len(c.Pages)-1]
		}
		if existing := p.ItemByID(item.ID); existing != nil {
			*existing = item
			return
		}
		p.Items = append(p.Items, item)
	})
}
