package domain

// Theme is the optional buyer-facing design of a business.
type Theme struct {
	Primary string `json:"primary,omitempty"` // CSS color
	Accent  string `json:"accent,omitempty"`  // CSS color
	Logo    string `json:"logo,omitempty"`    // URL
}

// Business is a seller's storefront. ID is kept as a string because the
// management API assigns 32-bit integers while the seller service may hold
// locally created businesses under ids of any shape.
type Business struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Country  string `json:"country"`
	City     string `json:"city"`
	Pages    []Page `json:"pages"`
	Theme    *Theme `json:"theme,omitempty"`
	// RemoteID is the management API id adopted after an ensure-sync.
	RemoteID int64 `json:"remoteId,omitempty"`
}

// PageByID returns the page with the given id, or nil.
func (b *Business) PageByID(id string) *Page {
	for i := range b.Pages {
		if b.Pages[i].ID == id {
			return &b.Pages[i]
		}
	}
	return nil
}

// Page is a named shelf within a business's shop.
type Page struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	BusinessID string        `json:"businessId,omitempty"`
	Items      []CatalogItem `json:"carts"`
}

// ItemByID returns the catalog item with the given id, or nil.
func (p *Page) ItemByID(id string) *CatalogItem {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i]
		}
	}
	return nil
}
