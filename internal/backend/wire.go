package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"petit-storefront/internal/domain"
)

// The management API is ASP.NET and answers in either PascalCase or
// camelCase; the seller service is Node. encoding/json matches field
// names case-insensitively, so the wire structs below only need to absorb
// the type differences: ids arrive as numbers or strings, prices as
// numbers or numeric strings.

// looseID accepts a JSON string, number or null.
type looseID string

func (id *looseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = looseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id %s is neither string nor number", data)
	}
	*id = looseID(n.String())
	return nil
}

// looseFloat accepts a JSON number, numeric string or null.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("price %s is not a number", data)
	}
	*f = looseFloat(v)
	return nil
}

type wireItem struct {
	ID         looseID    `json:"id"`
	Title      string     `json:"title"`
	Name       string     `json:"name"`
	Price      looseFloat `json:"price"`
	Category   string     `json:"category"`
	Image      string     `json:"image"`
	PageID     looseID    `json:"pageId"`
	BusinessID looseID    `json:"businessId"`
}

func (w wireItem) title() string {
	if w.Title != "" {
		return w.Title
	}
	return w.Name
}

func (w wireItem) catalogItem(pageID, businessID string) domain.CatalogItem {
	item := domain.CatalogItem{
		ID:         string(w.ID),
		Title:      w.title(),
		Price:      float64(w.Price),
		Category:   w.Category,
		Image:      w.Image,
		PageID:     string(w.PageID),
		BusinessID: string(w.BusinessID),
	}
	if item.PageID == "" {
		item.PageID = pageID
	}
	if item.BusinessID == "" {
		item.BusinessID = businessID
	}
	return item
}

func (w wireItem) product() domain.Product {
	return domain.Product{
		ID:         string(w.ID),
		Title:      w.title(),
		Price:      float64(w.Price),
		Category:   w.Category,
		Image:      w.Image,
		BusinessID: string(w.BusinessID),
	}
}

type wirePage struct {
	ID         looseID    `json:"id"`
	Title      string     `json:"title"`
	BusinessID looseID    `json:"businessId"`
	Carts      []wireItem `json:"carts"`
}

func (w wirePage) page(businessID string) domain.Page {
	p := domain.Page{
		ID:         string(w.ID),
		Title:      w.Title,
		BusinessID: string(w.BusinessID),
		Items:      make([]domain.CatalogItem, 0, len(w.Carts)),
	}
	if p.BusinessID == "" {
		p.BusinessID = businessID
	}
	for _, c := range w.Carts {
		p.Items = append(p.Items, c.catalogItem(p.ID, p.BusinessID))
	}
	return p
}

type wireBusiness struct {
	ID       looseID       `json:"id"`
	Name     string        `json:"name"`
	Category string        `json:"category"`
	Country  string        `json:"country"`
	City     string        `json:"city"`
	Pages    []wirePage    `json:"pages"`
	Theme    *domain.Theme `json:"theme"`
}

func (w wireBusiness) business() domain.Business {
	b := domain.Business{
		ID:       string(w.ID),
		Name:     w.Name,
		Category: w.Category,
		Country:  w.Country,
		City:     w.City,
		Pages:    make([]domain.Page, 0, len(w.Pages)),
		Theme:    w.Theme,
	}
	for _, p := range w.Pages {
		b.Pages = append(b.Pages, p.page(b.ID))
	}
	return b
}

func businesses(ws []wireBusiness) []domain.Business {
	out := make([]domain.Business, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.business())
	}
	return out
}
