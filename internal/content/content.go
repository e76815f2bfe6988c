// Package content holds the informational pages: Home, About and Contact.
package content

import (
	"net/url"
	"strings"
)

// Link is a call to action.
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Section is a titled block of a page.
type Section struct {
	Title string   `json:"title"`
	Body  []string `json:"body,omitempty"`
	Links []Link   `json:"links,omitempty"`
}

// Page is a static page.
type Page struct {
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Intro    []string  `json:"intro,omitempty"`
	Sections []Section `json:"sections"`
	Back     *Link     `json:"back,omitempty"`
}

var backToDashboard = &Link{Label: "Back to Dashboard", Href: "/"}

// Home is the landing page. The seller call to action leads to the
// management screen when a seller is signed in, else to the seller login.
func Home(sellerSignedIn bool) Page {
	seller := Link{Label: "Start Selling", Href: "/auth/seller"}
	if sellerSignedIn {
		seller.Href = "/MSeller"
	}
	return Page{
		Slug:  "home",
		Title: "Welcome to Petit Shop",
		Sections: []Section{
			{
				Title: "Buyers!",
				Body:  []string{"If you want to buy a product and support small businesses"},
				Links: []Link{{Label: "Shop Now", Href: "/shop"}},
			},
			{
				Title: "Sellers!",
				Body:  []string{"If you have a product or service to offer"},
				Links: []Link{seller},
			},
		},
	}
}

// About describes the marketplace.
func About() Page {
	return Page{
		Slug:  "about",
		Title: "About Petit Shop",
		Intro: []string{
			"Welcome to our online marketplace, the place where everyone can buy and sell with ease.",
			"Our platform connects buyers and sellers in one secure and simple space. Whether you want to sell your own products or shop from a wide range of sellers, our website gives you everything you need.",
			"To use the platform, users must register and log in, ensuring a safe and trusted experience for everyone.",
			"Sellers can register, add their products, manage prices, and reach customers easily.",
			"Buyers can browse products, add to cart, and complete purchases securely.",
		},
		Sections: []Section{
			{
				Title: "What you can do",
				Body: []string{
					"Buy Anything You Need",
					"Sell Your Products Easily",
					"Offer Your Services",
					"Secure Registration & Login",
					"All-in-One Platform",
				},
			},
			{
				Title: "Privacy",
				Body: []string{
					"Login for protected data",
					"No third-party selling",
				},
			},
		},
		Back: backToDashboard,
	}
}

// ContactInfo is where support can be reached.
type ContactInfo struct {
	WhatsApp string // digits only, no +
	Phone    string
	Email    string
}

// DefaultContact is the published support contact.
var DefaultContact = ContactInfo{
	WhatsApp: "00000000000",
	Phone:    "+10000000000",
	Email:    "support@petitshop.example",
}

// Contact lists the support channels.
func Contact(info ContactInfo) Page {
	whatsapp := "https://wa.me/" + info.WhatsApp + "?text=" + url.QueryEscape("Hello, I contacted you from your website")
	mail := "mailto:" + info.Email + "?" + mailQuery(
		"Support Request - Petit Shop",
		"Hello,\n\nI need help with my account and would like support.\n\nThanks,",
	)
	return Page{
		Slug:  "contact",
		Title: "Get in touch",
		Intro: []string{"Need help? We're here to support buyers and sellers. Choose your preferred contact method below."},
		Sections: []Section{
			{Title: "Live chat", Body: []string{"Quick answers via WhatsApp"}, Links: []Link{{Label: "Contact", Href: whatsapp}}},
			{Title: "Call us", Body: []string{"Request a callback"}, Links: []Link{{Label: "Call", Href: "tel:" + info.Phone}}},
			{Title: "Email us", Body: []string{"Send detailed message"}, Links: []Link{{Label: "Email", Href: mail}}},
		},
		Back: backToDashboard,
	}
}

// mailQuery encodes mailto parameters with %20 for spaces, which mail
// clients expect instead of +.
func mailQuery(subject, body string) string {
	enc := func(s string) string { return strings.ReplaceAll(url.QueryEscape(s), "+", "%20") }
	return "subject=" + enc(subject) + "&body=" + enc(body)
}

// BySlug returns the page for slug.
func BySlug(slug string, sellerSignedIn bool) (Page, bool) {
	switch slug {
	case "home":
		return Home(sellerSignedIn), true
	case "about":
		return About(), true
	case "contact":
		return Contact(DefaultContact), true
	}
	return Page{}, false
}
