package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHome_SellerEntry(t *testing.T) {
	assert.Equal(t, "/auth/seller", Home(false).Sections[1].Links[0].Href)
	assert.Equal(t, "/MSeller", Home(true).Sections[1].Links[0].Href)
	assert.Equal(t, "/shop", Home(true).Sections[0].Links[0].Href)
}

func TestContact_Links(t *testing.T) {
	page := Contact(ContactInfo{WhatsApp: "4712345678", Phone: "+4712345678", Email: "help@shop.test"})
	require.Len(t, page.Sections, 3)
	assert.Equal(t, "https://wa.me/4712345678?text=Hello%2C+I+contacted+you+from+your+website", page.Sections[0].Links[0].Href)
	assert.Equal(t, "tel:+4712345678", page.Sections[1].Links[0].Href)

	mail := page.Sections[2].Links[0].Href
	assert.True(t, strings.HasPrefix(mail, "mailto:help@shop.test?subject=Support%20Request%20-%20Petit%20Shop&body="))
	assert.NotContains(t, mail, "+")
}

func TestBySlug(t *testing.T) {
	for _, slug := range []string{"home", "about", "contact"} {
		page, ok := BySlug(slug, false)
		require.True(t, ok, slug)
		assert.Equal(t, slug, page.Slug)
	}
	_, ok := BySlug("pricing", false)
	assert.False(t, ok)
}
