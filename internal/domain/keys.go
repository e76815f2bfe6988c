package domain

// Client storage keys. Role token and user keys come from Role.TokenKey
// and Role.UserKey.
const (
	KeyCart               = "buyer_cart"
	KeyFavorites          = "buyer_favorites"
	KeyFavoriteBusinesses = "buyer_favorite_businesses"
	KeyOrders             = "buyer_orders"
	KeyTheme              = "theme"
	KeyBuyerChat          = "buyer_chat"
	KeyPendingPayPal      = "buyer_paypal_pending"
	KeySellerBusinesses   = "seller_businesses"
	KeySyncLedger         = "seller_sync_ledger"
)
