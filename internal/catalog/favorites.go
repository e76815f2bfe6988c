package catalog

import (
	"context"

	"petit-storefront/internal/domain"
	"petit-storefront/internal/events"
	"petit-storefront/internal/session"
	"petit-storefront/internal/store"
)

// Favorites returns the buyer's saved products, newest first.
func Favorites(ctx context.Context, local *store.Local) []domain.FavoriteProduct {
	var list []domain.FavoriteProduct
	local.GetJSON(ctx, domain.KeyFavorites, &list)
	if list == nil {
		list = []domain.FavoriteProduct{}
	}
	return list
}

// AddFavorite puts p at the front of the favorites. An existing entry with
// the same id moves to the front.
func AddFavorite(ctx context.Context, local *store.Local, p domain.FavoriteProduct) []domain.FavoriteProduct {
	var list []domain.FavoriteProduct
	local.Update(func() {
		list = append([]domain.FavoriteProduct{p}, withoutProduct(Favorites(ctx, local), p.ID)...)
		local.SetJSON(ctx, domain.KeyFavorites, list)
	})
	announce(ctx, local)
	return list
}

// RemoveFavorite drops product id from the favorites.
func RemoveFavorite(ctx context.Context, local *store.Local, id string) []domain.FavoriteProduct {
	var list []domain.FavoriteProduct
	local.Update(func() {
		list = withoutProduct(Favorites(ctx, local), id)
		local.SetJSON(ctx, domain.KeyFavorites, list)
	})
	announce(ctx, local)
	return list
}

// ClearFavorites empties the favorites.
func ClearFavorites(ctx context.Context, local *store.Local) {
	local.Remove(ctx, domain.KeyFavorites)
	announce(ctx, local)
}

func withoutProduct(list []domain.FavoriteProduct, id string) []domain.FavoriteProduct {
	out := make([]domain.FavoriteProduct, 0, len(list))
	for _, f := range list {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}

// FavoriteBusinesses returns the buyer's saved businesses, newest first.
func FavoriteBusinesses(ctx context.Context, local *store.Local) []domain.FavoriteBusiness {
	var list []domain.FavoriteBusiness
	local.GetJSON(ctx, domain.KeyFavoriteBusinesses, &list)
	if list == nil {
		list = []domain.FavoriteBusiness{}
	}
	return list
}

// AddFavoriteBusiness puts b at the front of the favorite businesses.
func AddFavoriteBusiness(ctx context.Context, local *store.Local, b domain.FavoriteBusiness) []domain.FavoriteBusiness {
	var list []domain.FavoriteBusiness
	local.Update(func() {
		list = append([]domain.FavoriteBusiness{b}, withoutBusiness(FavoriteBusinesses(ctx, local), b.ID)...)
		local.SetJSON(ctx, domain.KeyFavoriteBusinesses, list)
	})
	announce(ctx, local)
	return list
}

// RemoveFavoriteBusiness drops business id from the favorite businesses.
func RemoveFavoriteBusiness(ctx context.Context, local *store.Local, id string) []domain.FavoriteBusiness {
	var list []domain.FavoriteBusiness
	local.Update(func() {
		list = withoutBusiness(FavoriteBusinesses(ctx, local), id)
		local.SetJSON(ctx, domain.KeyFavoriteBusinesses, list)
	})
	announce(ctx, local)
	return list
}

// ClearFavoriteBusinesses empties the favorite businesses.
func ClearFavoriteBusinesses(ctx context.Context, local *store.Local) {
	local.Remove(ctx, domain.KeyFavoriteBusinesses)
	announce(ctx, local)
}

func withoutBusiness(list []domain.FavoriteBusiness, id string) []domain.FavoriteBusiness {
	out := make([]domain.FavoriteBusiness, 0, len(list))
	for _, f := range list {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}

// announce tells the buyer's open views to refresh.
func announce(ctx context.Context, local *store.Local) {
	local.Publish(events.ProfileUpdated(string(domain.RoleBuyer), session.CachedUser(ctx, local, domain.RoleBuyer)))
}
