package catalog

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petit-storefront/internal/domain"
	"petit-storefront/internal/events"
	"petit-storefront/internal/store"
)

func TestFavorites_AddMovesToFront(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	local := newLocal(rec)
	local.SetString(ctx, domain.RoleBuyer.UserKey(), `{"name":"Bo"}`)

	AddFavorite(ctx, local, domain.FavoriteProduct{ID: "1", Title: "Mug"})
	AddFavorite(ctx, local, domain.FavoriteProduct{ID: "2", Title: "Scarf"})
	list := AddFavorite(ctx, local, domain.FavoriteProduct{ID: "1", Title: "Mug"})

	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, list, Favorites(ctx, local))

	evs := rec.OfKind(events.KindProfileUpdated)
	require.Len(t, evs, 3)
	assert.Equal(t, "buyer", evs[0].Role)
	assert.JSONEq(t, `{"name":"Bo"}`, string(evs[0].User))
}

func TestFavorites_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	local := newLocal(rec)

	AddFavorite(ctx, local, domain.FavoriteProduct{ID: "1"})
	AddFavorite(ctx, local, domain.FavoriteProduct{ID: "2"})
	list := RemoveFavorite(ctx, local, "1")
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].ID)

	ClearFavorites(ctx, local)
	assert.Empty(t, Favorites(ctx, local))
	last := rec.OfKind(events.KindProfileUpdated)
	assert.JSONEq(t, `null`, string(last[len(last)-1].User))
}

func TestFavoriteBusinesses(t *testing.T) {
	ctx := context.Background()
	local := newLocal(nil)

	AddFavoriteBusiness(ctx, local, domain.FavoriteBusiness{ID: "7", Name: "Acme"})
	AddFavoriteBusiness(ctx, local, domain.FavoriteBusiness{ID: "8", Name: "Bakery"})
	assert.Equal(t, "8", FavoriteBusinesses(ctx, local)[0].ID)

	assert.Len(t, RemoveFavoriteBusiness(ctx, local, "8"), 1)
	ClearFavoriteBusinesses(ctx, local)
	assert.Empty(t, FavoriteBusinesses(ctx, local))
}

func TestFavorites_ConcurrentAddsAllKept(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			local := store.NewLocal(mem, "client-fav", nil)
			AddFavorite(ctx, local, domain.FavoriteProduct{ID: strconv.Itoa(i), Title: "Item"})
		}(i)
	}
	wg.Wait()

	assert.Len(t, Favorites(ctx, store.NewLocal(mem, "client-fav", nil)), 8)
}
