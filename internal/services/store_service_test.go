package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

func newStoreService() (*services.StoreService, *repositories.MockStoreRepository, *repositories.MockUserRepository, *repositories.MockReviewRepository) {
	storeRepo := repositories.NewMockStoreRepository()
	userRepo := repositories.NewMockUserRepository()
	reviewRepo := repositories.NewMockReviewRepository()
	storeRepo.LinkReviews(reviewRepo)
	return services.NewStoreService(storeRepo, userRepo, reviewRepo, nil), storeRepo, userRepo, reviewRepo
}

func validStore(name string) *models.Store {
	return &models.Store{
		Name: name,
		Location: models.Location{
			Lng:     106.816666,
			Lat:     -6.2,
			Address: "Jl. Sudirman 1, Jakarta",
		},
	}
}

func TestMakeSlug(t *testing.T) {
	assert.Equal(t, "coffee-corner", services.MakeSlug("Coffee Corner"))
	assert.Equal(t, "bobs-burgers", services.MakeSlug("Bob's Burgers!"))
	assert.Equal(t, "cafe-du-monde", services.MakeSlug("Café du Monde"))
	// Never empty, even for names with no usable characters.
	assert.Equal(t, "store", services.MakeSlug("!!!"))
}

func TestCreateStore_DerivesSlug(t *testing.T) {
	service, _, _, _ := newStoreService()

	created, err := service.CreateStore(validStore("Coffee Corner"), "author-1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "coffee-corner", created.Slug)
	assert.Equal(t, "author-1", created.AuthorID)
	assert.False(t, created.Created.IsZero())
}

func TestCreateStore_SlugCollision(t *testing.T) {
	service, _, _, _ := newStoreService()

	first, err := service.CreateStore(validStore("Coffee Corner"), "author-1")
	require.NoError(t, err)
	second, err := service.CreateStore(validStore("Coffee Corner"), "author-2")
	require.NoError(t, err)
	third, err := service.CreateStore(validStore("Coffee Corner"), "author-3")
	require.NoError(t, err)

	assert.Equal(t, "coffee-corner", first.Slug)
	assert.Equal(t, "coffee-corner-2", second.Slug)
	assert.Equal(t, "coffee-corner-3", third.Slug)
}

func TestCreateStore_Validation(t *testing.T) {
	service, _, _, _ := newStoreService()

	_, err := service.CreateStore(&models.Store{Name: "   "}, "author-1")
	require.Error(t, err)

	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "location.address")

	_, err = service.CreateStore(validStore("No Author"), "")
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "author")
}

func TestCreateStore_MissingCoordinates(t *testing.T) {
	service, storeRepo, _, _ := newStoreService()

	store := &models.Store{
		Name:     "No Coordinates",
		Location: models.Location{Address: "Somewhere 1"},
	}
	_, err := service.CreateStore(store, "author-1")
	require.Error(t, err)

	var ve *apperrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "location.coordinates")

	count, err := storeRepo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func seedStores(t *testing.T, service *services.StoreService, n int) []*models.Store {
	t.Helper()
	base := time.Now().Add(-time.Duration(n) * time.Hour)
	stores := make([]*models.Store, 0, n)
	for i := 1; i <= n; i++ {
		store := validStore("Store " + string(rune('A'+i-1)))
		store.Created = base.Add(time.Duration(i) * time.Minute)
		created, err := service.CreateStore(store, "author-1")
		require.NoError(t, err)
		stores = append(stores, created)
	}
	return stores
}

func TestListStores_FirstPage(t *testing.T) {
	service, _, _, _ := newStoreService()
	seeded := seedStores(t, service, 13)

	page, err := service.ListStores(1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, int64(13), page.Count)
	require.Len(t, page.Stores, 6)

	// Newest first: the last seeded store leads the page.
	assert.Equal(t, seeded[12].ID, page.Stores[0].ID)
	assert.Equal(t, seeded[7].ID, page.Stores[5].ID)
}

func TestListStores_PastTheEnd(t *testing.T) {
	service, _, _, _ := newStoreService()
	seedStores(t, service, 13)

	page, err := service.ListStores(5)
	require.NoError(t, err)
	assert.Empty(t, page.Stores)
	assert.Equal(t, 5, page.Page)
	// ceil(13/6) = 3; callers redirect here.
	assert.Equal(t, 3, page.Pages)
}

func TestListStores_EmptyListing(t *testing.T) {
	service, _, _, _ := newStoreService()

	page, err := service.ListStores(1)
	require.NoError(t, err)
	assert.Empty(t, page.Stores)
	assert.Equal(t, 0, page.Pages)
	assert.Equal(t, int64(0), page.Count)
}

func TestUpdateStore_OwnershipGate(t *testing.T) {
	service, _, _, _ := newStoreService()
	created, err := service.CreateStore(validStore("Owned Store"), "owner")
	require.NoError(t, err)

	name := "Renamed Store"
	_, err = service.UpdateStore(created.ID, services.StoreUpdate{Name: &name}, "intruder")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := service.UpdateStore(created.ID, services.StoreUpdate{Name: &name}, "owner")
	require.NoError(t, err)
	assert.Equal(t, "Renamed Store", updated.Name)
	assert.Equal(t, "renamed-store", updated.Slug)
}

func TestUpdateStore_PartialFields(t *testing.T) {
	service, _, _, _ := newStoreService()
	store := validStore("Steady Name")
	store.Description = "old description"
	store.Tags = []string{"coffee"}
	created, err := service.CreateStore(store, "owner")
	require.NoError(t, err)

	desc := "new description"
	updated, err := service.UpdateStore(created.ID, services.StoreUpdate{Description: &desc}, "owner")
	require.NoError(t, err)
	assert.Equal(t, "new description", updated.Description)
	// Untouched fields survive, and the slug is not re-derived.
	assert.Equal(t, "Steady Name", updated.Name)
	assert.Equal(t, "steady-name", updated.Slug)
	assert.Equal(t, []string{"coffee"}, updated.Tags)
}

func TestGetStoreBySlug_IncludesReviews(t *testing.T) {
	service, _, _, reviewRepo := newStoreService()
	created, err := service.CreateStore(validStore("Reviewed Corner"), "author-1")
	require.NoError(t, err)

	older := &models.Review{StoreID: created.ID, AuthorID: "u1", Rating: 3, Created: time.Now().Add(-time.Hour)}
	newer := &models.Review{StoreID: created.ID, AuthorID: "u2", Rating: 5, Created: time.Now()}
	require.NoError(t, reviewRepo.Create(older))
	require.NoError(t, reviewRepo.Create(newer))

	store, err := service.GetStoreBySlug("reviewed-corner")
	require.NoError(t, err)
	require.Len(t, store.Reviews, 2)
	// Newest first.
	assert.Equal(t, newer.ID, store.Reviews[0].ID)
	assert.Equal(t, older.ID, store.Reviews[1].ID)

	_, err = service.GetStoreBySlug("no-such-slug")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetStoreForEdit(t *testing.T) {
	service, _, _, _ := newStoreService()
	created, err := service.CreateStore(validStore("Edit Me"), "owner")
	require.NoError(t, err)

	_, err = service.GetStoreForEdit(created.ID, "intruder")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	store, err := service.GetStoreForEdit(created.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, created.ID, store.ID)

	_, err = service.GetStoreForEdit("missing-id", "owner")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTagCounts(t *testing.T) {
	service, _, _, _ := newStoreService()

	first := validStore("First")
	first.Tags = []string{"a", "b"}
	second := validStore("Second")
	second.Tags = []string{"a"}
	third := validStore("Third")
	third.Tags = []string{"c"}
	for _, s := range []*models.Store{first, second, third} {
		_, err := service.CreateStore(s, "author-1")
		require.NoError(t, err)
	}

	counts, err := service.TagCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, models.TagCount{Tag: "a", Count: 2}, counts[0])
	for _, tc := range counts[1:] {
		assert.Equal(t, 1, tc.Count)
	}
}

func TestTopStores(t *testing.T) {
	service, _, _, reviewRepo := newStoreService()

	lone, err := service.CreateStore(validStore("One Review"), "author-1")
	require.NoError(t, err)
	rated, err := service.CreateStore(validStore("Well Reviewed"), "author-1")
	require.NoError(t, err)

	require.NoError(t, reviewRepo.Create(&models.Review{StoreID: lone.ID, AuthorID: "u1", Rating: 5}))
	require.NoError(t, reviewRepo.Create(&models.Review{StoreID: rated.ID, AuthorID: "u1", Rating: 4}))
	require.NoError(t, reviewRepo.Create(&models.Review{StoreID: rated.ID, AuthorID: "u2", Rating: 5}))

	top, err := service.TopStores(context.Background())
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, rated.ID, top[0].ID)
	assert.Equal(t, 2, top[0].ReviewCount)
	assert.InDelta(t, 4.5, top[0].AverageRating, 1e-9)
}

func TestNearStores_Boundary(t *testing.T) {
	service, _, _, _ := newStoreService()

	atPoint := validStore("At The Point")
	atPoint.Location.Lng = 100
	atPoint.Location.Lat = 0

	// 0.0899231 degrees of longitude at the equator is ~9999 m;
	// 0.0899411 degrees is ~10001 m.
	justInside := validStore("Just Inside")
	justInside.Location.Lng = 100.0899231
	justInside.Location.Lat = 0

	justOutside := validStore("Just Outside")
	justOutside.Location.Lng = 100.0899411
	justOutside.Location.Lat = 0

	for _, s := range []*models.Store{atPoint, justInside, justOutside} {
		_, err := service.CreateStore(s, "author-1")
		require.NoError(t, err)
	}

	near, err := service.NearStores(100, 0)
	require.NoError(t, err)
	require.Len(t, near, 2)
	// Nearest first.
	assert.Equal(t, "At The Point", near[0].Name)
	assert.Equal(t, "Just Inside", near[1].Name)
}

func TestSearchStores(t *testing.T) {
	service, _, _, _ := newStoreService()

	nameMatch := validStore("Espresso Bar")
	descMatch := validStore("Corner Shop")
	descMatch.Description = "best espresso in town"
	miss := validStore("Tea House")
	for _, s := range []*models.Store{descMatch, nameMatch, miss} {
		_, err := service.CreateStore(s, "author-1")
		require.NoError(t, err)
	}

	stores, err := service.SearchStores("espresso")
	require.NoError(t, err)
	require.Len(t, stores, 2)
	// Name matches outrank description matches.
	assert.Equal(t, "Espresso Bar", stores[0].Name)
	assert.Equal(t, "Corner Shop", stores[1].Name)

	stores, err = service.SearchStores("   ")
	require.NoError(t, err)
	assert.Empty(t, stores)
}

func TestSearchStores_Limit(t *testing.T) {
	service, _, _, _ := newStoreService()
	for i := 0; i < 8; i++ {
		store := validStore("Espresso Place " + string(rune('A'+i)))
		_, err := service.CreateStore(store, "author-1")
		require.NoError(t, err)
	}

	stores, err := service.SearchStores("espresso")
	require.NoError(t, err)
	assert.Len(t, stores, 5)
}

func TestToggleHeartAndHeartedStores(t *testing.T) {
	service, _, userRepo, _ := newStoreService()

	user := &models.User{Name: "Ana", Email: "ana@example.com"}
	require.NoError(t, userRepo.Create(user))
	store, err := service.CreateStore(validStore("Heartable"), "author-1")
	require.NoError(t, err)

	updated, err := service.ToggleHeart(user.ID, store.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{store.ID}, updated.Hearts)

	hearted, err := service.HeartedStores(user.ID)
	require.NoError(t, err)
	require.Len(t, hearted, 1)
	assert.Equal(t, store.ID, hearted[0].ID)

	// Toggling again removes the heart.
	updated, err = service.ToggleHeart(user.ID, store.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Hearts)

	_, err = service.ToggleHeart(user.ID, "missing-store")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStoresByTag(t *testing.T) {
	service, _, _, _ := newStoreService()

	tagged := validStore("Tagged")
	tagged.Tags = []string{"wifi"}
	other := validStore("Other")
	other.Tags = []string{"coffee"}
	for _, s := range []*models.Store{tagged, other} {
		_, err := service.CreateStore(s, "author-1")
		require.NoError(t, err)
	}

	page, err := service.StoresByTag(context.Background(), "wifi")
	require.NoError(t, err)
	assert.Equal(t, "wifi", page.CurrentTag)
	require.Len(t, page.Stores, 1)
	assert.Equal(t, "Tagged", page.Stores[0].Name)
	assert.Len(t, page.Tags, 2)

	// No tag selected: all stores alongside the counts.
	page, err = service.StoresByTag(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, page.Stores, 2)
}

func TestAddReview(t *testing.T) {
	service, _, _, reviewRepo := newStoreService()
	store, err := service.CreateStore(validStore("Reviewed"), "author-1")
	require.NoError(t, err)

	created, err := service.AddReview(&models.Review{StoreID: store.ID, Rating: 4, Text: "solid"}, "visitor")
	require.NoError(t, err)
	assert.Equal(t, "visitor", created.AuthorID)
	assert.NotEmpty(t, created.ID)

	_, err = service.AddReview(&models.Review{StoreID: store.ID, Rating: 9}, "visitor")
	var ve *apperrors.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = service.AddReview(&models.Review{StoreID: "missing", Rating: 4}, "visitor")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	reviews, err := reviewRepo.GetByStore(store.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}
