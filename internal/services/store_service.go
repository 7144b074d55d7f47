package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"storefront/internal/apperrors"
	"storefront/internal/cache"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

const (
	// PageSize is the fixed page size of the store listing.
	PageSize = 6

	nearRadiusMeters = 10000
	nearLimit        = 10
	searchLimit      = 5
	topStoresLimit   = 10
	topStoresMinimum = 2

	reportCacheTTL = time.Minute
)

// StoreService handles business logic for store listings, favorites and the
// reporting queries.
type StoreService struct {
	storeRepo  repositories.StoreRepository
	userRepo   repositories.UserRepository
	reviewRepo repositories.ReviewRepository
	reports    *cache.Client
	validate   *validator.Validate
}

// NewStoreService creates a new StoreService. reports may be nil; reporting
// queries then always hit the database.
func NewStoreService(storeRepo repositories.StoreRepository, userRepo repositories.UserRepository, reviewRepo repositories.ReviewRepository, reports *cache.Client) *StoreService {
	return &StoreService{
		storeRepo:  storeRepo,
		userRepo:   userRepo,
		reviewRepo: reviewRepo,
		reports:    reports,
		validate:   validator.New(),
	}
}

// StorePage is one page of the store listing plus its pagination context.
type StorePage struct {
	Stores []models.Store `json:"stores"`
	Page   int            `json:"page"`
	Pages  int            `json:"pages"`
	Count  int64          `json:"count"`
}

// StoreUpdate is the partial field set accepted by UpdateStore. Nil fields
// are left untouched.
type StoreUpdate struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Tags        *[]string        `json:"tags"`
	Photo       *string          `json:"photo"`
	Location    *models.Location `json:"location"`
}

// CreateStore validates and persists a new store owned by authorID,
// deriving its slug. The created store (with id and slug) is returned.
func (s *StoreService) CreateStore(store *models.Store, authorID string) (*models.Store, error) {
	store.AuthorID = authorID
	store.Name = strings.TrimSpace(store.Name)
	if err := s.validateStore(store); err != nil {
		return nil, err
	}
	if err := applySlug(s.storeRepo, store); err != nil {
		return nil, err
	}
	if err := s.storeRepo.Create(store); err != nil {
		return nil, err
	}
	s.dropReportCaches()
	return store, nil
}

// GetStoreBySlug returns a store with its author and its reviews, newest
// review first.
func (s *StoreService) GetStoreBySlug(slug string) (*models.Store, error) {
	store, err := s.storeRepo.GetBySlug(slug, repositories.Include{Author: true})
	if err != nil {
		return nil, err
	}
	reviews, err := s.reviewRepo.GetByStore(store.ID)
	if err != nil {
		return nil, err
	}
	store.Reviews = reviews
	if store.Author != nil {
		store.Author.Password = ""
	}
	return store, nil
}

// GetStoreForEdit returns a store by id after confirming ownership.
func (s *StoreService) GetStoreForEdit(id, requesterID string) (*models.Store, error) {
	store, err := s.storeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := ConfirmOwner(store, requesterID); err != nil {
		return nil, err
	}
	return store, nil
}

// ListStores returns page (1-based, default 1) of the listing sorted by
// creation time descending. The page rows and the total count are fetched
// concurrently. Callers should redirect to Pages when the requested page is
// past the end (Stores empty, Page > 1 and Count > 0).
func (s *StoreService) ListStores(page int) (*StorePage, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * PageSize

	var (
		stores []models.Store
		count  int64
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		stores, err = s.storeRepo.List(offset, PageSize)
		return err
	})
	g.Go(func() error {
		var err error
		count, err = s.storeRepo.Count()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &StorePage{
		Stores: stores,
		Page:   page,
		Pages:  int(math.Ceil(float64(count) / PageSize)),
		Count:  count,
	}, nil
}

// UpdateStore applies a validated partial update to the store with the given
// id, re-deriving the slug when the name changed. Ownership is re-checked
// here, not only on the edit-form path.
func (s *StoreService) UpdateStore(id string, update StoreUpdate, requesterID string) (*models.Store, error) {
	store, err := s.storeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := ConfirmOwner(store, requesterID); err != nil {
		return nil, err
	}

	nameChanged := false
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name != store.Name {
			nameChanged = true
		}
		store.Name = name
	}
	if update.Description != nil {
		store.Description = *update.Description
	}
	if update.Tags != nil {
		store.Tags = *update.Tags
	}
	if update.Photo != nil {
		store.Photo = *update.Photo
	}
	if update.Location != nil {
		store.Location = *update.Location
	}

	if err := s.validateStore(store); err != nil {
		return nil, err
	}
	if nameChanged {
		if err := applySlug(s.storeRepo, store); err != nil {
			return nil, err
		}
	}
	if err := s.storeRepo.Update(store); err != nil {
		return nil, err
	}
	s.dropReportCaches()
	return store, nil
}

// ConfirmOwner signals Forbidden when the store's author is not the
// requesting user.
func ConfirmOwner(store *models.Store, userID string) error {
	if store.AuthorID != userID {
		return apperrors.ErrForbidden
	}
	return nil
}

// TagsPage is the tag report plus the stores carrying the selected tag.
type TagsPage struct {
	Tags       []models.TagCount `json:"tags"`
	CurrentTag string            `json:"currentTag,omitempty"`
	Stores     []models.Store    `json:"stores"`
}

// StoresByTag fetches the tag-frequency report and, when tag is non-empty,
// the stores carrying it; both reads run concurrently.
func (s *StoreService) StoresByTag(ctx context.Context, tag string) (*TagsPage, error) {
	var (
		tags   []models.TagCount
		stores []models.Store
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		tags, err = s.TagCounts(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		if tag == "" {
			stores, err = s.storeRepo.List(0, math.MaxInt32)
		} else {
			stores, err = s.storeRepo.GetByTag(tag)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &TagsPage{Tags: tags, CurrentTag: tag, Stores: stores}, nil
}

// TagCounts returns the tag-frequency report, cached briefly.
func (s *StoreService) TagCounts(ctx context.Context) ([]models.TagCount, error) {
	if cached, _ := s.reports.Get(ctx, "reports:tags"); cached != nil {
		var tags []models.TagCount
		if err := json.Unmarshal(cached, &tags); err == nil {
			return tags, nil
		}
	}
	tags, err := s.storeRepo.TagCounts()
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(tags); err == nil {
		_ = s.reports.Set(ctx, "reports:tags", payload, reportCacheTTL)
	}
	return tags, nil
}

// TopStores returns up to 10 stores with at least 2 reviews sorted by
// average rating descending, cached briefly.
func (s *StoreService) TopStores(ctx context.Context) ([]models.TopStore, error) {
	if cached, _ := s.reports.Get(ctx, "reports:top-stores"); cached != nil {
		var top []models.TopStore
		if err := json.Unmarshal(cached, &top); err == nil {
			return top, nil
		}
	}
	top, err := s.storeRepo.TopStores(topStoresMinimum, topStoresLimit)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(top); err == nil {
		_ = s.reports.Set(ctx, "reports:top-stores", payload, reportCacheTTL)
	}
	return top, nil
}

// SearchStores returns up to 5 stores ranked by text relevance.
func (s *StoreService) SearchStores(query string) ([]models.Store, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Store{}, nil
	}
	return s.storeRepo.Search(query, searchLimit)
}

// NearStores returns up to 10 stores within 10 km of (lng, lat).
func (s *StoreService) NearStores(lng, lat float64) ([]models.StoreSummary, error) {
	return s.storeRepo.Near(lng, lat, nearRadiusMeters, nearLimit)
}

// ToggleHeart flips the requester's favorite mark on a store and returns the
// updated user.
func (s *StoreService) ToggleHeart(userID, storeID string) (*models.User, error) {
	if _, err := s.storeRepo.GetByID(storeID); err != nil {
		return nil, err
	}
	user, err := s.userRepo.ToggleHeart(userID, storeID)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

// HeartedStores returns the stores the user has favorited.
func (s *StoreService) HeartedStores(userID string) ([]models.Store, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	return s.storeRepo.GetByIDs(user.Hearts)
}

// AddReview records a rating on a store by the requesting user.
func (s *StoreService) AddReview(review *models.Review, authorID string) (*models.Review, error) {
	review.AuthorID = authorID
	if _, err := s.storeRepo.GetByID(review.StoreID); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(review); err != nil {
		return nil, asValidationError(err)
	}
	if err := s.reviewRepo.Create(review); err != nil {
		return nil, err
	}
	s.dropReportCaches()
	return review, nil
}

func (s *StoreService) validateStore(store *models.Store) error {
	fields := map[string]string{}
	if store.Name == "" {
		fields["name"] = "you must supply a store name"
	}
	if store.Location.Address == "" {
		fields["location.address"] = "you must supply an address"
	}
	// The zero pair is what absent coordinates decode to.
	if store.Location.Lng == 0 && store.Location.Lat == 0 {
		fields["location.coordinates"] = "you must supply coordinates"
	}
	if store.AuthorID == "" {
		fields["author"] = "you must supply an author"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields)
	}
	if err := s.validate.Struct(store); err != nil {
		return asValidationError(err)
	}
	return nil
}

// dropReportCaches invalidates the cached reports after a write. Failures
// only delay freshness until the TTL runs out.
func (s *StoreService) dropReportCaches() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.reports.Delete(ctx, "reports:tags"); err != nil {
		log.Warn().Err(err).Msg("failed to drop tags report cache")
	}
	if err := s.reports.Delete(ctx, "reports:top-stores"); err != nil {
		log.Warn().Err(err).Msg("failed to drop top-stores report cache")
	}
}

// asValidationError converts validator errors to the typed variant.
func asValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[e.Field()] = fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return apperrors.NewValidationError(fields)
}
