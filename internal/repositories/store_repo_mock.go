package repositories

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockStoreRepository is an in-memory implementation of StoreRepository.
type MockStoreRepository struct {
	stores  map[string]models.Store
	reviews *MockReviewRepository
	mu      sync.RWMutex
}

// NewMockStoreRepository creates a new instance of MockStoreRepository.
func NewMockStoreRepository() *MockStoreRepository {
	return &MockStoreRepository{
		stores: make(map[string]models.Store),
	}
}

// LinkReviews attaches a review repository so TopStores can join against it.
func (r *MockStoreRepository) LinkReviews(reviews *MockReviewRepository) {
	r.reviews = reviews
}

// Create adds a new store.
func (r *MockStoreRepository) Create(store *models.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store.ID == "" {
		store.ID = uuid.New().String()
	}
	if store.Created.IsZero() {
		store.Created = time.Now()
	}
	r.stores[store.ID] = *store
	return nil
}

// Update replaces an existing store.
func (r *MockStoreRepository) Update(store *models.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stores[store.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.stores[store.ID] = *store
	return nil
}

// GetByID returns a store by its ID.
func (r *MockStoreRepository) GetByID(id string) (*models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	store, ok := r.stores[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &store, nil
}

// GetBySlug returns a store by its slug. The mock ignores Include; related
// records are not modeled here.
func (r *MockStoreRepository) GetBySlug(slug string, _ Include) (*models.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, store := range r.stores {
		if store.Slug == slug {
			s := store
			return &s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// List returns one page of stores sorted by creation time descending.
func (r *MockStoreRepository) List(offset, limit int) ([]models.Store, error) {
	all := r.sortedByCreatedDesc()
	if offset >= len(all) {
		return []models.Store{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Count returns the total number of stores.
func (r *MockStoreRepository) Count() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.stores)), nil
}

// GetByTag returns all stores carrying the given tag, newest first.
func (r *MockStoreRepository) GetByTag(tag string) ([]models.Store, error) {
	all := r.sortedByCreatedDesc()
	matches := make([]models.Store, 0)
	for _, store := range all {
		for _, t := range store.Tags {
			if t == tag {
				matches = append(matches, store)
				break
			}
		}
	}
	return matches, nil
}

// GetByIDs returns the stores whose id is in ids, newest first.
func (r *MockStoreRepository) GetByIDs(ids []string) ([]models.Store, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	all := r.sortedByCreatedDesc()
	matches := make([]models.Store, 0)
	for _, store := range all {
		if want[store.ID] {
			matches = append(matches, store)
		}
	}
	return matches, nil
}

// CountSlugMatches counts slugs equal to base or base-<number>.
func (r *MockStoreRepository) CountSlugMatches(base string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	re := regexp.MustCompile("^" + regexp.QuoteMeta(base) + "(-[0-9]+)?$")
	count := 0
	for _, store := range r.stores {
		if re.MatchString(store.Slug) {
			count++
		}
	}
	return count, nil
}

// TagCounts explodes tag sets, groups by tag and sorts by count descending.
func (r *MockStoreRepository) TagCounts() ([]models.TagCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byTag := make(map[string]int)
	for _, store := range r.stores {
		for _, tag := range store.Tags {
			byTag[tag]++
		}
	}
	counts := make([]models.TagCount, 0, len(byTag))
	for tag, count := range byTag {
		counts = append(counts, models.TagCount{Tag: tag, Count: count})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Tag < counts[j].Tag
	})
	return counts, nil
}

// TopStores keeps stores with at least minReviews reviews in the linked
// review repository, averages their ratings and sorts descending.
func (r *MockStoreRepository) TopStores(minReviews, limit int) ([]models.TopStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	top := make([]models.TopStore, 0)
	for _, store := range r.stores {
		var reviews []models.Review
		if r.reviews != nil {
			reviews, _ = r.reviews.GetByStore(store.ID)
		}
		if len(reviews) < minReviews {
			continue
		}
		sum := 0
		for _, review := range reviews {
			sum += review.Rating
		}
		top = append(top, models.TopStore{
			ID:            store.ID,
			Name:          store.Name,
			Slug:          store.Slug,
			Photo:         store.Photo,
			ReviewCount:   len(reviews),
			AverageRating: float64(sum) / float64(len(reviews)),
		})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].AverageRating > top[j].AverageRating
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

// Near filters stores by great-circle distance and returns the nearest first.
func (r *MockStoreRepository) Near(lng, lat, maxMeters float64, limit int) ([]models.StoreSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stores := make([]models.Store, 0, len(r.stores))
	for _, store := range r.stores {
		stores = append(stores, store)
	}
	return nearestWithin(stores, lng, lat, maxMeters, limit), nil
}

// Search scores name matches above description matches, best first.
func (r *MockStoreRepository) Search(query string, limit int) ([]models.Store, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	all := r.sortedByCreatedDesc()

	type scored struct {
		store models.Store
		score int
	}
	results := make([]scored, 0)
	for _, store := range all {
		score := 0
		if strings.Contains(strings.ToLower(store.Name), q) {
			score += 2
		}
		if strings.Contains(strings.ToLower(store.Description), q) {
			score++
		}
		if score > 0 {
			results = append(results, scored{store: store, score: score})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	stores := make([]models.Store, 0, len(results))
	for _, res := range results {
		stores = append(stores, res.store)
	}
	return stores, nil
}

func (r *MockStoreRepository) sortedByCreatedDesc() []models.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]models.Store, 0, len(r.stores))
	for _, store := range r.stores {
		all = append(all, store)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Created.After(all[j].Created)
	})
	return all
}
