package repositories

import (
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockReviewRepository is an in-memory implementation of ReviewRepository.
type MockReviewRepository struct {
	reviews map[string][]models.Review // keyed by store id
	mu      sync.RWMutex
}

// NewMockReviewRepository creates a new instance of MockReviewRepository.
func NewMockReviewRepository() *MockReviewRepository {
	return &MockReviewRepository{
		reviews: make(map[string][]models.Review),
	}
}

// Create adds a new review.
func (r *MockReviewRepository) Create(review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.Created.IsZero() {
		review.Created = time.Now()
	}
	r.reviews[review.StoreID] = append(r.reviews[review.StoreID], *review)
	return nil
}

// GetByStore returns all reviews for a store, newest first.
func (r *MockReviewRepository) GetByStore(storeID string) ([]models.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reviews := make([]models.Review, len(r.reviews[storeID]))
	copy(reviews, r.reviews[storeID])
	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].Created.After(reviews[j].Created)
	})
	return reviews, nil
}
