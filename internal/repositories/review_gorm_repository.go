package repositories

import (
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMReviewRepository is a GORM implementation of ReviewRepository.
type GORMReviewRepository struct {
	db *gorm.DB
}

// NewGORMReviewRepository creates a new instance of GORMReviewRepository.
func NewGORMReviewRepository(db *gorm.DB) *GORMReviewRepository {
	return &GORMReviewRepository{
		db: db,
	}
}

// Create persists a new review.
func (r *GORMReviewRepository) Create(review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.New().String()
	}
	if review.Created.IsZero() {
		review.Created = time.Now()
	}
	if err := r.db.Create(review).Error; err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// GetByStore returns all reviews for a store, newest first.
func (r *GORMReviewRepository) GetByStore(storeID string) ([]models.Review, error) {
	var reviews []models.Review
	if err := r.db.Where("store_id = ?", storeID).Order("created DESC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to get reviews for store %s: %w", storeID, err)
	}
	return reviews, nil
}
