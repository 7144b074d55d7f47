package repositories

import "storefront/internal/models"

// ReviewRepository defines the interface for review data access.
type ReviewRepository interface {
	Create(review *models.Review) error
	GetByStore(storeID string) ([]models.Review, error)
}
