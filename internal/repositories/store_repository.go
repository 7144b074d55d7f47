package repositories

import "storefront/internal/models"

// Include selects which related records a store read should carry. Joins are
// opt-in per call site rather than implicit on every read.
type Include struct {
	Author bool
}

// StoreRepository defines the interface for store data access.
type StoreRepository interface {
	Create(store *models.Store) error
	Update(store *models.Store) error
	GetByID(id string) (*models.Store, error)
	GetBySlug(slug string, include Include) (*models.Store, error)
	List(offset, limit int) ([]models.Store, error)
	Count() (int64, error)
	GetByTag(tag string) ([]models.Store, error)
	GetByIDs(ids []string) ([]models.Store, error)

	// CountSlugMatches counts stores whose slug is base or base-<number>.
	// The slug generator uses it to pick a collision suffix.
	CountSlugMatches(base string) (int, error)

	// Reporting queries; computed by the persistence engine where possible.
	TagCounts() ([]models.TagCount, error)
	TopStores(minReviews, limit int) ([]models.TopStore, error)
	Near(lng, lat, maxMeters float64, limit int) ([]models.StoreSummary, error)
	Search(query string, limit int) ([]models.Store, error)
}
