package repositories

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront/internal/apperrors"
)

// GORMStoreRepository is a GORM implementation of StoreRepository.
type GORMStoreRepository struct {
	db *gorm.DB
}

// NewGORMStoreRepository creates a new instance of GORMStoreRepository.
func NewGORMStoreRepository(db *gorm.DB) *GORMStoreRepository {
	return &GORMStoreRepository{
		db: db,
	}
}

// Create persists a new store and its tag rows.
func (r *GORMStoreRepository) Create(store *models.Store) error {
	if store.ID == "" {
		store.ID = uuid.New().String()
	}
	if store.Created.IsZero() {
		store.Created = time.Now()
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(store).Error; err != nil {
			return err
		}
		return replaceTags(tx, store.ID, store.Tags)
	})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	return nil
}

// Update saves all store fields and replaces its tag rows.
func (r *GORMStoreRepository) Update(store *models.Store) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Store{}).Where("id = ?", store.ID).Select(
			"name", "slug", "description", "photo",
			"location_lng", "location_lat", "location_address",
		).Updates(map[string]interface{}{
			"name":             store.Name,
			"slug":             store.Slug,
			"description":      store.Description,
			"photo":            store.Photo,
			"location_lng":     store.Location.Lng,
			"location_lat":     store.Location.Lat,
			"location_address": store.Location.Address,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return replaceTags(tx, store.ID, store.Tags)
	})
	if err != nil {
		if err == apperrors.ErrNotFound {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update store %s: %w", store.ID, err)
	}
	return nil
}

// GetByID retrieves a single store by its ID.
func (r *GORMStoreRepository) GetByID(id string) (*models.Store, error) {
	var store models.Store
	if err := r.db.First(&store, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get store by ID %s: %w", id, err)
	}
	if err := r.loadTags(&store); err != nil {
		return nil, err
	}
	return &store, nil
}

// GetBySlug retrieves a store by slug, with opt-in related records.
func (r *GORMStoreRepository) GetBySlug(slug string, include Include) (*models.Store, error) {
	q := r.db
	if include.Author {
		q = q.Preload("Author")
	}
	var store models.Store
	if err := q.First(&store, "slug = ?", slug).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get store by slug %s: %w", slug, err)
	}
	if err := r.loadTags(&store); err != nil {
		return nil, err
	}
	return &store, nil
}

// List returns one page of stores sorted by creation time descending.
func (r *GORMStoreRepository) List(offset, limit int) ([]models.Store, error) {
	var stores []models.Store
	if err := r.db.Order("created DESC").Offset(offset).Limit(limit).Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	if err := r.loadTagsAll(stores); err != nil {
		return nil, err
	}
	return stores, nil
}

// Count returns the total number of stores.
func (r *GORMStoreRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.Store{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count stores: %w", err)
	}
	return count, nil
}

// GetByTag returns all stores carrying the given tag.
func (r *GORMStoreRepository) GetByTag(tag string) ([]models.Store, error) {
	var stores []models.Store
	err := r.db.
		Joins("JOIN store_tags ON store_tags.store_id = stores.id").
		Where("store_tags.tag = ?", tag).
		Order("created DESC").
		Find(&stores).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get stores by tag %s: %w", tag, err)
	}
	if err := r.loadTagsAll(stores); err != nil {
		return nil, err
	}
	return stores, nil
}

// GetByIDs returns the stores whose id is in ids, newest first.
func (r *GORMStoreRepository) GetByIDs(ids []string) ([]models.Store, error) {
	if len(ids) == 0 {
		return []models.Store{}, nil
	}
	var stores []models.Store
	if err := r.db.Where("id IN ?", ids).Order("created DESC").Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("failed to get stores by ids: %w", err)
	}
	if err := r.loadTagsAll(stores); err != nil {
		return nil, err
	}
	return stores, nil
}

// CountSlugMatches counts existing slugs equal to base or base-<number>.
func (r *GORMStoreRepository) CountSlugMatches(base string) (int, error) {
	var slugs []string
	err := r.db.Model(&models.Store{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &slugs).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count slug matches for %s: %w", base, err)
	}
	// LIKE 'base-%' also matches non-numeric suffixes; filter those out.
	re := regexp.MustCompile("^" + regexp.QuoteMeta(base) + "(-[0-9]+)?$")
	count := 0
	for _, s := range slugs {
		if re.MatchString(s) {
			count++
		}
	}
	return count, nil
}

// TagCounts groups the tag rows and returns (tag, count) sorted count-desc.
func (r *GORMStoreRepository) TagCounts() ([]models.TagCount, error) {
	var counts []models.TagCount
	err := r.db.Model(&models.StoreTag{}).
		Select("tag, COUNT(*) AS count").
		Group("tag").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tag counts: %w", err)
	}
	return counts, nil
}

// TopStores joins stores to reviews, keeps those with at least minReviews
// reviews and returns up to limit rows sorted by average rating descending.
func (r *GORMStoreRepository) TopStores(minReviews, limit int) ([]models.TopStore, error) {
	var top []models.TopStore
	err := r.db.Raw(`
		SELECT s.id, s.name, s.slug, s.photo,
		       COUNT(rv.id) AS review_count,
		       AVG(rv.rating) AS average_rating
		FROM stores s
		JOIN reviews rv ON rv.store_id = s.id
		GROUP BY s.id, s.name, s.slug, s.photo
		HAVING COUNT(rv.id) >= ?
		ORDER BY average_rating DESC
		LIMIT ?`, minReviews, limit).Scan(&top).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top stores: %w", err)
	}
	return top, nil
}

// Near returns up to limit stores within maxMeters of (lng, lat), nearest
// first. A coarse bounding box is pushed to the database; the exact
// great-circle cut and ordering happen here so the query stays portable
// across the postgres and sqlite drivers.
func (r *GORMStoreRepository) Near(lng, lat, maxMeters float64, limit int) ([]models.StoreSummary, error) {
	minLng, minLat, maxLng, maxLat := boundingBox(lng, lat, maxMeters)
	var stores []models.Store
	err := r.db.
		Where("location_lng BETWEEN ? AND ?", minLng, maxLng).
		Where("location_lat BETWEEN ? AND ?", minLat, maxLat).
		Find(&stores).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query stores near (%f, %f): %w", lng, lat, err)
	}
	return nearestWithin(stores, lng, lat, maxMeters, limit), nil
}

// Search ranks stores by a simple relevance score over name and description;
// name matches outrank description matches.
func (r *GORMStoreRepository) Search(query string, limit int) ([]models.Store, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	var stores []models.Store
	err := r.db.Raw(`
		SELECT * FROM stores
		WHERE lower(name) LIKE ? OR lower(description) LIKE ?
		ORDER BY (CASE WHEN lower(name) LIKE ? THEN 2 ELSE 0 END +
		          CASE WHEN lower(description) LIKE ? THEN 1 ELSE 0 END) DESC,
		         created DESC
		LIMIT ?`, pattern, pattern, pattern, pattern, limit).Scan(&stores).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search stores for %q: %w", query, err)
	}
	if err := r.loadTagsAll(stores); err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *GORMStoreRepository) loadTags(store *models.Store) error {
	var rows []models.StoreTag
	if err := r.db.Where("store_id = ?", store.ID).Order("tag").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load tags for store %s: %w", store.ID, err)
	}
	store.Tags = make([]string, 0, len(rows))
	for _, row := range rows {
		store.Tags = append(store.Tags, row.Tag)
	}
	return nil
}

func (r *GORMStoreRepository) loadTagsAll(stores []models.Store) error {
	if len(stores) == 0 {
		return nil
	}
	ids := make([]string, 0, len(stores))
	for i := range stores {
		ids = append(ids, stores[i].ID)
	}
	var rows []models.StoreTag
	if err := r.db.Where("store_id IN ?", ids).Order("tag").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	byStore := make(map[string][]string, len(stores))
	for _, row := range rows {
		byStore[row.StoreID] = append(byStore[row.StoreID], row.Tag)
	}
	for i := range stores {
		stores[i].Tags = byStore[stores[i].ID]
		if stores[i].Tags == nil {
			stores[i].Tags = []string{}
		}
	}
	return nil
}

func replaceTags(tx *gorm.DB, storeID string, tags []string) error {
	if err := tx.Where("store_id = ?", storeID).Delete(&models.StoreTag{}).Error; err != nil {
		return err
	}
	seen := make(map[string]bool, len(tags))
	rows := make([]models.StoreTag, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		rows = append(rows, models.StoreTag{StoreID: storeID, Tag: tag})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}
