package services

import (
	"fmt"

	gosimpleslug "github.com/gosimple/slug"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

// MakeSlug derives a lowercase, hyphenated, URL-safe identifier from a
// display name. Names with no usable characters fall back to "store" so the
// slug is never empty.
func MakeSlug(name string) string {
	s := gosimpleslug.Make(name)
	if s == "" {
		return "store"
	}
	return s
}

// applySlug sets store.Slug from store.Name, appending a numeric suffix when
// other stores already occupy the base slug. The uniqueness lookup runs as
// part of the save; its failure aborts the save.
//
// Two concurrent saves of the same name can still compute the same suffix;
// the check-then-write is not atomic.
func applySlug(repo repositories.StoreRepository, store *models.Store) error {
	base := MakeSlug(store.Name)
	count, err := repo.CountSlugMatches(base)
	if err != nil {
		return fmt.Errorf("slug uniqueness check failed: %w", err)
	}
	if count > 0 {
		store.Slug = fmt.Sprintf("%s-%d", base, count+1)
	} else {
		store.Slug = base
	}
	return nil
}
