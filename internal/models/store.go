package models

import "time"

// Location is the geographic position and postal address of a store.
// Coordinates follow the (lng, lat) order used by the map API.
type Location struct {
	Lng     float64 `json:"lng" gorm:"column:lng" validate:"min=-180,max=180"`
	Lat     float64 `json:"lat" gorm:"column:lat" validate:"min=-90,max=90"`
	Address string  `json:"address" gorm:"column:address;type:varchar(255)" validate:"required"`
}

// Store represents a single storefront listing.
type Store struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name        string    `json:"name" gorm:"type:varchar(255)" validate:"required,max=255"`
	Slug        string    `json:"slug" gorm:"index;type:varchar(255)"`
	Description string    `json:"description" validate:"omitempty,max=2000"`
	Tags        []string  `json:"tags" gorm:"-"` // persisted in store_tags, loaded by the repository
	Created     time.Time `json:"created"`
	Location    Location  `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	Photo       string    `json:"photo,omitempty" gorm:"type:varchar(255)"`
	AuthorID    string    `json:"author" gorm:"index;type:varchar(36)" validate:"required"`

	// Related records, filled only when the caller asks for them.
	Author  *User    `json:"authorDetails,omitempty" gorm:"foreignKey:AuthorID"`
	Reviews []Review `json:"reviews,omitempty" gorm:"foreignKey:StoreID"`
}

// StoreTag is one (store, tag) pair. Keeping tags relational lets the
// tag-frequency report stay a plain GROUP BY.
type StoreTag struct {
	StoreID string `gorm:"primaryKey;type:varchar(36)"`
	Tag     string `gorm:"primaryKey;type:varchar(100)"`
}

// TagCount is one row of the tag-frequency report.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TopStore is one row of the top-rated-stores report.
type TopStore struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Photo         string  `json:"photo,omitempty"`
	ReviewCount   int     `json:"reviewCount"`
	AverageRating float64 `json:"averageRating"`
}

// StoreSummary is the minimal projection returned by the geo-near API.
type StoreSummary struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Location    Location `json:"location"`
	Photo       string   `json:"photo,omitempty"`
}
