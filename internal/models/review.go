package models

import "time"

// Review is a rating left on a store. Ratings feed the top-stores report.
type Review struct {
	ID       string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	StoreID  string    `json:"store" gorm:"index;type:varchar(36)" validate:"required"`
	AuthorID string    `json:"author" gorm:"type:varchar(36)" validate:"required"`
	Rating   int       `json:"rating" validate:"required,min=1,max=5"`
	Text     string    `json:"text" validate:"omitempty,max=2000"`
	Created  time.Time `json:"created"`
}
