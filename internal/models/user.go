package models

import "time"

// User represents a registered account. Password holds the bcrypt hash and is
// never serialized.
type User struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name     string `json:"name" gorm:"type:varchar(100)" validate:"required,min=1,max=100"`
	Email    string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password string `json:"-" gorm:"type:varchar(255)"`

	// Hearts is the set of store ids the user has favorited, persisted in
	// user_hearts and loaded by the repository.
	Hearts []string `json:"hearts" gorm:"-"`

	// Password-reset state. Token is 40 hex characters; both fields are
	// cleared once the reset completes.
	ResetPasswordToken   string     `json:"-" gorm:"index;type:varchar(40)"`
	ResetPasswordExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}

// UserHeart is one (user, store) favorite pair.
type UserHeart struct {
	UserID  string `gorm:"primaryKey;type:varchar(36)"`
	StoreID string `gorm:"primaryKey;type:varchar(36)"`
}
