package repositories

import "storefront/internal/models"

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	Update(user *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByResetToken(token string) (*models.User, error)

	// ToggleHeart removes storeID from the user's hearts when present and
	// adds it otherwise, returning the updated user.
	ToggleHeart(userID, storeID string) (*models.User, error)
}
