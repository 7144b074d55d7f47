package repositories

import (
	"fmt"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if user.Hearts == nil {
		user.Hearts = []string{}
	}
	return nil
}

// Update saves all user fields, including cleared reset-token fields.
func (r *GORMUserRepository) Update(user *models.User) error {
	res := r.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"name":                   user.Name,
		"email":                  user.Email,
		"password":               user.Password,
		"reset_password_token":   user.ResetPasswordToken,
		"reset_password_expires": user.ResetPasswordExpires,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(id string) (*models.User, error) {
	return r.getOne("id = ?", id)
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(email string) (*models.User, error) {
	return r.getOne("email = ?", email)
}

// GetByResetToken retrieves the user holding the given reset token.
func (r *GORMUserRepository) GetByResetToken(token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.ErrNotFound
	}
	return r.getOne("reset_password_token = ?", token)
}

// ToggleHeart flips the (user, store) favorite pair and returns the user
// with the refreshed hearts set.
func (r *GORMUserRepository) ToggleHeart(userID, storeID string) (*models.User, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.UserHeart
		err := tx.First(&existing, "user_id = ? AND store_id = ?", userID, storeID).Error
		switch err {
		case nil:
			return tx.Delete(&models.UserHeart{}, "user_id = ? AND store_id = ?", userID, storeID).Error
		case gorm.ErrRecordNotFound:
			return tx.Create(&models.UserHeart{UserID: userID, StoreID: storeID}).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to toggle heart for user %s: %w", userID, err)
	}
	return r.GetByID(userID)
}

func (r *GORMUserRepository) getOne(query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, query, arg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := r.loadHearts(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GORMUserRepository) loadHearts(user *models.User) error {
	var rows []models.UserHeart
	if err := r.db.Where("user_id = ?", user.ID).Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load hearts for user %s: %w", user.ID, err)
	}
	user.Hearts = make([]string, 0, len(rows))
	for _, row := range rows {
		user.Hearts = append(user.Hearts, row.StoreID)
	}
	return nil
}
