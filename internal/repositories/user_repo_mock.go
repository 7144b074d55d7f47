package repositories

import (
	"sync"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
type MockUserRepository struct {
	users  map[string]models.User
	hearts map[string]map[string]bool // user id -> store id set
	mu     sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:  make(map[string]models.User),
		hearts: make(map[string]map[string]bool),
	}
}

// Create adds a new user.
func (r *MockUserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Hearts == nil {
		user.Hearts = []string{}
	}
	r.users[user.ID] = *user
	return nil
}

// Update replaces an existing user.
func (r *MockUserRepository) Update(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.users[user.ID] = *user
	return nil
}

// GetByID returns a user by their ID.
func (r *MockUserRepository) GetByID(id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	r.fillHearts(&user)
	return &user, nil
}

// GetByEmail returns a user by their email.
func (r *MockUserRepository) GetByEmail(email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			u := user
			r.fillHearts(&u)
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// GetByResetToken returns the user holding the given reset token.
func (r *MockUserRepository) GetByResetToken(token string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if token == "" {
		return nil, apperrors.ErrNotFound
	}
	for _, user := range r.users {
		if user.ResetPasswordToken == token {
			u := user
			r.fillHearts(&u)
			return &u, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// ToggleHeart flips the (user, store) favorite pair.
func (r *MockUserRepository) ToggleHeart(userID, storeID string) (*models.User, error) {
	r.mu.Lock()
	user, ok := r.users[userID]
	if !ok {
		r.mu.Unlock()
		return nil, apperrors.ErrNotFound
	}
	set := r.hearts[userID]
	if set == nil {
		set = make(map[string]bool)
		r.hearts[userID] = set
	}
	if set[storeID] {
		delete(set, storeID)
	} else {
		set[storeID] = true
	}
	r.fillHearts(&user)
	r.mu.Unlock()
	return &user, nil
}

// fillHearts copies the heart set onto the user. Caller holds the lock.
func (r *MockUserRepository) fillHearts(user *models.User) {
	set := r.hearts[user.ID]
	user.Hearts = make([]string, 0, len(set))
	for storeID := range set {
		user.Hearts = append(user.Hearts, storeID)
	}
}
