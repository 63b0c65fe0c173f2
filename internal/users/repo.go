package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/pkg/db/models"
)

// ErrProfileNotFound is returned when the user has not created a player profile.
var ErrProfileNotFound = errors.New("player profile not found")

// Repository reads accounts and player profiles. Accounts are written by the
// authentication service; profiles are read-only here as well.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindProfileByUserID returns the user's player profile or ErrProfileNotFound.
func (r *Repository) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.PlayerProfile, error) {
	var profile models.PlayerProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindProfilesByIDs loads profiles with their users, keyed by profile id.
func (r *Repository) FindProfilesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.PlayerProfile, error) {
	out := make(map[uuid.UUID]models.PlayerProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []models.PlayerProfile
	if err := r.db.WithContext(ctx).Preload("User").Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}
