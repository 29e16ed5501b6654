package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/shrimpsizemoose/semla/internal/models"
	"github.com/shrimpsizemoose/semla/internal/store"
)

// Resolver turns an authenticated identity into an application profile.
type Resolver struct {
	store store.Store
}

func NewResolver(st store.Store) *Resolver {
	return &Resolver{store: st}
}

func (r *Resolver) Resolve(profileID string) (*models.Profile, error) {
	profile, err := r.store.GetProfile(profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if profile == nil {
		return nil, models.ErrProfileNotFound
	}
	return profile, nil
}

// HashPassword is used by provisioning paths when a profile row is created.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
