package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Profile is the application-level user record. It is created by the auth
// subsystem on first sign-in and read-only everywhere else.
type Profile struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name" validate:"required"`
	Email        string    `db:"email" json:"email" validate:"required,email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role" validate:"required,oneof=teacher student"`
	AvatarURL    *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (p *Profile) Validate() error {
	validate := validator.New()
	return validate.Struct(p)
}
