package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Assignment struct {
	ID                  string    `db:"id" json:"id"`
	Title               string    `db:"title" json:"title" validate:"required"`
	Description         string    `db:"description" json:"description" validate:"required"`
	DueDate             time.Time `db:"due_date" json:"due_date" validate:"required"`
	CreatedBy           string    `db:"created_by" json:"created_by"`
	MaxMarks            int       `db:"max_marks" json:"max_marks" validate:"required,gt=0"`
	AllowLateSubmission bool      `db:"allow_late_submission" json:"allow_late_submission"`
	PenaltyPercentage   *float64  `db:"penalty_percentage" json:"penalty_percentage,omitempty" validate:"omitempty,gte=0"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

func (a *Assignment) Validate() error {
	validate := validator.New()
	if err := validate.Struct(a); err != nil {
		return err
	}
	// penalty only makes sense when late submissions are allowed
	if !a.AllowLateSubmission && a.PenaltyPercentage != nil {
		return fmt.Errorf("penalty_percentage requires allow_late_submission")
	}
	return nil
}
