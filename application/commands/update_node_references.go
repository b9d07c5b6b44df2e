package commands

import (
	"github.com/go-playground/validator/v10"

	apperrors "labsos-backend/pkg/errors"
)

var validate = validator.New()

// UpdateNodeReferencesCommand replaces the set of trees a node references.
type UpdateNodeReferencesCommand struct {
	NodeID            string   `json:"node_id" validate:"required,uuid"`
	ReferencedTreeIDs []string `json:"referenced_tree_ids"`
	Token             string   `json:"-" validate:"required"`
}

// Validate implements bus.Command
func (c UpdateNodeReferencesCommand) Validate() error {
	if c.Token == "" {
		return apperrors.NewUnauthorizedError("Authentication required")
	}
	if err := validate.Struct(c); err != nil {
		return apperrors.NewValidationError("Invalid references update").WithCause(err)
	}
	return nil
}
