package tree

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MaxReferencedTrees is how many other trees a node may reference.
const MaxReferencedTrees = 3

var (
	ErrTooManyReferences     = fmt.Errorf("a node may reference at most %d trees", MaxReferencedTrees)
	ErrDuplicateReference    = errors.New("referenced trees must be unique")
	ErrInvalidReferenceID    = errors.New("referenced tree IDs must be UUIDs")
	ErrSelfReference         = errors.New("a node cannot reference its own tree")
	ErrUnknownReference      = errors.New("referenced tree does not exist")
	ErrCrossProjectReference = errors.New("referenced trees must belong to the same project")
)

var validate = validator.New()

type referenceSet struct {
	IDs []string `validate:"max=3,unique,dive,uuid"`
}

// ValidateReferences checks a node's referenced tree IDs. treeID and
// projectID describe the tree owning the node; projectOf maps each
// referenced tree ID to its project ID and omits trees that do not exist.
func ValidateReferences(treeID, projectID string, refs []string, projectOf map[string]string) error {
	if err := validate.Struct(referenceSet{IDs: refs}); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Tag() {
			case "max":
				return ErrTooManyReferences
			case "unique":
				return ErrDuplicateReference
			default:
				return ErrInvalidReferenceID
			}
		}
		return err
	}

	for _, ref := range refs {
		if ref == treeID {
			return ErrSelfReference
		}
		refProject, ok := projectOf[ref]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownReference, ref)
		}
		if refProject != projectID {
			return fmt.Errorf("%w: %s", ErrCrossProjectReference, ref)
		}
	}
	return nil
}

// IsReferenceError reports whether err came from ValidateReferences rules.
func IsReferenceError(err error) bool {
	for _, target := range []error{
		ErrTooManyReferences,
		ErrDuplicateReference,
		ErrInvalidReferenceID,
		ErrSelfReference,
		ErrUnknownReference,
		ErrCrossProjectReference,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
