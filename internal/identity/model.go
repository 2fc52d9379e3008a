package identity

import (
	"strings"
	"time"

	"github.com/idmint/idmint/internal/apperr"
)

// Category is a class of registrant with its own record store and contract.
type Category string

const (
	CategoryStandard Category = "standard"
	CategorySSA      Category = "SSA"
)

// Categories lists every recognized category.
var Categories = []Category{CategoryStandard, CategorySSA}

// ParseCategory maps a request's id_type onto a Category.
func ParseCategory(raw string) (Category, error) {
	switch strings.TrimSpace(raw) {
	case "standard":
		return CategoryStandard, nil
	case "SSA", "ssa":
		return CategorySSA, nil
	case "":
		return "", apperr.New(apperr.ErrInvalidInput, "id_type is required")
	default:
		return "", apperr.New(apperr.ErrInvalidInput, "unknown id_type "+raw)
	}
}

// Valid reports whether c is one of the recognized categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Key is the lower-case form used for configuration lookups.
func (c Category) Key() string {
	return strings.ToLower(string(c))
}

// Identity is a registered person's attributes for one category.
type Identity struct {
	Category    Category
	Phone       string
	IDType      string
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RegisterInput is the registration request payload.
type RegisterInput struct {
	Phone       string
	IDType      string
	FirstName   string
	LastName    string
	DateOfBirth string
}
