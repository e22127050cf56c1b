/**
 * @description
 * Domain model for people ("usuarios") and their roles.
 */
package domain

import (
	"net/mail"
	"strings"
	"time"
)

// Role is a person's role in the condominium.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "propietario"
	RoleTenant Role = "arrendatario"
)

// ParseRole normalizes a role name. Matching is case-insensitive.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleOwner, RoleTenant:
		return role, nil
	}
	return "", Validationf("invalid role %q", raw)
}

// Person is any user of the system. ID is the identity-provider subject.
type Person struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"nombre"`
	Role         Role      `json:"rol"`
	IsAdmin      bool      `json:"es_admin"`
	UnitID       *string   `json:"departamento_id"`
	RegisteredAt time.Time `json:"fecha_registro"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BelongsTo reports whether the person is associated with unitID.
func (p Person) BelongsTo(unitID string) bool {
	return p.UnitID != nil && *p.UnitID == unitID
}

// Validate checks the fields of a new person.
func (p Person) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return Validationf("id is required")
	}
	if err := ValidateEmail(p.Email); err != nil {
		return err
	}
	if err := validatePersonName(p.Name); err != nil {
		return err
	}
	if _, err := ParseRole(string(p.Role)); err != nil {
		return err
	}
	return nil
}

// PersonUpdate is a partial update of a person. Nil fields are left untouched.
type PersonUpdate struct {
	Name    *string `json:"nombre,omitempty"`
	Role    *Role   `json:"rol,omitempty"`
	IsAdmin *bool   `json:"es_admin,omitempty"`
}

// TouchesPrivilegedFields reports whether the update changes role or admin flag.
func (u PersonUpdate) TouchesPrivilegedFields() bool {
	return u.Role != nil || u.IsAdmin != nil
}

// Validate checks the fields present in the update.
func (u PersonUpdate) Validate() error {
	if u.Name != nil {
		if err := validatePersonName(*u.Name); err != nil {
			return err
		}
	}
	if u.Role != nil {
		if _, err := ParseRole(string(*u.Role)); err != nil {
			return err
		}
	}
	return nil
}

// Apply copies the present fields onto person.
func (u PersonUpdate) Apply(person *Person) {
	if u.Name != nil {
		person.Name = strings.TrimSpace(*u.Name)
	}
	if u.Role != nil {
		person.Role = *u.Role
	}
	if u.IsAdmin != nil {
		person.IsAdmin = *u.IsAdmin
	}
}

// ValidateEmail checks that raw is a bare e-mail address.
func ValidateEmail(raw string) error {
	trimmed := strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return Validationf("invalid email %q", raw)
	}
	return nil
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func validatePersonName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < 2 || n > 100 {
		return Validationf("nombre must be between 2 and 100 characters")
	}
	return nil
}
