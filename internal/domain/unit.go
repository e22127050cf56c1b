/**
 * @description
 * Domain model for condominium units ("departamentos").
 */
package domain

import (
	"strings"
	"time"
)

// MaxUnitMembers caps how many people can be associated with one unit.
const MaxUnitMembers = 5

// Unit is a billable apartment of the building.
type Unit struct {
	ID           string    `json:"id"`
	Number       string    `json:"numero"`
	OwnerName    string    `json:"propietario"`
	Area         float64   `json:"metros_cuadrados"`
	MonthlyQuota int64     `json:"cuota_mensual"`
	Active       bool      `json:"activo"`
	MemberIDs    []string  `json:"usuarios_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasMember reports whether personID is in the unit's member list.
func (u Unit) HasMember(personID string) bool {
	for _, id := range u.MemberIDs {
		if id == personID {
			return true
		}
	}
	return false
}

// IsFull reports whether the member list reached MaxUnitMembers.
func (u Unit) IsFull() bool {
	return len(u.MemberIDs) >= MaxUnitMembers
}

// Validate checks the user-supplied fields of a unit.
func (u Unit) Validate() error {
	if err := validateUnitNumber(u.Number); err != nil {
		return err
	}
	if err := validateOwnerName(u.OwnerName); err != nil {
		return err
	}
	if u.Area <= 0 {
		return Validationf("metros_cuadrados must be greater than 0")
	}
	if u.MonthlyQuota < 0 {
		return Validationf("cuota_mensual cannot be negative")
	}
	if len(u.MemberIDs) > MaxUnitMembers {
		return Validationf("a unit cannot have more than %d members", MaxUnitMembers)
	}
	return nil
}

// UnitUpdate is a partial update of a unit. Nil fields are left untouched.
type UnitUpdate struct {
	Number    *string  `json:"numero,omitempty"`
	OwnerName *string  `json:"propietario,omitempty"`
	Area      *float64 `json:"metros_cuadrados,omitempty"`
	Active    *bool    `json:"activo,omitempty"`
}

// Validate checks the fields present in the update.
func (u UnitUpdate) Validate() error {
	if u.Number != nil {
		if err := validateUnitNumber(*u.Number); err != nil {
			return err
		}
	}
	if u.OwnerName != nil {
		if err := validateOwnerName(*u.OwnerName); err != nil {
			return err
		}
	}
	if u.Area != nil && *u.Area <= 0 {
		return Validationf("metros_cuadrados must be greater than 0")
	}
	return nil
}

// Apply copies the present fields onto unit.
func (u UnitUpdate) Apply(unit *Unit) {
	if u.Number != nil {
		unit.Number = strings.TrimSpace(*u.Number)
	}
	if u.OwnerName != nil {
		unit.OwnerName = strings.TrimSpace(*u.OwnerName)
	}
	if u.Area != nil {
		unit.Area = *u.Area
	}
	if u.Active != nil {
		unit.Active = *u.Active
	}
}

func validateUnitNumber(number string) error {
	n := len(strings.TrimSpace(number))
	if n < 1 || n > 10 {
		return Validationf("numero must be between 1 and 10 characters")
	}
	return nil
}

func validateOwnerName(name string) error {
	n := len([]rune(strings.TrimSpace(name)))
	if n < 2 || n > 100 {
		return Validationf("propietario must be between 2 and 100 characters")
	}
	return nil
}
