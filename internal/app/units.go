package app

import (
	"context"
	"errors"
	"strings"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
	"github.com/google/uuid"
)

// NewUnit is the input for creating a unit.
type NewUnit struct {
	Number    string  `json:"numero"`
	OwnerName string  `json:"propietario"`
	Area      float64 `json:"metros_cuadrados"`
	Active    *bool   `json:"activo,omitempty"`
}

// CreateUnit registers a new unit. Admin only; numbers are unique.
func (s Service) CreateUnit(ctx context.Context, requester domain.Person, input NewUnit) (*domain.Unit, error) {
	if err := s.requireAdmin(requester, "create units"); err != nil {
		return nil, err
	}

	now := s.now()
	unit := domain.Unit{
		ID:        uuid.NewString(),
		Number:    strings.TrimSpace(input.Number),
		OwnerName: strings.TrimSpace(input.OwnerName),
		Area:      input.Area,
		Active:    true,
		MemberIDs: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Active != nil {
		unit.Active = *input.Active
	}
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureUnitNumberFree(ctx, unit.Number, ""); err != nil {
		return nil, err
	}

	return s.repo.CreateUnit(ctx, unit)
}

// GetUnit returns one unit.
func (s Service) GetUnit(ctx context.Context, unitID string) (*domain.Unit, error) {
	return s.repo.GetUnit(ctx, unitID)
}

// ListUnits returns every unit ordered by number.
func (s Service) ListUnits(ctx context.Context) ([]domain.Unit, error) {
	return s.repo.ListUnits(ctx)
}

// ListActiveUnits returns the units that take part in billing.
func (s Service) ListActiveUnits(ctx context.Context) ([]domain.Unit, error) {
	return s.repo.ListActiveUnits(ctx)
}

// UpdateUnit applies a partial update. Admin only. The monthly quota is never
// set here; it only changes when a period is billed.
func (s Service) UpdateUnit(ctx context.Context, requester domain.Person, unitID string, update domain.UnitUpdate) (*domain.Unit, error) {
	if err := s.requireAdmin(requester, "update units"); err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	unit, err := s.repo.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	if update.Number != nil {
		if err := s.ensureUnitNumberFree(ctx, strings.TrimSpace(*update.Number), unit.ID); err != nil {
			return nil, err
		}
	}

	update.Apply(unit)
	unit.UpdatedAt = s.now()
	return s.repo.UpdateUnit(ctx, *unit)
}

// DeleteUnit removes a unit. Admin only; the unit must have no members.
func (s Service) DeleteUnit(ctx context.Context, requester domain.Person, unitID string) error {
	if err := s.requireAdmin(requester, "delete units"); err != nil {
		return err
	}

	unit, err := s.repo.GetUnit(ctx, unitID)
	if err != nil {
		return err
	}
	if len(unit.MemberIDs) > 0 {
		return domain.Validationf("cannot delete unit %s while it has associated people", unit.Number)
	}

	return s.repo.DeleteUnit(ctx, unitID)
}

// AddMember associates a person with a unit.
func (s Service) AddMember(ctx context.Context, requester domain.Person, unitID, personID string) (*domain.Unit, error) {
	if !CanManageUnit(requester, unitID) {
		return nil, domain.Permissionf("you cannot add people to this unit")
	}

	unit, err := s.repo.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	person, err := s.repo.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	if unit.HasMember(person.ID) {
		return nil, domain.Validationf("person %s already belongs to unit %s", person.ID, unit.Number)
	}
	if person.UnitID != nil && *person.UnitID != unit.ID {
		return nil, domain.Validationf("person %s is already associated with another unit", person.ID)
	}
	if unit.IsFull() {
		return nil, domain.Validationf("unit %s already has the maximum of %d people", unit.Number, domain.MaxUnitMembers)
	}

	updated, err := s.repo.AddUnitMember(ctx, unit.ID, person.ID, domain.MaxUnitMembers)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPersonUnit(ctx, person.ID, &updated.ID); err != nil {
		return nil, err
	}

	return updated, nil
}

// RemoveMember dissociates a person from a unit. Nobody can remove themselves.
func (s Service) RemoveMember(ctx context.Context, requester domain.Person, unitID, personID string) (*domain.Unit, error) {
	if !CanManageUnit(requester, unitID) {
		return nil, domain.Permissionf("you cannot remove people from this unit")
	}
	if requester.ID == personID {
		return nil, domain.Validationf("you cannot remove yourself from a unit")
	}

	unit, err := s.repo.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if !unit.HasMember(personID) {
		return nil, domain.Validationf("person %s does not belong to unit %s", personID, unit.Number)
	}

	updated, err := s.repo.RemoveUnitMember(ctx, unit.ID, personID)
	if err != nil {
		return nil, err
	}

	person, err := s.repo.GetPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("removed unknown person from unit", "unit_id", unit.ID, "person_id", personID)
			return updated, nil
		}
		return nil, err
	}
	if person.BelongsTo(unit.ID) {
		if err := s.repo.SetPersonUnit(ctx, person.ID, nil); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

func (s Service) ensureUnitNumberFree(ctx context.Context, number, ownID string) error {
	existing, err := s.repo.GetUnitByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID != ownID {
		return domain.Validationf("a unit with number %s already exists", number)
	}
	return nil
}
