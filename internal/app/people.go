package app

import (
	"context"
	"errors"
	"strings"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

// Registration is the input for registering the authenticated identity.
type Registration struct {
	Subject string
	Email   string
	Name    string
}

// Register creates the Person record of a freshly authenticated identity. The
// token subject becomes the person id. New people are tenants without admin
// rights unless their address is a bootstrap administrator.
func (s Service) Register(ctx context.Context, input Registration) (*domain.Person, error) {
	if isBlank(input.Subject) {
		return nil, domain.Validationf("identity subject cannot be empty")
	}

	now := s.now()
	person := domain.Person{
		ID:           input.Subject,
		Email:        domain.NormalizeEmail(input.Email),
		Name:         strings.TrimSpace(input.Name),
		Role:         domain.RoleTenant,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if _, ok := s.admins[person.Email]; ok {
		person.Role = domain.RoleAdmin
		person.IsAdmin = true
	}
	if err := person.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPerson(ctx, person.ID); err == nil {
		return nil, domain.Validationf("this identity is already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetPersonByEmail(ctx, person.Email); err == nil {
		return nil, domain.Validationf("a person with email %s already exists", person.Email)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	created, err := s.repo.CreatePerson(ctx, person)
	if err != nil {
		return nil, err
	}
	s.logger.Info("person registered", "person_id", created.ID, "role", created.Role)
	return created, nil
}

// ResolvePerson loads the Person behind an identity subject.
func (s Service) ResolvePerson(ctx context.Context, subject string) (*domain.Person, error) {
	if isBlank(subject) {
		return nil, domain.Validationf("identity subject cannot be empty")
	}
	return s.repo.GetPerson(ctx, subject)
}

// ListPeople returns everyone. Admin only.
func (s Service) ListPeople(ctx context.Context, requester domain.Person) ([]domain.Person, error) {
	if err := s.requireAdmin(requester, "list people"); err != nil {
		return nil, err
	}
	return s.repo.ListPeople(ctx)
}

// ListPeopleByUnit returns the people of a unit. Admins and members of the unit only.
func (s Service) ListPeopleByUnit(ctx context.Context, requester domain.Person, unitID string) ([]domain.Person, error) {
	if !requester.IsAdmin && !requester.BelongsTo(unitID) {
		return nil, domain.Permissionf("you cannot list the people of this unit")
	}
	if _, err := s.repo.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}
	return s.repo.ListPeopleByUnit(ctx, unitID)
}

// GetPerson returns one person. Admins or the person themselves only.
func (s Service) GetPerson(ctx context.Context, requester domain.Person, personID string) (*domain.Person, error) {
	if !CanViewPerson(requester, personID) {
		return nil, domain.Permissionf("you cannot view this person")
	}
	return s.repo.GetPerson(ctx, personID)
}

// UpdatePerson applies a partial profile update. Only admins can change the
// role or admin flag.
func (s Service) UpdatePerson(ctx context.Context, requester domain.Person, personID string, update domain.PersonUpdate) (*domain.Person, error) {
	if !CanEditPerson(requester, personID) {
		return nil, domain.Permissionf("you cannot update this person")
	}
	if update.TouchesPrivilegedFields() && !requester.IsAdmin {
		return nil, domain.Permissionf("only administrators can change roles")
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	person, err := s.repo.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	update.Apply(person)
	person.UpdatedAt = s.now()
	return s.repo.UpdatePerson(ctx, *person)
}

// ChangeRole sets a person's role and admin flag. Admin only.
func (s Service) ChangeRole(ctx context.Context, requester domain.Person, personID string, role domain.Role, isAdmin bool) (*domain.Person, error) {
	if err := s.requireAdmin(requester, "change roles"); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	return s.UpdatePerson(ctx, requester, personID, domain.PersonUpdate{Role: &parsed, IsAdmin: &isAdmin})
}

// DeletePerson removes a person and detaches them from any unit. Admin only,
// and never oneself.
func (s Service) DeletePerson(ctx context.Context, requester domain.Person, personID string) error {
	if err := s.requireAdmin(requester, "delete people"); err != nil {
		return err
	}
	if requester.ID == personID {
		return domain.Validationf("you cannot delete yourself")
	}

	if _, err := s.repo.GetPerson(ctx, personID); err != nil {
		return err
	}
	if err := s.repo.DetachMemberFromUnits(ctx, personID); err != nil {
		return err
	}
	return s.repo.DeletePerson(ctx, personID)
}
