/**
 * @description
 * PostgreSQL data access layer. Each collection of the condominium lives in
 * its own table; member lists are TEXT[] columns and nested documents are
 * JSONB columns.
 */
package store

import (
	"context"
	"errors"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository handles database operations for every collection.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const unitColumns = `id, numero, propietario, metros_cuadrados, cuota_mensual, activo, usuarios_ids, created_at, updated_at`

func scanUnit(row rowScanner) (*domain.Unit, error) {
	var unit domain.Unit
	if err := row.Scan(
		&unit.ID,
		&unit.Number,
		&unit.OwnerName,
		&unit.Area,
		&unit.MonthlyQuota,
		&unit.Active,
		&unit.MemberIDs,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if unit.MemberIDs == nil {
		unit.MemberIDs = []string{}
	}
	return &unit, nil
}

func collectUnits(rows pgx.Rows) ([]domain.Unit, error) {
	defer rows.Close()

	units := []domain.Unit{}
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *unit)
	}
	return units, rows.Err()
}

// CreateUnit inserts a new unit.
func (r *PostgresRepository) CreateUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error) {
	query := `
		INSERT INTO departamentos (id, numero, propietario, metros_cuadrados, cuota_mensual, activo, usuarios_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + unitColumns
	members := unit.MemberIDs
	if members == nil {
		members = []string{}
	}
	created, err := scanUnit(r.db.QueryRow(ctx, query,
		unit.ID,
		unit.Number,
		unit.OwnerName,
		unit.Area,
		unit.MonthlyQuota,
		unit.Active,
		members,
		unit.CreatedAt,
		unit.UpdatedAt,
	))
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrDuplicateUnitNumber
		}
		return nil, err
	}
	return created, nil
}

// GetUnit retrieves a unit by id.
func (r *PostgresRepository) GetUnit(ctx context.Context, unitID string) (*domain.Unit, error) {
	unit, err := scanUnit(r.db.QueryRow(ctx, `SELECT `+unitColumns+` FROM departamentos WHERE id = $1`, unitID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return unit, nil
}

// GetUnitByNumber retrieves a unit by its number.
func (r *PostgresRepository) GetUnitByNumber(ctx context.Context, number string) (*domain.Unit, error) {
	unit, err := scanUnit(r.db.QueryRow(ctx, `SELECT `+unitColumns+` FROM departamentos WHERE numero = $1`, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return unit, nil
}

// ListUnits retrieves every unit ordered by number.
func (r *PostgresRepository) ListUnits(ctx context.Context) ([]domain.Unit, error) {
	rows, err := r.db.Query(ctx, `SELECT `+unitColumns+` FROM departamentos ORDER BY numero`)
	if err != nil {
		return nil, err
	}
	return collectUnits(rows)
}

// ListActiveUnits retrieves the active units ordered by number.
func (r *PostgresRepository) ListActiveUnits(ctx context.Context) ([]domain.Unit, error) {
	rows, err := r.db.Query(ctx, `SELECT `+unitColumns+` FROM departamentos WHERE activo = TRUE ORDER BY numero`)
	if err != nil {
		return nil, err
	}
	return collectUnits(rows)
}

// UpdateUnit writes the editable fields of a unit.
func (r *PostgresRepository) UpdateUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error) {
	query := `
		UPDATE departamentos
		SET numero = $2, propietario = $3, metros_cuadrados = $4, activo = $5, updated_at = $6
		WHERE id = $1
		RETURNING ` + unitColumns
	updated, err := scanUnit(r.db.QueryRow(ctx, query, unit.ID, unit.Number, unit.OwnerName, unit.Area, unit.Active, unit.UpdatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnitNotFound
		}
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrDuplicateUnitNumber
		}
		return nil, err
	}
	return updated, nil
}

// DeleteUnit removes a unit whose member list is empty.
func (r *PostgresRepository) DeleteUnit(ctx context.Context, unitID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM departamentos WHERE id = $1 AND cardinality(usuarios_ids) = 0`, unitID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetUnit(ctx, unitID); err != nil {
			return err
		}
		return ErrUnitHasMembers
	}
	return nil
}

// AddUnitMember appends personID to the member list while the unit has room
// and does not already list the person. The check and the append are one statement.
func (r *PostgresRepository) AddUnitMember(ctx context.Context, unitID, personID string, maxMembers int) (*domain.Unit, error) {
	query := `
		UPDATE departamentos
		SET usuarios_ids = array_append(usuarios_ids, $2), updated_at = NOW()
		WHERE id = $1
		  AND cardinality(usuarios_ids) < $3
		  AND NOT ($2 = ANY(usuarios_ids))
		RETURNING ` + unitColumns
	unit, err := scanUnit(r.db.QueryRow(ctx, query, unitID, personID, maxMembers))
	if err == nil {
		return unit, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	current, getErr := r.GetUnit(ctx, unitID)
	if getErr != nil {
		return nil, getErr
	}
	if current.HasMember(personID) {
		return nil, ErrAlreadyMember
	}
	return nil, ErrUnitFull
}

// RemoveUnitMember removes personID from the member list.
func (r *PostgresRepository) RemoveUnitMember(ctx context.Context, unitID, personID string) (*domain.Unit, error) {
	query := `
		UPDATE departamentos
		SET usuarios_ids = array_remove(usuarios_ids, $2), updated_at = NOW()
		WHERE id = $1 AND $2 = ANY(usuarios_ids)
		RETURNING ` + unitColumns
	unit, err := scanUnit(r.db.QueryRow(ctx, query, unitID, personID))
	if err == nil {
		return unit, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, getErr := r.GetUnit(ctx, unitID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrNotMember
}

// DetachMemberFromUnits removes personID from every member list that contains it.
func (r *PostgresRepository) DetachMemberFromUnits(ctx context.Context, personID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE departamentos
		SET usuarios_ids = array_remove(usuarios_ids, $1), updated_at = NOW()
		WHERE $1 = ANY(usuarios_ids)
	`, personID)
	return err
}

const personColumns = `id, email, nombre, rol, es_admin, departamento_id, fecha_registro, updated_at`

func scanPerson(row rowScanner) (*domain.Person, error) {
	var person domain.Person
	if err := row.Scan(
		&person.ID,
		&person.Email,
		&person.Name,
		&person.Role,
		&person.IsAdmin,
		&person.UnitID,
		&person.RegisteredAt,
		&person.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &person, nil
}

func collectPeople(rows pgx.Rows) ([]domain.Person, error) {
	defer rows.Close()

	people := []domain.Person{}
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, *person)
	}
	return people, rows.Err()
}

// CreatePerson inserts a new person.
func (r *PostgresRepository) CreatePerson(ctx context.Context, person domain.Person) (*domain.Person, error) {
	query := `
		INSERT INTO usuarios (id, email, nombre, rol, es_admin, departamento_id, fecha_registro, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + personColumns
	created, err := scanPerson(r.db.QueryRow(ctx, query,
		person.ID,
		person.Email,
		person.Name,
		person.Role,
		person.IsAdmin,
		person.UnitID,
		person.RegisteredAt,
		person.UpdatedAt,
	))
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			if constraint == "usuarios_email_key" {
				return nil, ErrDuplicateEmail
			}
			return nil, ErrPersonExists
		}
		return nil, err
	}
	return created, nil
}

// GetPerson retrieves a person by id.
func (r *PostgresRepository) GetPerson(ctx context.Context, personID string) (*domain.Person, error) {
	person, err := scanPerson(r.db.QueryRow(ctx, `SELECT `+personColumns+` FROM usuarios WHERE id = $1`, personID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return person, nil
}

// GetPersonByEmail retrieves a person by email address.
func (r *PostgresRepository) GetPersonByEmail(ctx context.Context, email string) (*domain.Person, error) {
	person, err := scanPerson(r.db.QueryRow(ctx, `SELECT `+personColumns+` FROM usuarios WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return person, nil
}

// ListPeople retrieves everyone ordered by name.
func (r *PostgresRepository) ListPeople(ctx context.Context) ([]domain.Person, error) {
	rows, err := r.db.Query(ctx, `SELECT `+personColumns+` FROM usuarios ORDER BY nombre`)
	if err != nil {
		return nil, err
	}
	return collectPeople(rows)
}

// ListPeopleByUnit retrieves the people associated with a unit.
func (r *PostgresRepository) ListPeopleByUnit(ctx context.Context, unitID string) ([]domain.Person, error) {
	rows, err := r.db.Query(ctx, `SELECT `+personColumns+` FROM usuarios WHERE departamento_id = $1 ORDER BY nombre`, unitID)
	if err != nil {
		return nil, err
	}
	return collectPeople(rows)
}

// UpdatePerson writes the editable profile fields of a person.
func (r *PostgresRepository) UpdatePerson(ctx context.Context, person domain.Person) (*domain.Person, error) {
	query := `
		UPDATE usuarios
		SET nombre = $2, rol = $3, es_admin = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + personColumns
	updated, err := scanPerson(r.db.QueryRow(ctx, query, person.ID, person.Name, person.Role, person.IsAdmin, person.UpdatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return updated, nil
}

// SetPersonUnit sets or clears the unit a person is associated with.
func (r *PostgresRepository) SetPersonUnit(ctx context.Context, personID string, unitID *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE usuarios SET departamento_id = $2, updated_at = NOW() WHERE id = $1`, personID, unitID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPersonNotFound
	}
	return nil
}

// DeletePerson removes a person.
func (r *PostgresRepository) DeletePerson(ctx context.Context, personID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM usuarios WHERE id = $1`, personID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPersonNotFound
	}
	return nil
}
