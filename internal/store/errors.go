package store

import (
	"errors"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUnitNotFound                 = domain.NewError(domain.ErrNotFound, "unit not found")
	ErrPersonNotFound               = domain.NewError(domain.ErrNotFound, "person not found")
	ErrPaymentNotFound              = domain.NewError(domain.ErrNotFound, "payment not found")
	ErrMonthlyExpenseNotFound       = domain.NewError(domain.ErrNotFound, "monthly expense not found")
	ErrExtraordinaryExpenseNotFound = domain.NewError(domain.ErrNotFound, "extraordinary expense not found")

	ErrDuplicateUnitNumber  = domain.NewError(domain.ErrValidation, "a unit with this number already exists")
	ErrDuplicateEmail       = domain.NewError(domain.ErrValidation, "a person with this email already exists")
	ErrPersonExists         = domain.NewError(domain.ErrValidation, "this identity is already registered")
	ErrDuplicatePeriod      = domain.NewError(domain.ErrValidation, "an expense for this period already exists")
	ErrDuplicatePayment     = domain.NewError(domain.ErrValidation, "a payment for this unit and period already exists")
	ErrUnitFull             = domain.NewError(domain.ErrValidation, "unit already has the maximum number of people")
	ErrAlreadyMember        = domain.NewError(domain.ErrValidation, "person already belongs to this unit")
	ErrNotMember            = domain.NewError(domain.ErrValidation, "person does not belong to this unit")
	ErrUnitHasMembers       = domain.NewError(domain.ErrValidation, "cannot delete a unit with associated people")
	ErrPaymentStatusChanged = domain.NewError(domain.ErrValidation, "payment status changed concurrently")
	ErrInvalidPaymentAmount = domain.NewError(domain.ErrValidation, "payment amount must be greater than zero")
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

// uniqueConstraint returns the name of the violated unique constraint, if any.
func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// checkConstraint reports whether err is a CHECK constraint violation.
func checkConstraint(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == checkViolation
}
