package app

import "github.com/Fblink88/ComunidadElMaiten/internal/domain"

// CanManageUnit reports whether p may change the membership of unitID.
func CanManageUnit(p domain.Person, unitID string) bool {
	if p.IsAdmin {
		return true
	}
	return p.Role == domain.RoleOwner && p.BelongsTo(unitID)
}

// CanEditPerson reports whether requester may edit targetID's profile.
// Privileged fields are checked separately by the caller.
func CanEditPerson(requester domain.Person, targetID string) bool {
	return requester.IsAdmin || requester.ID == targetID
}

// CanViewUnitPayments reports whether p may read the payments of unitID.
func CanViewUnitPayments(p domain.Person, unitID string) bool {
	return p.IsAdmin || p.BelongsTo(unitID)
}

// CanViewPerson reports whether requester may read targetID's profile.
func CanViewPerson(requester domain.Person, targetID string) bool {
	return requester.IsAdmin || requester.ID == targetID
}
