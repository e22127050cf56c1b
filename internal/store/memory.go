/**
 * @description
 * In-memory repository used by tests and by local runs without DATABASE_URL.
 * It honours the same uniqueness and conditional-update rules as the
 * PostgreSQL repository.
 */
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

// MemoryRepository keeps every collection in maps guarded by one mutex.
type MemoryRepository struct {
	mu            sync.RWMutex
	units         map[string]domain.Unit
	people        map[string]domain.Person
	monthly       map[string]domain.MonthlyExpense
	extraordinary map[string]domain.ExtraordinaryExpense
	payments      map[string]domain.Payment
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		units:         make(map[string]domain.Unit),
		people:        make(map[string]domain.Person),
		monthly:       make(map[string]domain.MonthlyExpense),
		extraordinary: make(map[string]domain.ExtraordinaryExpense),
		payments:      make(map[string]domain.Payment),
	}
}

// Units

func (r *MemoryRepository) CreateUnit(_ context.Context, unit domain.Unit) (*domain.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.units {
		if existing.Number == unit.Number {
			return nil, ErrDuplicateUnitNumber
		}
	}
	unit.MemberIDs = cloneStrings(unit.MemberIDs)
	r.units[unit.ID] = unit
	return copyUnit(unit), nil
}

func (r *MemoryRepository) GetUnit(_ context.Context, unitID string) (*domain.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	unit, ok := r.units[unitID]
	if !ok {
		return nil, ErrUnitNotFound
	}
	return copyUnit(unit), nil
}

func (r *MemoryRepository) GetUnitByNumber(_ context.Context, number string) (*domain.Unit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, unit := range r.units {
		if unit.Number == number {
			return copyUnit(unit), nil
		}
	}
	return nil, ErrUnitNotFound
}

func (r *MemoryRepository) ListUnits(_ context.Context) ([]domain.Unit, error) {
	return r.listUnits(func(domain.Unit) bool { return true }), nil
}

func (r *MemoryRepository) ListActiveUnits(_ context.Context) ([]domain.Unit, error) {
	return r.listUnits(func(u domain.Unit) bool { return u.Active }), nil
}

func (r *MemoryRepository) listUnits(keep func(domain.Unit) bool) []domain.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	units := make([]domain.Unit, 0, len(r.units))
	for _, unit := range r.units {
		if keep(unit) {
			units = append(units, *copyUnit(unit))
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Number < units[j].Number })
	return units
}

func (r *MemoryRepository) UpdateUnit(_ context.Context, unit domain.Unit) (*domain.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.units[unit.ID]
	if !ok {
		return nil, ErrUnitNotFound
	}
	for id, existing := range r.units {
		if id != unit.ID && existing.Number == unit.Number {
			return nil, ErrDuplicateUnitNumber
		}
	}

	current.Number = unit.Number
	current.OwnerName = unit.OwnerName
	current.Area = unit.Area
	current.Active = unit.Active
	current.UpdatedAt = unit.UpdatedAt
	r.units[unit.ID] = current
	return copyUnit(current), nil
}

func (r *MemoryRepository) DeleteUnit(_ context.Context, unitID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, ok := r.units[unitID]
	if !ok {
		return ErrUnitNotFound
	}
	if len(unit.MemberIDs) > 0 {
		return ErrUnitHasMembers
	}
	delete(r.units, unitID)
	return nil
}

func (r *MemoryRepository) AddUnitMember(_ context.Context, unitID, personID string, maxMembers int) (*domain.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, ok := r.units[unitID]
	if !ok {
		return nil, ErrUnitNotFound
	}
	if unit.HasMember(personID) {
		return nil, ErrAlreadyMember
	}
	if len(unit.MemberIDs) >= maxMembers {
		return nil, ErrUnitFull
	}

	unit.MemberIDs = append(cloneStrings(unit.MemberIDs), personID)
	unit.UpdatedAt = time.Now().UTC()
	r.units[unitID] = unit
	return copyUnit(unit), nil
}

func (r *MemoryRepository) RemoveUnitMember(_ context.Context, unitID, personID string) (*domain.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	unit, ok := r.units[unitID]
	if !ok {
		return nil, ErrUnitNotFound
	}
	if !unit.HasMember(personID) {
		return nil, ErrNotMember
	}

	unit.MemberIDs = withoutString(unit.MemberIDs, personID)
	unit.UpdatedAt = time.Now().UTC()
	r.units[unitID] = unit
	return copyUnit(unit), nil
}

func (r *MemoryRepository) DetachMemberFromUnits(_ context.Context, personID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, unit := range r.units {
		if unit.HasMember(personID) {
			unit.MemberIDs = withoutString(unit.MemberIDs, personID)
			unit.UpdatedAt = time.Now().UTC()
			r.units[id] = unit
		}
	}
	return nil
}

// People

func (r *MemoryRepository) CreatePerson(_ context.Context, person domain.Person) (*domain.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.people[person.ID]; ok {
		return nil, ErrPersonExists
	}
	for _, existing := range r.people {
		if existing.Email == person.Email {
			return nil, ErrDuplicateEmail
		}
	}
	r.people[person.ID] = person
	return copyPerson(person), nil
}

func (r *MemoryRepository) GetPerson(_ context.Context, personID string) (*domain.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	person, ok := r.people[personID]
	if !ok {
		return nil, ErrPersonNotFound
	}
	return copyPerson(person), nil
}

func (r *MemoryRepository) GetPersonByEmail(_ context.Context, email string) (*domain.Person, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, person := range r.people {
		if person.Email == email {
			return copyPerson(person), nil
		}
	}
	return nil, ErrPersonNotFound
}

func (r *MemoryRepository) ListPeople(_ context.Context) ([]domain.Person, error) {
	return r.listPeople(func(domain.Person) bool { return true }), nil
}

func (r *MemoryRepository) ListPeopleByUnit(_ context.Context, unitID string) ([]domain.Person, error) {
	return r.listPeople(func(p domain.Person) bool { return p.BelongsTo(unitID) }), nil
}

func (r *MemoryRepository) listPeople(keep func(domain.Person) bool) []domain.Person {
	r.mu.RLock()
	defer r.mu.RUnlock()

	people := make([]domain.Person, 0, len(r.people))
	for _, person := range r.people {
		if keep(person) {
			people = append(people, *copyPerson(person))
		}
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people
}

func (r *MemoryRepository) UpdatePerson(_ context.Context, person domain.Person) (*domain.Person, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.people[person.ID]
	if !ok {
		return nil, ErrPersonNotFound
	}
	current.Name = person.Name
	current.Role = person.Role
	current.IsAdmin = person.IsAdmin
	current.UpdatedAt = person.UpdatedAt
	r.people[person.ID] = current
	return copyPerson(current), nil
}

func (r *MemoryRepository) SetPersonUnit(_ context.Context, personID string, unitID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	person, ok := r.people[personID]
	if !ok {
		return ErrPersonNotFound
	}
	person.UnitID = cloneStringPtr(unitID)
	person.UpdatedAt = time.Now().UTC()
	r.people[personID] = person
	return nil
}

func (r *MemoryRepository) DeletePerson(_ context.Context, personID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.people[personID]; !ok {
		return ErrPersonNotFound
	}
	delete(r.people, personID)
	return nil
}

// Expenses

func (r *MemoryRepository) GetMonthlyExpense(_ context.Context, period string) (*domain.MonthlyExpense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expense, ok := r.monthly[period]
	if !ok {
		return nil, ErrMonthlyExpenseNotFound
	}
	return copyMonthly(expense), nil
}

func (r *MemoryRepository) ListMonthlyExpenses(_ context.Context, limit int) ([]domain.MonthlyExpense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expenses := make([]domain.MonthlyExpense, 0, len(r.monthly))
	for _, expense := range r.monthly {
		expenses = append(expenses, *copyMonthly(expense))
	}
	sort.Slice(expenses, func(i, j int) bool { return expenses[i].Period > expenses[j].Period })
	if limit > 0 && len(expenses) > limit {
		expenses = expenses[:limit]
	}
	return expenses, nil
}

// BillPeriod stores the expense, sets every unit's quota, and inserts the
// payments that do not exist yet, all under one lock. Nothing is written
// unless every quota and payment is valid.
func (r *MemoryRepository) BillPeriod(_ context.Context, expense domain.MonthlyExpense, quotas []domain.UnitQuota, payments []domain.Payment) ([]domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.monthly[expense.Period]; ok {
		return nil, ErrDuplicatePeriod
	}
	for _, quota := range quotas {
		if _, ok := r.units[quota.UnitID]; !ok {
			return nil, ErrUnitNotFound
		}
	}
	for _, payment := range payments {
		if _, ok := r.units[payment.UnitID]; !ok {
			return nil, ErrUnitNotFound
		}
		if payment.Amount <= 0 {
			return nil, ErrInvalidPaymentAmount
		}
	}

	r.monthly[expense.Period] = *copyMonthly(expense)

	for _, quota := range quotas {
		unit := r.units[quota.UnitID]
		unit.MonthlyQuota = quota.Amount
		unit.UpdatedAt = expense.CreatedAt
		r.units[unit.ID] = unit
	}

	created := make([]domain.Payment, 0, len(payments))
	for _, payment := range payments {
		if r.findPayment(payment.UnitID, payment.Period) != nil {
			continue
		}
		r.payments[payment.ID] = payment
		created = append(created, payment)
	}
	return created, nil
}

func (r *MemoryRepository) CreateExtraordinaryExpense(_ context.Context, expense domain.ExtraordinaryExpense) (*domain.ExtraordinaryExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyExtraordinary(expense)
	r.extraordinary[expense.ID] = *stored
	return copyExtraordinary(*stored), nil
}

func (r *MemoryRepository) GetExtraordinaryExpense(_ context.Context, expenseID string) (*domain.ExtraordinaryExpense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expense, ok := r.extraordinary[expenseID]
	if !ok {
		return nil, ErrExtraordinaryExpenseNotFound
	}
	return copyExtraordinary(expense), nil
}

func (r *MemoryRepository) ListExtraordinaryExpenses(_ context.Context) ([]domain.ExtraordinaryExpense, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expenses := make([]domain.ExtraordinaryExpense, 0, len(r.extraordinary))
	for _, expense := range r.extraordinary {
		expenses = append(expenses, *copyExtraordinary(expense))
	}
	sort.Slice(expenses, func(i, j int) bool { return expenses[i].Date.After(expenses[j].Date) })
	return expenses, nil
}

func (r *MemoryRepository) MarkExtraordinaryPaid(_ context.Context, expenseID, unitID string, paidAt time.Time) (*domain.ExtraordinaryExpense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expense, ok := r.extraordinary[expenseID]
	if !ok {
		return nil, ErrExtraordinaryExpenseNotFound
	}
	updated := copyExtraordinary(expense)
	at := paidAt
	updated.Payments[unitID] = domain.ExtraordinaryPayment{Paid: true, PaidAt: &at}
	r.extraordinary[expenseID] = *updated
	return copyExtraordinary(*updated), nil
}

// Payments

func (r *MemoryRepository) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if payment.Amount <= 0 {
		return nil, ErrInvalidPaymentAmount
	}
	if r.findPayment(payment.UnitID, payment.Period) != nil {
		return nil, ErrDuplicatePayment
	}
	r.payments[payment.ID] = payment
	copied := payment
	return &copied, nil
}

func (r *MemoryRepository) GetPayment(_ context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &payment, nil
}

func (r *MemoryRepository) GetPaymentByUnitAndPeriod(_ context.Context, unitID, period string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payment := r.findPayment(unitID, period)
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (r *MemoryRepository) ListPaymentsByUnit(_ context.Context, unitID string) ([]domain.Payment, error) {
	return r.listPayments(func(p domain.Payment) bool { return p.UnitID == unitID }), nil
}

func (r *MemoryRepository) ListPaymentsByPeriod(_ context.Context, period string) ([]domain.Payment, error) {
	return r.listPayments(func(p domain.Payment) bool { return p.Period == period }), nil
}

func (r *MemoryRepository) ListPaymentsByStatus(_ context.Context, status domain.PaymentStatus) ([]domain.Payment, error) {
	return r.listPayments(func(p domain.Payment) bool { return p.Status == status }), nil
}

func (r *MemoryRepository) listPayments(keep func(domain.Payment) bool) []domain.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payments := make([]domain.Payment, 0)
	for _, payment := range r.payments {
		if keep(payment) {
			payments = append(payments, payment)
		}
	}
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].Period != payments[j].Period {
			return payments[i].Period > payments[j].Period
		}
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	return payments
}

// UpdatePaymentStatus applies update only while the payment is still in status from.
func (r *MemoryRepository) UpdatePaymentStatus(_ context.Context, paymentID string, from domain.PaymentStatus, update domain.PaymentStatusUpdate) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if payment.Status != from {
		return nil, ErrPaymentStatusChanged
	}
	update.Apply(&payment)
	payment.UpdatedAt = time.Now().UTC()
	r.payments[paymentID] = payment
	return &payment, nil
}

func (r *MemoryRepository) SetPaymentCheckout(_ context.Context, paymentID, gatewayTransactionID, paymentURL string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	payment, ok := r.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	txID, url := gatewayTransactionID, paymentURL
	payment.GatewayTransactionID = &txID
	payment.GatewayPaymentURL = &url
	payment.UpdatedAt = time.Now().UTC()
	r.payments[paymentID] = payment
	return &payment, nil
}

func (r *MemoryRepository) findPayment(unitID, period string) *domain.Payment {
	for _, payment := range r.payments {
		if payment.UnitID == unitID && payment.Period == period {
			found := payment
			return &found
		}
	}
	return nil
}

func copyUnit(unit domain.Unit) *domain.Unit {
	unit.MemberIDs = cloneStrings(unit.MemberIDs)
	return &unit
}

func copyPerson(person domain.Person) *domain.Person {
	person.UnitID = cloneStringPtr(person.UnitID)
	return &person
}

func copyMonthly(expense domain.MonthlyExpense) *domain.MonthlyExpense {
	expense.Items = append([]domain.ExpenseItem(nil), expense.Items...)
	return &expense
}

func copyExtraordinary(expense domain.ExtraordinaryExpense) *domain.ExtraordinaryExpense {
	payments := make(map[string]domain.ExtraordinaryPayment, len(expense.Payments))
	for unitID, entry := range expense.Payments {
		payments[unitID] = entry
	}
	expense.Payments = payments
	return &expense
}

func cloneStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func withoutString(values []string, drop string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != drop {
			out = append(out, v)
		}
	}
	return out
}
