package app

import (
	"context"
	"strings"
	"time"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
	"github.com/google/uuid"
)

const defaultExpenseHistory = 12

// BillingResult summarizes the billing of one period.
type BillingResult struct {
	Expense         domain.MonthlyExpense `json:"gasto"`
	Shares          []Share               `json:"-"`
	PaymentsCreated int                   `json:"pagos_generados"`
}

// BillPeriod records the monthly expense of period, sets every active unit's
// quota to its area-proportional share, and opens one pending payment per
// active unit whose share is above zero. A period can only be billed once.
func (s Service) BillPeriod(ctx context.Context, requester domain.Person, period string, items []domain.ExpenseItem) (*BillingResult, error) {
	if err := s.requireAdmin(requester, "bill common expenses"); err != nil {
		return nil, err
	}
	if err := domain.ValidatePeriod(period); err != nil {
		return nil, err
	}
	if err := domain.ValidateExpenseItems(items); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetMonthlyExpense(ctx, period); err == nil && existing != nil {
		return nil, domain.Validationf("an expense for period %s already exists", period)
	} else if err != nil && !isNotFound(err) {
		return nil, err
	}

	units, err := s.repo.ListActiveUnits(ctx)
	if err != nil {
		return nil, err
	}

	total := domain.SumItems(items)
	allocation, err := Allocate(total, units)
	if err != nil {
		return nil, err
	}

	now := s.now()
	normalized := make([]domain.ExpenseItem, len(items))
	for i, item := range items {
		normalized[i] = domain.ExpenseItem{Concept: strings.TrimSpace(item.Concept), Amount: item.Amount}
	}
	expense := domain.MonthlyExpense{
		ID:          period,
		Period:      period,
		Items:       normalized,
		Total:       total,
		CostPerArea: allocation.DisplayCostPerArea(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	quotas := make([]domain.UnitQuota, 0, len(allocation.Shares))
	payments := make([]domain.Payment, 0, len(allocation.Shares))
	for _, share := range allocation.Shares {
		quotas = append(quotas, domain.UnitQuota{UnitID: share.UnitID, Amount: share.Amount})
		if share.Amount <= 0 {
			continue
		}
		payments = append(payments, domain.Payment{
			ID:        uuid.NewString(),
			UnitID:    share.UnitID,
			Amount:    share.Amount,
			Period:    period,
			Status:    domain.PaymentPending,
			Method:    domain.MethodGateway,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	created, err := s.repo.BillPeriod(ctx, expense, quotas, payments)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsGenerated(period, len(created))
	}
	s.logger.Info("period billed",
		"periodo", period,
		"total", total,
		"units", len(allocation.Shares),
		"payments_created", len(created),
	)
	s.publishEvent(ctx, "expense.billed", expenseBilledEvent{
		Period:          period,
		Total:           total,
		CostPerArea:     expense.CostPerArea,
		Units:           len(allocation.Shares),
		PaymentsCreated: len(created),
		Timestamp:       now,
	})

	return &BillingResult{Expense: expense, Shares: allocation.Shares, PaymentsCreated: len(created)}, nil
}

// GetMonthlyExpense returns the expense of one period.
func (s Service) GetMonthlyExpense(ctx context.Context, period string) (*domain.MonthlyExpense, error) {
	if err := domain.ValidatePeriod(period); err != nil {
		return nil, err
	}
	return s.repo.GetMonthlyExpense(ctx, period)
}

// ListMonthlyExpenses returns the latest limit expenses, newest first.
func (s Service) ListMonthlyExpenses(ctx context.Context, limit int) ([]domain.MonthlyExpense, error) {
	if limit <= 0 {
		limit = defaultExpenseHistory
	}
	if limit > 120 {
		return nil, domain.Validationf("cantidad cannot exceed 120")
	}
	return s.repo.ListMonthlyExpenses(ctx, limit)
}

// NewExtraordinaryExpense is the input for creating an extraordinary expense.
type NewExtraordinaryExpense struct {
	Concept       string     `json:"concepto"`
	TotalAmount   int64      `json:"monto_total"`
	AmountPerUnit int64      `json:"monto_por_depto"`
	Date          *time.Time `json:"fecha,omitempty"`
}

// CreateExtraordinaryExpense records a one-off expense with every active unit unpaid. Admin only.
func (s Service) CreateExtraordinaryExpense(ctx context.Context, requester domain.Person, input NewExtraordinaryExpense) (*domain.ExtraordinaryExpense, error) {
	if err := s.requireAdmin(requester, "create extraordinary expenses"); err != nil {
		return nil, err
	}

	now := s.now()
	expense := domain.ExtraordinaryExpense{
		ID:            uuid.NewString(),
		Concept:       strings.TrimSpace(input.Concept),
		TotalAmount:   input.TotalAmount,
		AmountPerUnit: input.AmountPerUnit,
		Date:          now,
		Payments:      map[string]domain.ExtraordinaryPayment{},
		CreatedAt:     now,
	}
	if input.Date != nil {
		expense.Date = input.Date.UTC()
	}
	if err := expense.Validate(); err != nil {
		return nil, err
	}

	units, err := s.repo.ListActiveUnits(ctx)
	if err != nil {
		return nil, err
	}
	for _, unit := range units {
		expense.Payments[unit.ID] = domain.ExtraordinaryPayment{Paid: false}
	}

	return s.repo.CreateExtraordinaryExpense(ctx, expense)
}

// GetExtraordinaryExpense returns one extraordinary expense.
func (s Service) GetExtraordinaryExpense(ctx context.Context, expenseID string) (*domain.ExtraordinaryExpense, error) {
	return s.repo.GetExtraordinaryExpense(ctx, expenseID)
}

// ListExtraordinaryExpenses returns every extraordinary expense, newest first.
func (s Service) ListExtraordinaryExpenses(ctx context.Context) ([]domain.ExtraordinaryExpense, error) {
	return s.repo.ListExtraordinaryExpenses(ctx)
}

// MarkExtraordinaryPaid flags unitID as paid for an extraordinary expense.
// Marking again overwrites the payment timestamp.
func (s Service) MarkExtraordinaryPaid(ctx context.Context, requester domain.Person, expenseID, unitID string) (*domain.ExtraordinaryExpense, error) {
	if err := s.requireAdmin(requester, "mark extraordinary payments"); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetExtraordinaryExpense(ctx, expenseID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}

	now := s.now()
	expense, err := s.repo.MarkExtraordinaryPaid(ctx, expenseID, unitID, now)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, "extraordinary.payment_marked", extraordinaryPaidEvent{
		ExpenseID: expenseID,
		UnitID:    unitID,
		Amount:    expense.AmountPerUnit,
		Timestamp: now,
	})
	return expense, nil
}
