package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
	"github.com/Fblink88/ComunidadElMaiten/internal/store"
)

// failingBillingRepository fails BillPeriod while fail is set.
type failingBillingRepository struct {
	*store.MemoryRepository
	fail bool
}

func (r *failingBillingRepository) BillPeriod(ctx context.Context, expense domain.MonthlyExpense, quotas []domain.UnitQuota, payments []domain.Payment) ([]domain.Payment, error) {
	if r.fail {
		return nil, errors.New("connection reset by peer")
	}
	return r.MemoryRepository.BillPeriod(ctx, expense, quotas, payments)
}

func TestBillPeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.unit(t, "u1", "101", 50, true)
	f.unit(t, "u2", "102", 70, true)
	f.unit(t, "u3", "103", 80, true)
	f.unit(t, "u4", "104", 90, false)
	admin := f.admin(t)

	items := []domain.ExpenseItem{{Concept: "Agua", Amount: 12000}, {Concept: "Aseo", Amount: 8000}}
	result, err := f.svc.BillPeriod(ctx, admin, "2025-03", items)
	if err != nil {
		t.Fatalf("bill period: %v", err)
	}

	if result.Expense.Total != 20000 || result.Expense.CostPerArea != 100 {
		t.Fatalf("unexpected expense: %+v", result.Expense)
	}
	if result.PaymentsCreated != 3 {
		t.Fatalf("expected 3 payments, got %d", result.PaymentsCreated)
	}

	payments, _ := f.repo.ListPaymentsByPeriod(ctx, "2025-03")
	want := map[string]int64{"u1": 5000, "u2": 7000, "u3": 8000}
	if len(payments) != len(want) {
		t.Fatalf("expected %d payments, got %d", len(want), len(payments))
	}
	for _, payment := range payments {
		if payment.Amount != want[payment.UnitID] {
			t.Fatalf("unit %s: expected %d, got %d", payment.UnitID, want[payment.UnitID], payment.Amount)
		}
		if payment.Status != domain.PaymentPending || payment.Method != domain.MethodGateway {
			t.Fatalf("unexpected generated payment: %+v", payment)
		}
	}

	for unitID, quota := range want {
		unit, _ := f.repo.GetUnit(ctx, unitID)
		if unit.MonthlyQuota != quota {
			t.Fatalf("unit %s: expected quota %d, got %d", unitID, quota, unit.MonthlyQuota)
		}
	}
	inactive, _ := f.repo.GetUnit(ctx, "u4")
	if inactive.MonthlyQuota != 0 {
		t.Fatalf("inactive unit must not be billed, got quota %d", inactive.MonthlyQuota)
	}

	if f.metrics.generated["2025-03"] != 3 {
		t.Fatalf("expected metrics for 3 generated payments, got %d", f.metrics.generated["2025-03"])
	}
	if keys := f.publisher.routingKeys(); len(keys) != 1 || keys[0] != "expense.billed" {
		t.Fatalf("expected one expense.billed event, got %v", keys)
	}
}

func TestBillPeriodTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.unit(t, "u1", "101", 50, true)
	admin := f.admin(t)
	items := []domain.ExpenseItem{{Concept: "Agua", Amount: 1000}}

	if _, err := f.svc.BillPeriod(ctx, admin, "2025-04", items); err != nil {
		t.Fatalf("first billing: %v", err)
	}
	_, err := f.svc.BillPeriod(ctx, admin, "2025-04", []domain.ExpenseItem{{Concept: "Luz", Amount: 9000}})
	assertKind(t, err, domain.ErrValidation)

	expense, _ := f.repo.GetMonthlyExpense(ctx, "2025-04")
	if expense.Total != 1000 {
		t.Fatalf("original expense must be untouched, got total %d", expense.Total)
	}
	payments, _ := f.repo.ListPaymentsByPeriod(ctx, "2025-04")
	if len(payments) != 1 {
		t.Fatalf("expected no extra payments, got %d", len(payments))
	}
}

func TestBillPeriodSkipsZeroShares(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.unit(t, "u1", "101", 50, true)
	f.unit(t, "u2", "102", 70, true)
	f.unit(t, "u3", "103", 80, true)
	admin := f.admin(t)

	if _, err := f.svc.BillPeriod(ctx, admin, "2025-02", []domain.ExpenseItem{{Concept: "Agua", Amount: 20000}}); err != nil {
		t.Fatalf("bill previous period: %v", err)
	}

	result, err := f.svc.BillPeriod(ctx, admin, "2025-03", []domain.ExpenseItem{{Concept: "Redondeo", Amount: 1}})
	if err != nil {
		t.Fatalf("bill: %v", err)
	}
	if result.PaymentsCreated != 0 {
		t.Fatalf("expected no payments for zero shares, got %d", result.PaymentsCreated)
	}
	payments, _ := f.repo.ListPaymentsByPeriod(ctx, "2025-03")
	if len(payments) != 0 {
		t.Fatalf("expected no stored payments, got %+v", payments)
	}
	if expense, err := f.repo.GetMonthlyExpense(ctx, "2025-03"); err != nil || expense.Total != 1 {
		t.Fatalf("expected the expense to be recorded, got %+v (%v)", expense, err)
	}
	for _, unitID := range []string{"u1", "u2", "u3"} {
		unit, _ := f.repo.GetUnit(ctx, unitID)
		if unit.MonthlyQuota != 0 {
			t.Fatalf("unit %s: expected quota 0, got %d", unitID, unit.MonthlyQuota)
		}
	}

	// 2 over 50/70/80 rounds to 0/1/1.
	result, err = f.svc.BillPeriod(ctx, admin, "2025-04", []domain.ExpenseItem{{Concept: "Redondeo", Amount: 2}})
	if err != nil {
		t.Fatalf("bill mixed: %v", err)
	}
	if result.PaymentsCreated != 2 {
		t.Fatalf("expected 2 payments, got %d", result.PaymentsCreated)
	}
	if _, err := f.repo.GetPaymentByUnitAndPeriod(ctx, "u1", "2025-04"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no payment for the zero share, got %v", err)
	}
	payments, _ = f.repo.ListPaymentsByPeriod(ctx, "2025-04")
	for _, payment := range payments {
		if payment.Amount != 1 {
			t.Fatalf("unexpected payment amount: %+v", payment)
		}
	}
}

func TestBillPeriodFailureLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.unit(t, "u1", "101", 50, true)
	f.unit(t, "u2", "102", 70, true)
	admin := f.admin(t)

	repo := &failingBillingRepository{MemoryRepository: f.repo, fail: true}
	f.svc.repo = repo
	items := []domain.ExpenseItem{{Concept: "Agua", Amount: 12000}}

	if _, err := f.svc.BillPeriod(ctx, admin, "2025-03", items); err == nil {
		t.Fatal("expected billing to fail")
	}
	if _, err := f.repo.GetMonthlyExpense(ctx, "2025-03"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no expense after failure, got %v", err)
	}
	if payments, _ := f.repo.ListPaymentsByPeriod(ctx, "2025-03"); len(payments) != 0 {
		t.Fatalf("expected no payments after failure, got %d", len(payments))
	}
	for _, unitID := range []string{"u1", "u2"} {
		if unit, _ := f.repo.GetUnit(ctx, unitID); unit.MonthlyQuota != 0 {
			t.Fatalf("unit %s: quota changed to %d", unitID, unit.MonthlyQuota)
		}
	}
	if keys := f.publisher.routingKeys(); len(keys) != 0 {
		t.Fatalf("expected no events after failure, got %v", keys)
	}
	if f.metrics.generated["2025-03"] != 0 {
		t.Fatalf("expected no generated payments recorded, got %d", f.metrics.generated["2025-03"])
	}

	repo.fail = false
	result, err := f.svc.BillPeriod(ctx, admin, "2025-03", items)
	if err != nil {
		t.Fatalf("retry billing: %v", err)
	}
	if result.PaymentsCreated != 2 {
		t.Fatalf("expected 2 payments on retry, got %d", result.PaymentsCreated)
	}
}

func TestBillPeriodRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.admin(t)
	owner := f.person(t, "owner", domain.RoleOwner, false, "")
	items := []domain.ExpenseItem{{Concept: "Agua", Amount: 1000}}

	_, err := f.svc.BillPeriod(ctx, owner, "2025-05", items)
	assertKind(t, err, domain.ErrPermission)

	_, err = f.svc.BillPeriod(ctx, admin, "2025-05", items)
	assertKind(t, err, domain.ErrValidation)

	f.unit(t, "u1", "101", 50, true)
	_, err = f.svc.BillPeriod(ctx, admin, "2025-13", items)
	assertKind(t, err, domain.ErrValidation)
	_, err = f.svc.BillPeriod(ctx, admin, "2025-05", nil)
	assertKind(t, err, domain.ErrValidation)
}

func TestBillPeriodKeepsExistingPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.unit(t, "u1", "101", 50, true)
	f.unit(t, "u2", "102", 50, true)
	admin := f.admin(t)

	if _, err := f.svc.CreatePayment(ctx, admin, NewPayment{UnitID: "u1", Amount: 777, Period: "2025-06", Method: "transferencia_manual"}); err != nil {
		t.Fatalf("manual payment: %v", err)
	}

	result, err := f.svc.BillPeriod(ctx, admin, "2025-06", []domain.ExpenseItem{{Concept: "Agua", Amount: 1000}})
	if err != nil {
		t.Fatalf("bill: %v", err)
	}
	if result.PaymentsCreated != 1 {
		t.Fatalf("expected one new payment, got %d", result.PaymentsCreated)
	}
	existing, _ := f.repo.GetPaymentByUnitAndPeriod(ctx, "u1", "2025-06")
	if existing.Amount != 777 {
		t.Fatalf("existing payment must be kept, got amount %d", existing.Amount)
	}
}

func TestListMonthlyExpenses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.unit(t, "u1", "101", 50, true)
	admin := f.admin(t)
	for _, period := range []string{"2025-01", "2025-03", "2025-02"} {
		if _, err := f.svc.BillPeriod(ctx, admin, period, []domain.ExpenseItem{{Concept: "Agua", Amount: 1000}}); err != nil {
			t.Fatalf("bill %s: %v", period, err)
		}
	}

	expenses, err := f.svc.ListMonthlyExpenses(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(expenses) != 2 || expenses[0].Period != "2025-03" || expenses[1].Period != "2025-02" {
		t.Fatalf("expected newest two periods, got %+v", expenses)
	}

	_, err = f.svc.GetMonthlyExpense(ctx, "2024-12")
	assertKind(t, err, domain.ErrNotFound)
}

func TestExtraordinaryExpenses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.unit(t, "u1", "101", 50, true)
	f.unit(t, "u2", "102", 70, true)
	f.unit(t, "u3", "103", 70, false)
	admin := f.admin(t)
	tenant := f.person(t, "tenant", domain.RoleTenant, false, "u1")

	input := NewExtraordinaryExpense{Concept: "Pintura fachada", TotalAmount: 200000, AmountPerUnit: 100000}
	_, err := f.svc.CreateExtraordinaryExpense(ctx, tenant, input)
	assertKind(t, err, domain.ErrPermission)

	expense, err := f.svc.CreateExtraordinaryExpense(ctx, admin, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(expense.Payments) != 2 || expense.IsPaidBy("u1") || expense.IsPaidBy("u2") {
		t.Fatalf("expected both active units unpaid, got %+v", expense.Payments)
	}

	_, err = f.svc.MarkExtraordinaryPaid(ctx, tenant, expense.ID, "u1")
	assertKind(t, err, domain.ErrPermission)

	marked, err := f.svc.MarkExtraordinaryPaid(ctx, admin, expense.ID, "u1")
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	entry := marked.Payments["u1"]
	if !entry.Paid || entry.PaidAt == nil || !entry.PaidAt.Equal(f.now) {
		t.Fatalf("expected u1 paid at %v, got %+v", f.now, entry)
	}
	if marked.IsPaidBy("u2") {
		t.Fatal("u2 must remain unpaid")
	}

	f.now = f.now.Add(time.Hour)
	again, err := f.svc.MarkExtraordinaryPaid(ctx, admin, expense.ID, "u1")
	if err != nil {
		t.Fatalf("re-mark: %v", err)
	}
	if !again.Payments["u1"].PaidAt.Equal(f.now) {
		t.Fatalf("re-marking must overwrite the timestamp, got %v", again.Payments["u1"].PaidAt)
	}

	_, err = f.svc.MarkExtraordinaryPaid(ctx, admin, "missing", "u1")
	assertKind(t, err, domain.ErrNotFound)
	_, err = f.svc.MarkExtraordinaryPaid(ctx, admin, expense.ID, "missing")
	assertKind(t, err, domain.ErrNotFound)

	_, err = f.svc.CreateExtraordinaryExpense(ctx, admin, NewExtraordinaryExpense{Concept: "X", TotalAmount: 1, AmountPerUnit: 1})
	assertKind(t, err, domain.ErrValidation)
}
