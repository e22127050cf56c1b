package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

func seedUnit(t *testing.T, repo *MemoryRepository, id, number string, area float64) {
	t.Helper()
	now := time.Now().UTC()
	if _, err := repo.CreateUnit(context.Background(), domain.Unit{
		ID: id, Number: number, OwnerName: "Owner " + number, Area: area, Active: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed unit %s: %v", id, err)
	}
}

func TestMemoryAddUnitMemberCapacity(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedUnit(t, repo, "u1", "101", 60)

	for i := 0; i < domain.MaxUnitMembers; i++ {
		if _, err := repo.AddUnitMember(ctx, "u1", fmt.Sprintf("p%d", i), domain.MaxUnitMembers); err != nil {
			t.Fatalf("add member %d: %v", i, err)
		}
	}

	if _, err := repo.AddUnitMember(ctx, "u1", "p-extra", domain.MaxUnitMembers); !errors.Is(err, ErrUnitFull) {
		t.Fatalf("expected ErrUnitFull, got %v", err)
	}
	if _, err := repo.AddUnitMember(ctx, "u1", "p0", domain.MaxUnitMembers+1); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
	if _, err := repo.AddUnitMember(ctx, "missing", "p0", domain.MaxUnitMembers); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryUnitNumbersAreUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedUnit(t, repo, "u1", "101", 60)
	seedUnit(t, repo, "u2", "102", 60)

	if _, err := repo.CreateUnit(ctx, domain.Unit{ID: "u3", Number: "101", OwnerName: "Dup", Area: 10}); !errors.Is(err, ErrDuplicateUnitNumber) {
		t.Fatalf("expected duplicate number on create, got %v", err)
	}

	unit, _ := repo.GetUnit(ctx, "u2")
	unit.Number = "101"
	if _, err := repo.UpdateUnit(ctx, *unit); !errors.Is(err, ErrDuplicateUnitNumber) {
		t.Fatalf("expected duplicate number on update, got %v", err)
	}
}

func TestMemoryDeleteUnitWithMembers(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedUnit(t, repo, "u1", "101", 60)
	if _, err := repo.AddUnitMember(ctx, "u1", "p1", domain.MaxUnitMembers); err != nil {
		t.Fatalf("add member: %v", err)
	}

	if err := repo.DeleteUnit(ctx, "u1"); !errors.Is(err, ErrUnitHasMembers) {
		t.Fatalf("expected ErrUnitHasMembers, got %v", err)
	}
	if err := repo.DetachMemberFromUnits(ctx, "p1"); err != nil {
		t.Fatalf("detach: %v", err)
	}
	if err := repo.DeleteUnit(ctx, "u1"); err != nil {
		t.Fatalf("delete after detach: %v", err)
	}
}

func TestMemoryBillPeriod(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedUnit(t, repo, "u1", "101", 50)
	seedUnit(t, repo, "u2", "102", 70)

	now := time.Now().UTC()
	if _, err := repo.CreatePayment(ctx, domain.Payment{
		ID: "manual", UnitID: "u1", Amount: 100, Period: "2025-03", Status: domain.PaymentPending, Method: domain.MethodManualTransfer, CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	expense := domain.MonthlyExpense{ID: "2025-03", Period: "2025-03", Items: []domain.ExpenseItem{{Concept: "Agua", Amount: 12000}}, Total: 12000, CreatedAt: now}
	payments := []domain.Payment{
		{ID: "b1", UnitID: "u1", Amount: 5000, Period: "2025-03", Status: domain.PaymentPending, CreatedAt: now},
		{ID: "b2", UnitID: "u2", Amount: 7000, Period: "2025-03", Status: domain.PaymentPending, CreatedAt: now},
	}
	quotas := []domain.UnitQuota{{UnitID: "u1", Amount: 5000}, {UnitID: "u2", Amount: 7000}}

	created, err := repo.BillPeriod(ctx, expense, quotas, payments)
	if err != nil {
		t.Fatalf("bill period: %v", err)
	}
	if len(created) != 1 || created[0].ID != "b2" {
		t.Fatalf("expected only b2 to be created, got %+v", created)
	}

	unit, _ := repo.GetUnit(ctx, "u1")
	if unit.MonthlyQuota != 5000 {
		t.Fatalf("expected quota 5000 even when payment existed, got %d", unit.MonthlyQuota)
	}

	if _, err := repo.BillPeriod(ctx, expense, quotas, payments); !errors.Is(err, ErrDuplicatePeriod) {
		t.Fatalf("expected ErrDuplicatePeriod, got %v", err)
	}
	all, _ := repo.ListPaymentsByPeriod(ctx, "2025-03")
	if len(all) != 2 {
		t.Fatalf("expected 2 payments after duplicate billing, got %d", len(all))
	}
}

func TestMemoryBillPeriodZeroQuota(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedUnit(t, repo, "u1", "101", 50)
	seedUnit(t, repo, "u2", "102", 70)

	now := time.Now().UTC()
	expense := domain.MonthlyExpense{ID: "2025-03", Period: "2025-03", Items: []domain.ExpenseItem{{Concept: "Agua", Amount: 1}}, Total: 1, CreatedAt: now}
	quotas := []domain.UnitQuota{{UnitID: "u1", Amount: 0}, {UnitID: "u2", Amount: 1}}
	payments := []domain.Payment{{ID: "b2", UnitID: "u2", Amount: 1, Period: "2025-03", Status: domain.PaymentPending, CreatedAt: now}}

	created, err := repo.BillPeriod(ctx, expense, quotas, payments)
	if err != nil {
		t.Fatalf("bill period: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected one payment, got %+v", created)
	}
	if unit, _ := repo.GetUnit(ctx, "u1"); unit.MonthlyQuota != 0 {
		t.Fatalf("expected quota 0 for u1, got %d", unit.MonthlyQuota)
	}
	if unit, _ := repo.GetUnit(ctx, "u2"); unit.MonthlyQuota != 1 {
		t.Fatalf("expected quota 1 for u2, got %d", unit.MonthlyQuota)
	}
}

func TestMemoryBillPeriodIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seedUnit(t, repo, "u1", "101", 50)
	seedUnit(t, repo, "u2", "102", 70)

	now := time.Now().UTC()
	expense := domain.MonthlyExpense{ID: "2025-03", Period: "2025-03", Items: []domain.ExpenseItem{{Concept: "Agua", Amount: 12000}}, Total: 12000, CreatedAt: now}
	valid := domain.Payment{ID: "b1", UnitID: "u1", Amount: 5000, Period: "2025-03", Status: domain.PaymentPending, CreatedAt: now}

	cases := []struct {
		name     string
		quotas   []domain.UnitQuota
		payments []domain.Payment
		want     error
	}{
		{
			name:     "payment for missing unit",
			quotas:   []domain.UnitQuota{{UnitID: "u1", Amount: 5000}, {UnitID: "u2", Amount: 7000}},
			payments: []domain.Payment{valid, {ID: "b9", UnitID: "missing", Amount: 7000, Period: "2025-03", Status: domain.PaymentPending}},
			want:     ErrUnitNotFound,
		},
		{
			name:     "quota for missing unit",
			quotas:   []domain.UnitQuota{{UnitID: "u1", Amount: 5000}, {UnitID: "missing", Amount: 7000}},
			payments: []domain.Payment{valid},
			want:     ErrUnitNotFound,
		},
		{
			name:     "zero amount payment",
			quotas:   []domain.UnitQuota{{UnitID: "u1", Amount: 5000}, {UnitID: "u2", Amount: 0}},
			payments: []domain.Payment{valid, {ID: "b2", UnitID: "u2", Amount: 0, Period: "2025-03", Status: domain.PaymentPending}},
			want:     ErrInvalidPaymentAmount,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := repo.BillPeriod(ctx, expense, tc.quotas, tc.payments); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if _, err := repo.GetMonthlyExpense(ctx, "2025-03"); !errors.Is(err, ErrMonthlyExpenseNotFound) {
				t.Fatalf("expected no expense, got %v", err)
			}
			if payments, _ := repo.ListPaymentsByPeriod(ctx, "2025-03"); len(payments) != 0 {
				t.Fatalf("expected no payments, got %d", len(payments))
			}
			for _, unitID := range []string{"u1", "u2"} {
				if unit, _ := repo.GetUnit(ctx, unitID); unit.MonthlyQuota != 0 {
					t.Fatalf("unit %s: quota changed to %d", unitID, unit.MonthlyQuota)
				}
			}
		})
	}

	created, err := repo.BillPeriod(ctx, expense,
		[]domain.UnitQuota{{UnitID: "u1", Amount: 5000}, {UnitID: "u2", Amount: 7000}},
		[]domain.Payment{valid, {ID: "b2", UnitID: "u2", Amount: 7000, Period: "2025-03", Status: domain.PaymentPending, CreatedAt: now}})
	if err != nil {
		t.Fatalf("billing after failures: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(created))
	}
}

func TestMemoryCreatePaymentRejectsZeroAmount(t *testing.T) {
	repo := NewMemoryRepository()
	_, err := repo.CreatePayment(context.Background(), domain.Payment{ID: "p1", UnitID: "u1", Amount: 0, Period: "2025-03", Status: domain.PaymentPending})
	if !errors.Is(err, ErrInvalidPaymentAmount) || !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected invalid amount validation error, got %v", err)
	}
}

func TestMemoryUpdatePaymentStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	if _, err := repo.CreatePayment(ctx, domain.Payment{ID: "p1", UnitID: "u1", Amount: 100, Period: "2025-03", Status: domain.PaymentPending}); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	txID := "flow-1"
	updated, err := repo.UpdatePaymentStatus(ctx, "p1", domain.PaymentPending, domain.PaymentStatusUpdate{Status: domain.PaymentVerifying, GatewayTransactionID: &txID})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.PaymentVerifying || *updated.GatewayTransactionID != txID {
		t.Fatalf("unexpected payment: %+v", updated)
	}

	if _, err := repo.UpdatePaymentStatus(ctx, "p1", domain.PaymentPending, domain.PaymentStatusUpdate{Status: domain.PaymentPaid}); !errors.Is(err, ErrPaymentStatusChanged) {
		t.Fatalf("expected ErrPaymentStatusChanged, got %v", err)
	}
}

func TestMemoryMarkExtraordinaryPaid(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	if _, err := repo.CreateExtraordinaryExpense(ctx, domain.ExtraordinaryExpense{
		ID: "e1", Concept: "Pintura", TotalAmount: 300000, AmountPerUnit: 100000,
		Payments: map[string]domain.ExtraordinaryPayment{"u1": {}, "u2": {}},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	paidAt := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	expense, err := repo.MarkExtraordinaryPaid(ctx, "e1", "u1", paidAt)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !expense.IsPaidBy("u1") || !expense.Payments["u1"].PaidAt.Equal(paidAt) {
		t.Fatalf("expected u1 paid at %v, got %+v", paidAt, expense.Payments["u1"])
	}
	if expense.IsPaidBy("u2") {
		t.Fatal("u2 must stay unpaid")
	}

	if _, err := repo.MarkExtraordinaryPaid(ctx, "missing", "u1", paidAt); !errors.Is(err, ErrExtraordinaryExpenseNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
