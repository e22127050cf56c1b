package domain

import (
	"errors"
	"testing"
	"time"
)

func TestGatewayTransition(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    PaymentStatus
		status  string
		want    PaymentStatus
		paidAt  bool
		wantErr bool
	}{
		{name: "pending completed", from: PaymentPending, status: "completed", want: PaymentPaid, paidAt: true},
		{name: "pending rejected", from: PaymentPending, status: "rejected", want: PaymentRejected},
		{name: "pending other", from: PaymentPending, status: "processing", want: PaymentVerifying},
		{name: "pending empty status", from: PaymentPending, status: "", want: PaymentVerifying},
		{name: "verifying completed", from: PaymentVerifying, status: "completed", want: PaymentPaid, paidAt: true},
		{name: "verifying rejected", from: PaymentVerifying, status: "REJECTED", want: PaymentRejected},
		{name: "verifying other stays", from: PaymentVerifying, status: "pending", want: PaymentVerifying},
		{name: "paid is terminal", from: PaymentPaid, status: "rejected", wantErr: true},
		{name: "rejected is terminal", from: PaymentRejected, status: "completed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Payment{ID: "p1", Status: tt.from}
			update, err := p.GatewayTransition(tt.status, "flow-991", now)
			if tt.wantErr {
				if !errors.Is(err, ErrTerminalPayment) || !errors.Is(err, ErrValidation) {
					t.Fatalf("expected terminal payment validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if update.Status != tt.want {
				t.Fatalf("expected status %q, got %q", tt.want, update.Status)
			}
			if !p.Status.CanTransitionTo(update.Status) {
				t.Fatalf("transition %q -> %q should be allowed", p.Status, update.Status)
			}
			if update.GatewayTransactionID == nil || *update.GatewayTransactionID != "flow-991" {
				t.Fatalf("expected gateway transaction id to be recorded, got %v", update.GatewayTransactionID)
			}
			if tt.paidAt != (update.PaidAt != nil) {
				t.Fatalf("expected paid-at set=%t, got %v", tt.paidAt, update.PaidAt)
			}
		})
	}
}

func TestVerificationTransition(t *testing.T) {
	now := time.Now().UTC()
	notes := "transfer not found in bank statement"

	approved, err := Payment{Status: PaymentPending}.VerificationTransition(true, "admin-1", nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != PaymentPaid || approved.PaidAt == nil || *approved.VerifiedBy != "admin-1" {
		t.Fatalf("unexpected approval update: %+v", approved)
	}

	rejected, err := Payment{Status: PaymentVerifying}.VerificationTransition(false, "admin-1", &notes, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != PaymentRejected || rejected.PaidAt != nil || rejected.Notes == nil || *rejected.Notes != notes {
		t.Fatalf("unexpected rejection update: %+v", rejected)
	}

	if _, err := (Payment{Status: PaymentPaid}).VerificationTransition(false, "admin-1", nil, now); !errors.Is(err, ErrTerminalPayment) {
		t.Fatalf("expected terminal error, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	all := []PaymentStatus{PaymentPending, PaymentPaid, PaymentVerifying, PaymentRejected}
	for _, from := range []PaymentStatus{PaymentPaid, PaymentRejected} {
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Fatalf("terminal status %q must not transition to %q", from, to)
			}
		}
	}
	if PaymentPending.CanTransitionTo(PaymentPending) {
		t.Fatal("pending must not transition to itself")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    PaymentMethod
		wantErr bool
	}{
		{input: "", want: MethodGateway},
		{input: "FLOW", want: MethodGateway},
		{input: "transferencia_manual", want: MethodManualTransfer},
		{input: "cash", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePaymentMethod(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%q: expected validation error, got %v", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: expected %q, got %q (err %v)", tt.input, tt.want, got, err)
		}
	}
}
