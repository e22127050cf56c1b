package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
	"github.com/google/uuid"
)

const maxNotesLength = 500

// Transition sources reported to metrics and events.
const (
	SourceVerification = "verificacion_manual"
	SourceGateway      = "flow"
)

// NewPayment is the input for creating a payment by hand.
type NewPayment struct {
	UnitID string  `json:"departamento_id"`
	Amount int64   `json:"monto"`
	Period string  `json:"periodo"`
	Method string  `json:"metodo"`
	Notes  *string `json:"notas,omitempty"`
}

// CreatePayment opens a pending payment for a unit. Admins and members of the
// unit only. Gateway payments also get a checkout URL when a gateway is configured.
func (s Service) CreatePayment(ctx context.Context, requester domain.Person, input NewPayment) (*domain.Payment, error) {
	unitID := strings.TrimSpace(input.UnitID)
	if unitID == "" {
		return nil, domain.Validationf("departamento_id is required")
	}
	if !requester.IsAdmin && !requester.BelongsTo(unitID) {
		return nil, domain.Permissionf("you can only create payments for your own unit")
	}
	if input.Amount <= 0 {
		return nil, domain.Validationf("monto must be greater than 0")
	}
	if err := domain.ValidatePeriod(input.Period); err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(input.Method)
	if err != nil {
		return nil, err
	}
	if err := validateNotes(input.Notes); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPaymentByUnitAndPeriod(ctx, unitID, input.Period); err == nil {
		return nil, domain.Validationf("a payment for period %s already exists for this unit", input.Period)
	} else if !isNotFound(err) {
		return nil, err
	}

	now := s.now()
	payment, err := s.repo.CreatePayment(ctx, domain.Payment{
		ID:        uuid.NewString(),
		UnitID:    unitID,
		Amount:    input.Amount,
		Period:    input.Period,
		Status:    domain.PaymentPending,
		Method:    method,
		Notes:     input.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if method == domain.MethodGateway && s.gateway != nil {
		if withCheckout, err := s.openCheckout(ctx, requester, *payment); err != nil {
			s.logger.Warn("failed to open gateway checkout", "pago_id", payment.ID, "error", err)
		} else {
			payment = withCheckout
		}
	}

	return payment, nil
}

func (s Service) openCheckout(ctx context.Context, requester domain.Person, payment domain.Payment) (*domain.Payment, error) {
	checkout, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		CommerceOrder: payment.ID,
		Subject:       fmt.Sprintf("Gastos comunes %s", payment.Period),
		Amount:        payment.Amount,
		Email:         requester.Email,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.SetPaymentCheckout(ctx, payment.ID, checkout.FlowOrder, checkout.URL)
}

// MyPayments returns the payments of the requester's unit.
func (s Service) MyPayments(ctx context.Context, requester domain.Person) ([]domain.Payment, error) {
	if requester.UnitID == nil {
		return nil, domain.Validationf("you are not associated with a unit")
	}
	return s.repo.ListPaymentsByUnit(ctx, *requester.UnitID)
}

// ListPendingPayments returns every payment still pending. Admin only.
func (s Service) ListPendingPayments(ctx context.Context, requester domain.Person) ([]domain.Payment, error) {
	if err := s.requireAdmin(requester, "list pending payments"); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByStatus(ctx, domain.PaymentPending)
}

// ListPaymentsByPeriod returns every payment of a period. Admin only.
func (s Service) ListPaymentsByPeriod(ctx context.Context, requester domain.Person, period string) ([]domain.Payment, error) {
	if err := s.requireAdmin(requester, "list payments by period"); err != nil {
		return nil, err
	}
	if err := domain.ValidatePeriod(period); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByPeriod(ctx, period)
}

// ListPaymentsByUnit returns the payments of a unit, newest period first.
func (s Service) ListPaymentsByUnit(ctx context.Context, requester domain.Person, unitID string) ([]domain.Payment, error) {
	if !CanViewUnitPayments(requester, unitID) {
		return nil, domain.Permissionf("you cannot view the payments of this unit")
	}
	return s.repo.ListPaymentsByUnit(ctx, unitID)
}

// GetPayment returns one payment if the requester may see its unit.
func (s Service) GetPayment(ctx context.Context, requester domain.Person, paymentID string) (*domain.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !CanViewUnitPayments(requester, payment.UnitID) {
		return nil, domain.Permissionf("you cannot view this payment")
	}
	return payment, nil
}

// VerifyPayment records an administrator's review of a payment.
func (s Service) VerifyPayment(ctx context.Context, requester domain.Person, paymentID string, approved bool, notes *string) (*domain.Payment, error) {
	if err := s.requireAdmin(requester, "verify payments"); err != nil {
		return nil, err
	}
	if err := validateNotes(notes); err != nil {
		return nil, err
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	update, err := payment.VerificationTransition(approved, requester.ID, notes, s.now())
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, *payment, update, SourceVerification)
}

// GatewayNotification is a status callback from the payment gateway.
type GatewayNotification struct {
	CommerceOrder string `json:"commerceOrder"`
	FlowOrder     string `json:"flowOrder"`
	Status        string `json:"status"`
}

// WebhookOutcome classifies what a gateway callback did.
type WebhookOutcome string

const (
	WebhookApplied  WebhookOutcome = "applied"
	WebhookIgnored  WebhookOutcome = "ignored"
	WebhookUnknown  WebhookOutcome = "unknown_payment"
	WebhookTerminal WebhookOutcome = "terminal"
	WebhookFailed   WebhookOutcome = "failed"
)

// HandleGatewayCallback applies a gateway status callback. Callbacks without
// an order reference are ignored; callbacks for settled payments are logged
// and dropped.
func (s Service) HandleGatewayCallback(ctx context.Context, notification GatewayNotification) (WebhookOutcome, error) {
	paymentID := strings.TrimSpace(notification.CommerceOrder)
	flowOrder := strings.TrimSpace(notification.FlowOrder)
	if paymentID == "" || flowOrder == "" {
		s.logger.Info("gateway callback without order reference ignored")
		return WebhookIgnored, nil
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("gateway callback for unknown payment", "pago_id", paymentID, "flow_order", flowOrder)
			return WebhookUnknown, nil
		}
		return WebhookFailed, err
	}

	update, err := payment.GatewayTransition(notification.Status, flowOrder, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrTerminalPayment) {
			s.logger.Warn("gateway callback for settled payment ignored",
				"pago_id", payment.ID,
				"estado", payment.Status,
				"gateway_status", notification.Status,
			)
			return WebhookTerminal, nil
		}
		return WebhookFailed, err
	}

	if _, err := s.transition(ctx, *payment, update, SourceGateway); err != nil {
		if errors.Is(err, domain.ErrTerminalPayment) {
			return WebhookTerminal, nil
		}
		return WebhookFailed, err
	}
	return WebhookApplied, nil
}

func (s Service) transition(ctx context.Context, payment domain.Payment, update domain.PaymentStatusUpdate, source string) (*domain.Payment, error) {
	if !payment.Status.CanTransitionTo(update.Status) {
		return nil, domain.ErrTerminalPayment
	}

	updated, err := s.repo.UpdatePaymentStatus(ctx, payment.ID, payment.Status, update)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.PaymentTransitioned(source, updated.Status)
	}
	s.logger.Info("payment status changed",
		"pago_id", updated.ID,
		"from", payment.Status,
		"to", updated.Status,
		"source", source,
	)
	s.publishEvent(ctx, "payment.status_changed", paymentStatusEvent{
		PaymentID: updated.ID,
		UnitID:    updated.UnitID,
		Period:    updated.Period,
		Amount:    updated.Amount,
		From:      payment.Status,
		To:        updated.Status,
		Source:    source,
		Timestamp: updated.UpdatedAt,
	})
	return updated, nil
}

func validateNotes(notes *string) error {
	if notes != nil && len([]rune(*notes)) > maxNotesLength {
		return domain.Validationf("notas cannot exceed %d characters", maxNotesLength)
	}
	return nil
}
