/**
 * @description
 * Domain model for common-expense payments ("pagos") and their state machine.
 */
package domain

import (
	"strings"
	"time"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pendiente"
	PaymentPaid      PaymentStatus = "pagado"
	PaymentVerifying PaymentStatus = "verificando"
	PaymentRejected  PaymentStatus = "rechazado"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentRejected
}

// CanTransitionTo reports whether next is reachable from s.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentPaid || next == PaymentVerifying || next == PaymentRejected
	case PaymentVerifying:
		return next == PaymentPaid || next == PaymentVerifying || next == PaymentRejected
	default:
		return false
	}
}

// PaymentMethod is how a unit settles a payment.
type PaymentMethod string

const (
	MethodGateway        PaymentMethod = "flow"
	MethodManualTransfer PaymentMethod = "transferencia_manual"
)

// ParsePaymentMethod validates a payment method, defaulting to the gateway.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	switch method {
	case "":
		return MethodGateway, nil
	case MethodGateway, MethodManualTransfer:
		return method, nil
	}
	return "", Validationf("invalid payment method %q", raw)
}

// Gateway callback statuses with a dedicated transition.
const (
	GatewayStatusCompleted = "completed"
	GatewayStatusRejected  = "rejected"
)

// Payment is one unit's obligation for one period.
type Payment struct {
	ID                   string        `json:"id"`
	UnitID               string        `json:"departamento_id"`
	Amount               int64         `json:"monto"`
	Period               string        `json:"periodo"`
	Status               PaymentStatus `json:"estado"`
	Method               PaymentMethod `json:"metodo"`
	GatewayTransactionID *string       `json:"flow_payment_id"`
	GatewayPaymentURL    *string       `json:"flow_payment_url"`
	PaidAt               *time.Time    `json:"fecha_pago"`
	VerifiedBy           *string       `json:"verificado_por"`
	Notes                *string       `json:"notas"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// PaymentStatusUpdate is the set of fields written by a state transition.
type PaymentStatusUpdate struct {
	Status               PaymentStatus
	GatewayTransactionID *string
	PaidAt               *time.Time
	VerifiedBy           *string
	Notes                *string
}

// Apply copies the transition onto payment. Nil optional fields are left untouched.
func (u PaymentStatusUpdate) Apply(payment *Payment) {
	payment.Status = u.Status
	if u.GatewayTransactionID != nil {
		payment.GatewayTransactionID = u.GatewayTransactionID
	}
	if u.PaidAt != nil {
		payment.PaidAt = u.PaidAt
	}
	if u.VerifiedBy != nil {
		payment.VerifiedBy = u.VerifiedBy
	}
	if u.Notes != nil {
		payment.Notes = u.Notes
	}
}

// ErrTerminalPayment is returned when a paid or rejected payment is asked to move.
var ErrTerminalPayment = NewError(ErrValidation, "payment is already settled")

// GatewayTransition computes the update produced by a gateway callback.
func (p Payment) GatewayTransition(gatewayStatus, transactionID string, now time.Time) (PaymentStatusUpdate, error) {
	if p.Status.Terminal() {
		return PaymentStatusUpdate{}, ErrTerminalPayment
	}

	update := PaymentStatusUpdate{}
	if transactionID != "" {
		update.GatewayTransactionID = &transactionID
	}

	switch strings.ToLower(strings.TrimSpace(gatewayStatus)) {
	case GatewayStatusCompleted:
		update.Status = PaymentPaid
		update.PaidAt = &now
	case GatewayStatusRejected:
		update.Status = PaymentRejected
	default:
		update.Status = PaymentVerifying
	}
	return update, nil
}

// VerificationTransition computes the update produced by an admin's manual review.
func (p Payment) VerificationTransition(approved bool, verifierID string, notes *string, now time.Time) (PaymentStatusUpdate, error) {
	if p.Status.Terminal() {
		return PaymentStatusUpdate{}, ErrTerminalPayment
	}

	update := PaymentStatusUpdate{VerifiedBy: &verifierID}
	if approved {
		update.Status = PaymentPaid
		update.PaidAt = &now
	} else {
		update.Status = PaymentRejected
		update.Notes = notes
	}
	return update, nil
}
