/**
 * @description
 * Core business logic for the condominium backend: units, people, common
 * expense billing, and payment tracking.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

// UnitRepository defines the unit operations the service needs.
type UnitRepository interface {
	CreateUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error)
	GetUnit(ctx context.Context, unitID string) (*domain.Unit, error)
	GetUnitByNumber(ctx context.Context, number string) (*domain.Unit, error)
	ListUnits(ctx context.Context) ([]domain.Unit, error)
	ListActiveUnits(ctx context.Context) ([]domain.Unit, error)
	UpdateUnit(ctx context.Context, unit domain.Unit) (*domain.Unit, error)
	DeleteUnit(ctx context.Context, unitID string) error
	AddUnitMember(ctx context.Context, unitID, personID string, maxMembers int) (*domain.Unit, error)
	RemoveUnitMember(ctx context.Context, unitID, personID string) (*domain.Unit, error)
	DetachMemberFromUnits(ctx context.Context, personID string) error
}

// PersonRepository defines the person operations the service needs.
type PersonRepository interface {
	CreatePerson(ctx context.Context, person domain.Person) (*domain.Person, error)
	GetPerson(ctx context.Context, personID string) (*domain.Person, error)
	GetPersonByEmail(ctx context.Context, email string) (*domain.Person, error)
	ListPeople(ctx context.Context) ([]domain.Person, error)
	ListPeopleByUnit(ctx context.Context, unitID string) ([]domain.Person, error)
	UpdatePerson(ctx context.Context, person domain.Person) (*domain.Person, error)
	SetPersonUnit(ctx context.Context, personID string, unitID *string) error
	DeletePerson(ctx context.Context, personID string) error
}

// ExpenseRepository defines the expense operations the service needs.
type ExpenseRepository interface {
	GetMonthlyExpense(ctx context.Context, period string) (*domain.MonthlyExpense, error)
	ListMonthlyExpenses(ctx context.Context, limit int) ([]domain.MonthlyExpense, error)
	BillPeriod(ctx context.Context, expense domain.MonthlyExpense, quotas []domain.UnitQuota, payments []domain.Payment) ([]domain.Payment, error)
	CreateExtraordinaryExpense(ctx context.Context, expense domain.ExtraordinaryExpense) (*domain.ExtraordinaryExpense, error)
	GetExtraordinaryExpense(ctx context.Context, expenseID string) (*domain.ExtraordinaryExpense, error)
	ListExtraordinaryExpenses(ctx context.Context) ([]domain.ExtraordinaryExpense, error)
	MarkExtraordinaryPaid(ctx context.Context, expenseID, unitID string, paidAt time.Time) (*domain.ExtraordinaryExpense, error)
}

// PaymentRepository defines the payment operations the service needs.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetPaymentByUnitAndPeriod(ctx context.Context, unitID, period string) (*domain.Payment, error)
	ListPaymentsByUnit(ctx context.Context, unitID string) ([]domain.Payment, error)
	ListPaymentsByPeriod(ctx context.Context, period string) ([]domain.Payment, error)
	ListPaymentsByStatus(ctx context.Context, status domain.PaymentStatus) ([]domain.Payment, error)
	UpdatePaymentStatus(ctx context.Context, paymentID string, from domain.PaymentStatus, update domain.PaymentStatusUpdate) (*domain.Payment, error)
	SetPaymentCheckout(ctx context.Context, paymentID, gatewayTransactionID, paymentURL string) (*domain.Payment, error)
}

// Repository is the full set of store operations.
type Repository interface {
	UnitRepository
	PersonRepository
	ExpenseRepository
	PaymentRepository
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// CheckoutRequest describes a gateway order for one payment.
type CheckoutRequest struct {
	CommerceOrder string
	Subject       string
	Amount        int64
	Email         string
}

// Checkout is the gateway's answer to a checkout request.
type Checkout struct {
	Token     string
	FlowOrder string
	URL       string
}

// GatewayClient opens checkout orders on the payment gateway.
type GatewayClient interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// MetricsRecorder receives business counters.
type MetricsRecorder interface {
	PaymentsGenerated(period string, count int)
	PaymentTransitioned(source string, status domain.PaymentStatus)
}

// Options carries the non-collaborator settings of the service.
type Options struct {
	EventsExchange       string
	BootstrapAdminEmails []string
}

// Service provides the business logic of the condominium backend.
type Service struct {
	repo      Repository
	publisher EventPublisher
	gateway   GatewayClient
	metrics   MetricsRecorder
	logger    *slog.Logger
	exchange  string
	admins    map[string]struct{}
	now       func() time.Time
}

// NewService creates a new service. publisher, gateway, and metrics may be nil.
func NewService(repo Repository, publisher EventPublisher, gateway GatewayClient, metrics MetricsRecorder, logger *slog.Logger, opts Options) Service {
	if logger == nil {
		logger = slog.Default()
	}
	exchange := opts.EventsExchange
	if exchange == "" {
		exchange = "condominio.events"
	}

	admins := make(map[string]struct{}, len(opts.BootstrapAdminEmails))
	for _, email := range opts.BootstrapAdminEmails {
		if normalized := domain.NormalizeEmail(email); normalized != "" {
			admins[normalized] = struct{}{}
		}
	}

	return Service{
		repo:      repo,
		publisher: publisher,
		gateway:   gateway,
		metrics:   metrics,
		logger:    logger,
		exchange:  exchange,
		admins:    admins,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, s.exchange, routingKey, payload); err != nil {
		s.logger.Warn("failed to publish event", "routing_key", routingKey, "error", err)
	}
}

func (s Service) requireAdmin(requester domain.Person, action string) error {
	if !requester.IsAdmin {
		return domain.Permissionf("only administrators can %s", action)
	}
	return nil
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
