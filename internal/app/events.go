package app

import (
	"time"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
)

type expenseBilledEvent struct {
	Period          string    `json:"periodo"`
	Total           int64     `json:"total"`
	CostPerArea     float64   `json:"valor_por_m2"`
	Units           int       `json:"departamentos"`
	PaymentsCreated int       `json:"pagos_generados"`
	Timestamp       time.Time `json:"timestamp"`
}

type paymentStatusEvent struct {
	PaymentID string               `json:"pago_id"`
	UnitID    string               `json:"departamento_id"`
	Period    string               `json:"periodo"`
	Amount    int64                `json:"monto"`
	From      domain.PaymentStatus `json:"estado_anterior"`
	To        domain.PaymentStatus `json:"estado"`
	Source    string               `json:"origen"`
	Timestamp time.Time            `json:"timestamp"`
}

type extraordinaryPaidEvent struct {
	ExpenseID string    `json:"gasto_id"`
	UnitID    string    `json:"departamento_id"`
	Amount    int64     `json:"monto"`
	Timestamp time.Time `json:"timestamp"`
}
