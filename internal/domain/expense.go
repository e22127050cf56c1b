/**
 * @description
 * Domain models for monthly and extraordinary common expenses.
 */
package domain

import (
	"strings"
	"time"
)

// ExpenseItem is one line of a monthly expense, e.g. water or cleaning staff.
type ExpenseItem struct {
	Concept string `json:"concepto"`
	Amount  int64  `json:"monto"`
}

// MonthlyExpense is the common-cost bill of one period. ID equals Period.
type MonthlyExpense struct {
	ID          string        `json:"id"`
	Period      string        `json:"periodo"`
	Items       []ExpenseItem `json:"items"`
	Total       int64         `json:"total"`
	CostPerArea float64       `json:"valor_por_m2"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// UnitQuota is the share of a billed period assigned to one unit.
type UnitQuota struct {
	UnitID string
	Amount int64
}

// ValidateExpenseItems checks the line items of a monthly expense.
func ValidateExpenseItems(items []ExpenseItem) error {
	if len(items) == 0 {
		return Validationf("items must contain at least one entry")
	}
	for i, item := range items {
		n := len([]rune(strings.TrimSpace(item.Concept)))
		if n < 2 || n > 100 {
			return Validationf("items[%d].concepto must be between 2 and 100 characters", i)
		}
		if item.Amount < 0 {
			return Validationf("items[%d].monto cannot be negative", i)
		}
	}
	return nil
}

// SumItems returns the total of all line items.
func SumItems(items []ExpenseItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Amount
	}
	return total
}

// ExtraordinaryPayment is the payment state of one unit for an extraordinary expense.
type ExtraordinaryPayment struct {
	Paid   bool       `json:"pagado"`
	PaidAt *time.Time `json:"fecha_pago"`
}

// ExtraordinaryExpense is a one-off cost charged evenly per unit.
type ExtraordinaryExpense struct {
	ID            string                          `json:"id"`
	Concept       string                          `json:"concepto"`
	TotalAmount   int64                           `json:"monto_total"`
	AmountPerUnit int64                           `json:"monto_por_depto"`
	Date          time.Time                       `json:"fecha"`
	Payments      map[string]ExtraordinaryPayment `json:"pagos"`
	CreatedAt     time.Time                       `json:"created_at"`
}

// IsPaidBy reports whether unitID has paid. Units without an entry are unpaid.
func (e ExtraordinaryExpense) IsPaidBy(unitID string) bool {
	entry, ok := e.Payments[unitID]
	return ok && entry.Paid
}

// Validate checks the user-supplied fields of an extraordinary expense.
func (e ExtraordinaryExpense) Validate() error {
	n := len([]rune(strings.TrimSpace(e.Concept)))
	if n < 2 || n > 200 {
		return Validationf("concepto must be between 2 and 200 characters")
	}
	if e.TotalAmount <= 0 {
		return Validationf("monto_total must be greater than 0")
	}
	if e.AmountPerUnit <= 0 {
		return Validationf("monto_por_depto must be greater than 0")
	}
	return nil
}
