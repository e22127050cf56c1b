package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Fblink88/ComunidadElMaiten/internal/domain"
	"github.com/jackc/pgx/v5"
)

const monthlyColumns = `periodo, items, total, valor_por_m2, created_at, updated_at`

func scanMonthly(row rowScanner) (*domain.MonthlyExpense, error) {
	var (
		expense domain.MonthlyExpense
		items   []byte
	)
	if err := row.Scan(&expense.Period, &items, &expense.Total, &expense.CostPerArea, &expense.CreatedAt, &expense.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &expense.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of period %s: %w", expense.Period, err)
	}
	expense.ID = expense.Period
	return &expense, nil
}

// GetMonthlyExpense retrieves the expense of a period.
func (r *PostgresRepository) GetMonthlyExpense(ctx context.Context, period string) (*domain.MonthlyExpense, error) {
	expense, err := scanMonthly(r.db.QueryRow(ctx, `SELECT `+monthlyColumns+` FROM gastos_mensuales WHERE periodo = $1`, period))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMonthlyExpenseNotFound
		}
		return nil, err
	}
	return expense, nil
}

// ListMonthlyExpenses retrieves the latest expenses, newest period first.
func (r *PostgresRepository) ListMonthlyExpenses(ctx context.Context, limit int) ([]domain.MonthlyExpense, error) {
	rows, err := r.db.Query(ctx, `SELECT `+monthlyColumns+` FROM gastos_mensuales ORDER BY periodo DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []domain.MonthlyExpense{}
	for rows.Next() {
		expense, err := scanMonthly(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *expense)
	}
	return expenses, rows.Err()
}

// BillPeriod inserts the monthly expense, sets each unit's quota, and inserts
// the payments that do not exist yet, in one transaction. It returns the
// payments actually inserted.
func (r *PostgresRepository) BillPeriod(ctx context.Context, expense domain.MonthlyExpense, quotas []domain.UnitQuota, payments []domain.Payment) ([]domain.Payment, error) {
	for _, payment := range payments {
		if payment.Amount <= 0 {
			return nil, ErrInvalidPaymentAmount
		}
	}

	items, err := json.Marshal(expense.Items)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO gastos_mensuales (periodo, items, total, valor_por_m2, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4, $5, $6)
	`, expense.Period, string(items), expense.Total, expense.CostPerArea, expense.CreatedAt, expense.UpdatedAt)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrDuplicatePeriod
		}
		return nil, err
	}

	for _, quota := range quotas {
		tag, err := tx.Exec(ctx, `UPDATE departamentos SET cuota_mensual = $2, updated_at = $3 WHERE id = $1`,
			quota.UnitID, quota.Amount, expense.CreatedAt)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrUnitNotFound
		}
	}

	created := make([]domain.Payment, 0, len(payments))
	for _, payment := range payments {
		inserted, err := scanPayment(tx.QueryRow(ctx, insertPaymentQuery+` ON CONFLICT (departamento_id, periodo) DO NOTHING RETURNING `+paymentColumns,
			paymentArgs(payment)...))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if checkConstraint(err) {
				return nil, ErrInvalidPaymentAmount
			}
			return nil, err
		}
		created = append(created, *inserted)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

const extraordinaryColumns = `id, concepto, monto_total, monto_por_depto, fecha, pagos, created_at`

func scanExtraordinary(row rowScanner) (*domain.ExtraordinaryExpense, error) {
	var (
		expense  domain.ExtraordinaryExpense
		payments []byte
	)
	if err := row.Scan(
		&expense.ID,
		&expense.Concept,
		&expense.TotalAmount,
		&expense.AmountPerUnit,
		&expense.Date,
		&payments,
		&expense.CreatedAt,
	); err != nil {
		return nil, err
	}
	expense.Payments = map[string]domain.ExtraordinaryPayment{}
	if len(payments) > 0 {
		if err := json.Unmarshal(payments, &expense.Payments); err != nil {
			return nil, fmt.Errorf("failed to decode payments of extraordinary expense %s: %w", expense.ID, err)
		}
	}
	return &expense, nil
}

// CreateExtraordinaryExpense inserts a new extraordinary expense.
func (r *PostgresRepository) CreateExtraordinaryExpense(ctx context.Context, expense domain.ExtraordinaryExpense) (*domain.ExtraordinaryExpense, error) {
	if expense.Payments == nil {
		expense.Payments = map[string]domain.ExtraordinaryPayment{}
	}
	payments, err := json.Marshal(expense.Payments)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO gastos_extraordinarios (id, concepto, monto_total, monto_por_depto, fecha, pagos, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		RETURNING ` + extraordinaryColumns
	return scanExtraordinary(r.db.QueryRow(ctx, query,
		expense.ID,
		expense.Concept,
		expense.TotalAmount,
		expense.AmountPerUnit,
		expense.Date,
		string(payments),
		expense.CreatedAt,
	))
}

// GetExtraordinaryExpense retrieves an extraordinary expense by id.
func (r *PostgresRepository) GetExtraordinaryExpense(ctx context.Context, expenseID string) (*domain.ExtraordinaryExpense, error) {
	expense, err := scanExtraordinary(r.db.QueryRow(ctx, `SELECT `+extraordinaryColumns+` FROM gastos_extraordinarios WHERE id = $1`, expenseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExtraordinaryExpenseNotFound
		}
		return nil, err
	}
	return expense, nil
}

// ListExtraordinaryExpenses retrieves every extraordinary expense, newest first.
func (r *PostgresRepository) ListExtraordinaryExpenses(ctx context.Context) ([]domain.ExtraordinaryExpense, error) {
	rows, err := r.db.Query(ctx, `SELECT `+extraordinaryColumns+` FROM gastos_extraordinarios ORDER BY fecha DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []domain.ExtraordinaryExpense{}
	for rows.Next() {
		expense, err := scanExtraordinary(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *expense)
	}
	return expenses, rows.Err()
}

// MarkExtraordinaryPaid sets the payment entry of unitID in place.
func (r *PostgresRepository) MarkExtraordinaryPaid(ctx context.Context, expenseID, unitID string, paidAt time.Time) (*domain.ExtraordinaryExpense, error) {
	entry, err := json.Marshal(domain.ExtraordinaryPayment{Paid: true, PaidAt: &paidAt})
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE gastos_extraordinarios
		SET pagos = jsonb_set(pagos, ARRAY[$2::text], $3::jsonb, TRUE)
		WHERE id = $1
		RETURNING ` + extraordinaryColumns
	expense, err := scanExtraordinary(r.db.QueryRow(ctx, query, expenseID, unitID, string(entry)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExtraordinaryExpenseNotFound
		}
		return nil, err
	}
	return expense, nil
}

const paymentColumns = `id, departamento_id, monto, periodo, estado, metodo, flow_payment_id, flow_payment_url,
	fecha_pago, verificado_por, notas, created_at, updated_at`

const insertPaymentQuery = `
	INSERT INTO pagos (
		id, departamento_id, monto, periodo, estado, metodo, flow_payment_id, flow_payment_url,
		fecha_pago, verificado_por, notas, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func paymentArgs(payment domain.Payment) []any {
	return []any{
		payment.ID,
		payment.UnitID,
		payment.Amount,
		payment.Period,
		payment.Status,
		payment.Method,
		payment.GatewayTransactionID,
		payment.GatewayPaymentURL,
		payment.PaidAt,
		payment.VerifiedBy,
		payment.Notes,
		payment.CreatedAt,
		payment.UpdatedAt,
	}
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	if err := row.Scan(
		&payment.ID,
		&payment.UnitID,
		&payment.Amount,
		&payment.Period,
		&payment.Status,
		&payment.Method,
		&payment.GatewayTransactionID,
		&payment.GatewayPaymentURL,
		&payment.PaidAt,
		&payment.VerifiedBy,
		&payment.Notes,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PostgresRepository) queryPayments(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

// CreatePayment inserts a new payment. A second payment for the same unit and period is rejected.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	created, err := scanPayment(r.db.QueryRow(ctx, insertPaymentQuery+` RETURNING `+paymentColumns, paymentArgs(payment)...))
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return nil, ErrDuplicatePayment
		}
		if checkConstraint(err) {
			return nil, ErrInvalidPaymentAmount
		}
		return nil, err
	}
	return created, nil
}

// GetPayment retrieves a payment by id.
func (r *PostgresRepository) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM pagos WHERE id = $1`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// GetPaymentByUnitAndPeriod retrieves the payment of a unit for a period.
func (r *PostgresRepository) GetPaymentByUnitAndPeriod(ctx context.Context, unitID, period string) (*domain.Payment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM pagos WHERE departamento_id = $1 AND periodo = $2`, unitID, period))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListPaymentsByUnit retrieves the payments of a unit, newest period first.
func (r *PostgresRepository) ListPaymentsByUnit(ctx context.Context, unitID string) ([]domain.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM pagos WHERE departamento_id = $1 ORDER BY periodo DESC, created_at`, unitID)
}

// ListPaymentsByPeriod retrieves every payment of a period.
func (r *PostgresRepository) ListPaymentsByPeriod(ctx context.Context, period string) ([]domain.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM pagos WHERE periodo = $1 ORDER BY created_at`, period)
}

// ListPaymentsByStatus retrieves every payment in a status.
func (r *PostgresRepository) ListPaymentsByStatus(ctx context.Context, status domain.PaymentStatus) ([]domain.Payment, error) {
	return r.queryPayments(ctx, `SELECT `+paymentColumns+` FROM pagos WHERE estado = $1 ORDER BY periodo DESC, created_at`, status)
}

// UpdatePaymentStatus applies a state transition only while the payment is
// still in status from, so concurrent transitions cannot both succeed.
func (r *PostgresRepository) UpdatePaymentStatus(ctx context.Context, paymentID string, from domain.PaymentStatus, update domain.PaymentStatusUpdate) (*domain.Payment, error) {
	query := `
		UPDATE pagos
		SET estado = $3,
		    flow_payment_id = COALESCE($4, flow_payment_id),
		    fecha_pago = COALESCE($5, fecha_pago),
		    verificado_por = COALESCE($6, verificado_por),
		    notas = COALESCE($7, notas),
		    updated_at = NOW()
		WHERE id = $1 AND estado = $2
		RETURNING ` + paymentColumns
	payment, err := scanPayment(r.db.QueryRow(ctx, query,
		paymentID,
		from,
		update.Status,
		update.GatewayTransactionID,
		update.PaidAt,
		update.VerifiedBy,
		update.Notes,
	))
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, getErr := r.GetPayment(ctx, paymentID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrPaymentStatusChanged
}

// SetPaymentCheckout stores the gateway order reference and checkout URL.
func (r *PostgresRepository) SetPaymentCheckout(ctx context.Context, paymentID, gatewayTransactionID, paymentURL string) (*domain.Payment, error) {
	query := `
		UPDATE pagos
		SET flow_payment_id = $2, flow_payment_url = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + paymentColumns
	payment, err := scanPayment(r.db.QueryRow(ctx, query, paymentID, gatewayTransactionID, paymentURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}
