package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dealerhub/internal/domain"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/infrastructure/mysql"
)

type MySQLPaymentRepository struct {
	db mysql.DBTX
}

func NewMySQLPaymentRepository(db mysql.DBTX) *MySQLPaymentRepository {
	return &MySQLPaymentRepository{db: db}
}

const paymentColumns = `id, orderId, paymentType, method, amount, status, transactionReference,
		       gatewayMessage, processedAt, version, createdAt, updatedAt`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var p domain.Payment
	var processedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Type, &p.Method, &p.Amount, &p.Status, &p.TransactionReference,
		&p.GatewayMessage, &processedAt, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if processedAt.Valid {
		t := processedAt.Time
		p.ProcessedAt = &t
	}
	return p, err
}

func (r *MySQLPaymentRepository) Insert(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO Payments (id, orderId, paymentType, method, amount, status, transactionReference,
		                      gatewayMessage, processedAt, version, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.OrderID, payment.Type, payment.Method, payment.Amount, payment.Status,
		payment.TransactionReference, payment.GatewayMessage, payment.ProcessedAt,
		payment.Version, payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

func (r *MySQLPaymentRepository) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM Payments WHERE transactionReference = ? FOR UPDATE`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("payment with reference %s not found", reference))
	}
	if err != nil {
		return nil, fmt.Errorf("querying payment by reference: %w", err)
	}
	return &payment, nil
}

func (r *MySQLPaymentRepository) FindByOrderID(ctx context.Context, orderID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM Payments WHERE orderId = ? ORDER BY createdAt ASC`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying payments by order id: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payment row: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating payment rows: %w", err)
	}
	return payments, nil
}

func (r *MySQLPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE Payments
		SET status = ?, gatewayMessage = ?, processedAt = ?, updatedAt = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.Status, payment.GatewayMessage, payment.ProcessedAt, payment.UpdatedAt,
		payment.ID, payment.Version,
	)
	if err != nil {
		return fmt.Errorf("updating payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConcurrentModificationError("payment", payment.ID)
	}

	payment.Version++
	return nil
}
