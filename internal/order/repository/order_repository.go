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

type MySQLOrderRepository struct {
	db      mysql.DBTX
	details *MySQLOrderDetailRepository
}

func NewMySQLOrderRepository(db mysql.DBTX) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db, details: NewMySQLOrderDetailRepository(db)}
}

func (r *MySQLOrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO Orders (id, customerId, dealerId, status, totalAmount, depositAmount,
		                    paidFinalAmount, remainingAmount, version, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.ID, order.CustomerID, order.DealerID, order.Status,
		order.TotalAmount, order.DepositAmount, order.PaidFinalAmount, order.RemainingAmount,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	for _, d := range order.Details {
		d.OrderID = order.ID
		if err := r.details.Insert(ctx, d); err != nil {
			return err
		}
	}

	return nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT id, customerId, dealerId, status, totalAmount, depositAmount,
		       paidFinalAmount, remainingAmount, version, createdAt, updatedAt
		FROM Orders
		WHERE id = ?
		FOR UPDATE
	`

	var order domain.Order
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.CustomerID, &order.DealerID, &order.Status,
		&order.TotalAmount, &order.DepositAmount, &order.PaidFinalAmount, &order.RemainingAmount,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying order by id: %w", err)
	}

	details, err := r.details.FindByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Details = details

	return &order, nil
}

// Update writes the mutable columns. Line items are fixed at submission.
func (r *MySQLOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE Orders
		SET status = ?, totalAmount = ?, depositAmount = ?, paidFinalAmount = ?,
		    remainingAmount = ?, updatedAt = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		order.Status, order.TotalAmount, order.DepositAmount, order.PaidFinalAmount,
		order.RemainingAmount, order.UpdatedAt, order.ID, order.Version,
	)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConcurrentModificationError("order", order.ID)
	}

	order.Version++
	return nil
}
