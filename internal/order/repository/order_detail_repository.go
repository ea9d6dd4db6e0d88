package repository

import (
	"context"
	"fmt"

	"dealerhub/internal/domain"
	"dealerhub/internal/infrastructure/mysql"
)

// MySQLOrderDetailRepository stores quotation lines. Lines are written once,
// when the order is submitted.
type MySQLOrderDetailRepository struct {
	db mysql.DBTX
}

func NewMySQLOrderDetailRepository(db mysql.DBTX) *MySQLOrderDetailRepository {
	return &MySQLOrderDetailRepository{db: db}
}

func (r *MySQLOrderDetailRepository) Insert(ctx context.Context, detail domain.OrderDetail) error {
	query := `
		INSERT INTO OrderDetails (id, orderId, position, vehicleDetailId, quantity, unitPrice)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		detail.ID, detail.OrderID, detail.Position, detail.VehicleDetailID, detail.Quantity, detail.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("inserting order detail: %w", err)
	}
	return nil
}

func (r *MySQLOrderDetailRepository) FindByOrderID(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	query := `
		SELECT id, orderId, position, vehicleDetailId, quantity, unitPrice
		FROM OrderDetails
		WHERE orderId = ?
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying order details: %w", err)
	}
	defer rows.Close()

	var details []domain.OrderDetail
	for rows.Next() {
		var d domain.OrderDetail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.Position, &d.VehicleDetailID, &d.Quantity, &d.UnitPrice); err != nil {
			return nil, fmt.Errorf("scanning order detail row: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order detail rows: %w", err)
	}

	return details, nil
}
