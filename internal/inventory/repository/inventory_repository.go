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

// MySQLInventoryRepository reads and hands off inventory units owned by the
// inventory service; only owner and status are ever written here.
type MySQLInventoryRepository struct {
	db mysql.DBTX
}

func NewMySQLInventoryRepository(db mysql.DBTX) *MySQLInventoryRepository {
	return &MySQLInventoryRepository{db: db}
}

func (r *MySQLInventoryRepository) FindByID(ctx context.Context, id string) (*domain.Inventory, error) {
	query := `
		SELECT id, vin, vehicleDetailId, dealerId, status, version, updatedAt
		FROM Inventory
		WHERE id = ?
		FOR UPDATE
	`

	var inv domain.Inventory
	var dealerID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &inv.VIN, &inv.VehicleDetailID, &dealerID, &inv.Status, &inv.Version, &inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("inventory %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying inventory by id: %w", err)
	}
	if dealerID.Valid {
		inv.DealerID = &dealerID.String
	}

	return &inv, nil
}

func (r *MySQLInventoryRepository) Update(ctx context.Context, inv *domain.Inventory) error {
	query := `
		UPDATE Inventory
		SET dealerId = ?, status = ?, updatedAt = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query, inv.DealerID, inv.Status, inv.UpdatedAt, inv.ID, inv.Version)
	if err != nil {
		return fmt.Errorf("updating inventory: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConcurrentModificationError("inventory", inv.ID)
	}

	inv.Version++
	return nil
}
