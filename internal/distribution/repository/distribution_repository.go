package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dealerhub/internal/domain"
	apperrors "dealerhub/internal/errors"
	"dealerhub/internal/infrastructure/mysql"
)

type MySQLDistributionRepository struct {
	db  mysql.DBTX
	now func() time.Time
}

func NewMySQLDistributionRepository(db mysql.DBTX) *MySQLDistributionRepository {
	return &MySQLDistributionRepository{db: db, now: time.Now}
}

func (r *MySQLDistributionRepository) Insert(ctx context.Context, d *domain.Distribution) error {
	query := `
		INSERT INTO Distributions (id, fromDealerId, toDealerId, status, movementType, note,
		                           deliveredAt, version, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.FromDealerID, d.ToDealerID, d.Status, d.MovementType, d.Note,
		d.DeliveredAt, d.Version, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting distribution: %w", err)
	}

	itemQuery := `INSERT INTO DistributionItems (distributionId, inventoryId) VALUES (?, ?)`
	for _, inventoryID := range d.InventoryIDs {
		if _, err := r.db.ExecContext(ctx, itemQuery, d.ID, inventoryID); err != nil {
			return fmt.Errorf("inserting distribution item: %w", err)
		}
	}

	return nil
}

func (r *MySQLDistributionRepository) FindByID(ctx context.Context, id string) (*domain.Distribution, error) {
	query := `
		SELECT id, fromDealerId, toDealerId, status, movementType, note, deliveredAt,
		       version, createdAt, updatedAt
		FROM Distributions
		WHERE id = ?
		FOR UPDATE
	`

	var d domain.Distribution
	var fromDealerID sql.NullString
	var deliveredAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &fromDealerID, &d.ToDealerID, &d.Status, &d.MovementType, &d.Note, &deliveredAt,
		&d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("distribution %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying distribution by id: %w", err)
	}
	if fromDealerID.Valid {
		d.FromDealerID = &fromDealerID.String
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		d.DeliveredAt = &t
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT inventoryId FROM DistributionItems WHERE distributionId = ? ORDER BY inventoryId ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying distribution items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inventoryID string
		if err := rows.Scan(&inventoryID); err != nil {
			return nil, fmt.Errorf("scanning distribution item row: %w", err)
		}
		d.InventoryIDs = append(d.InventoryIDs, inventoryID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating distribution item rows: %w", err)
	}

	return &d, nil
}

func (r *MySQLDistributionRepository) Update(ctx context.Context, d *domain.Distribution) error {
	query := `
		UPDATE Distributions
		SET status = ?, note = ?, deliveredAt = ?, updatedAt = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query, d.Status, d.Note, d.DeliveredAt, d.UpdatedAt, d.ID, d.Version)
	if err != nil {
		return fmt.Errorf("updating distribution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConcurrentModificationError("distribution", d.ID)
	}

	d.Version++
	return nil
}

// Reserve relies on the primary key of InventoryReservations: a second open
// distribution inserting the same inventory id hits a duplicate key.
func (r *MySQLDistributionRepository) Reserve(ctx context.Context, distributionID string, inventoryIDs []string) error {
	query := `INSERT INTO InventoryReservations (inventoryId, distributionId, createdAt) VALUES (?, ?, ?)`
	now := r.now().UTC()

	for _, inventoryID := range inventoryIDs {
		_, err := r.db.ExecContext(ctx, query, inventoryID, distributionID, now)
		if mysql.IsDuplicateKey(err) {
			return apperrors.NewWorkflowError(apperrors.CodeInventoryAlreadyReserved,
				"inventory %s is already held by an open distribution", inventoryID)
		}
		if err != nil {
			return fmt.Errorf("reserving inventory: %w", err)
		}
	}
	return nil
}

func (r *MySQLDistributionRepository) Release(ctx context.Context, distributionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM InventoryReservations WHERE distributionId = ?`, distributionID); err != nil {
		return fmt.Errorf("releasing inventory reservations: %w", err)
	}
	return nil
}
