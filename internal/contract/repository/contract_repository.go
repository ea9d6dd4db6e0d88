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

type MySQLContractRepository struct {
	db mysql.DBTX
}

func NewMySQLContractRepository(db mysql.DBTX) *MySQLContractRepository {
	return &MySQLContractRepository{db: db}
}

const contractColumns = `id, orderId, status, termsConditions, warrantyInfo, insuranceInfo,
		       signedAt, version, createdAt, updatedAt`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (domain.Contract, error) {
	var c domain.Contract
	var signedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.OrderID, &c.Status, &c.TermsConditions, &c.WarrantyInfo, &c.InsuranceInfo,
		&signedAt, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if signedAt.Valid {
		t := signedAt.Time
		c.SignedAt = &t
	}
	return c, err
}

func (r *MySQLContractRepository) Insert(ctx context.Context, contract *domain.Contract) error {
	query := `
		INSERT INTO Contracts (id, orderId, status, termsConditions, warrantyInfo, insuranceInfo,
		                       signedAt, version, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		contract.ID, contract.OrderID, contract.Status,
		contract.TermsConditions, contract.WarrantyInfo, contract.InsuranceInfo,
		contract.SignedAt, contract.Version, contract.CreatedAt, contract.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting contract: %w", err)
	}
	return nil
}

func (r *MySQLContractRepository) FindByID(ctx context.Context, id string) (*domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM Contracts WHERE id = ? FOR UPDATE`

	contract, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("contract %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying contract by id: %w", err)
	}
	return &contract, nil
}

func (r *MySQLContractRepository) FindByOrderID(ctx context.Context, orderID string) ([]domain.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM Contracts WHERE orderId = ? ORDER BY createdAt ASC FOR UPDATE`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("querying contracts by order id: %w", err)
	}
	defer rows.Close()

	var contracts []domain.Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning contract row: %w", err)
		}
		contracts = append(contracts, contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contract rows: %w", err)
	}
	return contracts, nil
}

func (r *MySQLContractRepository) Update(ctx context.Context, contract *domain.Contract) error {
	query := `
		UPDATE Contracts
		SET status = ?, termsConditions = ?, warrantyInfo = ?, insuranceInfo = ?,
		    signedAt = ?, updatedAt = ?, version = version + 1
		WHERE id = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		contract.Status, contract.TermsConditions, contract.WarrantyInfo, contract.InsuranceInfo,
		contract.SignedAt, contract.UpdatedAt, contract.ID, contract.Version,
	)
	if err != nil {
		return fmt.Errorf("updating contract: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewConcurrentModificationError("contract", contract.ID)
	}

	contract.Version++
	return nil
}
