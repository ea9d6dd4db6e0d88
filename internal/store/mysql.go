package store

import (
	"context"
	"database/sql"
	"time"

	contractrepo "dealerhub/internal/contract/repository"
	distributionrepo "dealerhub/internal/distribution/repository"
	apperrors "dealerhub/internal/errors"
	inventoryrepo "dealerhub/internal/inventory/repository"
	orderrepo "dealerhub/internal/order/repository"
	paymentrepo "dealerhub/internal/payment/repository"
)

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type MySQLManager struct {
	db      TransactionManager
	timeout time.Duration
}

func NewMySQLManager(db TransactionManager, timeout time.Duration) *MySQLManager {
	return &MySQLManager{db: db, timeout: timeout}
}

func (m *MySQLManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sqlTx, err := m.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return apperrors.NewInternalError("beginning transaction", err)
	}
	// MySQL ignores rollback after commit.
	defer sqlTx.Rollback()

	if err := fn(txCtx, newMySQLTx(sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return apperrors.NewInternalError("committing transaction", err)
	}
	return nil
}

type mysqlTx struct {
	orders        *orderrepo.MySQLOrderRepository
	contracts     *contractrepo.MySQLContractRepository
	payments      *paymentrepo.MySQLPaymentRepository
	distributions *distributionrepo.MySQLDistributionRepository
	inventory     *inventoryrepo.MySQLInventoryRepository
}

func newMySQLTx(tx *sql.Tx) *mysqlTx {
	return &mysqlTx{
		orders:        orderrepo.NewMySQLOrderRepository(tx),
		contracts:     contractrepo.NewMySQLContractRepository(tx),
		payments:      paymentrepo.NewMySQLPaymentRepository(tx),
		distributions: distributionrepo.NewMySQLDistributionRepository(tx),
		inventory:     inventoryrepo.NewMySQLInventoryRepository(tx),
	}
}

func (t *mysqlTx) Orders() OrderRepository               { return t.orders }
func (t *mysqlTx) Contracts() ContractRepository         { return t.contracts }
func (t *mysqlTx) Payments() PaymentRepository           { return t.payments }
func (t *mysqlTx) Distributions() DistributionRepository { return t.distributions }
func (t *mysqlTx) Inventory() InventoryRepository        { return t.inventory }
