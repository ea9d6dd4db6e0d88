package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schema string

// Tables lists every table created by Migrate, parents first.
var Tables = []string{
	"Orders",
	"OrderDetails",
	"Contracts",
	"Payments",
	"Inventory",
	"Distributions",
	"DistributionItems",
	"InventoryReservations",
}

// Migrate creates any missing table. The DSN must allow multi statements.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
