package mysql

import (
	"errors"

	driver "github.com/go-sql-driver/mysql"
)

const (
	errDuplicateEntry  = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

func IsDuplicateKey(err error) bool {
	return hasNumber(err, errDuplicateEntry)
}

// IsRetryable reports deadlocks and lock wait timeouts, both of which are
// safe to retry with a fresh transaction.
func IsRetryable(err error) bool {
	return hasNumber(err, errDeadlock, errLockWaitTimeout)
}

func hasNumber(err error, numbers ...uint16) bool {
	var mysqlErr *driver.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	for _, n := range numbers {
		if mysqlErr.Number == n {
			return true
		}
	}
	return false
}
