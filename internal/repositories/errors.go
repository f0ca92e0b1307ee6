package repositories

import (
	"errors"
	"fmt"

	"github.com/coursehub/progress-service/internal/models"
	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the repositories react to
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// classifyError wraps a driver error with the matching model sentinel
func classifyError(message string, err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDuplicateEntry:
			return fmt.Errorf("%s: %w: %w", message, models.ErrAlreadyExists, err)
		case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
			return fmt.Errorf("%s: %w: %w", message, models.ErrConcurrencyConflict, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", message, models.ErrStorageFailure, err)
}

// isDuplicateEntry reports whether err is a unique key violation
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry
}
