package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// rowsAffected returns the number of rows changed by an Exec.
func rowsAffected(result sql.Result) (int, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
