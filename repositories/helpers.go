package repositories

import (
	"database/sql"
	"fmt"
)

// checkAffectedRows переводит пустой UPDATE/DELETE в ошибку "не найдено".
// Условные обновления матча используют её же, чтобы отличить потерю гонки
// от отсутствия записи.
func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}
