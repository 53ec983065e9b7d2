package balance

import (
	"context"
	"database/sql"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:generate mockgen -source=balance_repo.go -destination=mock/balance_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	GetBalance(ctx context.Context, employeeID, category string) (int, error)
	GetBalances(ctx context.Context, employeeID string) (map[string]int, error)
	ApplyDelta(ctx context.Context, employeeID, category string, deltaDays int) (int, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: tx}), &gorm.Config{})
	if err != nil {
		return r
	}
	return &repository{db: gdb}
}

func (r *repository) GetBalance(ctx context.Context, employeeID, category string) (int, error) {
	var b LeaveBalance
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Where("category = ?", category).
		First(&b).Error
	if err != nil {
		return 0, err
	}
	return b.BalanceDays, nil
}

func (r *repository) GetBalances(ctx context.Context, employeeID string) (map[string]int, error) {
	var rows []LeaveBalance
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("category ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	balances := make(map[string]int, len(rows))
	for _, b := range rows {
		balances[b.Category] = b.BalanceDays
	}
	return balances, nil
}

// ApplyDelta adjusts a balance in a single statement so the read-modify-write
// can never interleave with a concurrent adjustment for the same row.
func (r *repository) ApplyDelta(ctx context.Context, employeeID, category string, deltaDays int) (int, error) {
	var newBalance int

	res := r.db.WithContext(ctx).Raw(`
		UPDATE leave_balances
		SET balance_days = balance_days + ?, updated_at = now()
		WHERE employee_id = ? AND category = ?
		RETURNING balance_days
	`, deltaDays, employeeID, category).Scan(&newBalance)

	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	return newBalance, nil
}
