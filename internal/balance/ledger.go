package balance

import (
	"context"
	"database/sql"
)

// Ledger is the engine-facing surface of the balance store: debit on approval,
// credit on cancellation of an approved request. Both run inside the caller's
// transaction so a status change and its balance effect commit together.
//
//go:generate mockgen -source=ledger.go -destination=mock/ledger_mock.go -package=mock
type Ledger interface {
	WithTx(tx *sql.Tx) Ledger
	Debit(ctx context.Context, employeeID, category string, days int) (int, error)
	Credit(ctx context.Context, employeeID, category string, days int) (int, error)
	Balance(ctx context.Context, employeeID, category string) (int, error)
	Snapshot(ctx context.Context, employeeID string) (map[string]int, error)
}

type ledger struct {
	repo Repository
}

func NewLedger(repo Repository) Ledger {
	return &ledger{repo: repo}
}

func (l *ledger) WithTx(tx *sql.Tx) Ledger {
	return &ledger{repo: l.repo.WithTx(tx)}
}

func (l *ledger) Debit(ctx context.Context, employeeID, category string, days int) (int, error) {
	return l.repo.ApplyDelta(ctx, employeeID, category, -days)
}

func (l *ledger) Credit(ctx context.Context, employeeID, category string, days int) (int, error) {
	return l.repo.ApplyDelta(ctx, employeeID, category, days)
}

func (l *ledger) Balance(ctx context.Context, employeeID, category string) (int, error) {
	return l.repo.GetBalance(ctx, employeeID, category)
}

// Snapshot returns all per-category balances for an employee.
func (l *ledger) Snapshot(ctx context.Context, employeeID string) (map[string]int, error) {
	return l.repo.GetBalances(ctx, employeeID)
}
