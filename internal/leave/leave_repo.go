package leave

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	EmployeeID string
	Status     string
	StartDate  *time.Time
	EndDate    *time.Time
}

//go:generate mockgen -source=leave_repo.go -destination=mock/leave_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	// LockEmployee serializes all lifecycle writes for one employee within the
	// current transaction. Must be called on a WithTx repository; the lock is
	// released at commit/rollback.
	LockEmployee(ctx context.Context, employeeID string) error
	Create(ctx context.Context, l *Leave) error
	FindByID(ctx context.Context, id string) (*Leave, error)
	FindByIDAndEmployee(ctx context.Context, id, employeeID string) (*Leave, error)
	List(ctx context.Context, filter ListFilter) ([]Leave, error)
	ListPending(ctx context.Context) ([]Leave, error)
	Update(ctx context.Context, l *Leave) error
	HasOverlappingPeriod(ctx context.Context, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error)
	AggregateStats(ctx context.Context, employeeID string, year int) ([]CategoryStats, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx binds the repository to an open database/sql transaction so leave
// rows, balance deltas and outbox events share one commit.
func (r *repository) WithTx(tx *sql.Tx) Repository {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: tx}), &gorm.Config{})
	if err != nil {
		return r
	}
	return &repository{db: gdb}
}

func (r *repository) LockEmployee(ctx context.Context, employeeID string) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", employeeID).Error
}

func (r *repository) Create(ctx context.Context, l *Leave) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*Leave, error) {
	var l Leave
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) FindByIDAndEmployee(ctx context.Context, id, employeeID string) (*Leave, error) {
	var l Leave
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		First(&l, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Leave, error) {
	db := r.db.WithContext(ctx).Model(&Leave{})

	if filter.EmployeeID != "" {
		db = db.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.Status != "" {
		db = db.Where("status = ?", filter.Status)
	}
	if filter.StartDate != nil {
		db = db.Where("start_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("end_date <= ?", *filter.EndDate)
	}

	var leaves []Leave
	err := db.Order("created_at DESC").Find(&leaves).Error
	return leaves, err
}

func (r *repository) ListPending(ctx context.Context) ([]Leave, error) {
	var leaves []Leave
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at ASC").
		Find(&leaves).Error
	return leaves, err
}

func (r *repository) Update(ctx context.Context, l *Leave) error {
	return r.db.WithContext(ctx).Save(l).Error
}

// HasOverlappingPeriod reports whether a Pending or Approved request for the
// employee intersects [startDate, endDate]. Periods are inclusive on both
// ends: they overlap unless one ends before the other begins.
func (r *repository) HasOverlappingPeriod(ctx context.Context, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
	db := r.db.WithContext(ctx).
		Model(&Leave{}).
		Where("employee_id = ?", employeeID).
		Where("status IN ?", []string{StatusPending, StatusApproved}).
		Where("start_date <= ? AND end_date >= ?", endDate, startDate)

	if excludeID != nil && *excludeID != "" {
		db = db.Where("id <> ?", *excludeID)
	}

	var count int64
	err := db.Count(&count).Error
	return count > 0, err
}

func (r *repository) AggregateStats(ctx context.Context, employeeID string, year int) ([]CategoryStats, error) {
	startOfYear := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	endOfYear := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	var stats []CategoryStats
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			category,
			COALESCE(SUM(number_of_days), 0) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN number_of_days ELSE 0 END), 0) AS approved,
			COALESCE(SUM(CASE WHEN status = ? THEN number_of_days ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = ? THEN number_of_days ELSE 0 END), 0) AS rejected
		FROM leaves
		WHERE employee_id = ?
			AND start_date >= ? AND start_date <= ?
		GROUP BY category
		ORDER BY category
	`, StatusApproved, StatusPending, StatusRejected, employeeID, startOfYear, endOfYear).
		Scan(&stats).Error

	return stats, err
}
