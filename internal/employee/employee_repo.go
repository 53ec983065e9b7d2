package employee

import (
	"context"

	"leavedesk/internal/identity"

	"gorm.io/gorm"
)

//go:generate mockgen -source=employee_repo.go -destination=mock/employee_repo_mock.go -package=mock
type Repository interface {
	FindByID(ctx context.Context, id string) (*Employee, error)
	// FindApprover returns the notification recipient for new applications:
	// the first manager, falling back to an admin.
	FindApprover(ctx context.Context) (*Employee, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id string) (*Employee, error) {
	var e Employee
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) FindApprover(ctx context.Context) (*Employee, error) {
	var e Employee
	err := r.db.WithContext(ctx).
		Where("role IN ?", []string{identity.RoleManager, identity.RoleAdmin}).
		Order("CASE role WHEN 'manager' THEN 0 ELSE 1 END, created_at ASC").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}
