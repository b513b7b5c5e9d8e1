package repository

import (
	"context"
	"errors"
	"fmt"

	"finops-backend/internal/model"
	"finops-backend/pkg/apperr"

	"gorm.io/gorm"
)

// BudgetRepository loads and persists the budget aggregate as a whole.
// Mutations happen in memory on the loaded tree; Save writes everything back
// under an optimistic version check on the root row.
type BudgetRepository interface {
	Create(ctx context.Context, budget *model.Budget) error
	Get(ctx context.Context, id string) (*model.Budget, error)
	List(ctx context.Context, page, limit int) ([]model.Budget, int64, error)
	Save(ctx context.Context, budget *model.Budget) error
	DeleteCategory(ctx context.Context, category *model.BudgetCategory) error
	DeleteItem(ctx context.Context, item *model.BudgetItem) error
	DeleteAlignedAmount(ctx context.Context, aligned *model.AlignedAmount) error
}

type budgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) BudgetRepository {
	return &budgetRepository{db: db}
}

func (r *budgetRepository) Create(ctx context.Context, budget *model.Budget) error {
	return GetDB(ctx, r.db).Create(budget).Error
}

func (r *budgetRepository) Get(ctx context.Context, id string) (*model.Budget, error) {
	var budget model.Budget
	err := GetDB(ctx, r.db).
		Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Categories.Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Categories.AlignedAmounts", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("Categories.AlignedAmounts.Approvals").
		First(&budget, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Entity: "budget", ID: id}
		}
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	return &budget, nil
}

func (r *budgetRepository) List(ctx context.Context, page, limit int) ([]model.Budget, int64, error) {
	var budgets []model.Budget
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Budget{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&budgets).Error; err != nil {
		return nil, 0, err
	}

	return budgets, total, nil
}

// Save persists the whole aggregate. The root row is bumped with a version
// guard first; zero rows affected means a concurrent writer won and the
// caller's view is stale.
func (r *budgetRepository) Save(ctx context.Context, budget *model.Budget) error {
	db := GetDB(ctx, r.db)

	current := budget.Version
	res := db.Model(&model.Budget{}).
		Where("id = ? AND version = ?", budget.ID, current).
		Update("version", current+1)
	if res.Error != nil {
		return fmt.Errorf("failed to bump budget version: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrConcurrentModification
	}

	budget.Version = current + 1
	if err := db.Session(&gorm.Session{FullSaveAssociations: true}).Save(budget).Error; err != nil {
		return fmt.Errorf("failed to save budget aggregate: %w", err)
	}
	return nil
}

func (r *budgetRepository) DeleteCategory(ctx context.Context, category *model.BudgetCategory) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("category_id = ?", category.ID).Delete(&model.BudgetItem{}).Error; err != nil {
		return err
	}
	if err := db.Where("category_id = ?", category.ID).Delete(&model.AlignedAmount{}).Error; err != nil {
		return err
	}
	return db.Delete(category).Error
}

func (r *budgetRepository) DeleteItem(ctx context.Context, item *model.BudgetItem) error {
	return GetDB(ctx, r.db).Delete(item).Error
}

func (r *budgetRepository) DeleteAlignedAmount(ctx context.Context, aligned *model.AlignedAmount) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("aligned_amount_id = ?", aligned.ID).Delete(&model.AlignedApproval{}).Error; err != nil {
		return err
	}
	return db.Delete(aligned).Error
}
