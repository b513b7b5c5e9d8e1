package repository

import (
	"context"
	"errors"
	"fmt"

	"finops-backend/internal/model"
	"finops-backend/pkg/apperr"

	"gorm.io/gorm"
)

type LogisticsRepository interface {
	Create(ctx context.Context, logistics *model.Logistics) error
	Get(ctx context.Context, id string) (*model.Logistics, error)
	List(ctx context.Context, page, limit int) ([]model.Logistics, int64, error)
	ListByBudget(ctx context.Context, budgetID string) ([]model.Logistics, error)
	Save(ctx context.Context, logistics *model.Logistics) error
	DeleteTransportation(ctx context.Context, detail *model.TransportationDetail) error
	DeleteAccommodation(ctx context.Context, detail *model.AccommodationDetail) error
	DeleteExpense(ctx context.Context, expense *model.AdditionalExpense) error
}

type logisticsRepository struct {
	db *gorm.DB
}

func NewLogisticsRepository(db *gorm.DB) LogisticsRepository {
	return &logisticsRepository{db: db}
}

func (r *logisticsRepository) Create(ctx context.Context, logistics *model.Logistics) error {
	return GetDB(ctx, r.db).Create(logistics).Error
}

func (r *logisticsRepository) Get(ctx context.Context, id string) (*model.Logistics, error) {
	var logistics model.Logistics
	err := GetDB(ctx, r.db).
		Preload("TransportationDetails", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("AccommodationDetails", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("AdditionalExpenses", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&logistics, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Entity: "logistics", ID: id}
		}
		return nil, fmt.Errorf("failed to load logistics record: %w", err)
	}
	return &logistics, nil
}

func (r *logisticsRepository) List(ctx context.Context, page, limit int) ([]model.Logistics, int64, error) {
	var records []model.Logistics
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Logistics{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ListByBudget returns every logistics record for one budget with all three
// sub-collections loaded, without pagination.
func (r *logisticsRepository) ListByBudget(ctx context.Context, budgetID string) ([]model.Logistics, error) {
	var records []model.Logistics
	err := GetDB(ctx, r.db).
		Preload("TransportationDetails", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("AccommodationDetails", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("AdditionalExpenses", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Where("budget_id = ?", budgetID).
		Order("created_at").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list logistics records for budget: %w", err)
	}
	return records, nil
}

func (r *logisticsRepository) Save(ctx context.Context, logistics *model.Logistics) error {
	return GetDB(ctx, r.db).Session(&gorm.Session{FullSaveAssociations: true}).Save(logistics).Error
}

func (r *logisticsRepository) DeleteTransportation(ctx context.Context, detail *model.TransportationDetail) error {
	return GetDB(ctx, r.db).Delete(detail).Error
}

func (r *logisticsRepository) DeleteAccommodation(ctx context.Context, detail *model.AccommodationDetail) error {
	return GetDB(ctx, r.db).Delete(detail).Error
}

func (r *logisticsRepository) DeleteExpense(ctx context.Context, expense *model.AdditionalExpense) error {
	return GetDB(ctx, r.db).Delete(expense).Error
}
