package repository

import (
	"context"
	"errors"
	"fmt"

	"finops-backend/internal/model"
	"finops-backend/pkg/apperr"

	"gorm.io/gorm"
)

type ProcurementRepository interface {
	Create(ctx context.Context, procurement *model.Procurement) error
	Get(ctx context.Context, id string) (*model.Procurement, error)
	List(ctx context.Context, page, limit int) ([]model.Procurement, int64, error)
	ListByBudget(ctx context.Context, budgetID string) ([]model.Procurement, error)
	Save(ctx context.Context, procurement *model.Procurement) error
	SaveItem(ctx context.Context, item *model.ProcurementItem) error
	ReplaceItems(ctx context.Context, procurement *model.Procurement, items []model.ProcurementItem) error
}

type procurementRepository struct {
	db *gorm.DB
}

func NewProcurementRepository(db *gorm.DB) ProcurementRepository {
	return &procurementRepository{db: db}
}

func (r *procurementRepository) Create(ctx context.Context, procurement *model.Procurement) error {
	return GetDB(ctx, r.db).Create(procurement).Error
}

func (r *procurementRepository) Get(ctx context.Context, id string) (*model.Procurement, error) {
	var procurement model.Procurement
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&procurement, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Entity: "procurement", ID: id}
		}
		return nil, fmt.Errorf("failed to load procurement: %w", err)
	}
	return &procurement, nil
}

func (r *procurementRepository) List(ctx context.Context, page, limit int) ([]model.Procurement, int64, error) {
	var procurements []model.Procurement
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Procurement{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Items").Order("created_at desc").Offset(offset).Limit(limit).Find(&procurements).Error; err != nil {
		return nil, 0, err
	}

	return procurements, total, nil
}

// ListByBudget returns every procurement charged against one budget, items
// included, without pagination.
func (r *procurementRepository) ListByBudget(ctx context.Context, budgetID string) ([]model.Procurement, error) {
	var procurements []model.Procurement
	err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Where("budget_id = ?", budgetID).
		Order("created_at").
		Find(&procurements).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list procurements for budget: %w", err)
	}
	return procurements, nil
}

func (r *procurementRepository) Save(ctx context.Context, procurement *model.Procurement) error {
	return GetDB(ctx, r.db).Session(&gorm.Session{FullSaveAssociations: true}).Save(procurement).Error
}

func (r *procurementRepository) SaveItem(ctx context.Context, item *model.ProcurementItem) error {
	return GetDB(ctx, r.db).Save(item).Error
}

// ReplaceItems swaps the procurement's line items for the validated set
func (r *procurementRepository) ReplaceItems(ctx context.Context, procurement *model.Procurement, items []model.ProcurementItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("procurement_id = ?", procurement.ID).Delete(&model.ProcurementItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].ProcurementID = procurement.ID
		if err := db.Create(&items[i]).Error; err != nil {
			return err
		}
	}
	procurement.Items = items
	return nil
}
