package repository

import (
	"context"
	"errors"
	"fmt"

	"finops-backend/internal/model"
	"finops-backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryRepository covers both vendor inventory (read side of procurement
// pricing) and the company stock upserted on receipt.
type InventoryRepository interface {
	GetVendorInventory(ctx context.Context, id string) (*model.VendorInventory, error)
	CreateVendorInventory(ctx context.Context, record *model.VendorInventory) error
	SaveVendorInventory(ctx context.Context, record *model.VendorInventory) error
	UpsertStockItem(ctx context.Context, itemName string, quantity int, actorID *uuid.UUID) (*model.StockItem, error)
	ListStockItems(ctx context.Context, page, limit int) ([]model.StockItem, int64, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) GetVendorInventory(ctx context.Context, id string) (*model.VendorInventory, error) {
	var record model.VendorInventory
	if err := GetDB(ctx, r.db).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Entity: "vendor inventory", ID: id}
		}
		return nil, fmt.Errorf("failed to load vendor inventory: %w", err)
	}
	return &record, nil
}

func (r *inventoryRepository) CreateVendorInventory(ctx context.Context, record *model.VendorInventory) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *inventoryRepository) SaveVendorInventory(ctx context.Context, record *model.VendorInventory) error {
	return GetDB(ctx, r.db).Save(record).Error
}

// UpsertStockItem increments the stock record for itemName, creating it on
// first receipt.
func (r *inventoryRepository) UpsertStockItem(ctx context.Context, itemName string, quantity int, actorID *uuid.UUID) (*model.StockItem, error) {
	db := GetDB(ctx, r.db)

	var stock model.StockItem
	err := db.First(&stock, "item_name = ?", itemName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stock = model.StockItem{
			ItemName:      itemName,
			Quantity:      quantity,
			LastUpdatedBy: actorID,
		}
		if createErr := db.Create(&stock).Error; createErr != nil {
			return nil, fmt.Errorf("failed to create stock item: %w", createErr)
		}
		return &stock, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load stock item: %w", err)
	}

	stock.Quantity += quantity
	stock.LastUpdatedBy = actorID
	if saveErr := db.Save(&stock).Error; saveErr != nil {
		return nil, fmt.Errorf("failed to update stock item: %w", saveErr)
	}
	return &stock, nil
}

func (r *inventoryRepository) ListStockItems(ctx context.Context, page, limit int) ([]model.StockItem, int64, error) {
	var items []model.StockItem
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.StockItem{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("item_name").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}
