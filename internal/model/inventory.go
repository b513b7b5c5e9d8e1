package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VendorInventory is a vendor's priced stock record. Procurement items that
// reference one pull their unit price from it and reserve against Quantity.
type VendorInventory struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Vendor    string          `gorm:"type:varchar(255);not null;index" json:"vendor"`
	ItemName  string          `gorm:"type:varchar(255);not null" json:"item_name"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Quantity  int             `gorm:"type:int;not null;default:0" json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StockItem is a company inventory record, upserted by item name when an
// accepted procurement item is added to stock.
type StockItem struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ItemName      string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"item_name"`
	Quantity      int        `gorm:"type:int;not null;default:0" json:"quantity"`
	LastUpdatedBy *uuid.UUID `gorm:"type:uuid" json:"last_updated_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (v *VendorInventory) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (s *StockItem) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
