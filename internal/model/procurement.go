package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProcurementStatus constants
const (
	ProcurementStatusPending   = "PENDING"
	ProcurementStatusProcessed = "PROCESSED"
)

// ProcurementItemStatus constants — terminal once accepted or rejected
const (
	ProcurementItemPending  = "PENDING"
	ProcurementItemAccepted = "ACCEPTED"
	ProcurementItemRejected = "REJECTED"
)

// Procurement references a budget by id and debits its PROCUREMENT category
// through the processor; it never owns ledger data.
type Procurement struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	BudgetID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"budget_id"`
	FlowID          string            `gorm:"type:varchar(100)" json:"flow_id"`
	Status          string            `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	TotalCost       decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0" json:"total_cost"`
	ActualTotalCost decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0" json:"actual_total_cost"`
	Items           []ProcurementItem `gorm:"foreignKey:ProcurementID" json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ProcurementItem is one requested line. BudgetItemID points into the
// budget's PROCUREMENT category; AddedToInventory is a one-way flag.
type ProcurementItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProcurementID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"procurement_id"`
	ItemName          string          `gorm:"type:varchar(255);not null" json:"item_name"`
	Quantity          int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount"`
	ActualAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"actual_amount"`
	Vendor            string          `gorm:"type:varchar(255)" json:"vendor"`
	VendorInventoryID *uuid.UUID      `gorm:"type:uuid" json:"vendor_inventory_id"`
	BudgetItemID      uuid.UUID       `gorm:"type:uuid;not null" json:"budget_item_id"`
	AddedToInventory  bool            `gorm:"default:false" json:"added_to_inventory"`
	Status            string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (p *Procurement) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (i *ProcurementItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Item returns the procurement item with the given id, or nil
func (p *Procurement) Item(id uuid.UUID) *ProcurementItem {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i]
		}
	}
	return nil
}
