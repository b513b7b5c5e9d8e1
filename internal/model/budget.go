package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BudgetStatus constants
const (
	BudgetStatusPending   = "PENDING"
	BudgetStatusApproved  = "APPROVED"
	BudgetStatusRejected  = "REJECTED"
	BudgetStatusCompleted = "COMPLETED"
)

// CategoryRole constants — stable role identifiers replacing lookup-by-title.
// At most one PROCUREMENT and one LOGISTICS category may exist per budget.
const (
	CategoryRoleGeneral     = "GENERAL"
	CategoryRoleProcurement = "PROCUREMENT"
	CategoryRoleLogistics   = "LOGISTICS"
)

// AlignedAmountStatus constants
const (
	AlignedStatusPending  = "PENDING"
	AlignedStatusApproved = "APPROVED"
	AlignedStatusRejected = "REJECTED"
)

// Budget is the root of the ledger aggregate. Categories, items and aligned
// amounts have no lifecycle outside their budget; the whole tree is loaded,
// mutated in memory and persisted in one write.
type Budget struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string           `gorm:"type:varchar(255);not null" json:"title"`
	StartDate     time.Time        `gorm:"not null" json:"start_date"`
	EndDate       time.Time        `gorm:"not null" json:"end_date"`
	Status        string           `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CreatedBy     *uuid.UUID       `gorm:"type:uuid;index" json:"created_by"`
	LastUpdatedBy *uuid.UUID       `gorm:"type:uuid" json:"last_updated_by"`
	Version       int64            `gorm:"not null;default:1" json:"version"` // optimistic lock
	Categories    []BudgetCategory `gorm:"foreignKey:BudgetID" json:"categories"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// BudgetCategory groups budget items. Amount and BudgetedAmount are derived
// from the items and re-established after every structural mutation.
type BudgetCategory struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BudgetID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"budget_id"`
	Title          string          `gorm:"type:varchar(255);not null" json:"title"`
	Role           string          `gorm:"type:varchar(20);not null;default:'GENERAL'" json:"role"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount"`
	BudgetedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"budgeted_amount"`
	Items          []BudgetItem    `gorm:"foreignKey:CategoryID" json:"budget_items"`
	AlignedAmounts []AlignedAmount `gorm:"foreignKey:CategoryID" json:"aligned_amounts"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// BudgetItem is a single ledger line. Amount is the spendable remaining
// balance and must never go below zero; BudgetedItemAmount is the allocated
// ceiling and only ever grows (approved re-allocations).
type BudgetItem struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CategoryID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"category_id"`
	ItemName           string          `gorm:"type:varchar(255);not null" json:"item_name"`
	Amount             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount"`
	BudgetedItemAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"budgeted_item_amount"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// AlignedAmount is a re-allocation proposal targeting one budget item in the
// same category. PENDING transitions exactly once to APPROVED or REJECTED.
type AlignedAmount struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	CategoryID   uuid.UUID         `gorm:"type:uuid;not null;index" json:"category_id"`
	BudgetItemID uuid.UUID         `gorm:"type:uuid;not null" json:"budget_item_id"`
	Amount       decimal.Decimal   `gorm:"type:decimal(18,4);not null" json:"amount"`
	Personnel    string            `gorm:"type:varchar(255)" json:"personnel"`
	Comment      string            `gorm:"type:text;not null" json:"comment"`
	Date         time.Time         `json:"date"`
	Status       string            `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Approvals    []AlignedApproval `gorm:"foreignKey:AlignedAmountID" json:"approvals"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// AlignedApproval records who approved a re-allocation and when
type AlignedApproval struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AlignedAmountID uuid.UUID `gorm:"type:uuid;not null;index" json:"aligned_amount_id"`
	ApprovedBy      uuid.UUID `gorm:"type:uuid;not null" json:"approved_by"`
	Date            time.Time `json:"date"`
	CreatedAt       time.Time `json:"created_at"`
}

// IDs are generated application-side so the aggregate behaves the same on
// the postgres and the in-memory test store.

func (b *Budget) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (c *BudgetCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (i *BudgetItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (a *AlignedAmount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a *AlignedApproval) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Recalculate re-derives Amount and BudgetedAmount from the current item list.
// Must be called before persisting any mutation that touched Items.
func (c *BudgetCategory) Recalculate() {
	amount := decimal.Zero
	budgeted := decimal.Zero
	for _, item := range c.Items {
		amount = amount.Add(item.Amount)
		budgeted = budgeted.Add(item.BudgetedItemAmount)
	}
	c.Amount = amount
	c.BudgetedAmount = budgeted
}

// Recalculate re-derives every category aggregate in the budget
func (b *Budget) Recalculate() {
	for i := range b.Categories {
		b.Categories[i].Recalculate()
	}
}

// Category returns the category with the given id, or nil
func (b *Budget) Category(id uuid.UUID) *BudgetCategory {
	for i := range b.Categories {
		if b.Categories[i].ID == id {
			return &b.Categories[i]
		}
	}
	return nil
}

// CategoryByRole returns the single category serving the given role, or nil
func (b *Budget) CategoryByRole(role string) *BudgetCategory {
	for i := range b.Categories {
		if b.Categories[i].Role == role {
			return &b.Categories[i]
		}
	}
	return nil
}

// Item returns the budget item with the given id, or nil
func (c *BudgetCategory) Item(id uuid.UUID) *BudgetItem {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return &c.Items[i]
		}
	}
	return nil
}

// Aligned returns the aligned amount proposal with the given id, or nil
func (c *BudgetCategory) Aligned(id uuid.UUID) *AlignedAmount {
	for i := range c.AlignedAmounts {
		if c.AlignedAmounts[i].ID == id {
			return &c.AlignedAmounts[i]
		}
	}
	return nil
}
