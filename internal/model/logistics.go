package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transportation status constants — BOOKED is the committal status
const (
	TransportationPending   = "PENDING"
	TransportationBooked    = "BOOKED"
	TransportationCancelled = "CANCELLED"
)

// Accommodation status constants — CONFIRMED is the committal status
const (
	AccommodationPending   = "PENDING"
	AccommodationConfirmed = "CONFIRMED"
	AccommodationCancelled = "CANCELLED"
)

// Expense status constants — PAID is the committal status
const (
	ExpensePending   = "PENDING"
	ExpensePaid      = "PAID"
	ExpenseCancelled = "CANCELLED"
)

// StatusChange is one append-only history entry on a logistics sub-item
type StatusChange struct {
	Status string    `json:"status"`
	Date   time.Time `json:"date"`
}

// StatusHistory is stored as a jsonb column. It is append-only: entries are
// never edited or truncated.
type StatusHistory []StatusChange

func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		h = StatusHistory{}
	}
	return json.Marshal(h)
}

func (h *StatusHistory) Scan(value interface{}) error {
	if value == nil {
		*h = StatusHistory{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("unsupported status history column type %T", value)
	}
}

func (StatusHistory) GormDataType() string { return "jsonb" }

// Logistics is a trip/operation sheet referencing a budget by id. The three
// collection totals and the grand total are recomputed from scratch after
// every sub-item mutation.
type Logistics struct {
	ID                    uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	BudgetID              uuid.UUID              `gorm:"type:uuid;not null;index" json:"budget_id"`
	Title                 string                 `gorm:"type:varchar(255)" json:"title"`
	TransportationTotal   decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0" json:"transportation_total"`
	AccommodationTotal    decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0" json:"accommodation_total"`
	ExpensesTotal         decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0" json:"expenses_total"`
	GrandTotal            decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0" json:"grand_total"`
	TransportationDetails []TransportationDetail `gorm:"foreignKey:LogisticsID" json:"transportation_details"`
	AccommodationDetails  []AccommodationDetail  `gorm:"foreignKey:LogisticsID" json:"accommodation_details"`
	AdditionalExpenses    []AdditionalExpense    `gorm:"foreignKey:LogisticsID" json:"additional_expenses"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// TransportationDetail — a BOOKED transition debits the referenced budget item by Price
type TransportationDetail struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LogisticsID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"logistics_id"`
	BudgetItemID  uuid.UUID       `gorm:"type:uuid;not null" json:"budget_item_id"`
	Mode          string          `gorm:"type:varchar(100)" json:"mode"`
	Origin        string          `gorm:"type:varchar(255)" json:"origin"`
	Destination   string          `gorm:"type:varchar(255)" json:"destination"`
	DepartureDate *time.Time      `json:"departure_date"`
	Price         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"price"`
	Status        string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	StatusHistory StatusHistory   `gorm:"type:jsonb" json:"status_history"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AccommodationDetail — a CONFIRMED transition debits the referenced budget item by Price
type AccommodationDetail struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LogisticsID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"logistics_id"`
	BudgetItemID  uuid.UUID       `gorm:"type:uuid;not null" json:"budget_item_id"`
	Location      string          `gorm:"type:varchar(255)" json:"location"`
	CheckIn       *time.Time      `json:"check_in"`
	CheckOut      *time.Time      `json:"check_out"`
	Price         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"price"`
	Status        string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	StatusHistory StatusHistory   `gorm:"type:jsonb" json:"status_history"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AdditionalExpense — a PAID transition debits the referenced budget item by Amount
type AdditionalExpense struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	LogisticsID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"logistics_id"`
	BudgetItemID  uuid.UUID       `gorm:"type:uuid;not null" json:"budget_item_id"`
	Description   string          `gorm:"type:text" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"amount"`
	Status        string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	StatusHistory StatusHistory   `gorm:"type:jsonb" json:"status_history"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (l *Logistics) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

func (d *TransportationDetail) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (d *AccommodationDetail) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (e *AdditionalExpense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// RecalculateTotals re-derives the three collection totals and the grand
// total from the current sub-items.
func (l *Logistics) RecalculateTotals() {
	transportation := decimal.Zero
	for _, d := range l.TransportationDetails {
		transportation = transportation.Add(d.Price)
	}
	accommodation := decimal.Zero
	for _, d := range l.AccommodationDetails {
		accommodation = accommodation.Add(d.Price)
	}
	expenses := decimal.Zero
	for _, e := range l.AdditionalExpenses {
		expenses = expenses.Add(e.Amount)
	}

	l.TransportationTotal = transportation
	l.AccommodationTotal = accommodation
	l.ExpensesTotal = expenses
	l.GrandTotal = transportation.Add(accommodation).Add(expenses)
}
