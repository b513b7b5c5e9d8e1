package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateBudget   = "CREATE_BUDGET"
	ActionUpdateLedger   = "UPDATE_LEDGER"
	ActionDebitLedger    = "DEBIT_LEDGER"
	ActionSubmitAligned  = "SUBMIT_ALIGNED_AMOUNT"
	ActionApproveAligned = "APPROVE_ALIGNED_AMOUNT"
	ActionRejectAligned  = "REJECT_ALIGNED_AMOUNT"
	ActionRemoveAligned  = "REMOVE_ALIGNED_AMOUNT"

	ActionProcessProcurement = "PROCESS_PROCUREMENT"
	ActionReceiveItem        = "RECEIVE_PROCUREMENT_ITEM"
	ActionRejectItem         = "REJECT_PROCUREMENT_ITEM"
	ActionAddToInventory     = "ADD_ITEM_TO_INVENTORY"

	ActionUpdateLogisticsItem = "UPDATE_LOGISTICS_ITEM"
	ActionDeleteLogisticsItem = "DELETE_LOGISTICS_ITEM"
)

// AuditLog tracks Who, What, and When for critical financial changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully if automated
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
