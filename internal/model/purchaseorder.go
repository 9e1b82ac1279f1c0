package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type POStatus string

const (
	POStatusOpen      POStatus = "OPEN"
	POStatusActive    POStatus = "ACTIVE"
	POStatusClosed    POStatus = "CLOSED"
	POStatusCancelled POStatus = "CANCELLED"
)

// IsTerminal reports whether the PO can no longer fund new financial lines.
func (s POStatus) IsTerminal() bool {
	return s == POStatusClosed || s == POStatusCancelled
}

type PurchaseOrder struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"projectId"`
	PONo       string          `gorm:"column:po_no;uniqueIndex;not null" json:"poNo"`
	ContractNo string          `json:"contractNo"`
	POCurrency string          `gorm:"column:po_currency;not null" json:"poCurrency"`
	POAmount   decimal.Decimal `gorm:"column:po_amount;type:decimal(18,2);not null" json:"poAmount"`
	Status     POStatus        `gorm:"not null;default:'OPEN'" json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (PurchaseOrder) TableName() string { return "purchase_orders" }

func (p *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// POBalance is a purchase order together with how much of it is already
// committed to financial lines of the same project.
type POBalance struct {
	PurchaseOrder
	ConsumedAmount  decimal.Decimal `json:"consumedAmount"`
	AvailableAmount decimal.Decimal `json:"availableAmount"`
}
