package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusActive ProjectStatus = "ACTIVE"
	ProjectStatusOnHold ProjectStatus = "ON_HOLD"
	ProjectStatusClosed ProjectStatus = "CLOSED"
)

type Project struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"customerId"`
	ProjectNo       string        `gorm:"uniqueIndex;not null" json:"projectNo"`
	Name            string        `gorm:"not null" json:"name"`
	LegalEntity     string        `json:"legalEntity"`
	ProjectCurrency string        `gorm:"not null" json:"projectCurrency"`
	BillingType     string        `json:"billingType"`
	StartDate       time.Time     `gorm:"not null" json:"startDate"`
	EndDate         time.Time     `gorm:"not null" json:"endDate"`
	Status          ProjectStatus `gorm:"not null;default:'ACTIVE'" json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ContainsDate reports whether d falls inside the project schedule, bounds inclusive.
func (p *Project) ContainsDate(d time.Time) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}
