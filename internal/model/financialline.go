package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ContractType string

const (
	ContractTypeTimeAndMaterials ContractType = "T&M"
	ContractTypeFixedBid         ContractType = "FIXED_BID"
	ContractTypeFixedMonthly     ContractType = "FIXED_MONTHLY"
	ContractTypeLicense          ContractType = "LICENSE"
)

// RequiresMilestones reports whether the contract type needs a payment
// milestone schedule. Only time-and-materials lines are billed by actuals.
func (c ContractType) RequiresMilestones() bool {
	return c != ContractTypeTimeAndMaterials
}

func (c ContractType) Valid() bool {
	switch c {
	case ContractTypeTimeAndMaterials, ContractTypeFixedBid, ContractTypeFixedMonthly, ContractTypeLicense:
		return true
	}
	return false
}

type LocationType string

const (
	LocationOnsite   LocationType = "ONSITE"
	LocationOffshore LocationType = "OFFSHORE"
	LocationHybrid   LocationType = "HYBRID"
)

func (l LocationType) Valid() bool {
	switch l {
	case LocationOnsite, LocationOffshore, LocationHybrid:
		return true
	}
	return false
}

type RateUOM string

const (
	RateUOMHour  RateUOM = "HR"
	RateUOMDay   RateUOM = "DAY"
	RateUOMMonth RateUOM = "MONTH"
)

func (u RateUOM) Valid() bool {
	switch u {
	case RateUOMHour, RateUOMDay, RateUOMMonth:
		return true
	}
	return false
}

type FLStatus string

const (
	FLStatusDraft     FLStatus = "DRAFT"
	FLStatusActive    FLStatus = "ACTIVE"
	FLStatusArchived  FLStatus = "ARCHIVED"
	FLStatusClosed    FLStatus = "CLOSED"
	FLStatusCancelled FLStatus = "CANCELLED"
)

// AvailableForResourcing reports whether the line should appear in resourcing
// views. Archived, closed and cancelled lines are hidden there, but their
// funding rows still count against PO balances.
func (s FLStatus) AvailableForResourcing() bool {
	switch s {
	case FLStatusArchived, FLStatusClosed, FLStatusCancelled:
		return false
	}
	return true
}

type FinancialLine struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FLNo              string          `gorm:"column:fl_no;uniqueIndex;not null" json:"flNo"`
	ProjectID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"projectId"`
	Name              string          `gorm:"not null" json:"flName"`
	ContractType      ContractType    `gorm:"not null" json:"contractType"`
	LocationType      LocationType    `json:"locationType"`
	ExecutionEntity   string          `json:"executionEntity"`
	Currency          string          `gorm:"not null" json:"currency"`
	TimesheetApprover string          `json:"timesheetApprover"`
	ScheduleStart     time.Time       `gorm:"not null" json:"scheduleStart"`
	ScheduleFinish    time.Time       `gorm:"not null" json:"scheduleFinish"`
	BillingRate       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"billingRate"`
	RateUOM           RateUOM         `gorm:"column:rate_uom" json:"rateUom"`
	Effort            decimal.Decimal `gorm:"type:decimal(18,4)" json:"effort"`
	EffortUOM         string          `gorm:"column:effort_uom" json:"effortUom"`
	RevenueAmount     decimal.Decimal `gorm:"type:decimal(18,2)" json:"revenueAmount"`
	ExpectedRevenue   decimal.Decimal `gorm:"type:decimal(18,2)" json:"expectedRevenue"`
	Status            FLStatus        `gorm:"not null;default:'DRAFT'" json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`

	Funding           []FundingAllocation `gorm:"foreignKey:FinancialLineID;constraint:OnDelete:CASCADE" json:"funding"`
	RevenuePlanning   []RevenueMonth      `gorm:"foreignKey:FinancialLineID;constraint:OnDelete:CASCADE" json:"revenuePlanning"`
	PaymentMilestones []Milestone         `gorm:"foreignKey:FinancialLineID;constraint:OnDelete:CASCADE" json:"paymentMilestones"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (FinancialLine) TableName() string { return "financial_lines" }

func (f *FinancialLine) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// TotalFunding is the sum of funding values in project currency.
func (f *FinancialLine) TotalFunding() decimal.Decimal {
	total := decimal.Zero
	for _, row := range f.Funding {
		total = total.Add(row.FundingValueProject)
	}
	return total
}

type FundingAllocation struct {
	ID                      uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FinancialLineID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"financialLineId"`
	Position                int             `gorm:"not null" json:"position"`
	PONo                    string          `gorm:"column:po_no;not null;index" json:"poNo"`
	ContractNo              string          `json:"contractNo"`
	ProjectCurrency         string          `json:"projectCurrency"`
	POCurrency              string          `gorm:"column:po_currency" json:"poCurrency"`
	UnitRate                decimal.Decimal `gorm:"type:decimal(18,4)" json:"unitRate"`
	FundingUnits            decimal.Decimal `gorm:"type:decimal(18,4)" json:"fundingUnits"`
	UOM                     string          `gorm:"column:uom" json:"uom"`
	FundingValueProject     decimal.Decimal `gorm:"type:decimal(18,2)" json:"fundingValueProject"`
	FundingAmountPOCurrency decimal.Decimal `gorm:"column:funding_amount_po_currency;type:decimal(18,2)" json:"fundingAmountPoCurrency"`
}

func (FundingAllocation) TableName() string { return "fl_funding_allocations" }

func (a *FundingAllocation) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// RevenueMonth is one calendar-month planning bucket. Month is keyed "2006-01".
type RevenueMonth struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FinancialLineID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"financialLineId"`
	Month             string          `gorm:"not null" json:"month"`
	PlannedUnits      decimal.Decimal `gorm:"type:decimal(18,4)" json:"plannedUnits"`
	PlannedRevenue    decimal.Decimal `gorm:"type:decimal(18,2)" json:"plannedRevenue"`
	ActualUnits       decimal.Decimal `gorm:"type:decimal(18,4)" json:"actualUnits"`
	ActualRevenue     decimal.Decimal `gorm:"type:decimal(18,2)" json:"actualRevenue"`
	ForecastedUnits   decimal.Decimal `gorm:"type:decimal(18,4)" json:"forecastedUnits"`
	ForecastedRevenue decimal.Decimal `gorm:"type:decimal(18,2)" json:"forecastedRevenue"`
}

func (RevenueMonth) TableName() string { return "fl_revenue_months" }

func (m *RevenueMonth) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type Milestone struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FinancialLineID uuid.UUID       `gorm:"type:uuid;not null;index" json:"financialLineId"`
	Position        int             `gorm:"not null" json:"position"`
	Name            string          `gorm:"not null" json:"milestoneName"`
	DueDate         time.Time       `gorm:"not null" json:"dueDate"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	Notes           string          `json:"notes"`
}

func (Milestone) TableName() string { return "fl_milestones" }

func (m *Milestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
