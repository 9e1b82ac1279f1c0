// Package wizard implements the financial line creation wizard: a four step
// state machine (basics, funding, revenue plan, payment milestones) that keeps
// the funding allocation, monthly revenue plan and milestone schedule
// numerically consistent with each other and with the project schedule before
// anything is persisted.
//
// The wizard holds the draft entirely in memory. Collaborators (purchase
// order listing, existing line history for balance computation, persistence,
// the zero-plan confirmation gate) are injected, so the whole flow is
// testable with fakes.
package wizard

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmgops/rmg-console/internal/model"
)

type Step int

const (
	StepBasics Step = iota + 1
	StepFunding
	StepRevenue
	StepMilestones
)

func (s Step) String() string {
	switch s {
	case StepBasics:
		return "basics"
	case StepFunding:
		return "funding"
	case StepRevenue:
		return "revenue"
	case StepMilestones:
		return "milestones"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Backend is the external collaborator surface the wizard reads from and
// submits to.
type Backend interface {
	ListPurchaseOrders(ctx context.Context, projectID uuid.UUID) ([]model.PurchaseOrder, error)
	ListFinancialLines(ctx context.Context, projectID uuid.UUID) ([]model.FinancialLine, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (*model.Project, error)
	CreateFinancialLine(ctx context.Context, line *model.FinancialLine) (*model.FinancialLine, error)
	UpdateFinancialLine(ctx context.Context, id uuid.UUID, line *model.FinancialLine) (*model.FinancialLine, error)
}

// Confirmer answers the zero-revenue-plan question. The HTTP layer answers
// from a request flag; tests inject a canned answer.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// BasicDetails is the step-1 payload.
type BasicDetails struct {
	Name              string             `json:"flName"`
	ContractType      model.ContractType `json:"contractType"`
	LocationType      model.LocationType `json:"locationType"`
	ExecutionEntity   string             `json:"executionEntity"`
	Currency          string             `json:"currency"`
	TimesheetApprover string             `json:"timesheetApprover"`
	ScheduleStart     time.Time          `json:"scheduleStart"`
	ScheduleFinish    time.Time          `json:"scheduleFinish"`
	BillingRate       decimal.Decimal    `json:"billingRate"`
	RateUOM           model.RateUOM      `json:"rateUom"`
	EffortUOM         string             `json:"effortUom"`
}

// Wizard owns the step sequence and the draft state. It is not safe for
// concurrent use; callers serialize access (the HTTP session manager holds a
// lock per session).
type Wizard struct {
	backend Backend
	project model.Project

	// edit mode: the stored line the wizard was seeded from
	original *model.FinancialLine

	step           Step
	stepSetLocked  bool
	showMilestones bool
	closed         bool

	basics     BasicDetails
	funding    *FundingLedger
	revenue    *RevenueGrid
	milestones *MilestoneSchedule
}

// New starts a creation wizard for the given project.
func New(ctx context.Context, backend Backend, projectID uuid.UUID) (*Wizard, error) {
	project, err := backend.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &Wizard{
		backend: backend,
		project: *project,
		step:    StepBasics,
		basics: BasicDetails{
			Currency: project.ProjectCurrency,
		},
	}, nil
}

// NewForEdit starts the wizard pre-seeded from an existing line. The step set
// is locked immediately from the stored contract type.
func NewForEdit(ctx context.Context, backend Backend, line *model.FinancialLine) (*Wizard, error) {
	w, err := New(ctx, backend, line.ProjectID)
	if err != nil {
		return nil, err
	}
	w.original = line
	w.basics = BasicDetails{
		Name:              line.Name,
		ContractType:      line.ContractType,
		LocationType:      line.LocationType,
		ExecutionEntity:   line.ExecutionEntity,
		Currency:          line.Currency,
		TimesheetApprover: line.TimesheetApprover,
		ScheduleStart:     line.ScheduleStart,
		ScheduleFinish:    line.ScheduleFinish,
		BillingRate:       line.BillingRate,
		RateUOM:           line.RateUOM,
		EffortUOM:         line.EffortUOM,
	}
	w.showMilestones = line.ContractType.RequiresMilestones()
	w.stepSetLocked = true
	return w, nil
}

func (w *Wizard) Step() Step             { return w.step }
func (w *Wizard) ShowMilestones() bool   { return w.showMilestones }
func (w *Wizard) Closed() bool           { return w.closed }
func (w *Wizard) Project() model.Project { return w.project }
func (w *Wizard) Basics() BasicDetails   { return w.basics }
func (w *Wizard) Editing() bool          { return w.original != nil }

// StepCount is 4 for milestone-bearing contracts, 3 otherwise.
func (w *Wizard) StepCount() int {
	if w.showMilestones {
		return 4
	}
	return 3
}

// Funding returns the step-2 ledger, nil before step 1 is completed.
func (w *Wizard) Funding() *FundingLedger { return w.funding }

// Revenue returns the step-3 grid, nil before step 1 is completed.
func (w *Wizard) Revenue() *RevenueGrid { return w.revenue }

// Milestones returns the step-4 schedule, nil before step 1 is completed or
// for time-and-materials lines.
func (w *Wizard) Milestones() *MilestoneSchedule { return w.milestones }

// SubmitBasics validates step 1 and advances to the funding step. On the
// first successful advance the step set (3 vs 4 steps) is locked to the
// contract type chosen now; going back and changing the contract type later
// does not change the step count for the rest of the session.
func (w *Wizard) SubmitBasics(ctx context.Context, details BasicDetails) error {
	if w.closed {
		return ErrClosed
	}
	if w.step != StepBasics {
		return ErrInvalidStep
	}
	if details.Currency == "" {
		details.Currency = w.project.ProjectCurrency
	}
	if err := w.validateBasics(details); err != nil {
		return err
	}

	if !w.stepSetLocked {
		w.showMilestones = details.ContractType.RequiresMilestones()
		w.stepSetLocked = true
	}
	w.basics = details

	if w.funding == nil {
		if err := w.buildLedger(ctx); err != nil {
			return err
		}
	} else {
		w.funding.defaults = w.rowDefaults()
	}

	if w.revenue == nil {
		w.revenue = NewRevenueGrid(details.BillingRate)
		if w.original != nil {
			w.revenue.seed(w.original.RevenuePlanning)
		}
	} else {
		w.revenue.SetBillingRate(details.BillingRate)
	}
	w.revenue.Generate(details.ScheduleStart, details.ScheduleFinish)

	if w.milestones == nil {
		w.milestones = NewMilestoneSchedule()
		if w.original != nil {
			w.milestones.seed(w.original.PaymentMilestones)
		}
	}

	w.step = StepFunding
	return nil
}

func (w *Wizard) validateBasics(details BasicDetails) error {
	if details.Name == "" {
		return &FieldError{Field: "flName", Message: "name is required"}
	}
	if !details.ContractType.Valid() {
		return &FieldError{Field: "contractType", Message: "unknown contract type"}
	}
	if details.LocationType != "" && !details.LocationType.Valid() {
		return &FieldError{Field: "locationType", Message: "unknown location type"}
	}
	if !details.RateUOM.Valid() {
		return &FieldError{Field: "rateUom", Message: "unknown rate unit"}
	}
	if !details.BillingRate.IsPositive() {
		return &FieldError{Field: "billingRate", Message: "billing rate must be greater than zero"}
	}
	if details.ScheduleStart.IsZero() || details.ScheduleFinish.IsZero() {
		return &FieldError{Field: "scheduleStart", Message: "schedule start and finish are required"}
	}
	if details.ScheduleFinish.Before(details.ScheduleStart) {
		return &FieldError{Field: "scheduleFinish", Message: "schedule finish must not be before schedule start"}
	}
	if !w.project.ContainsDate(details.ScheduleStart) || !w.project.ContainsDate(details.ScheduleFinish) {
		return &FieldError{
			Field: "scheduleStart",
			Message: fmt.Sprintf("schedule must lie within the project dates %s to %s",
				w.project.StartDate.Format("2006-01-02"), w.project.EndDate.Format("2006-01-02")),
		}
	}
	return nil
}

// buildLedger reads the PO list and the full financial line history of the
// project in one pass so row selection works against a consistent balance
// snapshot. There is no lock against another editor allocating from the same
// PO concurrently; the backend is last-write-wins.
func (w *Wizard) buildLedger(ctx context.Context) error {
	pos, err := w.backend.ListPurchaseOrders(ctx, w.project.ID)
	if err != nil {
		return fmt.Errorf("list purchase orders: %w", err)
	}
	existing, err := w.backend.ListFinancialLines(ctx, w.project.ID)
	if err != nil {
		return fmt.Errorf("list financial lines: %w", err)
	}
	excludeID := uuid.Nil
	if w.original != nil {
		excludeID = w.original.ID
	}
	w.funding = NewFundingLedger(w.rowDefaults(), pos, existing, excludeID)
	if w.original != nil {
		w.funding.seed(w.original.Funding)
	}
	return nil
}

func (w *Wizard) rowDefaults() RowDefaults {
	return RowDefaults{
		ProjectCurrency: w.basics.Currency,
		UnitRate:        w.basics.BillingRate,
		UOM:             string(w.basics.RateUOM),
	}
}

// AdvanceFunding validates the ledger and moves to the revenue step. Buckets
// are regenerated against the current schedule; months the user already
// filled in keep their values.
func (w *Wizard) AdvanceFunding() error {
	if w.closed {
		return ErrClosed
	}
	if w.step != StepFunding {
		return ErrInvalidStep
	}
	if err := w.funding.Validate(); err != nil {
		return err
	}
	w.revenue.Generate(w.basics.ScheduleStart, w.basics.ScheduleFinish)
	w.step = StepRevenue
	return nil
}

// AdvanceRevenue validates the revenue plan against the funding total. A plan
// exceeding funding is a hard failure; a zero plan goes through the confirmer
// gate. Milestone-bearing contracts advance to step 4; time-and-materials
// lines submit immediately with an empty milestone list. The returned line is
// non-nil only when the wizard submitted.
func (w *Wizard) AdvanceRevenue(ctx context.Context, confirmer Confirmer) (*model.FinancialLine, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if w.step != StepRevenue {
		return nil, ErrInvalidStep
	}
	if err := w.revenue.Validate(w.funding.Total()); err != nil {
		return nil, err
	}
	if w.revenue.IsZero() {
		if confirmer == nil {
			return nil, ErrZeroPlanConfirmationDeclined
		}
		ok, err := confirmer.Confirm(ctx, "No revenue has been planned for this financial line. Continue anyway?")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrZeroPlanConfirmationDeclined
		}
	}
	if w.showMilestones {
		w.step = StepMilestones
		return nil, nil
	}
	return w.submit(ctx)
}

// AdvanceMilestones runs the final gate and submits.
func (w *Wizard) AdvanceMilestones(ctx context.Context) (*model.FinancialLine, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if w.step != StepMilestones || !w.showMilestones {
		return nil, ErrInvalidStep
	}
	if err := w.milestones.Validate(w.funding.Total(), w.basics.ScheduleStart, w.basics.ScheduleFinish); err != nil {
		return nil, err
	}
	return w.submit(ctx)
}

// Back moves one step back without re-validating. Step 1 has no back target.
func (w *Wizard) Back() error {
	if w.closed {
		return ErrClosed
	}
	if w.step <= StepBasics {
		return ErrInvalidStep
	}
	w.step--
	return nil
}

// Cancel discards all wizard state.
func (w *Wizard) Cancel() {
	w.closed = true
}

func (w *Wizard) submit(ctx context.Context) (*model.FinancialLine, error) {
	line := w.assemble()

	var stored *model.FinancialLine
	var err error
	if w.original != nil {
		stored, err = w.backend.UpdateFinancialLine(ctx, w.original.ID, line)
	} else {
		stored, err = w.backend.CreateFinancialLine(ctx, line)
	}
	if err != nil {
		// stay open so the user keeps their data and can retry
		return nil, err
	}
	w.closed = true
	return stored, nil
}

// assemble folds the per-step state into one financial line record. Effort is
// the planned units total of the revenue grid; revenue amount is effort times
// the billing rate.
func (w *Wizard) assemble() *model.FinancialLine {
	effort := decimal.Zero
	for _, b := range w.revenue.Buckets() {
		effort = effort.Add(b.PlannedUnits)
	}
	revenueAmount := w.basics.BillingRate.Mul(effort)

	line := &model.FinancialLine{
		ProjectID:         w.project.ID,
		Name:              w.basics.Name,
		ContractType:      w.basics.ContractType,
		LocationType:      w.basics.LocationType,
		ExecutionEntity:   w.basics.ExecutionEntity,
		Currency:          w.basics.Currency,
		TimesheetApprover: w.basics.TimesheetApprover,
		ScheduleStart:     w.basics.ScheduleStart,
		ScheduleFinish:    w.basics.ScheduleFinish,
		BillingRate:       w.basics.BillingRate,
		RateUOM:           w.basics.RateUOM,
		Effort:            effort,
		EffortUOM:         w.basics.EffortUOM,
		RevenueAmount:     revenueAmount,
		ExpectedRevenue:   revenueAmount,
		Status:            model.FLStatusDraft,
		FLNo:              GenerateFLNo(time.Now()),
		Funding:           []model.FundingAllocation{},
		RevenuePlanning:   []model.RevenueMonth{},
		PaymentMilestones: []model.Milestone{},
	}
	if w.original != nil {
		line.ID = w.original.ID
		line.FLNo = w.original.FLNo
		line.Status = w.original.Status
		line.ExpectedRevenue = w.original.ExpectedRevenue
	}

	for i, row := range w.funding.Rows() {
		line.Funding = append(line.Funding, model.FundingAllocation{
			Position:                i,
			PONo:                    row.PONo,
			ContractNo:              row.ContractNo,
			ProjectCurrency:         row.ProjectCurrency,
			POCurrency:              row.POCurrency,
			UnitRate:                row.UnitRate,
			FundingUnits:            row.FundingUnits,
			UOM:                     row.UOM,
			FundingValueProject:     row.FundingValueProject,
			FundingAmountPOCurrency: row.FundingAmountPOCurrency,
		})
	}
	for _, b := range w.revenue.Buckets() {
		line.RevenuePlanning = append(line.RevenuePlanning, model.RevenueMonth{
			Month:             b.Month,
			PlannedUnits:      b.PlannedUnits,
			PlannedRevenue:    b.PlannedRevenue,
			ActualUnits:       b.ActualUnits,
			ActualRevenue:     b.ActualRevenue,
			ForecastedUnits:   b.ForecastedUnits,
			ForecastedRevenue: b.ForecastedRevenue,
		})
	}
	if w.showMilestones {
		for i, row := range w.milestones.Rows() {
			line.PaymentMilestones = append(line.PaymentMilestones, model.Milestone{
				Position: i,
				Name:     row.Name,
				DueDate:  row.DueDate,
				Amount:   row.Amount,
				Notes:    row.Notes,
			})
		}
	}
	return line
}

// GenerateFLNo builds an FL-<year>-<4 digits> number. Collisions are possible
// and resolved by the unique index at the store; callers retry on conflict.
func GenerateFLNo(now time.Time) string {
	return fmt.Sprintf("FL-%d-%04d", now.Year(), rand.IntN(10000))
}
