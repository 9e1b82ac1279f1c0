package wizard_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmgops/rmg-console/internal/model"
	"github.com/rmgops/rmg-console/internal/wizard"
)

// ---------------------------------------------------------------------------
// helpers

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func confirm(answer bool) wizard.Confirmer {
	return wizard.ConfirmFunc(func(context.Context, string) (bool, error) { return answer, nil })
}

type fakeBackend struct {
	project model.Project
	pos     []model.PurchaseOrder
	lines   []model.FinancialLine

	created   []*model.FinancialLine
	updated   []*model.FinancialLine
	createErr error
}

func (f *fakeBackend) ListPurchaseOrders(_ context.Context, projectID uuid.UUID) ([]model.PurchaseOrder, error) {
	return f.pos, nil
}

func (f *fakeBackend) ListFinancialLines(_ context.Context, projectID uuid.UUID) ([]model.FinancialLine, error) {
	return f.lines, nil
}

func (f *fakeBackend) GetProject(_ context.Context, projectID uuid.UUID) (*model.Project, error) {
	if projectID != f.project.ID {
		return nil, errors.New("project not found")
	}
	project := f.project
	return &project, nil
}

func (f *fakeBackend) CreateFinancialLine(_ context.Context, line *model.FinancialLine) (*model.FinancialLine, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	stored := *line
	stored.ID = uuid.New()
	f.created = append(f.created, &stored)
	return &stored, nil
}

func (f *fakeBackend) UpdateFinancialLine(_ context.Context, id uuid.UUID, line *model.FinancialLine) (*model.FinancialLine, error) {
	stored := *line
	stored.ID = id
	f.updated = append(f.updated, &stored)
	return &stored, nil
}

func newBackend() *fakeBackend {
	projectID := uuid.New()
	return &fakeBackend{
		project: model.Project{
			ID:              projectID,
			ProjectNo:       "PRJ-001",
			Name:            "Platform Modernization",
			ProjectCurrency: "USD",
			StartDate:       date(2026, time.January, 1),
			EndDate:         date(2026, time.December, 31),
		},
		pos: []model.PurchaseOrder{
			{ID: uuid.New(), ProjectID: projectID, PONo: "PO-100", ContractNo: "CN-9", POCurrency: "USD", POAmount: dec("100000"), Status: model.POStatusOpen},
			{ID: uuid.New(), ProjectID: projectID, PONo: "PO-200", ContractNo: "CN-9", POCurrency: "USD", POAmount: dec("50000"), Status: model.POStatusOpen},
		},
	}
}

func basics(contractType model.ContractType) wizard.BasicDetails {
	return wizard.BasicDetails{
		Name:           "Implementation Services",
		ContractType:   contractType,
		LocationType:   model.LocationOffshore,
		Currency:       "USD",
		ScheduleStart:  date(2026, time.February, 1),
		ScheduleFinish: date(2026, time.April, 30),
		BillingRate:    dec("100"),
		RateUOM:        model.RateUOMDay,
		EffortUOM:      "DAY",
	}
}

// advanceToFunding runs step 1 and leaves the wizard on the funding step.
func advanceToFunding(t *testing.T, backend *fakeBackend, contractType model.ContractType) *wizard.Wizard {
	t.Helper()
	w, err := wizard.New(context.Background(), backend, backend.project.ID)
	require.NoError(t, err)
	require.NoError(t, w.SubmitBasics(context.Background(), basics(contractType)))
	return w
}

// fillFunding adds one valid funding row worth the given value.
func fillFunding(t *testing.T, w *wizard.Wizard, value string) {
	t.Helper()
	ledger := w.Funding()
	index := ledger.AddRow()
	require.NoError(t, ledger.SelectPO(index, "PO-100"))
	require.NoError(t, ledger.SetFundingValue(index, dec(value)))
}

// ---------------------------------------------------------------------------
// step sequencing

func TestWizard_StartsAtBasics(t *testing.T) {
	backend := newBackend()
	w, err := wizard.New(context.Background(), backend, backend.project.ID)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepBasics, w.Step())
	assert.Nil(t, w.Funding())
	assert.Nil(t, w.Revenue())
}

func TestWizard_BasicsValidation(t *testing.T) {
	backend := newBackend()

	cases := []struct {
		name   string
		mutate func(*wizard.BasicDetails)
		field  string
	}{
		{"missing name", func(b *wizard.BasicDetails) { b.Name = "" }, "flName"},
		{"unknown contract type", func(b *wizard.BasicDetails) { b.ContractType = "RETAINER" }, "contractType"},
		{"zero billing rate", func(b *wizard.BasicDetails) { b.BillingRate = decimal.Zero }, "billingRate"},
		{"finish before start", func(b *wizard.BasicDetails) {
			b.ScheduleStart = date(2026, time.March, 1)
			b.ScheduleFinish = date(2026, time.February, 1)
		}, "scheduleFinish"},
		{"outside project bounds", func(b *wizard.BasicDetails) {
			b.ScheduleFinish = date(2027, time.June, 30)
		}, "scheduleStart"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := wizard.New(context.Background(), backend, backend.project.ID)
			require.NoError(t, err)

			details := basics(model.ContractTypeTimeAndMaterials)
			tc.mutate(&details)

			err = w.SubmitBasics(context.Background(), details)
			var fieldErr *wizard.FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tc.field, fieldErr.Field)
			assert.Equal(t, wizard.StepBasics, w.Step(), "validation failure must not advance the step")
		})
	}
}

func TestWizard_StepSetLocksOnFirstAdvance(t *testing.T) {
	// GIVEN a Fixed Bid wizard advanced past step 1 (4 visible steps)
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeFixedBid)
	require.True(t, w.ShowMilestones())
	require.Equal(t, 4, w.StepCount())

	// WHEN the user goes back and re-submits step 1 as T&M
	require.NoError(t, w.Back())
	tm := basics(model.ContractTypeTimeAndMaterials)
	require.NoError(t, w.SubmitBasics(context.Background(), tm))

	// THEN the step set stays locked at 4
	assert.True(t, w.ShowMilestones())
	assert.Equal(t, 4, w.StepCount())
}

func TestWizard_BackHasNoTargetOnStepOne(t *testing.T) {
	backend := newBackend()
	w, err := wizard.New(context.Background(), backend, backend.project.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, w.Back(), wizard.ErrInvalidStep)
}

func TestWizard_BackDoesNotRevalidate(t *testing.T) {
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeTimeAndMaterials)
	fillFunding(t, w, "30000")
	require.NoError(t, w.AdvanceFunding())
	require.Equal(t, wizard.StepRevenue, w.Step())

	require.NoError(t, w.Back())
	assert.Equal(t, wizard.StepFunding, w.Step())
	require.NoError(t, w.Back())
	assert.Equal(t, wizard.StepBasics, w.Step())
}

func TestWizard_FundingStepRequiresValidLedger(t *testing.T) {
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeTimeAndMaterials)

	// no rows
	assert.ErrorIs(t, w.AdvanceFunding(), wizard.ErrNoRows)

	// row without a PO
	w.Funding().AddRow()
	var rowErr *wizard.RowError
	require.ErrorAs(t, w.AdvanceFunding(), &rowErr)
	assert.Equal(t, "poNo", rowErr.Field)
	assert.Equal(t, wizard.StepFunding, w.Step())
}

func TestWizard_CancelDiscardsState(t *testing.T) {
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeTimeAndMaterials)
	w.Cancel()
	assert.True(t, w.Closed())
	assert.ErrorIs(t, w.AdvanceFunding(), wizard.ErrClosed)
	assert.ErrorIs(t, w.Back(), wizard.ErrClosed)
}

// ---------------------------------------------------------------------------
// end to end scenarios

func TestWizard_TimeAndMaterialsEndToEnd(t *testing.T) {
	// GIVEN a T&M line over Feb-Apr 2026 with one $30,000 funding row
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeTimeAndMaterials)
	require.False(t, w.ShowMilestones())
	require.Equal(t, 3, w.StepCount())

	fillFunding(t, w, "30000")
	require.NoError(t, w.AdvanceFunding())

	grid := w.Revenue()
	buckets := grid.Buckets()
	require.Len(t, buckets, 3)
	assert.Equal(t, "2026-02", buckets[0].Month)
	assert.Equal(t, "2026-03", buckets[1].Month)
	assert.Equal(t, "2026-04", buckets[2].Month)

	// WHEN the plan totals exactly the funding ($100/day rate)
	require.NoError(t, grid.SetPlannedUnits(0, dec("100")))
	require.NoError(t, grid.SetPlannedUnits(1, dec("100")))
	require.NoError(t, grid.SetPlannedUnits(2, dec("100")))
	require.True(t, grid.Total().Equal(dec("30000")))

	line, err := w.AdvanceRevenue(context.Background(), confirm(false))
	require.NoError(t, err)

	// THEN the wizard submitted without visiting step 4
	require.NotNil(t, line)
	assert.True(t, w.Closed())
	assert.Equal(t, model.FLStatusDraft, line.Status)
	assert.Empty(t, line.PaymentMilestones)
	assert.Len(t, line.Funding, 1)
	assert.Len(t, line.RevenuePlanning, 3)
	assert.True(t, line.Effort.Equal(dec("300")))
	assert.True(t, line.RevenueAmount.Equal(dec("30000")))
	assert.True(t, line.ExpectedRevenue.Equal(dec("30000")))
	assert.Regexp(t, `^FL-\d{4}-\d{4}$`, line.FLNo)
	require.Len(t, backend.created, 1)
}

func TestWizard_FixedBidEndToEnd(t *testing.T) {
	// GIVEN a Fixed Bid line with $50,000 funding
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeFixedBid)
	fillFunding(t, w, "50000")
	require.NoError(t, w.AdvanceFunding())

	require.NoError(t, w.Revenue().SetPlannedUnits(0, dec("500")))
	line, err := w.AdvanceRevenue(context.Background(), confirm(false))
	require.NoError(t, err)
	require.Nil(t, line, "milestone contracts must not submit from the revenue step")
	require.Equal(t, wizard.StepMilestones, w.Step())

	// WHEN two $25,000 milestones inside the schedule window are entered
	schedule := w.Milestones()
	schedule.Add()
	schedule.Add()
	require.NoError(t, schedule.SetName(0, "Design complete"))
	require.NoError(t, schedule.SetDueDate(0, date(2026, time.March, 15)))
	require.NoError(t, schedule.SetAmount(0, dec("25000")))
	require.NoError(t, schedule.SetName(1, "Go live"))
	require.NoError(t, schedule.SetDueDate(1, date(2026, time.April, 30)))
	require.NoError(t, schedule.SetAmount(1, dec("25000")))

	line, err = w.AdvanceMilestones(context.Background())
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Len(t, line.PaymentMilestones, 2)
	assert.Equal(t, model.FLStatusDraft, line.Status)
}

func TestWizard_FixedBidMilestoneOutsideScheduleFails(t *testing.T) {
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeFixedBid)
	fillFunding(t, w, "50000")
	require.NoError(t, w.AdvanceFunding())
	_, err := w.AdvanceRevenue(context.Background(), confirm(true))
	require.NoError(t, err)

	schedule := w.Milestones()
	schedule.Add()
	require.NoError(t, schedule.SetName(0, "Go live"))
	// one day after scheduleFinish
	require.NoError(t, schedule.SetDueDate(0, date(2026, time.May, 1)))
	require.NoError(t, schedule.SetAmount(0, dec("50000")))

	_, err = w.AdvanceMilestones(context.Background())
	var consistencyErr *wizard.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, wizard.CodeMilestoneOutOfRange, consistencyErr.Code)
	assert.False(t, w.Closed())
	require.Empty(t, backend.created)
}

func TestWizard_PlanExceedingFundingIsHardError(t *testing.T) {
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeTimeAndMaterials)
	fillFunding(t, w, "10000")
	require.NoError(t, w.AdvanceFunding())

	require.NoError(t, w.Revenue().SetPlannedUnits(0, dec("200"))) // 20,000 at $100

	_, err := w.AdvanceRevenue(context.Background(), confirm(true))
	var consistencyErr *wizard.ConsistencyError
	require.ErrorAs(t, err, &consistencyErr)
	assert.Equal(t, wizard.CodePlanExceedsFunding, consistencyErr.Code)
	assert.True(t, consistencyErr.Expected.Equal(dec("10000")))
	assert.True(t, consistencyErr.Actual.Equal(dec("20000")))
	assert.Equal(t, wizard.StepRevenue, w.Step())
}

func TestWizard_ZeroPlanNeedsConfirmation(t *testing.T) {
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeTimeAndMaterials)
	fillFunding(t, w, "10000")
	require.NoError(t, w.AdvanceFunding())

	// declined: stay on the revenue step with data intact
	_, err := w.AdvanceRevenue(context.Background(), confirm(false))
	assert.ErrorIs(t, err, wizard.ErrZeroPlanConfirmationDeclined)
	assert.Equal(t, wizard.StepRevenue, w.Step())

	// accepted: proceeds to submission
	line, err := w.AdvanceRevenue(context.Background(), confirm(true))
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.True(t, line.RevenueAmount.IsZero())
}

func TestWizard_SubmitFailureKeepsWizardOpen(t *testing.T) {
	backend := newBackend()
	backend.createErr = errors.New("backend unavailable")
	w := advanceToFunding(t, backend, model.ContractTypeTimeAndMaterials)
	fillFunding(t, w, "10000")
	require.NoError(t, w.AdvanceFunding())
	require.NoError(t, w.Revenue().SetPlannedUnits(0, dec("100")))

	_, err := w.AdvanceRevenue(context.Background(), confirm(false))
	require.Error(t, err)
	assert.False(t, w.Closed(), "a failed submit must keep the user's data for retry")

	// retry after the backend recovers
	backend.createErr = nil
	line, err := w.AdvanceRevenue(context.Background(), confirm(false))
	require.NoError(t, err)
	require.NotNil(t, line)
}

func TestWizard_ScheduleChangePreservesEnteredBuckets(t *testing.T) {
	backend := newBackend()
	w := advanceToFunding(t, backend, model.ContractTypeTimeAndMaterials)
	fillFunding(t, w, "50000")
	require.NoError(t, w.AdvanceFunding())
	require.NoError(t, w.Revenue().SetPlannedUnits(0, dec("80"))) // 2026-02

	// go back to step 1 and extend the schedule by a month
	require.NoError(t, w.Back())
	require.NoError(t, w.Back())
	details := basics(model.ContractTypeTimeAndMaterials)
	details.ScheduleFinish = date(2026, time.May, 31)
	require.NoError(t, w.SubmitBasics(context.Background(), details))
	require.NoError(t, w.AdvanceFunding())

	buckets := w.Revenue().Buckets()
	require.Len(t, buckets, 4)
	assert.Equal(t, "2026-02", buckets[0].Month)
	assert.True(t, buckets[0].PlannedUnits.Equal(dec("80")), "entered plan must survive a schedule adjustment")
	assert.True(t, buckets[0].PlannedRevenue.Equal(dec("8000")))
}

func TestWizard_EditModeSeedsFromStoredLine(t *testing.T) {
	backend := newBackend()
	existingID := uuid.New()
	stored := &model.FinancialLine{
		ID:             existingID,
		FLNo:           "FL-2025-0042",
		ProjectID:      backend.project.ID,
		Name:           "Support Retainer",
		ContractType:   model.ContractTypeFixedBid,
		Currency:       "USD",
		ScheduleStart:  date(2026, time.February, 1),
		ScheduleFinish: date(2026, time.April, 30),
		BillingRate:    dec("100"),
		RateUOM:        model.RateUOMDay,
		Status:         model.FLStatusActive,
		Funding: []model.FundingAllocation{{
			PONo: "PO-100", ProjectCurrency: "USD", POCurrency: "USD",
			UnitRate: dec("100"), FundingUnits: dec("100"),
			FundingValueProject: dec("10000"), FundingAmountPOCurrency: dec("10000"),
		}},
	}
	backend.lines = []model.FinancialLine{*stored}

	w, err := wizard.NewForEdit(context.Background(), backend, stored)
	require.NoError(t, err)
	assert.True(t, w.Editing())
	assert.True(t, w.ShowMilestones(), "step set locks from the stored contract type")
	assert.Equal(t, "Support Retainer", w.Basics().Name)

	require.NoError(t, w.SubmitBasics(context.Background(), w.Basics()))
	rows := w.Funding().Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "PO-100", rows[0].PONo)
	// the line's own allocation must not consume its PO balance
	assert.True(t, rows[0].AvailablePOLineInPO.Equal(dec("100000")))
}

func TestGenerateFLNo(t *testing.T) {
	no := wizard.GenerateFLNo(date(2026, time.July, 4))
	assert.Regexp(t, `^FL-2026-\d{4}$`, no)
}
