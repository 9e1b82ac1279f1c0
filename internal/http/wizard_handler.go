package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmgops/rmg-console/internal/model"
	"github.com/rmgops/rmg-console/internal/wizard"
)

type startWizardRequest struct {
	FinancialLineID string `json:"financialLineId"`
}

func (h *Handler) startWizard(c *gin.Context) {
	if !h.requireEditor(c) {
		return
	}
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req startWizardRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var (
		w   *wizard.Wizard
		err error
	)
	if req.FinancialLineID != "" {
		lineID, parseErr := uuid.Parse(strings.TrimSpace(req.FinancialLineID))
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid financialLineId"})
			return
		}
		line, getErr := h.lines.GetFinancialLine(c.Request.Context(), lineID)
		if getErr != nil {
			h.handleError(c, getErr)
			return
		}
		if line.ProjectID != projectID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "financial line does not belong to this project"})
			return
		}
		w, err = wizard.NewForEdit(c.Request.Context(), h.lines, line)
	} else {
		w, err = wizard.New(c.Request.Context(), h.lines, projectID)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	session := h.sessions.Create(w)
	c.JSON(http.StatusCreated, h.wizardResponse(session, nil))
}

func (h *Handler) wizardState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	c.JSON(http.StatusOK, h.wizardResponse(session, nil))
}

func (h *Handler) cancelWizard(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Lock()
	session.Wizard.Cancel()
	session.Unlock()
	h.sessions.Remove(session.ID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) wizardBack(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	if err := session.Wizard.Back(); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.wizardResponse(session, nil))
}

type wizardBasicsRequest struct {
	Name              string          `json:"flName" binding:"required"`
	ContractType      string          `json:"contractType" binding:"required"`
	LocationType      string          `json:"locationType"`
	ExecutionEntity   string          `json:"executionEntity"`
	Currency          string          `json:"currency"`
	TimesheetApprover string          `json:"timesheetApprover"`
	ScheduleStart     string          `json:"scheduleStart" binding:"required"`
	ScheduleFinish    string          `json:"scheduleFinish" binding:"required"`
	BillingRate       decimal.Decimal `json:"billingRate"`
	RateUOM           string          `json:"rateUom" binding:"required"`
	EffortUOM         string          `json:"effortUom"`
}

func (h *Handler) wizardBasics(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req wizardBasicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(req.ScheduleStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduleStart"})
		return
	}
	finish, err := parseDate(req.ScheduleFinish)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduleFinish"})
		return
	}

	session.Lock()
	defer session.Unlock()
	err = session.Wizard.SubmitBasics(c.Request.Context(), wizard.BasicDetails{
		Name:              req.Name,
		ContractType:      model.ContractType(req.ContractType),
		LocationType:      model.LocationType(req.LocationType),
		ExecutionEntity:   req.ExecutionEntity,
		Currency:          req.Currency,
		TimesheetApprover: req.TimesheetApprover,
		ScheduleStart:     start,
		ScheduleFinish:    finish,
		BillingRate:       req.BillingRate,
		RateUOM:           model.RateUOM(req.RateUOM),
		EffortUOM:         req.EffortUOM,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.wizardResponse(session, nil))
}

// ---------------------------------------------------------------------------
// funding step

func (h *Handler) wizardAddFundingRow(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	ledger := session.Wizard.Funding()
	if ledger == nil {
		h.handleError(c, wizard.ErrInvalidStep)
		return
	}
	index := ledger.AddRow()
	c.JSON(http.StatusCreated, gin.H{"index": index, "state": h.wizardResponse(session, nil)})
}

// wizardFundingRowRequest is a partial row patch. Fields are applied in a
// fixed order so a single request can select a PO and then set its rate.
type wizardFundingRowRequest struct {
	PONo                    *string          `json:"poNo"`
	UOM                     *string          `json:"uom"`
	UnitRate                *decimal.Decimal `json:"unitRate"`
	FundingUnits            *decimal.Decimal `json:"fundingUnits"`
	FundingValueProject     *decimal.Decimal `json:"fundingValueProject"`
	FundingAmountPOCurrency *decimal.Decimal `json:"fundingAmountPoCurrency"`
}

func (h *Handler) wizardUpdateFundingRow(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	var req wizardFundingRowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session.Lock()
	defer session.Unlock()
	ledger := session.Wizard.Funding()
	if ledger == nil {
		h.handleError(c, wizard.ErrInvalidStep)
		return
	}

	var calculationError string
	apply := func(err error) bool {
		if err == nil {
			return true
		}
		if errors.Is(err, wizard.ErrZeroUnitRate) {
			// guard: the offending field was reset, the row stays editable
			calculationError = err.Error()
			return true
		}
		h.handleError(c, err)
		return false
	}

	if req.PONo != nil && !apply(ledger.SelectPO(index, *req.PONo)) {
		return
	}
	if req.UOM != nil && !apply(ledger.SetUOM(index, *req.UOM)) {
		return
	}
	if req.UnitRate != nil && !apply(ledger.SetUnitRate(index, *req.UnitRate)) {
		return
	}
	if req.FundingUnits != nil && !apply(ledger.SetFundingUnits(index, *req.FundingUnits)) {
		return
	}
	if req.FundingValueProject != nil && !apply(ledger.SetFundingValue(index, *req.FundingValueProject)) {
		return
	}
	if req.FundingAmountPOCurrency != nil && !apply(ledger.SetFundingAmountPOCurrency(index, *req.FundingAmountPOCurrency)) {
		return
	}

	var warning *string
	if calculationError != "" {
		warning = &calculationError
	}
	c.JSON(http.StatusOK, h.wizardResponse(session, warning))
}

func (h *Handler) wizardRemoveFundingRow(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	ledger := session.Wizard.Funding()
	if ledger == nil {
		h.handleError(c, wizard.ErrInvalidStep)
		return
	}
	if err := ledger.RemoveRow(index); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.wizardResponse(session, nil))
}

func (h *Handler) wizardAdvanceFunding(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	if err := session.Wizard.AdvanceFunding(); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.wizardResponse(session, nil))
}

// ---------------------------------------------------------------------------
// revenue step

type wizardRevenueBucketRequest struct {
	PlannedUnits decimal.Decimal `json:"plannedUnits"`
}

func (h *Handler) wizardUpdateRevenueBucket(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	var req wizardRevenueBucketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session.Lock()
	defer session.Unlock()
	grid := session.Wizard.Revenue()
	if grid == nil {
		h.handleError(c, wizard.ErrInvalidStep)
		return
	}
	if err := grid.SetPlannedUnits(index, req.PlannedUnits); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.wizardResponse(session, nil))
}

type wizardAdvanceRevenueRequest struct {
	ConfirmZero bool `json:"confirmZero"`
}

func (h *Handler) wizardAdvanceRevenue(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req wizardAdvanceRevenueRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	session.Lock()
	defer session.Unlock()
	confirmer := wizard.ConfirmFunc(func(_ context.Context, _ string) (bool, error) {
		return req.ConfirmZero, nil
	})
	line, err := session.Wizard.AdvanceRevenue(c.Request.Context(), confirmer)
	if err != nil {
		if errors.Is(err, wizard.ErrZeroPlanConfirmationDeclined) {
			c.JSON(http.StatusConflict, gin.H{
				"confirmationRequired": true,
				"prompt":               "No revenue has been planned for this financial line. Continue anyway?",
			})
			return
		}
		h.handleError(c, err)
		return
	}
	h.finishOrContinue(c, session, line)
}

// ---------------------------------------------------------------------------
// milestone step

func (h *Handler) wizardAddMilestone(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	schedule := session.Wizard.Milestones()
	if schedule == nil {
		h.handleError(c, wizard.ErrInvalidStep)
		return
	}
	index := schedule.Add()
	c.JSON(http.StatusCreated, gin.H{"index": index, "state": h.wizardResponse(session, nil)})
}

type wizardMilestoneRequest struct {
	Name    *string          `json:"milestoneName"`
	DueDate *string          `json:"dueDate"`
	Amount  *decimal.Decimal `json:"amount"`
	Notes   *string          `json:"notes"`
}

func (h *Handler) wizardUpdateMilestone(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	var req wizardMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session.Lock()
	defer session.Unlock()
	schedule := session.Wizard.Milestones()
	if schedule == nil {
		h.handleError(c, wizard.ErrInvalidStep)
		return
	}
	if req.Name != nil {
		if err := schedule.SetName(index, *req.Name); err != nil {
			h.handleError(c, err)
			return
		}
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dueDate"})
			return
		}
		if err := schedule.SetDueDate(index, due); err != nil {
			h.handleError(c, err)
			return
		}
	}
	if req.Amount != nil {
		if err := schedule.SetAmount(index, *req.Amount); err != nil {
			h.handleError(c, err)
			return
		}
	}
	if req.Notes != nil {
		if err := schedule.SetNotes(index, *req.Notes); err != nil {
			h.handleError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, h.wizardResponse(session, nil))
}

func (h *Handler) wizardRemoveMilestone(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	index, ok := pathIndex(c)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	schedule := session.Wizard.Milestones()
	if schedule == nil {
		h.handleError(c, wizard.ErrInvalidStep)
		return
	}
	if err := schedule.Remove(index); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.wizardResponse(session, nil))
}

func (h *Handler) wizardAdvanceMilestones(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Lock()
	defer session.Unlock()
	line, err := session.Wizard.AdvanceMilestones(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	h.finishOrContinue(c, session, line)
}

// ---------------------------------------------------------------------------
// plumbing

func (h *Handler) session(c *gin.Context) (*WizardSession, bool) {
	if !h.requireEditor(c) {
		return nil, false
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return nil, false
	}
	session, found := h.sessions.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "wizard session not found"})
		return nil, false
	}
	return session, true
}

// finishOrContinue ends the session when the wizard submitted, otherwise
// returns the next-step state.
func (h *Handler) finishOrContinue(c *gin.Context, session *WizardSession, line *model.FinancialLine) {
	if line == nil {
		c.JSON(http.StatusOK, h.wizardResponse(session, nil))
		return
	}
	h.sessions.Remove(session.ID)
	c.JSON(http.StatusOK, gin.H{"financialLine": line, "completed": true})
}

type wizardStepState struct {
	SessionID             string                   `json:"sessionId"`
	Step                  int                      `json:"step"`
	StepName              string                   `json:"stepName"`
	StepCount             int                      `json:"stepCount"`
	ShowPaymentMilestones bool                     `json:"showPaymentMilestones"`
	Editing               bool                     `json:"editing"`
	Basics                wizard.BasicDetails      `json:"basics"`
	FundingRows           []wizard.FundingRow      `json:"fundingRows,omitempty"`
	FundingTotal          *decimal.Decimal         `json:"fundingTotal,omitempty"`
	SelectablePOs         []model.POBalance        `json:"selectablePos,omitempty"`
	RevenueBuckets        []wizard.RevenueBucket   `json:"revenueBuckets,omitempty"`
	RevenueTotal          *decimal.Decimal         `json:"revenueTotal,omitempty"`
	MilestoneRows         []wizard.MilestoneRow    `json:"milestoneRows,omitempty"`
	MilestoneTotal        *decimal.Decimal         `json:"milestoneTotal,omitempty"`
	CalculationError      *string                  `json:"calculationError,omitempty"`
}

func (h *Handler) wizardResponse(session *WizardSession, calculationError *string) wizardStepState {
	w := session.Wizard
	state := wizardStepState{
		SessionID:             session.ID.String(),
		Step:                  int(w.Step()),
		StepName:              w.Step().String(),
		StepCount:             w.StepCount(),
		ShowPaymentMilestones: w.ShowMilestones(),
		Editing:               w.Editing(),
		Basics:                w.Basics(),
		CalculationError:      calculationError,
	}
	if ledger := w.Funding(); ledger != nil {
		state.FundingRows = ledger.Rows()
		total := ledger.Total()
		state.FundingTotal = &total
		state.SelectablePOs = ledger.SelectablePOs()
	}
	if grid := w.Revenue(); grid != nil {
		state.RevenueBuckets = grid.Buckets()
		total := grid.Total()
		state.RevenueTotal = &total
	}
	if schedule := w.Milestones(); schedule != nil && w.ShowMilestones() {
		state.MilestoneRows = schedule.Rows()
		total := schedule.Total()
		state.MilestoneTotal = &total
	}
	return state
}

func pathIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return 0, false
	}
	return index, true
}
