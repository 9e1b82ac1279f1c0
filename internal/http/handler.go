package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rmgops/rmg-console/internal/http/middleware"
	"github.com/rmgops/rmg-console/internal/model"
	"github.com/rmgops/rmg-console/internal/service"
	"github.com/rmgops/rmg-console/internal/wizard"
)

type Handler struct {
	lines    *service.FinancialLineService
	admin    *service.ProjectService
	sessions *WizardSessions
	log      zerolog.Logger
}

func NewHandler(lines *service.FinancialLineService, admin *service.ProjectService, sessions *WizardSessions, log zerolog.Logger) *Handler {
	return &Handler{lines: lines, admin: admin, sessions: sessions, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/customers", h.listCustomers)
	protected.POST("/customers", h.createCustomer)

	protected.GET("/projects", h.listProjects)
	protected.POST("/projects", h.createProject)
	protected.GET("/projects/:id", h.getProject)
	protected.GET("/projects/:id/purchase-orders", h.listPurchaseOrders)
	protected.POST("/projects/:id/purchase-orders", h.createPurchaseOrder)
	protected.GET("/projects/:id/financial-lines", h.listFinancialLines)
	protected.GET("/projects/:id/financial-lines/export", h.exportFinancialLines)
	protected.GET("/financial-lines/:id", h.getFinancialLine)
	protected.GET("/financial-lines/:id/summary.pdf", h.financialLinePDF)

	protected.POST("/projects/:id/fl-wizard", h.startWizard)
	protected.GET("/fl-wizard/:id", h.wizardState)
	protected.DELETE("/fl-wizard/:id", h.cancelWizard)
	protected.POST("/fl-wizard/:id/back", h.wizardBack)
	protected.POST("/fl-wizard/:id/basics", h.wizardBasics)
	protected.POST("/fl-wizard/:id/funding/rows", h.wizardAddFundingRow)
	protected.PUT("/fl-wizard/:id/funding/rows/:index", h.wizardUpdateFundingRow)
	protected.DELETE("/fl-wizard/:id/funding/rows/:index", h.wizardRemoveFundingRow)
	protected.POST("/fl-wizard/:id/funding", h.wizardAdvanceFunding)
	protected.PUT("/fl-wizard/:id/revenue/buckets/:index", h.wizardUpdateRevenueBucket)
	protected.POST("/fl-wizard/:id/revenue", h.wizardAdvanceRevenue)
	protected.POST("/fl-wizard/:id/milestones/rows", h.wizardAddMilestone)
	protected.PUT("/fl-wizard/:id/milestones/rows/:index", h.wizardUpdateMilestone)
	protected.DELETE("/fl-wizard/:id/milestones/rows/:index", h.wizardRemoveMilestone)
	protected.POST("/fl-wizard/:id/milestones", h.wizardAdvanceMilestones)
}

// ---------------------------------------------------------------------------
// customers

func (h *Handler) listCustomers(c *gin.Context) {
	customers, err := h.admin.ListCustomers(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

type createCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Code    string `json:"code"`
	Country string `json:"country"`
}

func (h *Handler) createCustomer(c *gin.Context) {
	if !h.requireEditor(c) {
		return
	}
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customer, err := h.admin.CreateCustomer(c.Request.Context(), &model.Customer{
		Name:    req.Name,
		Code:    req.Code,
		Country: req.Country,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

// ---------------------------------------------------------------------------
// projects and purchase orders

func (h *Handler) listProjects(c *gin.Context) {
	projects, err := h.admin.ListProjects(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) getProject(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	project, err := h.admin.GetProject(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

type createProjectRequest struct {
	CustomerID      string `json:"customerId" binding:"required"`
	ProjectNo       string `json:"projectNo" binding:"required"`
	Name            string `json:"name" binding:"required"`
	LegalEntity     string `json:"legalEntity"`
	ProjectCurrency string `json:"projectCurrency" binding:"required"`
	BillingType     string `json:"billingType"`
	StartDate       string `json:"startDate" binding:"required"`
	EndDate         string `json:"endDate" binding:"required"`
}

func (h *Handler) createProject(c *gin.Context) {
	if !h.requireEditor(c) {
		return
	}
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customerID, err := uuid.Parse(strings.TrimSpace(req.CustomerID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customerId"})
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endDate"})
		return
	}
	project, err := h.admin.CreateProject(c.Request.Context(), &model.Project{
		CustomerID:      customerID,
		ProjectNo:       req.ProjectNo,
		Name:            req.Name,
		LegalEntity:     req.LegalEntity,
		ProjectCurrency: req.ProjectCurrency,
		BillingType:     req.BillingType,
		StartDate:       start,
		EndDate:         end,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (h *Handler) listPurchaseOrders(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	balances, err := h.lines.ListPurchaseOrderBalances(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

type createPORequest struct {
	PONo       string          `json:"poNo" binding:"required"`
	ContractNo string          `json:"contractNo"`
	POCurrency string          `json:"poCurrency" binding:"required"`
	POAmount   decimal.Decimal `json:"poAmount"`
}

func (h *Handler) createPurchaseOrder(c *gin.Context) {
	if !h.requireEditor(c) {
		return
	}
	projectID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req createPORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	po, err := h.admin.CreatePurchaseOrder(c.Request.Context(), &model.PurchaseOrder{
		ProjectID:  projectID,
		PONo:       req.PONo,
		ContractNo: req.ContractNo,
		POCurrency: req.POCurrency,
		POAmount:   req.POAmount,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, po)
}

// ---------------------------------------------------------------------------
// financial lines

func (h *Handler) listFinancialLines(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var (
		lines []model.FinancialLine
		err   error
	)
	if c.Query("resourcing") == "true" {
		lines, err = h.lines.ListFinancialLinesForResourcing(c.Request.Context(), id)
	} else {
		lines, err = h.lines.ListFinancialLines(c.Request.Context(), id)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (h *Handler) getFinancialLine(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	line, err := h.lines.GetFinancialLine(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *Handler) exportFinancialLines(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.lines.ExportFinancialLines(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentType, result.Content)
}

func (h *Handler) financialLinePDF(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.lines.FinancialLineSummaryPDF(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

// ---------------------------------------------------------------------------
// shared helpers

func (h *Handler) requireEditor(c *gin.Context) bool {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return false
	}
	if !principal.CanEdit() {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return false
	}
	return true
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var rowErr *wizard.RowError
	var fieldErr *wizard.FieldError
	var consistencyErr *wizard.ConsistencyError

	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &rowErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": rowErr.Error(),
			"row":   rowErr.Row,
			"field": rowErr.Field,
		})
	case errors.As(err, &fieldErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fieldErr.Error(),
			"field": fieldErr.Field,
		})
	case errors.As(err, &consistencyErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    consistencyErr.Message,
			"code":     consistencyErr.Code,
			"expected": consistencyErr.Expected,
			"actual":   consistencyErr.Actual,
		})
	case errors.Is(err, wizard.ErrNoRows), errors.Is(err, wizard.ErrInvalidStep),
		errors.Is(err, wizard.ErrClosed), errors.Is(err, wizard.ErrZeroPlanConfirmationDeclined):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty date")
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, errors.New("unrecognized date format")
}
