package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rmgops/rmg-console/internal/auth"
	"github.com/rmgops/rmg-console/internal/config"
	"github.com/rmgops/rmg-console/internal/db"
	consolehttp "github.com/rmgops/rmg-console/internal/http"
	"github.com/rmgops/rmg-console/internal/http/middleware"
	"github.com/rmgops/rmg-console/internal/model"
	"github.com/rmgops/rmg-console/internal/repository"
	"github.com/rmgops/rmg-console/internal/service"
)

const testSecret = "test-secret"

type testServer struct {
	server  *httptest.Server
	project model.Project
}

type stubExcel struct{}

func (stubExcel) Generate(model.Project, []model.FinancialLine) ([]byte, error) {
	return []byte("xlsx"), nil
}

type stubPDF struct{}

func (stubPDF) Generate(model.FinancialLine) ([]byte, error) {
	return []byte("pdf"), nil
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database))

	log := zerolog.Nop()
	lineRepo := repository.NewFinancialLineRepository(database)
	poRepo := repository.NewPurchaseOrderRepository(database)
	projectRepo := repository.NewProjectRepository(database)
	customerRepo := repository.NewCustomerRepository(database)

	lines := service.NewFinancialLineService(lineRepo, poRepo, projectRepo, stubExcel{}, stubPDF{}, log)
	admin := service.NewProjectService(projectRepo, customerRepo, poRepo, log)
	sessions := consolehttp.NewWizardSessions(time.Hour)
	handler := consolehttp.NewHandler(lines, admin, sessions, log)

	cfg := &config.Config{
		Environment: "test",
		HTTP:        config.HTTPConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
	router := consolehttp.NewRouter(handler, middleware.Auth(auth.NewParser(testSecret)), cfg)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	customer, err := admin.CreateCustomer(ctx, &model.Customer{Name: "Initech", Code: "INI"})
	require.NoError(t, err)
	project, err := admin.CreateProject(ctx, &model.Project{
		CustomerID:      customer.ID,
		ProjectNo:       "PRJ-001",
		Name:            "Migration",
		ProjectCurrency: "USD",
		StartDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = admin.CreatePurchaseOrder(ctx, &model.PurchaseOrder{
		ProjectID: project.ID, PONo: "PO-100", POCurrency: "USD",
		POAmount: decimal.RequireFromString("100000"),
	})
	require.NoError(t, err)

	return &testServer{server: server, project: *project}
}

func signToken(t *testing.T, role model.Role) string {
	t.Helper()
	claims := auth.Claims{
		UserID: uuid.NewString(),
		OrgID:  uuid.NewString(),
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.server.URL+path, payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestAPI_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_ViewerCannotStartWizard(t *testing.T) {
	ts := newTestServer(t)
	viewer := signToken(t, model.RoleViewer)

	resp, _ := ts.do(t, http.MethodGet, "/projects", viewer, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/projects/"+ts.project.ID.String()+"/fl-wizard", viewer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_WizardFlow(t *testing.T) {
	// drives the whole T&M flow over the wire: start, basics, funding,
	// revenue, submit
	ts := newTestServer(t)
	token := signToken(t, model.RoleManager)
	projectID := ts.project.ID.String()

	resp, state := ts.do(t, http.MethodPost, "/projects/"+projectID+"/fl-wizard", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sessionID, _ := state["sessionId"].(string)
	require.NotEmpty(t, sessionID)
	assert.EqualValues(t, 1, state["step"])

	base := "/fl-wizard/" + sessionID
	resp, state = ts.do(t, http.MethodPost, base+"/basics", token, map[string]any{
		"flName":         "Implementation",
		"contractType":   "T&M",
		"currency":       "USD",
		"scheduleStart":  "2026-02-01",
		"scheduleFinish": "2026-04-30",
		"billingRate":    "100",
		"rateUom":        "DAY",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, state["step"])
	assert.EqualValues(t, 3, state["stepCount"])
	assert.Equal(t, false, state["showPaymentMilestones"])

	resp, _ = ts.do(t, http.MethodPost, base+"/funding/rows", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, state = ts.do(t, http.MethodPut, base+"/funding/rows/0", token, map[string]any{
		"poNo":         "PO-100",
		"fundingUnits": "300",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows, _ := state["fundingRows"].([]any)
	require.Len(t, rows, 1)
	row, _ := rows[0].(map[string]any)
	assert.Equal(t, "30000", row["fundingValueProject"])

	resp, state = ts.do(t, http.MethodPost, base+"/funding", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, state["step"])
	buckets, _ := state["revenueBuckets"].([]any)
	require.Len(t, buckets, 3)

	for i := 0; i < 3; i++ {
		resp, _ = ts.do(t, http.MethodPut, fmt.Sprintf("%s/revenue/buckets/%d", base, i), token, map[string]any{
			"plannedUnits": "100",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, state = ts.do(t, http.MethodPost, base+"/revenue", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, state["completed"])
	line, _ := state["financialLine"].(map[string]any)
	require.NotNil(t, line)
	assert.Equal(t, "DRAFT", line["status"])
	assert.Equal(t, "30000", line["revenueAmount"])

	// the session is gone once the wizard submitted
	resp, _ = ts.do(t, http.MethodGet, base, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// and the line is queryable through the regular endpoints
	resp, state = ts.do(t, http.MethodGet, "/financial-lines/"+line["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Implementation", state["flName"])
}

func TestAPI_WizardZeroRateWarning(t *testing.T) {
	ts := newTestServer(t)
	token := signToken(t, model.RoleManager)

	_, state := ts.do(t, http.MethodPost, "/projects/"+ts.project.ID.String()+"/fl-wizard", token, nil)
	base := "/fl-wizard/" + state["sessionId"].(string)

	_, _ = ts.do(t, http.MethodPost, base+"/basics", token, map[string]any{
		"flName":         "Zero rate line",
		"contractType":   "T&M",
		"scheduleStart":  "2026-02-01",
		"scheduleFinish": "2026-03-31",
		"billingRate":    "100",
		"rateUom":        "DAY",
	})
	_, _ = ts.do(t, http.MethodPost, base+"/funding/rows", token, nil)

	// zeroing the rate and then entering a value is a warning, not an error
	resp, state := ts.do(t, http.MethodPut, base+"/funding/rows/0", token, map[string]any{
		"poNo":                "PO-100",
		"unitRate":            "0",
		"fundingValueProject": "750",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, state["calculationError"])
	rows, _ := state["fundingRows"].([]any)
	row, _ := rows[0].(map[string]any)
	assert.Equal(t, "0", row["fundingValueProject"])
	assert.Equal(t, "0", row["fundingUnits"])
}

func TestAPI_WizardZeroPlanConfirmation(t *testing.T) {
	ts := newTestServer(t)
	token := signToken(t, model.RoleManager)

	_, state := ts.do(t, http.MethodPost, "/projects/"+ts.project.ID.String()+"/fl-wizard", token, nil)
	base := "/fl-wizard/" + state["sessionId"].(string)

	_, _ = ts.do(t, http.MethodPost, base+"/basics", token, map[string]any{
		"flName":         "Unplanned line",
		"contractType":   "T&M",
		"scheduleStart":  "2026-02-01",
		"scheduleFinish": "2026-03-31",
		"billingRate":    "100",
		"rateUom":        "DAY",
	})
	_, _ = ts.do(t, http.MethodPost, base+"/funding/rows", token, nil)
	_, _ = ts.do(t, http.MethodPut, base+"/funding/rows/0", token, map[string]any{
		"poNo":         "PO-100",
		"fundingUnits": "10",
	})
	_, _ = ts.do(t, http.MethodPost, base+"/funding", token, nil)

	// submitting an empty plan asks for confirmation
	resp, state := ts.do(t, http.MethodPost, base+"/revenue", token, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, true, state["confirmationRequired"])

	// confirming goes through
	resp, state = ts.do(t, http.MethodPost, base+"/revenue", token, map[string]any{"confirmZero": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, state["completed"])
}

func TestAPI_WizardCancel(t *testing.T) {
	ts := newTestServer(t)
	token := signToken(t, model.RoleManager)

	_, state := ts.do(t, http.MethodPost, "/projects/"+ts.project.ID.String()+"/fl-wizard", token, nil)
	base := "/fl-wizard/" + state["sessionId"].(string)

	resp, _ := ts.do(t, http.MethodDelete, base, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, base, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	ts := newTestServer(t)
	resp, state := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", state["status"])
}
