package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rmgops/rmg-console/internal/db"
	"github.com/rmgops/rmg-console/internal/model"
	"github.com/rmgops/rmg-console/internal/repository"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database))
	return database
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedProject(t *testing.T, database *gorm.DB) model.Project {
	t.Helper()
	customer := model.Customer{Name: "Acme Corp", Code: "ACME-" + uuid.NewString()[:8]}
	require.NoError(t, database.Create(&customer).Error)
	project := model.Project{
		CustomerID:      customer.ID,
		ProjectNo:       "PRJ-" + uuid.NewString()[:8],
		Name:            "Data Platform",
		ProjectCurrency: "USD",
		StartDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:          model.ProjectStatusActive,
	}
	require.NoError(t, database.Create(&project).Error)
	return project
}

func seedLine(t *testing.T, database *gorm.DB, projectID uuid.UUID, flNo string, status model.FLStatus, poNo string, amount string) model.FinancialLine {
	t.Helper()
	line := model.FinancialLine{
		FLNo:           flNo,
		ProjectID:      projectID,
		Name:           "Line " + flNo,
		ContractType:   model.ContractTypeTimeAndMaterials,
		Currency:       "USD",
		ScheduleStart:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		ScheduleFinish: time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		BillingRate:    dec("100"),
		RateUOM:        model.RateUOMDay,
		Status:         status,
		Funding: []model.FundingAllocation{{
			Position:                0,
			PONo:                    poNo,
			ProjectCurrency:         "USD",
			POCurrency:              "USD",
			UnitRate:                dec("100"),
			FundingValueProject:     dec(amount),
			FundingAmountPOCurrency: dec(amount),
		}},
	}
	require.NoError(t, database.Create(&line).Error)
	return line
}

func TestFinancialLineRepository_CreateAndGet(t *testing.T) {
	database := testDB(t)
	repo := repository.NewFinancialLineRepository(database)
	project := seedProject(t, database)
	ctx := context.Background()

	line := model.FinancialLine{
		FLNo:           "FL-2026-0001",
		ProjectID:      project.ID,
		Name:           "Implementation",
		ContractType:   model.ContractTypeFixedBid,
		Currency:       "USD",
		ScheduleStart:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		ScheduleFinish: time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		BillingRate:    dec("120"),
		RateUOM:        model.RateUOMDay,
		Status:         model.FLStatusDraft,
		Funding: []model.FundingAllocation{
			{Position: 1, PONo: "PO-2", FundingValueProject: dec("2000"), FundingAmountPOCurrency: dec("2000")},
			{Position: 0, PONo: "PO-1", FundingValueProject: dec("3000"), FundingAmountPOCurrency: dec("3000")},
		},
		RevenuePlanning: []model.RevenueMonth{
			{Month: "2026-03", PlannedUnits: dec("10"), PlannedRevenue: dec("1200")},
			{Month: "2026-02", PlannedUnits: dec("5"), PlannedRevenue: dec("600")},
		},
		PaymentMilestones: []model.Milestone{
			{Position: 0, Name: "Kickoff", DueDate: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), Amount: dec("5000")},
		},
	}
	require.NoError(t, repo.Create(ctx, &line))
	require.NotEqual(t, uuid.Nil, line.ID)

	got, err := repo.Get(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, "FL-2026-0001", got.FLNo)
	require.NotNil(t, got.Project)
	assert.Equal(t, project.ProjectNo, got.Project.ProjectNo)

	// children come back ordered
	require.Len(t, got.Funding, 2)
	assert.Equal(t, "PO-1", got.Funding[0].PONo)
	require.Len(t, got.RevenuePlanning, 2)
	assert.Equal(t, "2026-02", got.RevenuePlanning[0].Month)
	require.Len(t, got.PaymentMilestones, 1)
	assert.True(t, got.TotalFunding().Equal(dec("5000")))
}

func TestFinancialLineRepository_GetMissing(t *testing.T) {
	database := testDB(t)
	repo := repository.NewFinancialLineRepository(database)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFinancialLineRepository_FLNoUnique(t *testing.T) {
	database := testDB(t)
	repo := repository.NewFinancialLineRepository(database)
	project := seedProject(t, database)
	ctx := context.Background()

	seedLine(t, database, project.ID, "FL-2026-0042", model.FLStatusDraft, "PO-1", "1000")

	dup := model.FinancialLine{
		FLNo: "FL-2026-0042", ProjectID: project.ID, Name: "Duplicate",
		ContractType: model.ContractTypeTimeAndMaterials, Currency: "USD",
		ScheduleStart:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		ScheduleFinish: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		BillingRate:    dec("100"), RateUOM: model.RateUOMDay, Status: model.FLStatusDraft,
	}
	err := repo.Create(ctx, &dup)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestFinancialLineRepository_ListByProject(t *testing.T) {
	database := testDB(t)
	repo := repository.NewFinancialLineRepository(database)
	project := seedProject(t, database)
	other := seedProject(t, database)
	ctx := context.Background()

	seedLine(t, database, project.ID, "FL-2026-0001", model.FLStatusActive, "PO-1", "1000")
	seedLine(t, database, project.ID, "FL-2026-0002", model.FLStatusCancelled, "PO-1", "500")
	seedLine(t, database, other.ID, "FL-2026-0003", model.FLStatusActive, "PO-9", "9000")

	all, err := repo.ListByProject(ctx, project.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "FL-2026-0001", all[0].FLNo)
	require.Len(t, all[0].Funding, 1, "listing must load funding for balance computation")

	resourcing, err := repo.ListByProject(ctx, project.ID, true)
	require.NoError(t, err)
	require.Len(t, resourcing, 1)
	assert.Equal(t, "FL-2026-0001", resourcing[0].FLNo)
}

func TestFinancialLineRepository_UpdateReplacesChildren(t *testing.T) {
	database := testDB(t)
	repo := repository.NewFinancialLineRepository(database)
	project := seedProject(t, database)
	ctx := context.Background()

	line := seedLine(t, database, project.ID, "FL-2026-0010", model.FLStatusDraft, "PO-1", "3000")

	updated := line
	updated.Name = "Renamed line"
	updated.Funding = []model.FundingAllocation{
		{Position: 0, PONo: "PO-2", ProjectCurrency: "USD", POCurrency: "USD", UnitRate: dec("100"), FundingValueProject: dec("1500"), FundingAmountPOCurrency: dec("1500")},
		{Position: 1, PONo: "PO-3", ProjectCurrency: "USD", POCurrency: "USD", UnitRate: dec("100"), FundingValueProject: dec("1500"), FundingAmountPOCurrency: dec("1500")},
	}
	updated.RevenuePlanning = []model.RevenueMonth{
		{Month: "2026-02", PlannedUnits: dec("15"), PlannedRevenue: dec("1500")},
	}
	require.NoError(t, repo.Update(ctx, &updated))

	got, err := repo.Get(ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed line", got.Name)
	require.Len(t, got.Funding, 2)
	assert.Equal(t, "PO-2", got.Funding[0].PONo)
	require.Len(t, got.RevenuePlanning, 1)

	// old child rows are gone, not orphaned
	var count int64
	require.NoError(t, database.Model(&model.FundingAllocation{}).Where("financial_line_id = ?", line.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestFinancialLineRepository_ConsumedByPO(t *testing.T) {
	database := testDB(t)
	repo := repository.NewFinancialLineRepository(database)
	project := seedProject(t, database)
	other := seedProject(t, database)
	ctx := context.Background()

	// two lines on PO-1, one of them cancelled: both count
	seedLine(t, database, project.ID, "FL-2026-0020", model.FLStatusActive, "PO-1", "4000")
	seedLine(t, database, project.ID, "FL-2026-0021", model.FLStatusCancelled, "PO-1", "2500")
	seedLine(t, database, project.ID, "FL-2026-0022", model.FLStatusDraft, "PO-2", "1000")
	// another project's consumption is invisible here
	seedLine(t, database, other.ID, "FL-2026-0023", model.FLStatusActive, "PO-1", "9999")

	consumed, err := repo.ConsumedByPO(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, consumed, 2)
	assert.True(t, consumed["PO-1"].Equal(dec("6500")))
	assert.True(t, consumed["PO-2"].Equal(dec("1000")))
}
