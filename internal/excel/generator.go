package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rmgops/rmg-console/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders a project's financial lines as a workbook: a summary
// sheet plus one detail sheet per line with its funding, revenue plan and
// milestone tables.
func (g *Generator) Generate(project model.Project, lines []model.FinancialLine) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, project, lines); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, line := range lines {
		sheetName := buildSheetName(line, usedNames)
		usedNames[sheetName] = struct{}{}

		file.NewSheet(sheetName)
		if err := g.writeDetail(file, sheetName, line); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, project model.Project, lines []model.FinancialLine) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Project")
	set("B1", fmt.Sprintf("%s — %s", project.ProjectNo, project.Name))
	set("A2", "Currency")
	set("B2", project.ProjectCurrency)
	set("A3", "Schedule")
	set("B3", fmt.Sprintf("%s to %s", formatDate(project.StartDate), formatDate(project.EndDate)))
	set("A4", "Financial lines")
	set("B4", len(lines))

	headers := []string{"FL No", "Name", "Contract Type", "Status", "Schedule Start", "Schedule Finish", "Billing Rate", "Total Funding", "Planned Revenue"}
	tableRow := 6
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, line := range lines {
		row := tableRow + 1 + i
		values := []interface{}{
			line.FLNo,
			line.Name,
			string(line.ContractType),
			string(line.Status),
			formatDate(line.ScheduleStart),
			formatDate(line.ScheduleFinish),
			formatAmount(line.BillingRate),
			formatAmount(line.TotalFunding()),
			formatAmount(plannedRevenueTotal(line)),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			set(cell, value)
		}
	}

	_ = file.SetColWidth(sheet, "A", "B", 18)
	_ = file.SetColWidth(sheet, "C", "F", 16)
	_ = file.SetColWidth(sheet, "G", "I", 16)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, line model.FinancialLine) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Financial Line")
	set("B1", fmt.Sprintf("%s — %s", line.FLNo, line.Name))
	set("A2", "Contract Type")
	set("B2", string(line.ContractType))
	set("A3", "Schedule")
	set("B3", fmt.Sprintf("%s to %s", formatDate(line.ScheduleStart), formatDate(line.ScheduleFinish)))
	set("A4", "Total Funding")
	set("B4", formatAmount(line.TotalFunding()))

	row := 6
	set(fmt.Sprintf("A%d", row), "Funding")
	row++
	fundingHeaders := []string{"PO No", "Contract No", "Unit Rate", "Units", "UOM", "Value (Project)", "Amount (PO Currency)"}
	for i, header := range fundingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		set(cell, header)
	}
	for _, alloc := range line.Funding {
		row++
		values := []interface{}{
			alloc.PONo, alloc.ContractNo,
			formatAmount(alloc.UnitRate), formatAmount(alloc.FundingUnits), alloc.UOM,
			formatAmount(alloc.FundingValueProject), formatAmount(alloc.FundingAmountPOCurrency),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			set(cell, value)
		}
	}

	row += 2
	set(fmt.Sprintf("A%d", row), "Revenue Plan")
	row++
	revenueHeaders := []string{"Month", "Planned Units", "Planned Revenue", "Actual Units", "Actual Revenue", "Forecast Units", "Forecast Revenue"}
	for i, header := range revenueHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		set(cell, header)
	}
	for _, bucket := range line.RevenuePlanning {
		row++
		values := []interface{}{
			bucket.Month,
			formatAmount(bucket.PlannedUnits), formatAmount(bucket.PlannedRevenue),
			formatAmount(bucket.ActualUnits), formatAmount(bucket.ActualRevenue),
			formatAmount(bucket.ForecastedUnits), formatAmount(bucket.ForecastedRevenue),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			set(cell, value)
		}
	}

	if len(line.PaymentMilestones) > 0 {
		row += 2
		set(fmt.Sprintf("A%d", row), "Payment Milestones")
		row++
		milestoneHeaders := []string{"Milestone", "Due Date", "Amount", "Notes"}
		for i, header := range milestoneHeaders {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			set(cell, header)
		}
		for _, milestone := range line.PaymentMilestones {
			row++
			values := []interface{}{
				milestone.Name, formatDate(milestone.DueDate), formatAmount(milestone.Amount), milestone.Notes,
			}
			for col, value := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				set(cell, value)
			}
		}
	}

	_ = file.SetColWidth(sheet, "A", "G", 18)
	return nil
}

func plannedRevenueTotal(line model.FinancialLine) decimal.Decimal {
	total := decimal.Zero
	for _, bucket := range line.RevenuePlanning {
		total = total.Add(bucket.PlannedRevenue)
	}
	return total
}

func buildSheetName(line model.FinancialLine, used map[string]struct{}) string {
	base := sanitizeSheetName(line.FLNo)
	if base == "" {
		base = "FL"
	}
	if len(base) > 28 {
		base = base[:28]
	}
	name := base
	for i := 2; ; i++ {
		if _, taken := used[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

func sanitizeSheetName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_', r == ' ':
			result = append(result, r)
		}
	}
	return strings.TrimSpace(string(result))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
