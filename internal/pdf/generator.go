package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/rmgops/rmg-console/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders a one-page financial line summary: contract header,
// funding table, revenue plan totals and the milestone schedule.
func (g *Generator) Generate(line model.FinancialLine) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Financial Line Summary", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("%s — %s", line.FLNo, line.Name), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Schedule %s to %s", formatDate(line.ScheduleStart), formatDate(line.ScheduleFinish)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Contract", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Type: %s    Location: %s    Currency: %s", line.ContractType, line.LocationType, line.Currency), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Billing rate: %s / %s    Effort: %s %s", formatAmount(line.BillingRate), line.RateUOM, formatAmount(line.Effort), line.EffortUOM), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Revenue amount: %s    Status: %s", formatAmount(line.RevenueAmount), line.Status), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Funding", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 9)
	fundingWidths := []float64{35, 30, 25, 25, 30, 35}
	drawTableRow(pdf, g.fontName, []string{"PO No", "Contract No", "Unit Rate", "Units", "Value (Proj)", "Amount (PO Ccy)"}, fundingWidths, true)
	for _, alloc := range line.Funding {
		drawTableRow(pdf, g.fontName, []string{
			alloc.PONo,
			alloc.ContractNo,
			formatAmount(alloc.UnitRate),
			formatAmount(alloc.FundingUnits),
			formatAmount(alloc.FundingValueProject),
			formatAmount(alloc.FundingAmountPOCurrency),
		}, fundingWidths, false)
	}
	pdf.SetFont(g.fontName, "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total funding: %s", formatAmount(line.TotalFunding())), "", 1, "R", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Revenue Plan", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 9)
	revenueWidths := []float64{30, 35, 40, 35, 40}
	drawTableRow(pdf, g.fontName, []string{"Month", "Planned Units", "Planned Revenue", "Actual Units", "Actual Revenue"}, revenueWidths, true)
	plannedTotal := decimal.Zero
	for _, bucket := range line.RevenuePlanning {
		plannedTotal = plannedTotal.Add(bucket.PlannedRevenue)
		drawTableRow(pdf, g.fontName, []string{
			bucket.Month,
			formatAmount(bucket.PlannedUnits),
			formatAmount(bucket.PlannedRevenue),
			formatAmount(bucket.ActualUnits),
			formatAmount(bucket.ActualRevenue),
		}, revenueWidths, false)
	}
	pdf.SetFont(g.fontName, "B", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total planned revenue: %s", formatAmount(plannedTotal)), "", 1, "R", false, 0, "")

	if len(line.PaymentMilestones) > 0 {
		pdf.Ln(3)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Payment Milestones", "", 1, "L", false, 0, "")
		pdf.SetFont(g.fontName, "", 9)
		milestoneWidths := []float64{70, 30, 35, 45}
		drawTableRow(pdf, g.fontName, []string{"Milestone", "Due Date", "Amount", "Notes"}, milestoneWidths, true)
		milestoneTotal := decimal.Zero
		for _, milestone := range line.PaymentMilestones {
			milestoneTotal = milestoneTotal.Add(milestone.Amount)
			drawTableRow(pdf, g.fontName, []string{
				milestone.Name,
				formatDate(milestone.DueDate),
				formatAmount(milestone.Amount),
				milestone.Notes,
			}, milestoneWidths, false)
		}
		pdf.SetFont(g.fontName, "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("Total milestones: %s", formatAmount(milestoneTotal)), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, font string, cells []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(font, style, 9)
	for i, cell := range cells {
		pdf.CellFormat(widths[i], 6, cell, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
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
