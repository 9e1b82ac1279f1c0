package wizard

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmgops/rmg-console/internal/model"
)

// MonthKeyFormat is the bucket key layout, e.g. "2026-01".
const MonthKeyFormat = "2006-01"

// RevenueBucket is one calendar month of the revenue plan. Actuals and
// forecasts are read-only here; they come from the stored line.
type RevenueBucket struct {
	Month             string          `json:"month"`
	PlannedUnits      decimal.Decimal `json:"plannedUnits"`
	PlannedRevenue    decimal.Decimal `json:"plannedRevenue"`
	ActualUnits       decimal.Decimal `json:"actualUnits"`
	ActualRevenue     decimal.Decimal `json:"actualRevenue"`
	ForecastedUnits   decimal.Decimal `json:"forecastedUnits"`
	ForecastedRevenue decimal.Decimal `json:"forecastedRevenue"`
}

// RevenueGrid plans revenue per calendar month across the line's schedule.
type RevenueGrid struct {
	billingRate decimal.Decimal
	buckets     []RevenueBucket
}

func NewRevenueGrid(billingRate decimal.Decimal) *RevenueGrid {
	return &RevenueGrid{billingRate: billingRate}
}

func (g *RevenueGrid) Buckets() []RevenueBucket { return g.buckets }

// SetBillingRate replaces the rate used for bucket revenue and recomputes
// every planned revenue from its planned units.
func (g *RevenueGrid) SetBillingRate(rate decimal.Decimal) {
	g.billingRate = rate
	for i := range g.buckets {
		g.buckets[i].PlannedRevenue = g.buckets[i].PlannedUnits.Mul(rate)
	}
}

// Generate produces one bucket per calendar month from the month containing
// start through the month containing finish, inclusive. Buckets whose month
// key already exists keep their entered data; months that fall outside the
// new range are dropped. With start after finish the grid is emptied.
func (g *RevenueGrid) Generate(start, finish time.Time) {
	if start.After(finish) {
		g.buckets = nil
		return
	}

	existing := make(map[string]RevenueBucket, len(g.buckets))
	for _, b := range g.buckets {
		existing[b.Month] = b
	}

	var buckets []RevenueBucket
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(finish.Year(), finish.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(last) {
		key := cursor.Format(MonthKeyFormat)
		if kept, ok := existing[key]; ok {
			buckets = append(buckets, kept)
		} else {
			buckets = append(buckets, RevenueBucket{Month: key})
		}
		cursor = cursor.AddDate(0, 1, 0)
	}
	g.buckets = buckets
}

// SetPlannedUnits updates a single bucket and recomputes only its revenue.
func (g *RevenueGrid) SetPlannedUnits(index int, units decimal.Decimal) error {
	if index < 0 || index >= len(g.buckets) {
		return fmt.Errorf("revenue bucket %d out of range", index)
	}
	g.buckets[index].PlannedUnits = units
	g.buckets[index].PlannedRevenue = units.Mul(g.billingRate)
	return nil
}

// Total is the sum of planned revenue over all buckets.
func (g *RevenueGrid) Total() decimal.Decimal {
	total := decimal.Zero
	for _, b := range g.buckets {
		total = total.Add(b.PlannedRevenue)
	}
	return total
}

// IsZero reports whether nothing has been planned. A zero plan is allowed
// but requires explicit confirmation before the step may advance.
func (g *RevenueGrid) IsZero() bool { return g.Total().IsZero() }

// Validate hard-fails when the plan exceeds the funding total. The zero-plan
// confirmation gate is the caller's concern, not a validation failure.
func (g *RevenueGrid) Validate(totalFunding decimal.Decimal) error {
	total := g.Total()
	if total.GreaterThan(totalFunding) {
		return &ConsistencyError{
			Code:     CodePlanExceedsFunding,
			Message:  "planned revenue exceeds total funding",
			Expected: totalFunding,
			Actual:   total,
		}
	}
	return nil
}

// seed restores buckets from a persisted line for edit mode, carrying over
// the read-only actual and forecast columns.
func (g *RevenueGrid) seed(months []model.RevenueMonth) {
	for _, m := range months {
		g.buckets = append(g.buckets, RevenueBucket{
			Month:             m.Month,
			PlannedUnits:      m.PlannedUnits,
			PlannedRevenue:    m.PlannedRevenue,
			ActualUnits:       m.ActualUnits,
			ActualRevenue:     m.ActualRevenue,
			ForecastedUnits:   m.ForecastedUnits,
			ForecastedRevenue: m.ForecastedRevenue,
		})
	}
}
