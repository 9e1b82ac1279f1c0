package wizard

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmgops/rmg-console/internal/model"
)

// BalanceTolerance is the rounding slack allowed between the milestone total
// and the funding total. Monetary rounding must not trip false mismatches.
var BalanceTolerance = decimal.NewFromFloat(0.01)

type MilestoneRow struct {
	Name    string          `json:"milestoneName"`
	DueDate time.Time       `json:"dueDate"`
	Amount  decimal.Decimal `json:"amount"`
	Notes   string          `json:"notes"`
}

// MilestoneSchedule is the ordered payment milestone list of step 4. Rows are
// plain list mutations; balance against funding is enforced only at the final
// gate because intermediate states are legitimately unbalanced.
type MilestoneSchedule struct {
	rows []MilestoneRow
}

func NewMilestoneSchedule() *MilestoneSchedule { return &MilestoneSchedule{} }

func (s *MilestoneSchedule) Rows() []MilestoneRow { return s.rows }

func (s *MilestoneSchedule) Add() int {
	s.rows = append(s.rows, MilestoneRow{})
	return len(s.rows) - 1
}

func (s *MilestoneSchedule) Remove(index int) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.rows = append(s.rows[:index], s.rows[index+1:]...)
	return nil
}

func (s *MilestoneSchedule) SetName(index int, name string) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.rows[index].Name = name
	return nil
}

func (s *MilestoneSchedule) SetDueDate(index int, due time.Time) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.rows[index].DueDate = due
	return nil
}

func (s *MilestoneSchedule) SetAmount(index int, amount decimal.Decimal) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.rows[index].Amount = amount
	return nil
}

func (s *MilestoneSchedule) SetNotes(index int, notes string) error {
	if err := s.checkIndex(index); err != nil {
		return err
	}
	s.rows[index].Notes = notes
	return nil
}

func (s *MilestoneSchedule) Total() decimal.Decimal {
	total := decimal.Zero
	for _, row := range s.rows {
		total = total.Add(row.Amount)
	}
	return total
}

// Validate enforces the final-gate invariants: at least one row, every row
// complete with a positive amount, the total matching the funding total
// within BalanceTolerance, and every due date inside the schedule window.
func (s *MilestoneSchedule) Validate(totalFunding decimal.Decimal, scheduleStart, scheduleFinish time.Time) error {
	if len(s.rows) == 0 {
		return ErrNoRows
	}
	for i, row := range s.rows {
		if row.Name == "" {
			return &RowError{Row: i, Field: "milestoneName", Message: "milestone name is required"}
		}
		if row.DueDate.IsZero() {
			return &RowError{Row: i, Field: "dueDate", Message: "due date is required"}
		}
		if !row.Amount.IsPositive() {
			return &RowError{Row: i, Field: "amount", Message: "amount must be greater than zero"}
		}
		if row.DueDate.Before(scheduleStart) || row.DueDate.After(scheduleFinish) {
			return &ConsistencyError{
				Code: CodeMilestoneOutOfRange,
				Message: fmt.Sprintf("milestone %d due date %s is outside the schedule %s to %s",
					i+1, row.DueDate.Format("2006-01-02"),
					scheduleStart.Format("2006-01-02"), scheduleFinish.Format("2006-01-02")),
				Expected: decimal.Zero,
				Actual:   decimal.Zero,
			}
		}
	}
	total := s.Total()
	if total.Sub(totalFunding).Abs().GreaterThan(BalanceTolerance) {
		return &ConsistencyError{
			Code:     CodeMilestoneImbalance,
			Message:  "milestone total must equal total funding",
			Expected: totalFunding,
			Actual:   total,
		}
	}
	return nil
}

func (s *MilestoneSchedule) checkIndex(index int) error {
	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("milestone %d out of range", index)
	}
	return nil
}

func (s *MilestoneSchedule) seed(milestones []model.Milestone) {
	for _, m := range milestones {
		s.rows = append(s.rows, MilestoneRow{
			Name:    m.Name,
			DueDate: m.DueDate,
			Amount:  m.Amount,
			Notes:   m.Notes,
		})
	}
}
