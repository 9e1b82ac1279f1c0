package wizard

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmgops/rmg-console/internal/model"
)

// FundingRow is one PO-funding allocation being edited in step 2.
type FundingRow struct {
	PONo                    string          `json:"poNo"`
	ContractNo              string          `json:"contractNo"`
	ProjectCurrency         string          `json:"projectCurrency"`
	POCurrency              string          `json:"poCurrency"`
	UnitRate                decimal.Decimal `json:"unitRate"`
	FundingUnits            decimal.Decimal `json:"fundingUnits"`
	UOM                     string          `json:"uom"`
	FundingValueProject     decimal.Decimal `json:"fundingValueProject"`
	FundingAmountPOCurrency decimal.Decimal `json:"fundingAmountPoCurrency"`
	AvailablePOLineInPO     decimal.Decimal `json:"availablePoLineInPo"`
	AvailablePOLineInProj   decimal.Decimal `json:"availablePoLineInProject"`
}

// RowDefaults pre-fill new funding rows from the step-1 basics.
type RowDefaults struct {
	ProjectCurrency string
	UnitRate        decimal.Decimal
	UOM             string
}

// FundingLedger maintains the funding allocation rows of a financial line and
// the available balance of each selectable purchase order. Balances are a
// snapshot taken when the ledger is built; no lock is held against concurrent
// editors allocating from the same PO.
type FundingLedger struct {
	defaults RowDefaults
	balances map[string]model.POBalance
	poOrder  []string
	rows     []FundingRow
}

// NewFundingLedger builds the ledger for a project. POs in a terminal status
// are not selectable. Consumed balance per PO is the sum of
// fundingAmountPoCurrency over the funding rows of every existing financial
// line of the project, regardless of line status. When editing an existing
// line, pass its id as excludeFL so its own rows do not count against it.
func NewFundingLedger(defaults RowDefaults, pos []model.PurchaseOrder, existing []model.FinancialLine, excludeFL uuid.UUID) *FundingLedger {
	consumed := make(map[string]decimal.Decimal)
	for _, fl := range existing {
		if excludeFL != uuid.Nil && fl.ID == excludeFL {
			continue
		}
		for _, row := range fl.Funding {
			consumed[row.PONo] = consumed[row.PONo].Add(row.FundingAmountPOCurrency)
		}
	}

	ledger := &FundingLedger{
		defaults: defaults,
		balances: make(map[string]model.POBalance, len(pos)),
	}
	for _, po := range pos {
		if po.Status.IsTerminal() {
			continue
		}
		available := po.POAmount.Sub(consumed[po.PONo])
		ledger.balances[po.PONo] = model.POBalance{
			PurchaseOrder:   po,
			ConsumedAmount:  consumed[po.PONo],
			AvailableAmount: available,
		}
		ledger.poOrder = append(ledger.poOrder, po.PONo)
	}
	return ledger
}

// SelectablePOs returns the balances in PO listing order.
func (l *FundingLedger) SelectablePOs() []model.POBalance {
	out := make([]model.POBalance, 0, len(l.poOrder))
	for _, no := range l.poOrder {
		out = append(out, l.balances[no])
	}
	return out
}

func (l *FundingLedger) Rows() []FundingRow { return l.rows }

// AddRow appends a row pre-filled with the ledger defaults.
func (l *FundingLedger) AddRow() int {
	l.rows = append(l.rows, FundingRow{
		ProjectCurrency: l.defaults.ProjectCurrency,
		UnitRate:        l.defaults.UnitRate,
		UOM:             l.defaults.UOM,
	})
	return len(l.rows) - 1
}

func (l *FundingLedger) RemoveRow(index int) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	l.rows = append(l.rows[:index], l.rows[index+1:]...)
	return nil
}

// SelectPO binds a row to a purchase order and auto-fills contract number,
// PO currency and the available-balance columns.
func (l *FundingLedger) SelectPO(index int, poNo string) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	balance, ok := l.balances[poNo]
	if !ok {
		return &RowError{Row: index, Field: "poNo", Message: fmt.Sprintf("purchase order %q is not selectable for this project", poNo)}
	}
	row := &l.rows[index]
	row.PONo = balance.PONo
	row.ContractNo = balance.ContractNo
	row.POCurrency = balance.POCurrency
	row.AvailablePOLineInPO = balance.AvailableAmount
	row.AvailablePOLineInProj = balance.AvailableAmount
	l.syncPOAmount(row)
	return nil
}

// SetUnitRate updates the rate and recomputes the funding value forward.
func (l *FundingLedger) SetUnitRate(index int, rate decimal.Decimal) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	row := &l.rows[index]
	row.UnitRate = rate
	row.FundingValueProject = rate.Mul(row.FundingUnits)
	l.syncPOAmount(row)
	return nil
}

// SetFundingUnits updates the units and recomputes the funding value forward.
func (l *FundingLedger) SetFundingUnits(index int, units decimal.Decimal) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	row := &l.rows[index]
	row.FundingUnits = units
	row.FundingValueProject = row.UnitRate.Mul(units)
	l.syncPOAmount(row)
	return nil
}

// SetFundingValue updates the value directly and derives units in reverse.
// With a zero unit rate the division is undefined: the row's value and units
// are reset to zero and ErrZeroUnitRate is returned so the caller can surface
// a calculation message. The rest of the row is untouched.
func (l *FundingLedger) SetFundingValue(index int, value decimal.Decimal) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	row := &l.rows[index]
	if row.UnitRate.IsZero() {
		row.FundingValueProject = decimal.Zero
		row.FundingUnits = decimal.Zero
		l.syncPOAmount(row)
		return ErrZeroUnitRate
	}
	row.FundingValueProject = value
	row.FundingUnits = value.Div(row.UnitRate)
	l.syncPOAmount(row)
	return nil
}

func (l *FundingLedger) SetUOM(index int, uom string) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	l.rows[index].UOM = uom
	return nil
}

// SetFundingAmountPOCurrency overrides the PO-currency amount for rows whose
// PO is in a different currency than the project. Same-currency rows keep the
// amount mirrored from the funding value and ignore manual edits.
func (l *FundingLedger) SetFundingAmountPOCurrency(index int, amount decimal.Decimal) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	row := &l.rows[index]
	if l.sameCurrency(row) {
		return nil
	}
	row.FundingAmountPOCurrency = amount
	return nil
}

// Validate checks the step-advance invariants: at least one row, every row
// bound to a PO with a positive rate and a positive funding value.
func (l *FundingLedger) Validate() error {
	if len(l.rows) == 0 {
		return ErrNoRows
	}
	for i, row := range l.rows {
		if row.PONo == "" {
			return &RowError{Row: i, Field: "poNo", Message: "a purchase order must be selected"}
		}
		if !row.UnitRate.IsPositive() {
			return &RowError{Row: i, Field: "unitRate", Message: "unit rate must be greater than zero"}
		}
		if !row.FundingValueProject.IsPositive() {
			return &RowError{Row: i, Field: "fundingValueProject", Message: "funding value must be greater than zero"}
		}
	}
	return nil
}

// Total is the funding total in project currency.
func (l *FundingLedger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, row := range l.rows {
		total = total.Add(row.FundingValueProject)
	}
	return total
}

func (l *FundingLedger) checkIndex(index int) error {
	if index < 0 || index >= len(l.rows) {
		return fmt.Errorf("funding row %d out of range", index)
	}
	return nil
}

func (l *FundingLedger) sameCurrency(row *FundingRow) bool {
	return row.POCurrency == "" || row.POCurrency == row.ProjectCurrency
}

func (l *FundingLedger) syncPOAmount(row *FundingRow) {
	if l.sameCurrency(row) {
		row.FundingAmountPOCurrency = row.FundingValueProject
	}
}

// seed restores rows from a persisted financial line for edit mode.
func (l *FundingLedger) seed(allocations []model.FundingAllocation) {
	for _, a := range allocations {
		row := FundingRow{
			PONo:                    a.PONo,
			ContractNo:              a.ContractNo,
			ProjectCurrency:         a.ProjectCurrency,
			POCurrency:              a.POCurrency,
			UnitRate:                a.UnitRate,
			FundingUnits:            a.FundingUnits,
			UOM:                     a.UOM,
			FundingValueProject:     a.FundingValueProject,
			FundingAmountPOCurrency: a.FundingAmountPOCurrency,
		}
		if balance, ok := l.balances[a.PONo]; ok {
			row.AvailablePOLineInPO = balance.AvailableAmount
			row.AvailablePOLineInProj = balance.AvailableAmount
		}
		l.rows = append(l.rows, row)
	}
}
