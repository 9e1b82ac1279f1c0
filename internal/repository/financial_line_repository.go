package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rmgops/rmg-console/internal/model"
)

type FinancialLineRepository struct {
	db *gorm.DB
}

func NewFinancialLineRepository(db *gorm.DB) *FinancialLineRepository {
	return &FinancialLineRepository{db: db}
}

func (r *FinancialLineRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Funding", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("RevenuePlanning", func(db *gorm.DB) *gorm.DB { return db.Order("month") }).
		Preload("PaymentMilestones", func(db *gorm.DB) *gorm.DB { return db.Order("position") })
}

// ListByProject returns every financial line of the project with its funding,
// revenue plan and milestones loaded. With resourcingOnly set, archived,
// closed and cancelled lines are filtered out; balance computations must NOT
// set it, their funding still consumes PO balance.
func (r *FinancialLineRepository) ListByProject(ctx context.Context, projectID uuid.UUID, resourcingOnly bool) ([]model.FinancialLine, error) {
	query := r.preloaded(ctx).Where("project_id = ?", projectID)
	if resourcingOnly {
		query = query.Where("status NOT IN ?", []model.FLStatus{
			model.FLStatusArchived, model.FLStatusClosed, model.FLStatusCancelled,
		})
	}
	var lines []model.FinancialLine
	err := query.Order("fl_no").Find(&lines).Error
	return lines, err
}

func (r *FinancialLineRepository) Get(ctx context.Context, id uuid.UUID) (*model.FinancialLine, error) {
	var line model.FinancialLine
	if err := r.preloaded(ctx).Preload("Project").First(&line, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *FinancialLineRepository) Create(ctx context.Context, line *model.FinancialLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// Update replaces the line and all of its child rows in one transaction.
func (r *FinancialLineRepository) Update(ctx context.Context, line *model.FinancialLine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("financial_line_id = ?", line.ID).Delete(&model.FundingAllocation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("financial_line_id = ?", line.ID).Delete(&model.RevenueMonth{}).Error; err != nil {
			return err
		}
		if err := tx.Where("financial_line_id = ?", line.ID).Delete(&model.Milestone{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(line).Error
	})
}

// ConsumedByPO sums funding_amount_po_currency per purchase order across all
// financial lines of the project, every status included.
func (r *FinancialLineRepository) ConsumedByPO(ctx context.Context, projectID uuid.UUID) (map[string]decimal.Decimal, error) {
	var rows []struct {
		PONo     string          `gorm:"column:po_no"`
		Consumed decimal.Decimal `gorm:"column:consumed"`
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			fa.po_no,
			COALESCE(SUM(fa.funding_amount_po_currency), 0) AS consumed
		FROM fl_funding_allocations fa
		JOIN financial_lines fl ON fl.id = fa.financial_line_id
		WHERE fl.project_id = ?
		GROUP BY fa.po_no
	`, projectID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	consumed := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		consumed[row.PONo] = row.Consumed
	}
	return consumed, nil
}
