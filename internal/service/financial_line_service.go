package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rmgops/rmg-console/internal/model"
	"github.com/rmgops/rmg-console/internal/repository"
	"github.com/rmgops/rmg-console/internal/wizard"
)

// ExcelGenerator renders a project's financial lines as a workbook.
type ExcelGenerator interface {
	Generate(project model.Project, lines []model.FinancialLine) ([]byte, error)
}

// PDFGenerator renders a one-page financial line summary.
type PDFGenerator interface {
	Generate(line model.FinancialLine) ([]byte, error)
}

// FinancialLineService is the backend surface of the FL wizard and the
// financial line screens. It satisfies wizard.Backend.
type FinancialLineService struct {
	lines    *repository.FinancialLineRepository
	pos      *repository.PurchaseOrderRepository
	projects *repository.ProjectRepository
	excel    ExcelGenerator
	pdf      PDFGenerator
	log      zerolog.Logger
}

func NewFinancialLineService(
	lines *repository.FinancialLineRepository,
	pos *repository.PurchaseOrderRepository,
	projects *repository.ProjectRepository,
	excel ExcelGenerator,
	pdf PDFGenerator,
	log zerolog.Logger,
) *FinancialLineService {
	return &FinancialLineService{
		lines:    lines,
		pos:      pos,
		projects: projects,
		excel:    excel,
		pdf:      pdf,
		log:      log,
	}
}

var _ wizard.Backend = (*FinancialLineService)(nil)

func (s *FinancialLineService) GetProject(ctx context.Context, projectID uuid.UUID) (*model.Project, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, projectID)
		}
		return nil, err
	}
	return project, nil
}

func (s *FinancialLineService) ListPurchaseOrders(ctx context.Context, projectID uuid.UUID) ([]model.PurchaseOrder, error) {
	return s.pos.ListByProject(ctx, projectID)
}

// ListPurchaseOrderBalances returns the project's non-terminal POs with their
// consumed and available amounts, the numbers the funding step selects from.
func (s *FinancialLineService) ListPurchaseOrderBalances(ctx context.Context, projectID uuid.UUID) ([]model.POBalance, error) {
	pos, err := s.pos.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	consumed, err := s.lines.ConsumedByPO(ctx, projectID)
	if err != nil {
		return nil, err
	}
	balances := make([]model.POBalance, 0, len(pos))
	for _, po := range pos {
		if po.Status.IsTerminal() {
			continue
		}
		balances = append(balances, model.POBalance{
			PurchaseOrder:   po,
			ConsumedAmount:  consumed[po.PONo],
			AvailableAmount: po.POAmount.Sub(consumed[po.PONo]),
		})
	}
	return balances, nil
}

func (s *FinancialLineService) ListFinancialLines(ctx context.Context, projectID uuid.UUID) ([]model.FinancialLine, error) {
	return s.lines.ListByProject(ctx, projectID, false)
}

// ListFinancialLinesForResourcing excludes archived, closed and cancelled lines.
func (s *FinancialLineService) ListFinancialLinesForResourcing(ctx context.Context, projectID uuid.UUID) ([]model.FinancialLine, error) {
	return s.lines.ListByProject(ctx, projectID, true)
}

func (s *FinancialLineService) GetFinancialLine(ctx context.Context, id uuid.UUID) (*model.FinancialLine, error) {
	line, err := s.lines.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: financial line %s", ErrNotFound, id)
		}
		return nil, err
	}
	return line, nil
}

// CreateFinancialLine persists a new line. The FL number is generated here
// when the caller did not set one; a unique-index collision gets a fresh
// number and a retry.
func (s *FinancialLineService) CreateFinancialLine(ctx context.Context, line *model.FinancialLine) (*model.FinancialLine, error) {
	if _, err := s.GetProject(ctx, line.ProjectID); err != nil {
		return nil, err
	}
	if line.FLNo == "" {
		line.FLNo = wizard.GenerateFLNo(time.Now())
	}
	if line.Status == "" {
		line.Status = model.FLStatusDraft
	}

	const maxAttempts = 3
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = s.lines.Create(ctx, line)
		if err == nil {
			s.log.Info().Str("fl_no", line.FLNo).Str("project_id", line.ProjectID.String()).Msg("financial line created")
			return s.GetFinancialLine(ctx, line.ID)
		}
		if !isDuplicateKey(err) {
			return nil, err
		}
		line.ID = uuid.Nil
		line.FLNo = wizard.GenerateFLNo(time.Now())
	}
	return nil, fmt.Errorf("%w: could not allocate a unique FL number: %v", ErrConflict, err)
}

func (s *FinancialLineService) UpdateFinancialLine(ctx context.Context, id uuid.UUID, line *model.FinancialLine) (*model.FinancialLine, error) {
	existing, err := s.GetFinancialLine(ctx, id)
	if err != nil {
		return nil, err
	}
	line.ID = existing.ID
	if line.FLNo == "" {
		line.FLNo = existing.FLNo
	}
	line.Project = nil
	if err := s.lines.Update(ctx, line); err != nil {
		return nil, err
	}
	s.log.Info().Str("fl_no", line.FLNo).Msg("financial line updated")
	return s.GetFinancialLine(ctx, id)
}

// ExportResult is a generated download.
type ExportResult struct {
	FileName string
	Content  []byte
}

// ExportFinancialLines builds the xlsx workbook for a project.
func (s *FinancialLineService) ExportFinancialLines(ctx context.Context, projectID uuid.UUID) (*ExportResult, error) {
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	lines, err := s.ListFinancialLines(ctx, projectID)
	if err != nil {
		return nil, err
	}
	content, err := s.excel.Generate(*project, lines)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("financial-lines-%s-%s.xlsx", sanitizeFileName(project.ProjectNo), time.Now().Format("20060102"))
	return &ExportResult{FileName: name, Content: content}, nil
}

// FinancialLineSummaryPDF builds the one-page pdf for a line.
func (s *FinancialLineService) FinancialLineSummaryPDF(ctx context.Context, id uuid.UUID) (*ExportResult, error) {
	line, err := s.GetFinancialLine(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(*line)
	if err != nil {
		return nil, err
	}
	return &ExportResult{FileName: sanitizeFileName(line.FLNo) + ".pdf", Content: content}, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(strings.ToLower(err.Error()), "unique")
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
