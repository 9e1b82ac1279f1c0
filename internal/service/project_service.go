package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rmgops/rmg-console/internal/model"
	"github.com/rmgops/rmg-console/internal/repository"
)

// ProjectService backs the customer and project administration screens.
type ProjectService struct {
	projects  *repository.ProjectRepository
	customers *repository.CustomerRepository
	pos       *repository.PurchaseOrderRepository
	log       zerolog.Logger
}

func NewProjectService(
	projects *repository.ProjectRepository,
	customers *repository.CustomerRepository,
	pos *repository.PurchaseOrderRepository,
	log zerolog.Logger,
) *ProjectService {
	return &ProjectService{projects: projects, customers: customers, pos: pos, log: log}
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]model.Project, error) {
	return s.projects.List(ctx)
}

func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	project, err := s.projects.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: project %s", ErrNotFound, id)
		}
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) CreateProject(ctx context.Context, project *model.Project) (*model.Project, error) {
	if project.Name == "" || project.ProjectNo == "" {
		return nil, fmt.Errorf("%w: project number and name are required", ErrInvalidInput)
	}
	if project.ProjectCurrency == "" {
		return nil, fmt.Errorf("%w: project currency is required", ErrInvalidInput)
	}
	if project.StartDate.IsZero() || project.EndDate.IsZero() || project.EndDate.Before(project.StartDate) {
		return nil, fmt.Errorf("%w: project end date must not be before start date", ErrInvalidInput)
	}
	if _, err := s.customers.Get(ctx, project.CustomerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, project.CustomerID)
		}
		return nil, err
	}
	if project.Status == "" {
		project.Status = model.ProjectStatusActive
	}
	if err := s.projects.Create(ctx, project); err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: project number %q already exists", ErrConflict, project.ProjectNo)
		}
		return nil, err
	}
	s.log.Info().Str("project_no", project.ProjectNo).Msg("project created")
	return s.projects.Get(ctx, project.ID)
}

func (s *ProjectService) CreatePurchaseOrder(ctx context.Context, po *model.PurchaseOrder) (*model.PurchaseOrder, error) {
	if po.PONo == "" {
		return nil, fmt.Errorf("%w: po number is required", ErrInvalidInput)
	}
	if !po.POAmount.IsPositive() {
		return nil, fmt.Errorf("%w: po amount must be greater than zero", ErrInvalidInput)
	}
	if _, err := s.GetProject(ctx, po.ProjectID); err != nil {
		return nil, err
	}
	if po.Status == "" {
		po.Status = model.POStatusOpen
	}
	if err := s.pos.Create(ctx, po); err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: purchase order %q already exists", ErrConflict, po.PONo)
		}
		return nil, err
	}
	s.log.Info().Str("po_no", po.PONo).Msg("purchase order created")
	return po, nil
}

func (s *ProjectService) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.customers.List(ctx)
}

func (s *ProjectService) CreateCustomer(ctx context.Context, customer *model.Customer) (*model.Customer, error) {
	if customer.Name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if customer.Status == "" {
		customer.Status = model.CustomerStatusActive
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: customer code %q already exists", ErrConflict, customer.Code)
		}
		return nil, err
	}
	s.log.Info().Str("customer", customer.Name).Msg("customer created")
	return customer, nil
}
