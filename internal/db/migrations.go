package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name TEXT NOT NULL,
		code VARCHAR(64),
		country VARCHAR(64),
		status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_customers_code ON customers (code) WHERE code <> '';`,
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		customer_id UUID NOT NULL REFERENCES customers(id),
		project_no VARCHAR(64) NOT NULL,
		name TEXT NOT NULL,
		legal_entity TEXT,
		project_currency VARCHAR(8) NOT NULL,
		billing_type VARCHAR(32),
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'ACTIVE',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_projects_project_no ON projects (project_no);`,
	`CREATE INDEX IF NOT EXISTS idx_projects_customer_id ON projects (customer_id);`,
	`CREATE TABLE IF NOT EXISTS purchase_orders (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		project_id UUID NOT NULL REFERENCES projects(id),
		po_no VARCHAR(64) NOT NULL,
		contract_no VARCHAR(64),
		po_currency VARCHAR(8) NOT NULL,
		po_amount NUMERIC(18,2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'OPEN',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_purchase_orders_po_no ON purchase_orders (po_no);`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_orders_project_id ON purchase_orders (project_id);`,
	`CREATE TABLE IF NOT EXISTS financial_lines (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		fl_no VARCHAR(32) NOT NULL,
		project_id UUID NOT NULL REFERENCES projects(id),
		name TEXT NOT NULL,
		contract_type VARCHAR(16) NOT NULL,
		location_type VARCHAR(16),
		execution_entity TEXT,
		currency VARCHAR(8) NOT NULL,
		timesheet_approver TEXT,
		schedule_start DATE NOT NULL,
		schedule_finish DATE NOT NULL,
		billing_rate NUMERIC(18,4) NOT NULL,
		rate_uom VARCHAR(8),
		effort NUMERIC(18,4),
		effort_uom VARCHAR(8),
		revenue_amount NUMERIC(18,2),
		expected_revenue NUMERIC(18,2),
		status VARCHAR(16) NOT NULL DEFAULT 'DRAFT',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_financial_lines_fl_no ON financial_lines (fl_no);`,
	`CREATE INDEX IF NOT EXISTS idx_financial_lines_project_id ON financial_lines (project_id);`,
	`CREATE TABLE IF NOT EXISTS fl_funding_allocations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		financial_line_id UUID NOT NULL REFERENCES financial_lines(id) ON DELETE CASCADE,
		position INT NOT NULL DEFAULT 0,
		po_no VARCHAR(64) NOT NULL,
		contract_no VARCHAR(64),
		project_currency VARCHAR(8),
		po_currency VARCHAR(8),
		unit_rate NUMERIC(18,4),
		funding_units NUMERIC(18,4),
		uom VARCHAR(8),
		funding_value_project NUMERIC(18,2),
		funding_amount_po_currency NUMERIC(18,2)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fl_funding_line_id ON fl_funding_allocations (financial_line_id);`,
	`CREATE INDEX IF NOT EXISTS idx_fl_funding_po_no ON fl_funding_allocations (po_no);`,
	`CREATE TABLE IF NOT EXISTS fl_revenue_months (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		financial_line_id UUID NOT NULL REFERENCES financial_lines(id) ON DELETE CASCADE,
		month VARCHAR(7) NOT NULL,
		planned_units NUMERIC(18,4),
		planned_revenue NUMERIC(18,2),
		actual_units NUMERIC(18,4),
		actual_revenue NUMERIC(18,2),
		forecasted_units NUMERIC(18,4),
		forecasted_revenue NUMERIC(18,2)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fl_revenue_line_id ON fl_revenue_months (financial_line_id);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_fl_revenue_line_month ON fl_revenue_months (financial_line_id, month);`,
	`CREATE TABLE IF NOT EXISTS fl_milestones (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		financial_line_id UUID NOT NULL REFERENCES financial_lines(id) ON DELETE CASCADE,
		position INT NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		due_date DATE NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		notes TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fl_milestones_line_id ON fl_milestones (financial_line_id);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
