package main

import (
	"fmt"
	"os"

	"github.com/rmgops/rmg-console/internal/auth"
	"github.com/rmgops/rmg-console/internal/config"
	"github.com/rmgops/rmg-console/internal/db"
	"github.com/rmgops/rmg-console/internal/excel"
	httphandler "github.com/rmgops/rmg-console/internal/http"
	"github.com/rmgops/rmg-console/internal/http/middleware"
	"github.com/rmgops/rmg-console/internal/logger"
	"github.com/rmgops/rmg-console/internal/pdf"
	"github.com/rmgops/rmg-console/internal/repository"
	"github.com/rmgops/rmg-console/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	customerRepo := repository.NewCustomerRepository(database)
	projectRepo := repository.NewProjectRepository(database)
	poRepo := repository.NewPurchaseOrderRepository(database)
	lineRepo := repository.NewFinancialLineRepository(database)

	lineService := service.NewFinancialLineService(
		lineRepo, poRepo, projectRepo,
		excel.NewGenerator(), pdf.NewGenerator(),
		log,
	)
	adminService := service.NewProjectService(projectRepo, customerRepo, poRepo, log)

	sessions := httphandler.NewWizardSessions(cfg.Wizard.SessionTTL)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(lineService, adminService, sessions, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting rmg console")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
