package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/api"
	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/esign"
	"github.com/jahboukie/ndarite/internal/services"
	"github.com/jahboukie/ndarite/pkg/logger"
	"github.com/jahboukie/ndarite/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Environment, cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()
	zap.ReplaceGlobals(zapLogger)

	config.LogConfig(cfg, zapLogger)

	database, err := db.Initialize(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize database", zap.Error(err))
	}

	metricsCollector := metrics.NewCollector()
	cache := services.NewCache(cfg.Redis, zapLogger)

	if err := seedDatabase(database, zapLogger); err != nil {
		zapLogger.Fatal("Failed to seed database", zap.Error(err))
	}

	usageService := services.NewUsageService(database, zapLogger)
	mailService := services.NewMailService(cfg.Mail, zapLogger)
	tokenService := services.NewTokenService(cfg.Security.JWTSecret, cfg.Security.AccessTokenExpiry, cfg.Security.RefreshTokenExpiry)
	esignClient := esign.NewClient(cfg.ESign, zapLogger)
	accountService := services.NewAccountService(database, cfg.Security, mailService, usageService, zapLogger, metricsCollector)
	documentService := services.NewDocumentService(database, cfg, esignClient, mailService, usageService, zapLogger, metricsCollector)
	billingService := services.NewBillingService(database, cfg.Billing, cfg.Tiers, cache, zapLogger, metricsCollector)
	apiKeyService := services.NewAPIKeyService(database, zapLogger)

	router := api.NewRouter(cfg, zapLogger, metricsCollector, &api.Services{
		Accounts:  accountService,
		Tokens:    tokenService,
		Documents: documentService,
		Billing:   billingService,
		APIKeys:   apiKeyService,
		Usage:     usageService,
		Cache:     cache,
	}, database)
	router.SetupRoutes()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	zapLogger.Info("Server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zapLogger.Error("Forced shutdown", zap.Error(err))
	}

	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	cache.Close()
	zapLogger.Info("Server gracefully stopped")
}

// seedDatabase loads the starter template catalog on first boot.
func seedDatabase(database *gorm.DB, logger *zap.Logger) error {
	var count int64
	database.Model(&models.Template{}).Count(&count)
	if count > 0 {
		logger.Info("Database already seeded, skipping")
		return nil
	}
	logger.Info("Seeding database with initial data")

	categories := []models.TemplateCategory{
		{Name: "Business Transactions", Slug: "business-transactions", Description: "NDAs for deals, partnerships and vendor discussions", SortOrder: 1, IsActive: true},
		{Name: "Employment", Slug: "employment", Description: "NDAs for hiring, contractors and departing staff", SortOrder: 2, IsActive: true},
		{Name: "Technology", Slug: "technology", Description: "NDAs for product development and technical evaluations", SortOrder: 3, IsActive: true},
	}
	if err := database.Create(&categories).Error; err != nil {
		return err
	}

	templates := []models.Template{
		{
			CategoryID:   &categories[0].ID,
			Name:         "Mutual NDA - Business Discussions",
			Description:  "Two-way confidentiality for exploring a business relationship.",
			Kind:         models.KindBilateral,
			Jurisdiction: "United States",
			Complexity:   models.ComplexityBasic,
			Clauses: models.JSONList{
				{
					"title": "Definition of Confidential Information",
					"body":  "Confidential Information means any information disclosed by either party to the other, whether orally or in writing, that is designated as confidential or that reasonably should be understood to be confidential given the nature of the information, relating to {{purpose}}.",
				},
				{
					"title": "Obligations",
					"body":  "Each party agrees to hold the other party's Confidential Information in strict confidence and not to disclose it to any third party for a period of {{confidentiality_period}} from the Effective Date.",
				},
				{
					"title": "Governing Law",
					"body":  "This Agreement shall be governed by the laws of {{governing_law}}.",
				},
			},
			RequiredFields:  models.StringList{"purpose", "confidentiality_period"},
			OptionalFields:  models.StringList{"permitted_disclosures"},
			TierRequirement: models.TierFree,
			Version:         1,
			IsActive:        true,
		},
		{
			CategoryID:   &categories[1].ID,
			Name:         "Employee Confidentiality Agreement",
			Description:  "One-way NDA protecting company information shared with employees.",
			Kind:         models.KindUnilateral,
			Jurisdiction: "United States",
			Complexity:   models.ComplexityStandard,
			Clauses: models.JSONList{
				{
					"title": "Company Information",
					"body":  "The Receiving Party acknowledges that in the course of employment with {{disclosing_party.company}} they will have access to trade secrets, customer lists and other proprietary information.",
				},
				{
					"title": "Non-Disclosure",
					"body":  "The Receiving Party shall not use or disclose Company information except as required to perform the duties of the role of {{position}}.",
				},
				{
					"title": "Return of Materials",
					"body":  "Upon termination of employment, the Receiving Party shall return all materials containing Confidential Information within {{return_period}} days.",
				},
			},
			RequiredFields:  models.StringList{"position", "return_period"},
			TierRequirement: models.TierStarter,
			Version:         1,
			IsActive:        true,
		},
		{
			CategoryID:   &categories[2].ID,
			Name:         "Multi-Party Development NDA",
			Description:  "Confidentiality between three or more collaborators on a technical project.",
			Kind:         models.KindMultilateral,
			Jurisdiction: "United States",
			Complexity:   models.ComplexityAdvanced,
			Clauses: models.JSONList{
				{
					"title": "Mutual Obligations",
					"body":  "Each party to this Agreement may both disclose and receive Confidential Information in connection with {{project_name}}. All obligations apply reciprocally among every party.",
				},
				{
					"title": "Intellectual Property",
					"body":  "No license or other right to Confidential Information or intellectual property is granted under this Agreement beyond the evaluation of {{project_name}}.",
				},
				{
					"title": "Term",
					"body":  "The obligations in this Agreement survive for {{confidentiality_period}} after the last disclosure of Confidential Information.",
				},
			},
			RequiredFields:  models.StringList{"project_name", "confidentiality_period"},
			TierRequirement: models.TierProfessional,
			Version:         1,
			IsActive:        true,
		},
	}
	if err := database.Create(&templates).Error; err != nil {
		return err
	}

	logger.Info("Database seeding completed",
		zap.Int("categories", len(categories)),
		zap.Int("templates", len(templates)))
	return nil
}
