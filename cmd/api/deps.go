package main

import (
	"log"

	"centime/internal/domain/budget"
	"centime/internal/domain/goal"
	"centime/internal/domain/transaction"
	"centime/internal/domain/wallet"
	"centime/internal/infrastructure/postgres"
	"centime/internal/infrastructure/postgres/listener"
	httphandlers "centime/internal/interfaces/http"
	"centime/internal/shared/auth"
	"centime/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	TransactionHandler *httphandlers.TransactionHandler
	WalletHandler      *httphandlers.WalletHandler
	BudgetHandler      *httphandlers.BudgetHandler
	GoalHandler        *httphandlers.GoalHandler
	CategoryHandler    *httphandlers.CategoryHandler

	// Auth
	JWT *auth.JWT

	// Domain services (for scheduler jobs and the listener)
	BudgetService *budget.Service
	GoalService   *goal.Service

	// Repositories (for scheduler job provider)
	BudgetRepo *postgres.BudgetRepository
	GoalRepo   *postgres.GoalRepository
	FamilyRepo *postgres.FamilyRepository

	// Out-of-band budget refresh on NOTIFY events
	LedgerListener *listener.LedgerListener
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Initialize repositories
	transactionRepo := postgres.NewTransactionRepository(db)
	walletRepo := postgres.NewWalletRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)
	goalRepo := postgres.NewGoalRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	familyRepo := postgres.NewFamilyRepository(db)

	// Initialize domain services
	walletService := wallet.NewService(walletRepo)
	budgetService := budget.NewService(budgetRepo, transactionRepo)
	goalService := goal.NewService(goalRepo)

	manager := transaction.NewManager(
		transactionRepo,
		walletService,
		budgetService,
		goalService,
		categoryRepo,
		familyRepo,
	)

	// Initialize auth components
	jwt := auth.NewJWT(cfg.JWT.Secret)

	// Initialize handlers
	transactionHandler := httphandlers.NewTransactionHandler(manager)
	walletHandler := httphandlers.NewWalletHandler(walletService, familyRepo)
	budgetHandler := httphandlers.NewBudgetHandler(budgetService, familyRepo)
	goalHandler := httphandlers.NewGoalHandler(goalService)
	categoryHandler := httphandlers.NewCategoryHandler(categoryRepo)

	var ledgerListener *listener.LedgerListener
	if cfg.Listener.Enabled {
		ledgerListener = listener.NewLedgerListener(cfg.Database.ConnectionString(), budgetService, familyRepo)
	}

	return &Dependencies{
		DB:                 db,
		TransactionHandler: transactionHandler,
		WalletHandler:      walletHandler,
		BudgetHandler:      budgetHandler,
		GoalHandler:        goalHandler,
		CategoryHandler:    categoryHandler,
		JWT:                jwt,
		BudgetService:      budgetService,
		GoalService:        goalService,
		BudgetRepo:         budgetRepo,
		GoalRepo:           goalRepo,
		FamilyRepo:         familyRepo,
		LedgerListener:     ledgerListener,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
