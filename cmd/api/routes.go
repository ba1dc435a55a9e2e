package main

import (
	"log"
	"net/http"

	"centime/internal/shared/config"
	"centime/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", handleHealth)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("/api/transactions", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleTransactions)))
	mux.Handle("/api/transactions/{id}", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleTransactionByID)))
	mux.Handle("/api/transactions/{id}/restore", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleRestoreTransaction)))

	mux.Handle("/api/wallets", authMiddleware(http.HandlerFunc(deps.WalletHandler.HandleWallets)))
	mux.Handle("/api/wallets/{id}", authMiddleware(http.HandlerFunc(deps.WalletHandler.HandleWalletByID)))
	mux.Handle("/api/wallets/{id}/share", authMiddleware(http.HandlerFunc(deps.WalletHandler.HandleShareWallet)))

	mux.Handle("/api/budgets", authMiddleware(http.HandlerFunc(deps.BudgetHandler.HandleBudgets)))
	mux.Handle("/api/budgets/{id}", authMiddleware(http.HandlerFunc(deps.BudgetHandler.HandleBudgetByID)))
	mux.Handle("/api/budgets/{id}/renew", authMiddleware(http.HandlerFunc(deps.BudgetHandler.HandleRenewBudget)))

	mux.Handle("/api/goals", authMiddleware(http.HandlerFunc(deps.GoalHandler.HandleGoals)))
	mux.Handle("/api/goals/{id}", authMiddleware(http.HandlerFunc(deps.GoalHandler.HandleGoalByID)))
	mux.Handle("/api/goals/{id}/progress", authMiddleware(http.HandlerFunc(deps.GoalHandler.HandleGoalProgress)))
	mux.Handle("/api/goals/{id}/reactivate", authMiddleware(http.HandlerFunc(deps.GoalHandler.HandleReactivateGoal)))

	mux.Handle("/api/categories", authMiddleware(http.HandlerFunc(deps.CategoryHandler.HandleListCategories)))

	// Apply global middleware
	var handler http.Handler = mux
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}
	handler = middleware.Logging(middleware.CORS(cfg.Server.AllowedHosts)(handler))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
