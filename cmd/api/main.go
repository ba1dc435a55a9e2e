package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"centime/internal/interfaces/scheduler"
	"centime/internal/shared/config"
	"centime/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize telemetry (if enabled)
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Printf("Error shutting down telemetry: %v", err)
			}
		}()
	}

	// Initialize dependencies
	deps, err := NewDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Initialize scheduler (if enabled)
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.NewScheduler(scheduler.SchedulerConfig{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			WorkerCount:   cfg.Scheduler.WorkerCount,
			JobDelay:      cfg.Scheduler.JobDelay,
			QueueSize:     cfg.Scheduler.QueueSize,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider:   maintenanceJobProvider(deps),
		})
		if err != nil {
			return err
		}

		sched.Start()
		log.Printf("Scheduler started with times: %v", cfg.Scheduler.ScheduleTimes)
	} else {
		log.Println("Scheduler is disabled")
	}

	// Start the NOTIFY listener so budget figures stay fresh even when
	// transactions are written outside the API (migrations, manual SQL).
	listenerCtx, cancelListener := context.WithCancel(context.Background())
	defer cancelListener()
	if deps.LedgerListener != nil {
		deps.LedgerListener.Start(listenerCtx)
	}

	// Set up routes and start servers
	handler := SetupRoutes(deps, cfg)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg))

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancelListener()
	GracefulShutdown(srv, redirectSrv, sched, 30*time.Second)
	return nil
}

// maintenanceJobProvider fans out one maintenance job per user with active
// budgets or goals: elapsed budgets roll into a fresh window and overdue
// goals are swept to expired.
func maintenanceJobProvider(deps *Dependencies) func(context.Context) ([]scheduler.Job, error) {
	return func(ctx context.Context) ([]scheduler.Job, error) {
		budgetOwners, err := deps.BudgetRepo.ListOwnerIDs(ctx)
		if err != nil {
			return nil, err
		}
		goalOwners, err := deps.GoalRepo.ListOwnerIDs(ctx)
		if err != nil {
			return nil, err
		}

		seen := make(map[int64]struct{}, len(budgetOwners)+len(goalOwners))
		jobs := make([]scheduler.Job, 0, len(budgetOwners)+len(goalOwners))
		for _, userID := range append(budgetOwners, goalOwners...) {
			if _, ok := seen[userID]; ok {
				continue
			}
			seen[userID] = struct{}{}
			jobs = append(jobs, scheduler.NewMaintenanceJob(userID, deps.BudgetService, deps.GoalService, deps.FamilyRepo))
		}
		return jobs, nil
	}
}
