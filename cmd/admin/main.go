package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"centime/internal/domain/budget"
	"centime/internal/domain/goal"
	"centime/internal/infrastructure/postgres"
	"centime/internal/shared/auth"
	"centime/internal/shared/config"
)

const usage = `Centime Admin CLI - Management commands for the Centime API

Usage:
  admin <command> [options]

Commands:
  budget-recompute   Re-derive budget spent figures from the transaction records
  budget-renew       Roll elapsed budgets into their next period window
  goal-sweep         Refresh goal statuses (expire overdue, complete reached)
  token              Issue a JWT for a user (development/support use)

Examples:
  # Recompute budgets for a specific user
  admin budget-recompute --user-id=1

  # Recompute budgets for multiple users
  admin budget-recompute --user-id=1,2,3

  # Recompute budgets for every user with an active budget
  admin budget-recompute --all

  # Renew elapsed budgets for all users with a timeout
  admin budget-renew --all --timeout=5m

  # Sweep goal statuses for all users
  admin goal-sweep --all

  # Issue a token
  admin token --user-id=1 --email=user@example.com
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "budget-recompute":
		runBudgetRecompute(os.Args[2:])
	case "budget-renew":
		runBudgetRenew(os.Args[2:])
	case "goal-sweep":
		runGoalSweep(os.Args[2:])
	case "token":
		runToken(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

// maintenanceFlags is the shared flag surface of the per-user commands.
type maintenanceFlags struct {
	fs       *flag.FlagSet
	userIDs  *string
	allUsers *bool
	timeout  *string
}

func newMaintenanceFlags(name string) *maintenanceFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	f := &maintenanceFlags{
		fs:       fs,
		userIDs:  fs.String("user-id", "", "User ID(s) to process (comma-separated for multiple)"),
		allUsers: fs.Bool("all", false, "Process all relevant users"),
		timeout:  fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)"),
	}
	fs.Usage = func() {
		fmt.Printf("Usage: admin %s [options]\n\nOptions:\n", name)
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  admin %s --user-id=1\n", name)
		fmt.Printf("  admin %s --user-id=1,2,3\n", name)
		fmt.Printf("  admin %s --all --timeout=1h\n", name)
	}
	return f
}

func (f *maintenanceFlags) parse(args []string) time.Duration {
	if err := f.fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *f.userIDs == "" && !*f.allUsers {
		fmt.Println("Error: must specify --user-id or --all")
		f.fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*f.timeout)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}
	return timeout
}

// resolveUserIDs expands the flags into a concrete user list, using the
// provided lister for --all.
func (f *maintenanceFlags) resolveUserIDs(ctx context.Context, listAll func(context.Context) ([]int64, error)) []int64 {
	if *f.allUsers {
		userIDs, err := listAll(ctx)
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		log.Printf("Found %d user(s) to process", len(userIDs))
		return userIDs
	}

	var userIDs []int64
	for _, p := range strings.Split(*f.userIDs, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			log.Fatalf("Invalid user ID '%s': %v", p, err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs
}

func connect() (*config.Config, *postgres.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")
	return cfg, db
}

func runBudgetRecompute(args []string) {
	flags := newMaintenanceFlags("budget-recompute")
	timeout := flags.parse(args)

	_, db := connect()
	defer db.Close()

	transactionRepo := postgres.NewTransactionRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)
	familyRepo := postgres.NewFamilyRepository(db)
	budgetService := budget.NewService(budgetRepo, transactionRepo)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	userIDs := flags.resolveUserIDs(ctx, budgetRepo.ListOwnerIDs)
	if len(userIDs) == 0 {
		log.Println("No users to process")
		return
	}

	log.Printf("Starting budget recompute for %d user(s)", len(userIDs))
	startTime := time.Now()

	for _, userID := range userIDs {
		familyID, err := familyRepo.FamilyIDForUser(ctx, userID)
		if err != nil {
			log.Printf("User %d: failed to resolve family: %v", userID, err)
			continue
		}

		budgets, err := budgetService.MatchingBudgets(ctx, userID, familyID)
		if err != nil {
			log.Printf("User %d: failed to list budgets: %v", userID, err)
			continue
		}

		recomputed := 0
		for _, b := range budgets {
			if b.UserID != userID {
				continue
			}
			if err := budgetService.Recompute(ctx, b); err != nil {
				log.Printf("User %d: failed to recompute budget %s: %v", userID, b.ID, err)
				continue
			}
			recomputed++
		}
		fmt.Printf("User %d: recomputed %d budget(s)\n", userID, recomputed)
	}

	log.Printf("Budget recompute completed in %v", time.Since(startTime))
}

func runBudgetRenew(args []string) {
	flags := newMaintenanceFlags("budget-renew")
	timeout := flags.parse(args)

	_, db := connect()
	defer db.Close()

	transactionRepo := postgres.NewTransactionRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)
	familyRepo := postgres.NewFamilyRepository(db)
	budgetService := budget.NewService(budgetRepo, transactionRepo)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	userIDs := flags.resolveUserIDs(ctx, budgetRepo.ListOwnerIDs)
	if len(userIDs) == 0 {
		log.Println("No users to process")
		return
	}

	log.Printf("Starting budget renewal for %d user(s)", len(userIDs))
	startTime := time.Now()

	for _, userID := range userIDs {
		familyID, err := familyRepo.FamilyIDForUser(ctx, userID)
		if err != nil {
			log.Printf("User %d: failed to resolve family: %v", userID, err)
			continue
		}

		renewed, err := budgetService.RenewElapsed(ctx, userID, familyID)
		if err != nil {
			log.Printf("User %d: renewal finished with error: %v", userID, err)
		}
		fmt.Printf("User %d: renewed %d budget(s)\n", userID, len(renewed))
	}

	log.Printf("Budget renewal completed in %v", time.Since(startTime))
}

func runGoalSweep(args []string) {
	flags := newMaintenanceFlags("goal-sweep")
	timeout := flags.parse(args)

	_, db := connect()
	defer db.Close()

	goalRepo := postgres.NewGoalRepository(db)
	goalService := goal.NewService(goalRepo)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	userIDs := flags.resolveUserIDs(ctx, goalRepo.ListOwnerIDs)
	if len(userIDs) == 0 {
		log.Println("No users to process")
		return
	}

	log.Printf("Starting goal sweep for %d user(s)", len(userIDs))
	startTime := time.Now()

	for _, userID := range userIDs {
		// ListGoals refreshes stale statuses as a side effect of reading.
		goals, err := goalService.ListGoals(ctx, userID)
		if err != nil {
			log.Printf("User %d: failed to sweep goals: %v", userID, err)
			continue
		}

		expired := 0
		for _, g := range goals {
			if g.Status == goal.StatusExpired {
				expired++
			}
		}
		fmt.Printf("User %d: swept %d goal(s), %d expired\n", userID, len(goals), expired)
	}

	log.Printf("Goal sweep completed in %v", time.Since(startTime))
}

func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)

	userID := fs.Int64("user-id", 0, "User ID to issue the token for")
	email := fs.String("email", "", "Email claim for the token")

	fs.Usage = func() {
		fmt.Println("Usage: admin token [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin token --user-id=1 --email=user@example.com")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *userID <= 0 {
		fmt.Println("Error: must specify a positive --user-id")
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	jwt := auth.NewJWT(cfg.JWT.Secret)
	token, err := jwt.Generate(*userID, *email)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Println(token)
}
