package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/pubkeyapp/realms-vsr-holders/internal/config"
	"github.com/pubkeyapp/realms-vsr-holders/internal/models"
	"github.com/pubkeyapp/realms-vsr-holders/internal/services"
	"github.com/pubkeyapp/realms-vsr-holders/pkg/logger"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "API Key Administration")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  -create <name>     Generate and store a new API key")
	fmt.Fprintln(w, "  -list              List stored API keys")
	fmt.Fprintln(w, "  -deactivate <key>  Deactivate an API key")
	fmt.Fprintln(w, "  -health            Run database health checks")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  MONGODB_URI               MongoDB connection string")
	fmt.Fprintln(w, "  MONGODB_DATABASE          Database name")
	fmt.Fprintln(w, "  MONGODB_APIKEY_COLLECTION API keys collection name")
}

func main() {
	var (
		create      = flag.String("create", "", "Generate and store a new API key with this name")
		list        = flag.Bool("list", false, "List stored API keys")
		deactivate  = flag.String("deactivate", "", "Deactivate the given API key")
		healthCheck = flag.Bool("health", false, "Run database health checks")
	)
	flag.Parse()

	if *create == "" && !*list && *deactivate == "" && !*healthCheck {
		usage(os.Stdout)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := services.ConnectMongo(ctx, &cfg.MongoDB)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	auth := services.NewAuthService(client, &cfg.MongoDB, logger.Nop())
	defer func() {
		if err := auth.Close(context.Background()); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}()

	if *healthCheck {
		if err := runHealthCheck(ctx, services.NewDatabaseHealthChecker(client, &cfg.MongoDB), os.Stdout); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
	}

	if *create != "" {
		if err := auth.EnsureIndexes(ctx); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
		key, err := auth.CreateAPIKey(ctx, *create)
		if err != nil {
			log.Fatalf("Failed to create API key: %v", err)
		}
		fmt.Printf("Created API key %q: %s\n", key.Name, key.Key)
	}

	if *deactivate != "" {
		if err := auth.DeactivateAPIKey(ctx, *deactivate); err != nil {
			log.Fatalf("Failed to deactivate API key: %v", err)
		}
		fmt.Println("API key deactivated")
	}

	if *list {
		keys, err := auth.ListAPIKeys(ctx)
		if err != nil {
			log.Fatalf("Failed to list API keys: %v", err)
		}
		printKeys(os.Stdout, keys)
	}
}

// runHealthCheck prints every database check and fails if any is unhealthy
func runHealthCheck(ctx context.Context, checker *services.DatabaseHealthChecker, w io.Writer) error {
	checks := checker.GetDetailedHealth(ctx)

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Health Check Results:")
	for _, name := range names {
		check := checks[name]
		mark := "ok"
		if check.Status != services.HealthStatusHealthy {
			mark = "!!"
		}
		fmt.Fprintf(w, "  [%s] %s: %s (%v)\n", mark, name, check.Status, check.ResponseTime)
		if check.Message != "" {
			fmt.Fprintf(w, "       %s\n", check.Message)
		}
	}

	if services.Worst(checks) == services.HealthStatusUnhealthy {
		return fmt.Errorf("database is unhealthy")
	}
	return nil
}

// printKeys lists keys without revealing more than a prefix of each
func printKeys(w io.Writer, keys []models.APIKey) {
	if len(keys) == 0 {
		fmt.Fprintln(w, "No API keys found")
		return
	}
	for _, key := range keys {
		status := "active"
		if !key.Active {
			status = "inactive"
		}
		fmt.Fprintf(w, "  - %s... %s [%s] created %s\n",
			maskKey(key.Key), key.Name, status, key.CreatedAt.Format(time.DateOnly))
	}
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8]
}
