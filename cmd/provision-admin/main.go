package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dimitrije/tokenhub-api/internal/config"
	"github.com/dimitrije/tokenhub-api/internal/database"
	"github.com/dimitrije/tokenhub-api/internal/services"
)

func main() {
	if len(os.Args) < 3 || len(os.Args) > 4 {
		fmt.Println("Usage: provision-admin <email> <password> [name]")
		os.Exit(1)
	}

	email, password := os.Args[1], os.Args[2]
	name := ""
	if len(os.Args) == 4 {
		name = os.Args[3]
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	user, err := services.NewUserService(db, nil).ProvisionLocalAdmin(ctx, email, name, password)
	if errors.Is(err, services.ErrEmailTaken) {
		log.Fatalf("An account already exists for %s", email)
	}
	if err != nil {
		log.Fatalf("Failed to provision admin: %v", err)
	}

	fmt.Printf("Provisioned local admin %s (%s)\n", user.Email, user.ID)
}
