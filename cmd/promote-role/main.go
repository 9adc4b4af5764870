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
	if len(os.Args) != 3 {
		fmt.Println("Usage: promote-role <email> <user|token_issuer|admin>")
		os.Exit(1)
	}

	email, role := os.Args[1], os.Args[2]

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

	user, err := services.NewUserService(db, nil).SetRoleByEmail(ctx, email, role)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		log.Fatalf("No user found with email: %s", email)
	case errors.Is(err, services.ErrInvalidRole):
		log.Fatalf("Unknown role: %s", role)
	case err != nil:
		log.Fatalf("Failed to update user: %v", err)
	}

	fmt.Printf("Successfully set role of %s to %s\n", user.Email, user.Role)
}
