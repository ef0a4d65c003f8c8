// Command adminseed creates or updates the administrator account. It is safe
// to run repeatedly; a second run updates the existing row in place.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/optiohire/optiohire-api/internal/account"
	"github.com/optiohire/optiohire-api/internal/config"
	"github.com/optiohire/optiohire-api/internal/storage/sqldb"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	email := cfg.Admin.Email
	password := cfg.Admin.Password
	if len(os.Args) >= 3 {
		email = os.Args[1]
		password = os.Args[2]
	}
	if email == "" || password == "" {
		fmt.Println("Usage: adminseed [email] [password]")
		fmt.Println("Falls back to admin.email / admin.password from configuration.")
		os.Exit(1)
	}

	store, err := sqldb.New(sqldb.Config{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := account.EnsureAdmin(ctx, store, email, password); err != nil {
		log.Fatalf("Failed to ensure admin account: %v", err)
	}

	fmt.Printf("Admin account ensured for %s\n", email)
}
