package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"schedulehub.org/internal/auth"
	"schedulehub.org/internal/store/pg"
)

// seed creates the first SUPER_ADMIN account; every other administrator is
// created through the admin API afterwards.
func main() {
	log.SetFlags(0)
	var (
		dsn      = flag.String("dsn", os.Getenv("SCHEDULE_PG_DSN"), "PostgreSQL DSN")
		email    = flag.String("email", os.Getenv("SEED_EMAIL"), "super admin email")
		fullName = flag.String("name", "Super Admin", "super admin display name")
	)
	flag.Parse()
	password := os.Getenv("SEED_PASSWORD")

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or SCHEDULE_PG_DSN")
	}
	if strings.TrimSpace(*email) == "" || password == "" {
		log.Fatal("SEED_EMAIL and SEED_PASSWORD are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	identity, err := auth.EnsureSuperAdmin(ctx, store, *email, password, *fullName)
	if errors.Is(err, auth.ErrAlreadyExists) {
		fmt.Printf("super admin %s already exists\n", identity.Email)
		return
	}
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("created super admin %s (id=%d)\n", identity.Email, identity.ID)
}
