// seed creates the first ADMIN account, which Register cannot do. Run via go run ./cmd/seed.
// Idempotent: exits cleanly if a user with the admin email already exists.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"authgate/backend/internal/config"
	"authgate/backend/internal/db"
	"authgate/backend/internal/identity/validation"
	"authgate/backend/internal/security"
	userdomain "authgate/backend/internal/user/domain"
	userrepo "authgate/backend/internal/user/repository"
)

const defaultAdminEmail = "admin@example.com"

func main() {
	email := flag.String("email", envOr("SEED_ADMIN_EMAIL", defaultAdminEmail), "admin email")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin password (or SEED_ADMIN_PASSWORD)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if err := validation.ValidateCredentials(validation.Credentials{Email: *email, Password: *password}); err != nil {
		log.Fatalf("seed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	existing, err := users.GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", existing.Email)
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(*password))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	admin := &userdomain.User{
		ID:              uuid.New().String(),
		Email:           *email,
		PasswordHash:    hash,
		Role:            userdomain.RoleAdmin,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			log.Printf("Seed already applied (%s exists). Skipping.", *email)
			return
		}
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("Created ADMIN %s (%s)", admin.Email, admin.ID)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
