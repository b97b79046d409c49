package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"cashback_platform/internal/db"
	"cashback_platform/internal/domain"
	"cashback_platform/internal/repository"
	"cashback_platform/internal/service"

	"github.com/joho/godotenv"
)

// Seeds a client, a merchant owner with an approved store and an admin, then
// prints a token for each. Safe to run more than once.
func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET not set")
	}
	service.SetJWTSecret(secret)

	pool := db.Connect(dsn)
	defer pool.Close()

	repo := repository.NewUserRepository(pool)
	ctx := context.Background()

	client := ensureUser(ctx, repo, domain.User{Type: domain.UserClient, Name: "Test Client", Email: "client@example.com"})
	owner := ensureUser(ctx, repo, domain.User{Type: domain.UserMerchant, Name: "Test Merchant", Email: "merchant@example.com"})
	admin := ensureUser(ctx, repo, domain.User{Type: domain.UserAdmin, Name: "Test Admin", Email: "admin@example.com"})

	m := &domain.Merchant{OwnerUserID: owner.ID, StoreName: "Test Store", Approved: true}
	if err := repo.CreateMerchant(ctx, m); err != nil {
		log.Fatalf("create merchant failed: %v", err)
	}
	log.Printf("merchant id=%d owner=%d\n", m.ID, owner.ID)

	for _, u := range []struct {
		user *domain.User
		role string
	}{
		{client, service.RoleClient},
		{owner, service.RoleMerchant},
		{admin, service.RoleAdmin},
	} {
		code, err := repo.EnsureInvitationCode(ctx, u.user.ID, service.GenerateInvitationCode)
		if err != nil {
			log.Fatalf("invitation code for %d: %v", u.user.ID, err)
		}
		token, err := service.GenerateJWT(u.user.ID, u.role, 30*24*time.Hour)
		if err != nil {
			log.Fatalf("failed to generate token: %v", err)
		}
		log.Printf("%s id=%d code=%s token=%s\n", u.role, u.user.ID, code, token)
	}
}

func ensureUser(ctx context.Context, repo *repository.UserRepository, u domain.User) *domain.User {
	existing, err := repo.FindUserByTerm(ctx, u.Email)
	if err == nil {
		log.Printf("user already exists id=%d email=%s\n", existing.ID, existing.Email)
		return existing
	}
	if !errors.Is(err, domain.ErrNotFound) {
		log.Fatalf("lookup %s: %v", u.Email, err)
	}
	if err := repo.CreateUser(ctx, &u); err != nil {
		log.Fatalf("create user failed: %v", err)
	}
	log.Printf("user created id=%d email=%s\n", u.ID, u.Email)
	return &u
}
