// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev supervisor (sup@example.com) already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"pso-control-plane/backend/internal/config"
	cmdomain "pso-control-plane/backend/internal/contactmanager/domain"
	cmrepo "pso-control-plane/backend/internal/contactmanager/repository"
	"pso-control-plane/backend/internal/db"
	userdomain "pso-control-plane/backend/internal/user/domain"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

const supervisorEmail = "sup@example.com"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)
	profiles := cmrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmail(ctx, supervisorEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (sup@example.com exists). Skipping.")
		os.Exit(0)
	}

	now := time.Now().UTC()
	seedUsers := []*userdomain.User{
		{ID: "dev-sup-001", Email: supervisorEmail, FirstName: "Sam", LastName: "Ward", Role: userdomain.RoleSupervisor, Active: true, CreatedAt: now},
		{ID: "dev-pso-001", Email: "pso@example.com", FirstName: "Pat", LastName: "Okoro", Role: userdomain.RolePSO, Active: true, CreatedAt: now},
		{ID: "dev-pso-002", Email: "pso2@example.com", FirstName: "Lee", LastName: "Ng", Role: userdomain.RolePSO, Active: true, CreatedAt: now},
		{ID: "dev-cm-001", Email: "cm@example.com", FirstName: "Ana", LastName: "Silva", Role: userdomain.RoleContactManager, Active: true, CreatedAt: now},
		{ID: "dev-admin-001", Email: "admin@example.com", FirstName: "Ade", LastName: "Bello", Role: userdomain.RoleAdmin, Active: true, CreatedAt: now},
	}
	for _, u := range seedUsers {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", u.Email, err)
		}
	}

	if err := profiles.Upsert(ctx, &cmdomain.Profile{
		UserID:    "dev-cm-001",
		Status:    cmdomain.StatusAvailable,
		UpdatedAt: now,
	}); err != nil {
		log.Fatalf("create contact manager profile: %v", err)
	}

	log.Println("Seed completed successfully.")
	log.Printf("Supervisor: %s  PSO: pso@example.com  Contact manager: cm@example.com", supervisorEmail)
}
