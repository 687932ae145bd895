//go:build ignore

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hugh/go-studio/internal/auth"
	"github.com/hugh/go-studio/internal/database"
	"github.com/hugh/go-studio/internal/database/models"
	"github.com/hugh/go-studio/internal/policy"
	"github.com/hugh/go-studio/internal/project"
	"github.com/hugh/go-studio/pkg/config"
	"github.com/hugh/go-studio/pkg/crypto"
	"github.com/hugh/go-studio/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	genKey := flag.Bool("gen-key", false, "print a new ENCRYPTION_KEY and exit")
	flag.Parse()

	if *genKey {
		key, err := crypto.GenerateKey()
		if err != nil {
			log.Fatalf("failed to generate key: %v", err)
		}
		fmt.Println(key)
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, nil, logger)
	projects := project.NewService(db, policy.NewEvaluator(db), nil, logger)

	email := envOr("ADMIN_EMAIL", "admin@example.com")
	resp, err := authService.Register(ctx, auth.RegisterInput{
		Email:    email,
		Password: envOr("ADMIN_PASSWORD", "admin123!"),
		Name:     envOr("ADMIN_NAME", "Admin"),
		OrgName:  envOr("ADMIN_ORG", "Default Organization"),
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	starter, err := seedStarterProject(ctx, projects, resp)
	if err != nil {
		log.Fatalf("failed to create starter project: %v", err)
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	if resp.Organization != nil {
		fmt.Printf("Organization: %s (%s)\n", resp.Organization.Name, resp.Organization.Domain)
	}
	fmt.Printf("Starter project: %s\n", starter.ID)
	fmt.Printf("Token: %s\n", resp.Token)
}

// seedStarterProject builds a small project every new user receives a copy of.
func seedStarterProject(ctx context.Context, projects *project.Service, admin *auth.AuthResponse) (*models.Project, error) {
	input := project.CreateInput{
		Name:        "Getting Started",
		Description: "A tour of playlists and activities",
		IsPublic:    true,
		Indexing:    true,
	}
	if org := admin.Organization; org != nil {
		input.OrganizationID = &org.ID
	}

	p, err := projects.Create(ctx, admin.User.ID, input)
	if err != nil {
		return nil, err
	}

	playlist, err := projects.CreatePlaylist(ctx, admin.User.ID, p.ID, project.PlaylistInput{Title: "Welcome", IsPublic: true})
	if err != nil {
		return nil, err
	}
	for _, a := range []project.ActivityInput{
		{Title: "What is a playlist?", Type: models.ActivityTypeH5P, IsPublic: true},
		{Title: "Publishing to your LMS", Type: models.ActivityTypeH5P, IsPublic: true},
	} {
		if _, err := projects.CreateActivity(ctx, admin.User.ID, playlist.ID, a); err != nil {
			return nil, err
		}
	}

	isStarter := true
	return projects.Update(ctx, admin.User.ID, p.ID, project.UpdateInput{IsStarter: &isStarter})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
