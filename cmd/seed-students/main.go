package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/cbt-backend/internal/config"
	"github.com/stemsi/cbt-backend/internal/database"
	"github.com/stemsi/cbt-backend/internal/logger"
	"github.com/stemsi/cbt-backend/internal/model"
	"github.com/stemsi/cbt-backend/internal/repository"
	"github.com/stemsi/cbt-backend/internal/service"
)

func main() {
	count := flag.Int("n", 50, "Number of students to create")
	prefix := flag.String("prefix", "student", "Username prefix; usernames are <prefix><nnn>")
	password := flag.String("password", "password123", "Password for every seeded student")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	authService := service.NewAuthService(cfg, repository.NewUserRepository(pool))

	fmt.Printf("=== Seeding %d Students ===\n", *count)

	created, skipped := 0, 0
	for i := 1; i <= *count; i++ {
		username := fmt.Sprintf("%s%03d", *prefix, i)
		name := fmt.Sprintf("Student %03d", i)
		email := username + "@example.com"

		_, err := authService.CreateUser(ctx, username, name, email, *password, model.RoleStudent)
		switch {
		case err == nil:
			created++
		case errors.Is(err, service.ErrUsernameTaken):
			skipped++
		default:
			log.Fatal().Err(err).Str("username", username).Msg("Failed to create student")
		}
	}

	log.Info().Int("created", created).Int("skipped", skipped).Msg("Seeding complete")
}
