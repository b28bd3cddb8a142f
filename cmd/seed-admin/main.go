// seed-admin creates the initial administrator account when the database
// has none. Intended for first-time setup; safe to run repeatedly.
package main

import (
	"context"
	"os"

	"github.com/chainhabit/chainhabit/internal/auth"
	"github.com/chainhabit/chainhabit/internal/config"
	"github.com/chainhabit/chainhabit/internal/logger"
	"github.com/chainhabit/chainhabit/internal/model"
	"github.com/chainhabit/chainhabit/internal/store"
	"github.com/chainhabit/chainhabit/internal/store/postgres"
	"github.com/chainhabit/chainhabit/internal/store/sqlite"
)

const (
	defaultAdminEmail    = "admin@habit.com"
	defaultAdminPassword = "admin123"
)

func main() {
	log := logger.New("seed-admin")

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	var st store.Store
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres open")
		}
		defer func() { _ = db.Close() }()
		st = postgres.NewWithDB(db)
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("sqlite open")
		}
		defer func() { _ = db.Close() }()
		st = sqlite.NewWithDB(db)
	default:
		log.Fatal().Str("driver", cfg.DBDriver).Msg("unsupported DB_DRIVER")
	}

	ctx := context.Background()
	users, err := st.Users().List(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("list users")
	}
	for _, u := range users {
		if u.Role == model.RoleAdmin {
			log.Info().Str("email", u.Email).Msg("admin account already exists, nothing to do")
			return
		}
	}

	password := os.Getenv("HABITS_ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
		log.Warn().Msg("HABITS_ADMIN_PASSWORD not set, using the default; change it after first login")
	}
	hash, err := auth.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hash password")
	}

	u, err := st.Users().Create(ctx, &model.User{
		Username:     "admin",
		Email:        defaultAdminEmail,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create admin")
	}
	log.Info().Str("user_id", u.UserID).Str("email", u.Email).Msg("admin account created")
}
