package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-2fa/pkg/account"
	"github.com/tendant/simple-2fa/pkg/config"
)

func main() {
	username := flag.String("username", "", "Username for the new user")
	email := flag.String("email", "", "Email for the new user")
	password := flag.String("password", "", "Password for the new user (required)")
	phone := flag.String("phone", "", "Phone number codes can be sent to")
	twoFactor := flag.Bool("2fa", false, "Require a second factor for this user")
	flag.Parse()

	if *password == "" || (*username == "" && *email == "") {
		fmt.Println("Error: password and one of username or email are required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open user store", "type", cfg.Store.Type, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	// Stored hashes are over the client digest, never the plaintext.
	hash, err := account.HashCredential(account.Digest(*password))
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		os.Exit(1)
	}

	user, err := repo.CreateUser(ctx, account.CreateUserParams{
		Username:         *username,
		Email:            *email,
		PasswordHash:     hash,
		TwoFactorEnabled: *twoFactor,
		Phone:            *phone,
	})
	if err != nil {
		slog.Error("Failed to create user", "error", err)
		os.Exit(1)
	}

	slog.Info("User created", "id", user.ID, "username", user.Username, "email", user.Email, "two_factor", user.TwoFactorEnabled)
}

func openRepository(ctx context.Context, cfg config.Config) (account.Repository, func(), error) {
	noop := func() {}
	switch cfg.Store.Type {
	case "file":
		repo, err := account.NewFileRepository(cfg.Store.FilePath)
		return repo, noop, err
	case "postgres":
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			return nil, noop, err
		}
		if err := account.Migrate(pool); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return account.NewPostgresRepository(pool), pool.Close, nil
	}
	return nil, noop, fmt.Errorf("store type %q cannot be seeded, use file or postgres", cfg.Store.Type)
}
