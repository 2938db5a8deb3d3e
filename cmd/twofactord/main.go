package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-2fa/pkg/account"
	"github.com/tendant/simple-2fa/pkg/client"
	"github.com/tendant/simple-2fa/pkg/config"
	"github.com/tendant/simple-2fa/pkg/logingate"
	"github.com/tendant/simple-2fa/pkg/notification"
	"github.com/tendant/simple-2fa/pkg/ratelimit"
	"github.com/tendant/simple-2fa/pkg/session"
	sessionapi "github.com/tendant/simple-2fa/pkg/session/api"
	"github.com/tendant/simple-2fa/pkg/tokengenerator"
	"github.com/tendant/simple-2fa/pkg/twofactor"
	twofactorapi "github.com/tendant/simple-2fa/pkg/twofactor/api"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	repo, closeRepo, err := openRepository(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to open user store", "type", cfg.Store.Type, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	expiry, err := cfg.Session.Expiry()
	if err != nil {
		slog.Error("Invalid session expiry", "error", err)
		os.Exit(1)
	}
	tokens := tokengenerator.NewJwtTokenGenerator(cfg.Session.JwtSecret, cfg.Session.Issuer)
	verifier := account.NewBcryptVerifier()
	manager := session.NewManager(logingate.New(), tokens, repo, verifier, session.WithExpiry(expiry))

	svc, err := newTwoFactorService(cfg, repo, verifier, manager)
	if err != nil {
		slog.Error("Failed to set up two factor service", "error", err)
		os.Exit(1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.Session.JwtSecret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		if cfg.RateLimit.PerIPEnabled {
			r.Use(ratelimit.PerIP(newLimiter(cfg.RateLimit.PerIPCapacity, cfg.RateLimit.PerIPRefillRate, cfg.RateLimit)))
		}
		r.Mount("/api/2fa", twofactorapi.NewHandler(svc).Routes())
		r.Mount("/api/session", sessionapi.NewHandler(manager).Routes())
	})

	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			authUser, ok := client.AuthUserFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			render.JSON(w, r, authUser)
		})
	})

	slog.Info("Two factor service ready",
		"store", cfg.Store.Type,
		"enabled", cfg.TwoFactor.Enabled,
		"force", cfg.TwoFactor.Force,
		"generator", cfg.TwoFactor.CodeGenerator,
		"sender", cfg.TwoFactor.CodeSender,
	)
	server.Run()
}

func openRepository(ctx context.Context, cfg config.Config) (account.Repository, func(), error) {
	noop := func() {}
	switch cfg.Store.Type {
	case "memory", "":
		slog.Warn("Using in-memory user store, users are lost on restart")
		repo := account.NewInMemoryRepository()
		if err := seedUser(ctx, repo, cfg.Store); err != nil {
			return nil, noop, err
		}
		return repo, noop, nil
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
	return nil, noop, fmt.Errorf("unknown store type: %s", cfg.Store.Type)
}

func seedUser(ctx context.Context, repo account.Repository, cfg config.StoreConfig) error {
	if cfg.SeedLogin == "" || cfg.SeedPassword == "" {
		return nil
	}
	hash, err := account.HashCredential(account.Digest(cfg.SeedPassword))
	if err != nil {
		return err
	}
	params := account.CreateUserParams{PasswordHash: hash, TwoFactorEnabled: true, Phone: cfg.SeedPhone}
	identity := account.IdentityFor(cfg.SeedLogin)
	params.Username, params.Email = identity.Username, identity.Email
	user, err := repo.CreateUser(ctx, params)
	if err != nil {
		return err
	}
	slog.Info("Seeded user", "id", user.ID, "login", cfg.SeedLogin)
	return nil
}

func newTwoFactorService(cfg config.Config, repo account.Repository, verifier account.PasswordVerifier, manager *session.Manager) (*twofactor.Service, error) {
	settings := twofactor.DefaultSettings()
	if err := copier.Copy(&settings, &cfg.TwoFactor); err != nil {
		return nil, err
	}
	ttl, err := cfg.TwoFactor.CodeTTL()
	if err != nil {
		return nil, err
	}
	settings.CodeTTL = ttl

	var generator twofactor.CodeGenerator
	switch cfg.TwoFactor.CodeGenerator {
	case "random", "":
		generator = twofactor.RandomCodeGenerator{}
	case "totp":
		generator = twofactor.NewTotpCodeGenerator(300)
	default:
		return nil, fmt.Errorf("unknown code generator: %s", cfg.TwoFactor.CodeGenerator)
	}

	notificationManager, err := newNotificationManager(cfg)
	if err != nil {
		return nil, err
	}

	opts := []twofactor.Option{
		twofactor.WithCodeGenerator(generator),
		twofactor.WithCodeSender(twofactor.NewNotificationCodeSender(notificationManager)),
	}
	if cfg.RateLimit.VerifyEnabled {
		opts = append(opts, twofactor.WithVerifyRateLimiter(
			newLimiter(cfg.RateLimit.VerifyCapacity, cfg.RateLimit.VerifyRefillRate, cfg.RateLimit)))
	}
	return twofactor.NewTwoFactorService(repo, verifier, manager, settings, opts...), nil
}

func newNotificationManager(cfg config.Config) (*notification.NotificationManager, error) {
	opts := []notification.NotificationManagerOption{notification.WithTwofaCodeTemplates()}
	switch cfg.TwoFactor.CodeSender {
	case "console", "":
		opts = append(opts,
			notification.WithConsole(notification.EmailSystem, os.Stdout),
			notification.WithConsole(notification.SMSSystem, os.Stdout),
		)
	case "notification":
		opts = append(opts,
			notification.WithSMTP(notification.SMTPConfig{
				Host:     cfg.Email.Host,
				Port:     cfg.Email.Port,
				Username: cfg.Email.Username,
				Password: cfg.Email.Password,
				From:     cfg.Email.From,
				TLS:      cfg.Email.TLS,
			}),
		)
		sms := notification.TwilioConfig{
			AccountSid: cfg.SMS.TwilioAccountSid,
			AuthToken:  cfg.SMS.TwilioAuthToken,
			From:       cfg.SMS.TwilioFrom,
		}
		if sms.Configured() {
			opts = append(opts, notification.WithTwilioSMS(sms))
		}
	default:
		return nil, fmt.Errorf("unknown code sender: %s", cfg.TwoFactor.CodeSender)
	}
	nm, err := notification.NewNotificationManager(opts...)
	if err != nil {
		return nil, err
	}
	if !nm.HasNotifier(notification.SMSSystem) {
		slog.Warn("No sms notifier configured, sms codes cannot be delivered")
	}
	return nm, nil
}

// newLimiter builds a keyed limiter and prunes idle keys in the background.
func newLimiter(capacity int, refillRate float64, cfg config.RateLimitConfig) *ratelimit.Limiter {
	ttl, err := cfg.BucketTTL()
	if err != nil || ttl <= 0 {
		ttl = time.Hour
	}
	l := ratelimit.NewLimiter(capacity, refillRate, ratelimit.WithTTL(ttl))
	go func() {
		ticker := time.NewTicker(ttl)
		defer ticker.Stop()
		for range ticker.C {
			if n := l.Prune(); n > 0 {
				slog.Debug("Pruned rate limit buckets", "count", n)
			}
		}
	}()
	return l
}
