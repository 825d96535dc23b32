package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	redislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"go.nexauth.dev/idp/api/echoapi"
	"go.nexauth.dev/idp/cache"
	redicache "go.nexauth.dev/idp/cache/redis"
	"go.nexauth.dev/idp/config"
	"go.nexauth.dev/idp/mongodb"
	"go.nexauth.dev/idp/services"
)

func main() {
	root := &cobra.Command{
		Use:   "idp-server",
		Short: "OAuth 2.0 / OIDC authorization server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	if err := root.Execute(); err != nil {
		zlog.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg)
	zlog.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db", cfg.MongoDBName).
		Str("issuer", cfg.Issuer).
		Msg("Starting authorization server")

	client, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			zlog.Warn().Err(err).Msg("Failed to disconnect MongoDB client")
		}
	}()

	// Repositories.
	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize user repository")
	}
	clientRepo, err := mongodb.NewClientRepository(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize client repository")
	}
	codeRepo, err := mongodb.NewAuthCodeRepository(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize auth code repository")
	}
	tokenRepo, err := mongodb.NewTokenRepository(ctx, db)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize token repository")
	}
	keyRepo := mongodb.NewSigningKeyRepository(db)

	// Signing key material is a hard startup requirement.
	keys, err := services.LoadOrGenerateKeyManager(ctx, keyRepo)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Signing key unavailable")
	}

	tokenStore := buildTokenStore(ctx, cfg)
	if closer, ok := tokenStore.(interface{ Close() error }); ok {
		defer closer.Close() //nolint:errcheck
	}

	// Services.
	hasher := services.NewBcryptPasswordHasher(cfg.BcryptCost)
	registry := services.NewClientRegistry(clientRepo, cfg.StrictScopes)
	authn := services.NewCredentialAuthenticator(userRepo, hasher)
	codes := services.NewAuthCodeStore(codeRepo, time.Duration(cfg.AuthCodeTTLMin)*time.Minute)
	issuer := services.NewTokenIssuer(registry, authn, codes, userRepo, tokenRepo, tokenStore, keys,
		services.TokenIssuerConfig{
			Issuer:                cfg.Issuer,
			AccessTokenTTLMinutes: cfg.AccessTokenTTLMin,
			RefreshTokenTTL:       time.Duration(cfg.RefreshTokenTTLDays) * 24 * time.Hour,
		})

	validator := buildValidator(cfg, keys)

	// HTTP surface.
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	api := echoapi.NewOAuth2API(issuer, validator, keys, registry, authn, codes, userRepo,
		cfg.Issuer, func(c echo.Context) error {
			return mongodb.Ping(c.Request().Context(), client)
		})
	api.RegisterRoutes(e)

	// Serve until a shutdown signal arrives.
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(":" + cfg.HTTPPort)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-sigCh:
		zlog.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func setupLogging(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// buildTokenStore picks redis when configured, the in-process ttlcache store
// otherwise.
func buildTokenStore(ctx context.Context, cfg *config.ServerConfig) cache.TokenStore {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryTokenStore()
	}
	rdb := redislib.NewClient(&redislib.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Warn().Err(err).Str("addr", cfg.RedisAddr).
			Msg("Redis unreachable, falling back to in-memory token cache")
		return cache.NewMemoryTokenStore()
	}
	return redicache.NewTokenStore(rdb, "idp")
}

// buildValidator verifies against the local key pair unless a remote JWKS
// endpoint is configured.
func buildValidator(cfg *config.ServerConfig, keys *services.KeyManager) *services.TokenValidator {
	var provider services.PublicKeyProvider = keys
	if cfg.JWKSURL != "" {
		provider = services.NewJWKSClient(cfg.JWKSURL, time.Duration(cfg.JWKSCacheTTLMin)*time.Minute)
	}
	return services.NewTokenValidator(provider, cfg.Issuer, "")
}
