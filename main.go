package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/podut/hangman-server/internal/auth"
	"github.com/podut/hangman-server/internal/config"
	"github.com/podut/hangman-server/internal/engine"
	"github.com/podut/hangman-server/internal/httpserver"
	"github.com/podut/hangman-server/internal/stats"
	"github.com/podut/hangman-server/internal/store"
	"github.com/podut/hangman-server/internal/store/sqlstore"
	"github.com/podut/hangman-server/internal/words"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := func() time.Time { return time.Now().UTC() }

	reg := words.NewRegistry()
	if err := reg.LoadDefaults(now()); err != nil {
		log.Fatal().Err(err).Msg("failed to load built-in dictionaries")
	}
	if cfg.DictionaryDir != "" {
		if _, err := reg.LoadDir(cfg.DictionaryDir, now()); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.DictionaryDir).Msg("failed to load dictionaries")
		}
	}
	if _, err := reg.Get(cfg.DefaultDictionary); err != nil {
		log.Fatal().Err(err).Str("dictionary", cfg.DefaultDictionary).Msg("default dictionary missing")
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	eng := engine.New(st, reg, engine.Options{
		DefaultDictionary:        cfg.DefaultDictionary,
		MaxActiveSessionsPerUser: cfg.MaxSessionsPerUser,
		MaxGamesPerSession:       cfg.MaxGamesPerSession,
		Now:                      now,
	})
	authSvc := auth.NewService(st, auth.Options{
		Secret: cfg.JWTSecret,
		TTL:    cfg.JWTExpiresIn,
		Now:    now,
	})
	srv := httpserver.New(eng, stats.New(st, now), authSvc, reg, httpserver.Options{
		ClientOrigin:     cfg.ClientOrigin,
		DefaultMaxMisses: cfg.DefaultMaxMisses,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Version:          version,
		Now:              now,
		CookieName:       cfg.CookieName,
		SecureCookies:    cfg.Production(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("starting hangman server")
		return srv.Start(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited")
	}
}

func setupLogging(cfg *config.Config) {
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// openStore picks the in-memory store or a SQL dialect.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		return store.NewMemoryStore(), nil
	}
	return sqlstore.Open(ctx, cfg.StoreDriver, cfg.StoreTarget())
}
