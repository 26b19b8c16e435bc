// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
SafeBites checks text recognized on food packaging against a user's allergens,
whatever language the packaging is written in.
*/
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"codeberg.org/safebites/safebites/allergen"
	"codeberg.org/safebites/safebites/config"
	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/core/keymanager"
	"codeberg.org/safebites/safebites/core/requests"
	"codeberg.org/safebites/safebites/i18n"
	"codeberg.org/safebites/safebites/i18n/terms"
	"codeberg.org/safebites/safebites/match"
	"codeberg.org/safebites/safebites/scan"
	"codeberg.org/safebites/safebites/server/assets"
	"codeberg.org/safebites/safebites/server/router"
	"codeberg.org/safebites/safebites/server/routes"
	"codeberg.org/safebites/safebites/translate"
)

const (
	// Values for http.Server timeouts.
	// ref: gosec: G112
	readHeaderTimeout time.Duration = 15 * time.Second
	readTimeout       time.Duration = 15 * time.Second
	writeTimeout      time.Duration = 30 * time.Second
	idleTimeout       time.Duration = 30 * time.Second

	serverShutdownDeadline time.Duration = 5 * time.Second

	// feedBufferSize is how many recognizer events may queue ahead of the coordinator.
	feedBufferSize = 64
)

var (
	errChmodSocket = errors.New("failed to change unix socket permissions")
	errChownSocket = errors.New("failed to change unix socket ownership")
)

// embeddedContent holds the gettext catalogues and the starter allergen names.
//
//go:embed i18n/terms/data/allergen_names.yaml
//go:embed all:po
var embeddedContent embed.FS

// init assigns the embedded filesystem to the exported assets.FS variable.
//
//nolint:gochecknoinits // this is a good use of init()
func init() {
	assets.FS = embeddedContent
}

// main is the entry point of the application.
func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Application failed")
	}
}

// app holds the long-lived components behind the HTTP API.
type app struct {
	api      *routes.API
	scanner  *scan.Coordinator
	feed     *scan.Feed
	consumed chan struct{}
}

// newApp builds the matching pipeline from config.Global and starts feeding
// recognizer events into the scan coordinator.
func newApp(ctx context.Context) (*app, error) {
	cfg := &config.Global

	detector, translator, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	engine := match.NewEngine(detector, translator, match.Options{
		UserLanguage: translate.LanguageCode(cfg.User.Language),
		WordBoundary: cfg.Match.WordBoundary,
	})

	// Starter allergens are written in English and shown in the user's language.
	store := allergen.NewStore(terms.LocalizeAll(cfg.User.Language, cfg.Allergens.Defaults)...)

	scanner := scan.NewCoordinator(ctx, engine, store, scan.Options{})
	feed := scan.NewFeed(feedBufferSize)

	a := &app{
		api:      routes.NewAPI(store, scanner, feed, engine),
		scanner:  scanner,
		feed:     feed,
		consumed: make(chan struct{}),
	}

	go func() {
		defer close(a.consumed)

		if err := scanner.Consume(ctx, feed); err != nil && !errors.Is(err, context.Canceled) &&
			!errors.Is(err, scan.ErrStopped) {
			log.Err(err).Msg("Fragment feed stopped")
		}
	}()

	log.Info().
		Str("backend", string(cfg.Translation.Backend)).
		Str("user_language", string(engine.UserLanguage())).
		Int("allergens", len(cfg.Allergens.Defaults)).
		Msg("Initialized scanner")

	return a, nil
}

// close stops accepting fragments and waits for every in-flight run.
func (a *app) close() {
	a.feed.Close()
	a.scanner.Stop()
	<-a.consumed
}

// newBackend returns the detector and translator selected by cfg.Translation.Backend.
func newBackend(cfg *config.Config) (translate.Detector, translate.Translator, error) {
	switch cfg.Translation.Backend {
	case config.IdentityBackend:
		identity := translate.Identity{Language: translate.LanguageCode(cfg.User.Language)}

		return identity, identity, nil

	case config.GoogleBackend:
		cache, err := requests.NewCache(cfg.Cache.Enabled, cfg.Cache.Size, cfg.Cache.TTL, cfg.Cache.Compress)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize response cache: %w", err)
		}

		keys := keymanager.New(
			cfg.Translation.APIKeys,
			cfg.Translation.KeyBaseTimeout,
			cfg.Translation.KeyMaxBackoff,
			cfg.Translation.KeyLoadBalancing,
		)

		client := requests.NewClient(requests.Options{
			Keys:              keys,
			KeyHeader:         translate.KeyHeader,
			Cache:             cache,
			RequestsPerSecond: cfg.Translation.RequestsPerSecond,
			Burst:             cfg.Translation.Burst,
			UserAgent:         "SafeBites/" + config.BuildVersion,
		})

		google := translate.NewGoogle(client, translate.GoogleOptions{
			Endpoint:       cfg.Translation.Endpoint,
			CallTimeout:    cfg.Translation.CallTimeout,
			MaxConcurrency: cfg.Translation.MaxConcurrency,
		})

		return google, google, nil
	}

	return nil, nil, fmt.Errorf("unsupported translation backend %q", cfg.Translation.Backend)
}

// run orchestrates the application startup and graceful shutdown.
//
//nolint:funlen
func run() error {
	audit.SetDefaultLogger()

	if err := config.Global.LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := i18n.Setup(); err != nil {
		return fmt.Errorf("failed to initialize i18n engine: %w", err)
	}

	log.Info().Msg("Initialized i18n engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize scanner: %w", err)
	}

	router := router.NewRouter()
	router.DefineRoutes(a.api)
	router.RegisterMiddleware()

	// Create http.Server instance
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	// Channel to listen for server errors
	serverErrors := make(chan error, 1)

	// Start main server in a goroutine
	go func() {
		listener, err := chooseListener()
		if err != nil {
			serverErrors <- fmt.Errorf("failed to create listener: %w", err)

			return
		}

		serverErrors <- server.Serve(listener)
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Block until a shutdown signal or a server error is received
	select {
	case err := <-serverErrors:
		a.close()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case s := <-quit:
		log.Info().Str("signal", s.String()).Msg("Shutdown signal received")
		log.Info().Msg("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownDeadline)
		defer shutdownCancel()

		err := server.Shutdown(shutdownCtx)

		a.close()

		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
	}

	log.Info().Msg("Server exited gracefully")

	return nil
}

func chooseListener() (net.Listener, error) {
	// Check if we should use a Unix domain socket
	if config.Global.Basic.UnixSocket != "" {
		unixAddr := config.Global.Basic.UnixSocket

		unixListener, err := (&net.ListenConfig{}).Listen(context.Background(), "unix", unixAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start Unix socket listener on %v: %w", unixAddr, err)
		}

		if err = setupSocket(); err != nil {
			_ = unixListener.Close()

			return nil, err
		}

		log.Info().
			Str("address", unixAddr).
			Msg("Listening on Unix domain socket")

		return unixListener, nil
	}

	addr := net.JoinHostPort(config.Global.Basic.Host, config.Global.Basic.Port)

	tcpListener, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start TCP listener on %v: %w", addr, err)
	}

	addr = tcpListener.Addr().String()

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		_ = tcpListener.Close()

		return nil, fmt.Errorf("failed to parse listener address %q: %w", addr, err)
	}

	log.Info().
		Str("address", addr).
		Str("port", port).
		Str("url", fmt.Sprintf("http://safebites.localhost:%v/api/results", port)).
		Msg("Listening on address")

	return tcpListener, nil
}

func setupSocket() error {
	cfg := config.Global.Basic

	if cfg.UnixSocket == "" {
		return nil
	}

	uid, gid := -1, -1

	var err error

	if cfg.UnixSocketUser != "" {
		uid, err = parseUserOrGroupID(cfg.UnixSocketUser, "user")
		if err != nil {
			return err
		}
	}

	if cfg.UnixSocketGroup != "" {
		gid, err = parseUserOrGroupID(cfg.UnixSocketGroup, "group")
		if err != nil {
			return err
		}
	}

	if uid != -1 || gid != -1 {
		if err := os.Chown(cfg.UnixSocket, uid, gid); err != nil {
			return fmt.Errorf("%w: %w", errChownSocket, err)
		}
	}

	if err := os.Chmod(cfg.UnixSocket, cfg.UnixSocketPermissions); err != nil {
		return fmt.Errorf("%w: %w", errChmodSocket, err)
	}

	return nil
}

// parseUserOrGroupID resolves a numeric ID or a user or group name.
// kind is "user" or "group".
func parseUserOrGroupID(value, kind string) (int, error) {
	if id, err := strconv.Atoi(value); err == nil {
		return id, nil
	}

	var idStr string

	if kind == "user" {
		u, err := user.Lookup(value)
		if err != nil {
			return -1, fmt.Errorf("failed to lookup user '%s': %w", value, err)
		}

		idStr = u.Uid
	} else {
		g, err := user.LookupGroup(value)
		if err != nil {
			return -1, fmt.Errorf("failed to lookup group '%s': %w", value, err)
		}

		idStr = g.Gid
	}

	id, err := strconv.Atoi(idStr)
	if err != nil {
		return -1, fmt.Errorf("failed to parse %s ID from looked-up value '%s': %w", kind, value, err)
	}

	return id, nil
}
